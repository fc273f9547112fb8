package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/database"
	"github.com/seunghan91/talk-api-open-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// settingsCacheTTL bounds how stale a cached broadcast_settings read may
// be. Writes invalidate the cache immediately, so this only matters for
// changes made by another process.
const settingsCacheTTL = 500 * time.Millisecond

// ValidationErrors maps field names to human-readable problems.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(v))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, v[field]))
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// SettingsProvider is the read side consumed by the decision engine.
type SettingsProvider interface {
	Get(ctx context.Context) (models.BroadcastSettings, error)
}

// SettingsStore reads and updates the singleton broadcast_settings row.
// Reads are served from a short-TTL cache; updates merge partial changes
// onto the persisted row, validate, persist, and refresh the cache.
type SettingsStore struct {
	db  database.Database
	now func() time.Time

	mu        sync.Mutex
	cached    *models.BroadcastSettings
	fetchedAt time.Time
}

func NewSettingsStore(db database.Database) *SettingsStore {
	return &SettingsStore{db: db, now: time.Now}
}

func (s *SettingsStore) Get(ctx context.Context) (models.BroadcastSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.fetchedAt) < settingsCacheTTL {
		return *s.cached, nil
	}

	cfg, err := s.fetch(ctx)
	if err != nil {
		return models.BroadcastSettings{}, err
	}

	s.cached = &cfg
	s.fetchedAt = s.now()
	return cfg, nil
}

func (s *SettingsStore) fetch(ctx context.Context) (models.BroadcastSettings, error) {
	var (
		cfg       models.BroadcastSettings
		roles     pq.StringArray
		updatedBy uuid.NullUUID
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT daily_limit, hourly_limit, cooldown_minutes, bypass_roles, updated_by, updated_at
		FROM broadcast_settings
		WHERE id = 1
	`).Scan(&cfg.DailyLimit, &cfg.HourlyLimit, &cfg.CooldownMinutes, &roles, &updatedBy, &cfg.UpdatedAt)
	if err != nil {
		return models.BroadcastSettings{}, fmt.Errorf("failed to load broadcast settings: %w", err)
	}

	cfg.BypassRoles = []string(roles)
	if updatedBy.Valid {
		cfg.UpdatedBy = &updatedBy.UUID
	}
	return cfg, nil
}

// Update merges a partial change onto the current persisted settings,
// validates the result, and persists it. The returned settings are the
// full merged config.
func (s *SettingsStore) Update(ctx context.Context, req models.UpdateBroadcastSettingsRequest, updatedBy uuid.UUID) (models.BroadcastSettings, error) {
	current, err := s.fetch(ctx)
	if err != nil {
		return models.BroadcastSettings{}, err
	}

	merged := current
	if req.DailyLimit != nil {
		merged.DailyLimit = *req.DailyLimit
	}
	if req.HourlyLimit != nil {
		merged.HourlyLimit = *req.HourlyLimit
	}
	if req.CooldownMinutes != nil {
		merged.CooldownMinutes = *req.CooldownMinutes
	}
	if req.BypassRoles != nil {
		merged.BypassRoles = req.BypassRoles
	}

	if verrs := validateSettings(merged); len(verrs) > 0 {
		return models.BroadcastSettings{}, verrs
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		UPDATE broadcast_settings
		SET daily_limit = $1, hourly_limit = $2, cooldown_minutes = $3, bypass_roles = $4, updated_by = $5, updated_at = $6
		WHERE id = 1
	`, merged.DailyLimit, merged.HourlyLimit, merged.CooldownMinutes, pq.Array(merged.BypassRoles), updatedBy, now)
	if err != nil {
		return models.BroadcastSettings{}, fmt.Errorf("failed to update broadcast settings: %w", err)
	}

	merged.UpdatedBy = &updatedBy
	merged.UpdatedAt = now

	s.mu.Lock()
	s.cached = &merged
	s.fetchedAt = now
	s.mu.Unlock()

	return merged, nil
}

func validateSettings(cfg models.BroadcastSettings) ValidationErrors {
	verrs := ValidationErrors{}

	if cfg.DailyLimit <= 0 {
		verrs["daily_limit"] = "must be greater than 0"
	}
	if cfg.HourlyLimit <= 0 {
		verrs["hourly_limit"] = "must be greater than 0"
	} else if cfg.DailyLimit > 0 && cfg.HourlyLimit > cfg.DailyLimit {
		verrs["hourly_limit"] = "must not exceed daily_limit"
	}
	if cfg.CooldownMinutes < 0 {
		verrs["cooldown_minutes"] = "must not be negative"
	}

	seen := make(map[string]bool, len(cfg.BypassRoles))
	for _, role := range cfg.BypassRoles {
		if strings.TrimSpace(role) == "" {
			verrs["bypass_roles"] = "roles must be non-empty strings"
			break
		}
		if seen[role] {
			verrs["bypass_roles"] = "roles must be unique"
			break
		}
		seen[role] = true
	}

	if len(verrs) == 0 {
		return nil
	}
	return verrs
}

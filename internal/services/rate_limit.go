package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/database"
	"github.com/seunghan91/talk-api-open-sub000/internal/models"
	"github.com/seunghan91/talk-api-open-sub000/internal/obs"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DenyReason is the machine-readable cause of a denied admission.
type DenyReason string

const (
	DenyReasonNone     DenyReason = ""
	DenyReasonDaily    DenyReason = "daily_limit_exceeded"
	DenyReasonHourly   DenyReason = "hourly_limit_exceeded"
	DenyReasonCooldown DenyReason = "cooldown_active"
)

// LimitInfo is the usage snapshot returned with every verdict, whether
// admitted or denied.
type LimitInfo struct {
	DailyLimit     int        `json:"daily_limit"`
	DailyUsed      int        `json:"daily_used"`
	DailyRemaining int        `json:"daily_remaining"`
	HourlyLimit    int        `json:"hourly_limit"`
	HourlyUsed     int        `json:"hourly_used"`
	NextResetAt    time.Time  `json:"next_reset_at"`
	CooldownEndsAt *time.Time `json:"cooldown_ends_at,omitempty"`
	IsBypass       bool       `json:"is_bypass"`
}

type Verdict struct {
	Admitted bool       `json:"admitted"`
	Reason   DenyReason `json:"reason,omitempty"`
	Info     LimitInfo  `json:"info"`
}

// LimitDecisionEngine decides whether a sender may broadcast right now.
//
// Checks run in a fixed order: daily calendar-day window, trailing one-hour
// window, then cooldown since the last broadcast. The first tripped check is
// the reported reason. The daily window is a calendar day in the service
// timezone while the hourly window trails the evaluation instant; the
// asymmetry is intentional and observable, do not unify it.
type LimitDecisionEngine struct {
	db       database.Database
	settings SettingsProvider
	metrics  *obs.Metrics
	log      zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewLimitDecisionEngine(db database.Database, settings SettingsProvider, metrics *obs.Metrics, log zerolog.Logger, loc *time.Location) *LimitDecisionEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &LimitDecisionEngine{
		db:       db,
		settings: settings,
		metrics:  metrics,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

// CheckLimit evaluates the sender's current limits without writing any
// counters. Used by the read-only limits endpoint.
func (e *LimitDecisionEngine) CheckLimit(ctx context.Context, userID uuid.UUID) (Verdict, error) {
	cfg, err := e.settings.Get(ctx)
	if err != nil {
		return Verdict{}, err
	}

	role, err := e.userRole(ctx, e.db, userID)
	if err != nil {
		return Verdict{}, err
	}
	if cfg.Bypasses(role) {
		return e.bypassVerdict(cfg), nil
	}

	return e.evaluate(ctx, e.db, userID, cfg, e.now())
}

// Admit is the write half of the admission transaction. It must be called
// inside the same transaction that inserts the broadcast row: it upserts
// and row-locks today's ledger entry so that two concurrent sends from the
// same user serialize instead of both observing one remaining slot. On
// denial the ledger's limit_exceeded_count is incremented within the
// transaction, so the caller must commit even on a denied verdict.
func (e *LimitDecisionEngine) Admit(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (Verdict, error) {
	cfg, err := e.settings.Get(ctx)
	if err != nil {
		return Verdict{}, err
	}

	role, err := e.userRole(ctx, tx, userID)
	if err != nil {
		return Verdict{}, err
	}
	if cfg.Bypasses(role) {
		v := e.bypassVerdict(cfg)
		e.observe(v)
		return v, nil
	}

	now := e.now()
	usageDate := e.usageDate(now)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO usage_ledger (user_id, usage_date)
		VALUES ($1, $2)
		ON CONFLICT (user_id, usage_date) DO NOTHING
	`, userID, usageDate); err != nil {
		return Verdict{}, fmt.Errorf("failed to upsert usage ledger: %w", err)
	}

	// The lock serializes concurrent admission checks for this user.
	entry := models.UsageLedgerEntry{UserID: userID}
	if err := tx.QueryRowContext(ctx, `
		SELECT broadcasts_sent, limit_exceeded_count FROM usage_ledger
		WHERE user_id = $1 AND usage_date = $2
		FOR UPDATE
	`, userID, usageDate).Scan(&entry.BroadcastsSent, &entry.LimitExceededCount); err != nil {
		return Verdict{}, fmt.Errorf("failed to lock usage ledger: %w", err)
	}

	verdict, err := e.evaluate(ctx, tx, userID, cfg, now)
	if err != nil {
		return Verdict{}, err
	}

	if !verdict.Admitted {
		if _, err := tx.ExecContext(ctx, `
			UPDATE usage_ledger
			SET limit_exceeded_count = limit_exceeded_count + 1, updated_at = $3
			WHERE user_id = $1 AND usage_date = $2
		`, userID, usageDate, now); err != nil {
			return Verdict{}, fmt.Errorf("failed to record exceeded attempt: %w", err)
		}
		e.log.Info().
			Str("user_id", userID.String()).
			Str("reason", string(verdict.Reason)).
			Int("exceeded_count", entry.LimitExceededCount+1).
			Msg("broadcast denied")
	}

	e.observe(verdict)
	return verdict, nil
}

// RecordBroadcast bumps today's sent counter. Call it exactly once per
// admitted broadcast, inside the same transaction that inserted the
// broadcast row. Bypassed sends skip it: their usage is not tracked.
func (e *LimitDecisionEngine) RecordBroadcast(ctx context.Context, tx *sql.Tx, userID uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO usage_ledger (user_id, usage_date, broadcasts_sent, last_broadcast_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (user_id, usage_date) DO UPDATE
		SET broadcasts_sent = usage_ledger.broadcasts_sent + 1,
		    last_broadcast_at = EXCLUDED.last_broadcast_at,
		    updated_at = EXCLUDED.updated_at
	`, userID, e.usageDate(at), at)
	if err != nil {
		return fmt.Errorf("failed to record broadcast usage: %w", err)
	}
	return nil
}

func (e *LimitDecisionEngine) evaluate(ctx context.Context, q database.Querier, userID uuid.UUID, cfg models.BroadcastSettings, now time.Time) (Verdict, error) {
	dayStart := e.dayStart(now)
	nextReset := dayStart.AddDate(0, 0, 1)

	info := LimitInfo{
		DailyLimit:  cfg.DailyLimit,
		HourlyLimit: cfg.HourlyLimit,
		NextResetAt: nextReset,
	}

	var dailyUsed int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM broadcasts
		WHERE sender_id = $1 AND created_at >= $2 AND created_at < $3
	`, userID, dayStart, nextReset).Scan(&dailyUsed); err != nil {
		return Verdict{}, fmt.Errorf("failed to count daily broadcasts: %w", err)
	}

	var hourlyUsed int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM broadcasts
		WHERE sender_id = $1 AND created_at >= $2
	`, userID, now.Add(-time.Hour)).Scan(&hourlyUsed); err != nil {
		return Verdict{}, fmt.Errorf("failed to count hourly broadcasts: %w", err)
	}

	var lastAt time.Time
	hasLast := true
	err := q.QueryRowContext(ctx, `
		SELECT created_at FROM broadcasts
		WHERE sender_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&lastAt)
	if errors.Is(err, sql.ErrNoRows) {
		hasLast = false
	} else if err != nil {
		return Verdict{}, fmt.Errorf("failed to load last broadcast: %w", err)
	}

	info.DailyUsed = dailyUsed
	info.DailyRemaining = cfg.DailyLimit - dailyUsed
	if info.DailyRemaining < 0 {
		info.DailyRemaining = 0
	}
	info.HourlyUsed = hourlyUsed

	if cfg.CooldownMinutes > 0 && hasLast {
		endsAt := lastAt.Add(time.Duration(cfg.CooldownMinutes) * time.Minute)
		if endsAt.After(now) {
			info.CooldownEndsAt = &endsAt
		}
	}

	// Fixed evaluation order; the first tripped check wins.
	switch {
	case dailyUsed >= cfg.DailyLimit:
		return Verdict{Admitted: false, Reason: DenyReasonDaily, Info: info}, nil
	case hourlyUsed >= cfg.HourlyLimit:
		return Verdict{Admitted: false, Reason: DenyReasonHourly, Info: info}, nil
	case info.CooldownEndsAt != nil:
		return Verdict{Admitted: false, Reason: DenyReasonCooldown, Info: info}, nil
	}

	return Verdict{Admitted: true, Info: info}, nil
}

// bypassVerdict admits a privileged sender without consulting or writing
// any counters.
func (e *LimitDecisionEngine) bypassVerdict(cfg models.BroadcastSettings) Verdict {
	return Verdict{
		Admitted: true,
		Info: LimitInfo{
			DailyLimit:     cfg.DailyLimit,
			DailyRemaining: cfg.DailyLimit,
			HourlyLimit:    cfg.HourlyLimit,
			NextResetAt:    e.dayStart(e.now()).AddDate(0, 0, 1),
			IsBypass:       true,
		},
	}
}

func (e *LimitDecisionEngine) userRole(ctx context.Context, q database.Querier, userID uuid.UUID) (string, error) {
	var role string
	if err := q.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role); err != nil {
		return "", fmt.Errorf("failed to load user role: %w", err)
	}
	return role, nil
}

func (e *LimitDecisionEngine) dayStart(now time.Time) time.Time {
	n := now.In(e.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, e.loc)
}

func (e *LimitDecisionEngine) usageDate(now time.Time) string {
	return now.In(e.loc).Format("2006-01-02")
}

func (e *LimitDecisionEngine) observe(v Verdict) {
	if e.metrics == nil {
		return
	}
	result := "denied"
	if v.Admitted {
		result = "admitted"
	}
	e.metrics.AdmissionsTotal.WithLabelValues(result, string(v.Reason)).Inc()
}

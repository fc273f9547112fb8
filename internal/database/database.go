package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/seunghan91/talk-api-open-sub000/internal/config"

	"github.com/lib/pq"
)

func InitDB() (*sql.DB, error) {
	cfg := config.GetConfig().Database

	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	// Create users table
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		nickname VARCHAR(100) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'member',
		status VARCHAR(30) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'suspended', 'banned', 'pending_verification')),
		gender VARCHAR(10),
		region VARCHAR(100),
		birth_year INTEGER,
		last_active_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	// Create user_blocks table
	userBlocksTable := `
	CREATE TABLE IF NOT EXISTS user_blocks (
		blocker_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		blocked_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(blocker_id, blocked_id)
	);`

	// Create broadcasts table
	broadcastsTable := `
	CREATE TABLE IF NOT EXISTS broadcasts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		audio_ref VARCHAR(500) NOT NULL,
		text VARCHAR(200),
		duration_seconds INTEGER,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMPTZ NOT NULL
	);`

	broadcastsIndex := `
	CREATE INDEX IF NOT EXISTS idx_broadcasts_sender_created
	ON broadcasts(sender_id, created_at DESC);`

	// Create broadcast_deliveries table (one row per broadcast x recipient)
	deliveriesTable := `
	CREATE TABLE IF NOT EXISTS broadcast_deliveries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		broadcast_id UUID NOT NULL REFERENCES broadcasts(id) ON DELETE CASCADE,
		recipient_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL DEFAULT 'delivered' CHECK (status IN ('delivered', 'read', 'replied')),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		read_at TIMESTAMPTZ,
		replied_at TIMESTAMPTZ,
		UNIQUE(broadcast_id, recipient_id)
	);`

	// Create conversations table (canonical pair: user_a_id < user_b_id)
	conversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_a_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		user_b_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		hidden_by_a BOOLEAN NOT NULL DEFAULT false,
		hidden_by_b BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_a_id, user_b_id),
		CHECK (user_a_id < user_b_id)
	);`

	// Create conversation_messages table
	messagesTable := `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		broadcast_id UUID REFERENCES broadcasts(id) ON DELETE SET NULL,
		kind VARCHAR(20) NOT NULL DEFAULT 'voice' CHECK (kind IN ('broadcast', 'voice', 'text')),
		audio_ref VARCHAR(500),
		text VARCHAR(200),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(conversation_id, sender_id, broadcast_id)
	);`

	// Create usage_ledger table (per user per calendar day)
	usageLedgerTable := `
	CREATE TABLE IF NOT EXISTS usage_ledger (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		usage_date DATE NOT NULL,
		broadcasts_sent INTEGER NOT NULL DEFAULT 0,
		last_broadcast_at TIMESTAMPTZ,
		limit_exceeded_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, usage_date)
	);`

	// Create broadcast_settings table (singleton row, id = 1)
	settingsTable := `
	CREATE TABLE IF NOT EXISTS broadcast_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		daily_limit INTEGER NOT NULL CHECK (daily_limit > 0),
		hourly_limit INTEGER NOT NULL CHECK (hourly_limit > 0),
		cooldown_minutes INTEGER NOT NULL CHECK (cooldown_minutes >= 0),
		bypass_roles TEXT[] NOT NULL DEFAULT '{}',
		updated_by UUID,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	tables := []string{
		usersTable,
		userBlocksTable,
		broadcastsTable,
		broadcastsIndex,
		deliveriesTable,
		conversationsTable,
		messagesTable,
		usageLedgerTable,
		settingsTable,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to run migration: %v", err)
		}
	}

	return seedBroadcastSettings(db)
}

// seedBroadcastSettings inserts the initial limits row if none exists.
// Seed values come from the YAML config; runtime changes go through the
// admin API only.
func seedBroadcastSettings(db *sql.DB) error {
	seed := config.GetConfig().RateLimit

	_, err := db.Exec(`
		INSERT INTO broadcast_settings (id, daily_limit, hourly_limit, cooldown_minutes, bypass_roles)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, seed.DailyLimit, seed.HourlyLimit, seed.CooldownMinutes, pq.Array(seed.BypassRoles))

	if err != nil {
		return fmt.Errorf("failed to seed broadcast settings: %v", err)
	}
	return nil
}

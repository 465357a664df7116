package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists notification logs and preferences in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed notification store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the notification tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notification_logs (
			id          VARCHAR(36) PRIMARY KEY,
			user_id     VARCHAR(128) NOT NULL,
			event_type  VARCHAR(64) NOT NULL,
			channel     VARCHAR(32) NOT NULL,
			status      VARCHAR(16) NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			detail      TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_notification_logs_user
			ON notification_logs (user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id     VARCHAR(128) NOT NULL,
			event_type  VARCHAR(64) NOT NULL,
			channels    JSONB NOT NULL DEFAULT '[]',
			enabled     BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, event_type)
		);
	`)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, l *Log) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_logs (id, user_id, event_type, channel, status, error, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		l.ID, l.UserID, l.EventType, l.Channel, string(l.Status), l.Error, l.Detail, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Log, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, event_type, channel, status, error, detail, created_at
		FROM notification_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.UserID, &l.EventType, &l.Channel, &l.Status, &l.Error, &l.Detail, &l.CreatedAt); err != nil {
			continue
		}
		result = append(result, &l)
	}
	return result, rows.Err()
}

// Save upserts a preference; last write wins.
func (s *PostgresStore) Save(ctx context.Context, p *Preference) error {
	channels, err := json.Marshal(p.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, event_type, channels, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, event_type)
		DO UPDATE SET channels = EXCLUDED.channels,
		              enabled = EXCLUDED.enabled,
		              updated_at = EXCLUDED.updated_at
	`,
		p.UserID, p.EventType, channels, p.Enabled, time.Now().UTC(),
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("failed to save preference: %s", pqErr.Message)
		}
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) ([]*Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, event_type, channels, enabled, updated_at
		FROM notification_preferences
		WHERE user_id = $1
		ORDER BY event_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Preference
	for rows.Next() {
		var p Preference
		var channels []byte
		if err := rows.Scan(&p.UserID, &p.EventType, &channels, &p.Enabled, &p.UpdatedAt); err != nil {
			continue
		}
		_ = json.Unmarshal(channels, &p.Channels)
		result = append(result, &p)
	}
	return result, rows.Err()
}

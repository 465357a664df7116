package status

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists status checks in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed status store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the status_checks table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS status_checks (
			id          VARCHAR(36) PRIMARY KEY,
			client_name VARCHAR(128) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_status_checks_created
			ON status_checks (created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, c *Check) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_checks (id, client_name, created_at)
		VALUES ($1, $2, $3)
	`, c.ID, c.ClientName, c.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create status check: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_name, created_at
		FROM status_checks
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list status checks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Check
	for rows.Next() {
		var c Check
		if err := rows.Scan(&c.ID, &c.ClientName, &c.Timestamp); err != nil {
			continue
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

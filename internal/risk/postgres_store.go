package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists risk assessments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the risk_assessments table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS risk_assessments (
			id           VARCHAR(36) PRIMARY KEY,
			transaction  JSONB NOT NULL,
			score        INTEGER NOT NULL CHECK (score >= 0 AND score <= 100),
			level        VARCHAR(6) NOT NULL CHECK (level IN ('LOW', 'MEDIUM', 'HIGH')),
			reasons      JSONB NOT NULL DEFAULT '[]',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_risk_assessments_created
			ON risk_assessments (created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	txJSON, err := json.Marshal(a.Transaction)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	reasonsJSON, err := json.Marshal(a.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (id, transaction, score, level, reasons, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		a.ID, txJSON, a.Score, string(a.Level), reasonsJSON, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record risk assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction, score, level, reasons, created_at
		FROM risk_assessments
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var txJSON, reasonsJSON []byte

		if err := rows.Scan(&a.ID, &txJSON, &a.Score, &a.Level, &reasonsJSON, &a.CreatedAt); err != nil {
			continue
		}
		_ = json.Unmarshal(txJSON, &a.Transaction)
		_ = json.Unmarshal(reasonsJSON, &a.Reasons)
		result = append(result, &a)
	}
	return result, rows.Err()
}

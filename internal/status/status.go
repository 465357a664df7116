// Package status records client check-ins, a lightweight liveness signal
// from dashboard clients.
package status

import (
	"context"
	"time"
)

// Check is one client check-in.
type Check struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store persists status checks.
type Store interface {
	Create(ctx context.Context, c *Check) error
	List(ctx context.Context, limit int) ([]*Check, error)
}

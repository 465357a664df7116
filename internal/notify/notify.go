// Package notify relays security events to configured delivery channels and
// keeps an audit log of every dispatch outcome.
package notify

import (
	"context"
	"time"
)

// Channel is a supported delivery channel.
type Channel string

const (
	ChannelDiscord Channel = "discord"
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelMobile  Channel = "mobile"
)

// ParseChannel maps a request-supplied identifier to a known channel.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelDiscord, ChannelEmail, ChannelWebhook, ChannelMobile:
		return Channel(s), true
	}
	return "", false
}

// Status is the terminal outcome of one channel dispatch. not_implemented
// marks a channel whose delivery is a named future extension point, distinct
// from error (a real failure) and not_configured (missing credentials).
type Status string

const (
	StatusSent           Status = "sent"
	StatusDryRun         Status = "dry_run"
	StatusNotConfigured  Status = "not_configured"
	StatusNotImplemented Status = "not_implemented"
	StatusError          Status = "error"
	StatusUnsupported    Status = "unsupported"
)

// Event is a notification to fan out across channels.
type Event struct {
	EventType string         `json:"event_type"`
	Channels  []string       `json:"channels"`
	Payload   map[string]any `json:"payload"`
	UserID    string         `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
}

// Log records one channel's dispatch outcome. Immutable after insert.
type Log struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Channel   string    `json:"channel"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists dispatch logs for audit.
type Store interface {
	Append(ctx context.Context, l *Log) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Log, error)
}

// Preference is a user's channel selection for one event type.
// Overwrite semantics: last write wins, no history.
type Preference struct {
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Channels  []string  `json:"channels"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PreferenceStore persists notification preferences keyed by
// (user_id, event_type).
type PreferenceStore interface {
	Save(ctx context.Context, p *Preference) error
	Load(ctx context.Context, userID string) ([]*Preference, error)
}

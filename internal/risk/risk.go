// Package risk implements deterministic heuristic risk scoring for
// prospective transactions.
//
// A transaction descriptor is evaluated against a static rule set: address
// blacklist, suspicious call methods, a high-value threshold, and
// contract-call markers. Each triggered rule adds its configured weight;
// the total is clamped to [0, 100] and banded into LOW / MEDIUM / HIGH.
// Scoring is pure and never fails — missing or malformed inputs degrade to
// "rule not triggered".
package risk

import (
	"context"
	"time"
)

// Level is the banded severity of a risk score.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Band boundaries: score < 30 is LOW, score < 60 is MEDIUM, else HIGH.
const (
	MediumThreshold = 30
	HighThreshold   = 60
)

// MaxScore caps the accumulated weight total.
const MaxScore = 100

// Rule names, used as keys into the weight table.
const (
	RuleBlacklist        = "blacklist"
	RuleSuspiciousMethod = "suspicious_method"
	RuleHighValue        = "high_value"
	RuleContractCall     = "contract_call"
)

// Transaction describes a prospective transfer to be scored.
// Amount is a base-unit integer as a decimal string; values routinely
// exceed int64 range.
type Transaction struct {
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      string `json:"amount"`
	Chain       string `json:"chain"`
	Method      string `json:"method,omitempty"`
}

// Result is the outcome of scoring a single transaction.
// Reasons holds one human-readable entry per triggered rule, in rule
// evaluation order.
type Result struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Reasons []string `json:"reasons"`
}

// LevelFor maps a clamped score to its band.
func LevelFor(score int) Level {
	switch {
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Assessment is a persisted audit record of one scoring call.
type Assessment struct {
	ID          string      `json:"id"`
	Transaction Transaction `json:"transaction"`
	Score       int         `json:"score"`
	Level       Level       `json:"level"`
	Reasons     []string    `json:"reasons"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store persists risk assessments for the audit trail.
type Store interface {
	Record(ctx context.Context, a *Assessment) error
	ListRecent(ctx context.Context, limit int) ([]*Assessment, error)
}

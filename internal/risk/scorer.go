package risk

import (
	"fmt"
	"math/big"
	"strings"
)

// contractCallMarkers are method prefixes that indicate a programmatic
// contract invocation rather than a plain balance transfer.
var contractCallMarkers = []string{
	"contracts.",
	"evm.",
	"ethereum.",
}

// Score evaluates a transaction against the rule set. Pure and
// deterministic: no I/O, never fails. Rules run in a fixed order and each
// appends one reason when triggered.
func Score(tx *Transaction, cfg *Config) *Result {
	score := 0
	reasons := []string{}

	// 1. Blacklist — either side matching adds the weight once.
	fromHit := cfg.IsBlacklisted(tx.FromAddress)
	toHit := cfg.IsBlacklisted(tx.ToAddress)
	if fromHit || toHit {
		score += cfg.Weight(RuleBlacklist)
		switch {
		case fromHit && toHit:
			reasons = append(reasons, fmt.Sprintf("sender %s and recipient %s are blacklisted", tx.FromAddress, tx.ToAddress))
		case fromHit:
			reasons = append(reasons, fmt.Sprintf("sender address %s is blacklisted", tx.FromAddress))
		default:
			reasons = append(reasons, fmt.Sprintf("recipient address %s is blacklisted", tx.ToAddress))
		}
	}

	// 2. Suspicious method — case-sensitive; the method matches an entry
	// exactly or contains it as a substring ("proxy.transfer" matches "proxy").
	if tx.Method != "" {
		for _, sus := range cfg.SuspiciousMethods {
			if tx.Method == sus || strings.Contains(tx.Method, sus) {
				score += cfg.Weight(RuleSuspiciousMethod)
				reasons = append(reasons, fmt.Sprintf("suspicious method: %s", tx.Method))
				break
			}
		}
	}

	// 3. High value — amount parsed as an arbitrary-precision integer.
	// A malformed amount never triggers this rule.
	if amount, ok := new(big.Int).SetString(tx.Amount, 10); ok && cfg.HighValueThreshold != nil {
		if amount.Cmp(cfg.HighValueThreshold) >= 0 {
			score += cfg.Weight(RuleHighValue)
			reasons = append(reasons, fmt.Sprintf("high value transfer: %s base units (threshold %s)", amount, cfg.HighValueThreshold))
		}
	}

	// 4. Contract-call marker.
	for _, marker := range contractCallMarkers {
		if strings.HasPrefix(tx.Method, marker) {
			score += cfg.Weight(RuleContractCall)
			reasons = append(reasons, fmt.Sprintf("method %s indicates a contract interaction", tx.Method))
			break
		}
	}

	if score > MaxScore {
		score = MaxScore
	}

	return &Result{
		Score:   score,
		Level:   LevelFor(score),
		Reasons: reasons,
	}
}

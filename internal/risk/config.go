package risk

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sync/atomic"
)

// Config is the static rule set the scorer evaluates against. Instances are
// immutable once built; a reload produces a fresh Config and swaps the
// Provider's pointer.
type Config struct {
	SuspiciousMethods  []string
	HighValueThreshold *big.Int
	Weights            map[string]int

	blacklist map[string]struct{}
}

// configFile is the on-disk JSON shape. The threshold is accepted as either
// a JSON number or a decimal string since base units exceed float-safe range.
type configFile struct {
	BlacklistAddresses []string       `json:"blacklist_addresses"`
	SuspiciousMethods  []string       `json:"suspicious_methods"`
	HighValueThreshold json.Number    `json:"high_value_threshold"`
	Weights            map[string]int `json:"risk_weights"`
}

// DefaultConfig returns the compiled-in rule set, used when no rule file is
// configured.
func DefaultConfig() *Config {
	cfg, err := build(configFile{
		BlacklistAddresses: []string{
			"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		},
		SuspiciousMethods: []string{
			"proxy",
			"forceTransfer",
			"transferAll",
			"killAccount",
		},
		HighValueThreshold: "1000000000000", // 100 DOT in planck
		Weights: map[string]int{
			RuleBlacklist:        50,
			RuleSuspiciousMethod: 30,
			RuleHighValue:        25,
			RuleContractCall:     15,
		},
	})
	if err != nil {
		panic("default risk config invalid: " + err.Error())
	}
	return cfg
}

// LoadConfig reads and validates a rule file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk config: %w", err)
	}

	var raw configFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse risk config: %w", err)
	}

	return build(raw)
}

func build(raw configFile) (*Config, error) {
	threshold := new(big.Int)
	if raw.HighValueThreshold != "" {
		if _, ok := threshold.SetString(raw.HighValueThreshold.String(), 10); !ok {
			return nil, fmt.Errorf("high_value_threshold is not an integer: %q", raw.HighValueThreshold)
		}
		if threshold.Sign() < 0 {
			return nil, fmt.Errorf("high_value_threshold must be non-negative")
		}
	}

	for name, w := range raw.Weights {
		if w < 0 {
			return nil, fmt.Errorf("risk weight %q must be non-negative, got %d", name, w)
		}
	}

	blacklist := make(map[string]struct{}, len(raw.BlacklistAddresses))
	for _, addr := range raw.BlacklistAddresses {
		blacklist[addr] = struct{}{}
	}

	weights := make(map[string]int, len(raw.Weights))
	for name, w := range raw.Weights {
		weights[name] = w
	}

	return &Config{
		SuspiciousMethods:  append([]string(nil), raw.SuspiciousMethods...),
		HighValueThreshold: threshold,
		Weights:            weights,
		blacklist:          blacklist,
	}, nil
}

// IsBlacklisted reports whether an address is in the blacklist set.
func (c *Config) IsBlacklisted(addr string) bool {
	_, ok := c.blacklist[addr]
	return ok
}

// Weight returns the point value for a rule, zero if unconfigured.
func (c *Config) Weight(rule string) int {
	return c.Weights[rule]
}

// Provider holds the active Config behind an atomic pointer so a reload is
// a single swap, never an in-place mutation visible mid-read.
type Provider struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewProvider loads the rule file at path, or the compiled-in defaults when
// path is empty.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}

	if path == "" {
		p.cur.Store(DefaultConfig())
		return p, nil
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	p.cur.Store(cfg)
	return p, nil
}

// Current returns the active rule set.
func (p *Provider) Current() *Config {
	return p.cur.Load()
}

// Reload re-reads the rule file and swaps the active config. The previous
// config stays valid for scoring calls already in flight. No-op when the
// provider was built from defaults.
func (p *Provider) Reload() error {
	if p.path == "" {
		return nil
	}
	cfg, err := LoadConfig(p.path)
	if err != nil {
		return err
	}
	p.cur.Store(cfg)
	return nil
}

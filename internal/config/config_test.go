package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultRPCTimeout, cfg.RPCTimeout)
	assert.Equal(t, DefaultPolkadotEndpoints, cfg.PolkadotEndpoints)
	assert.True(t, cfg.NotificationDryRun, "dry-run should default to true")
}

func TestLoad_EndpointOverride(t *testing.T) {
	setEnv(t, "POLKADOT_RPC_ENDPOINTS", "https://one.example, https://two.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://one.example", "https://two.example"}, cfg.PolkadotEndpoints)
	// Other chains keep defaults
	assert.Equal(t, DefaultKusamaEndpoints, cfg.KusamaEndpoints)
}

func TestLoad_DryRunFlag(t *testing.T) {
	setEnv(t, "NOTIFICATION_DRY_RUN", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.NotificationDryRun)
}

func TestLoad_RPCTimeout(t *testing.T) {
	setEnv(t, "RPC_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.RPCTimeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.RPCTimeout = 0 },
			wantErr: "RPC_TIMEOUT",
		},
		{
			name:    "empty endpoint list",
			mutate:  func(c *Config) { c.WestendEndpoints = nil },
			wantErr: "RPC endpoint",
		},
		{
			name:    "bad smtp port",
			mutate:  func(c *Config) { c.SMTPPort = 70000 },
			wantErr: "SMTP_PORT",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:          "info",
				RPCTimeout:        DefaultRPCTimeout,
				PolkadotEndpoints: DefaultPolkadotEndpoints,
				KusamaEndpoints:   DefaultKusamaEndpoints,
				WestendEndpoints:  DefaultWestendEndpoints,
				SMTPPort:          DefaultSMTPPort,
			}
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

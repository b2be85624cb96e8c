// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"
)

func resolve(t *testing.T, args []string) *Config {
	t.Helper()
	var cfg *Config
	cmd := &cli.Command{
		Name:  "gatewarden",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg = NewFromCLI(cmd)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), args))
	require.NotNil(t, cfg)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := resolve(t, []string{"gatewarden"})

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, "./data/gatewarden.db", cfg.Database.DSN)
	assert.Equal(t, 10*time.Minute, cfg.Verify.TokenTTL)
	assert.Equal(t, 60, cfg.Quarantine.Threshold)
	assert.Equal(t, 24*time.Hour, cfg.Quarantine.Duration)
	assert.False(t, cfg.Quarantine.AutoBan)
	assert.Equal(t, 95, cfg.Quarantine.AutoBanThreshold)
	assert.Equal(t, 60*time.Second, cfg.Quarantine.SweepInterval)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.False(t, cfg.Mail.Enabled())
}

func TestCLIFlagsOverrideDefaults(t *testing.T) {
	cfg := resolve(t, []string{
		"gatewarden",
		"--port", "9999",
		"--quarantine-threshold", "80",
		"--auto-ban",
		"--base-url", "https://verify.example.com",
	})

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 80, cfg.Quarantine.Threshold)
	assert.True(t, cfg.Quarantine.AutoBan)
	assert.Equal(t, "https://verify.example.com", cfg.Server.BaseURL)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("VERIFY_SECRET", "hunter2")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001234567890")

	cfg := resolve(t, []string{"gatewarden"})

	assert.Equal(t, "hunter2", cfg.Verify.Secret)
	assert.Equal(t, int64(-1001234567890), cfg.Telegram.ChatID)
}

func TestTOMLFile(t *testing.T) {
	fixture := map[string]any{
		"server":     map[string]any{"host": "0.0.0.0", "port": 9000},
		"verify":     map[string]any{"admin_secret": "s3cret", "token_ttl": 5},
		"quarantine": map[string]any{"hours": 48},
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(fixture))
	require.NoError(t, f.Close())

	prev := configFile
	configFile = altsrc.StringSourcer(path)
	t.Cleanup(func() { configFile = prev })

	cfg := resolve(t, []string{"gatewarden"})

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Verify.AdminSecret)
	assert.Equal(t, 5*time.Minute, cfg.Verify.TokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.Quarantine.Duration)
}

func TestFlagBeatsTOML(t *testing.T) {
	fixture := map[string]any{"server": map[string]any{"port": 9000}}
	path := filepath.Join(t.TempDir(), "config.toml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(fixture))
	require.NoError(t, f.Close())

	prev := configFile
	configFile = altsrc.StringSourcer(path)
	t.Cleanup(func() { configFile = prev })

	cfg := resolve(t, []string{"gatewarden", "--port", "7777"})
	assert.Equal(t, 7777, cfg.Server.Port)
}

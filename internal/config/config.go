// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package config materialises the process configuration from CLI
// flags, environment variables and an optional TOML file, in that
// order of precedence.
package config

import (
	"fmt"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"gatewarden/internal/platform"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Verify     VerifyConfig
	Quarantine QuarantineConfig
	Telegram   TelegramConfig
	Mail       platform.MailConfig
	RateLimit  RateLimitConfig
	Surge      SurgeConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host    string
	Port    int
	BaseURL string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type VerifyConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Secret      string // HMAC key for signed internal notifications
	AdminSecret string // shared secret guarding the export endpoint
	TokenTTL    time.Duration
}

type QuarantineConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Threshold        int
	Duration         time.Duration
	AutoBan          bool
	AutoBanThreshold int
	SweepInterval    time.Duration
}

type TelegramConfig struct { //nolint:govet // fieldalignment not critical for config structs
	BotToken  string
	ChatID    int64
	ModChatID int64
}

type RateLimitConfig struct {
	Window time.Duration
	Limit  int
}

type SurgeConfig struct {
	TickInterval time.Duration
}

// NewFromCLI reads the resolved flag values into a Config.
func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:    cmd.String("host"),
			Port:    int(cmd.Int("port")),
			BaseURL: cmd.String("base-url"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Verify: VerifyConfig{
			Secret:      cmd.String("verify-secret"),
			AdminSecret: cmd.String("admin-secret"),
			TokenTTL:    time.Duration(cmd.Int("token-ttl")) * time.Minute,
		},
		Quarantine: QuarantineConfig{
			Threshold:        int(cmd.Int("quarantine-threshold")),
			Duration:         time.Duration(cmd.Int("quarantine-hours")) * time.Hour,
			AutoBan:          cmd.Bool("auto-ban"),
			AutoBanThreshold: int(cmd.Int("auto-ban-threshold")),
			SweepInterval:    time.Duration(cmd.Int("sweep-interval")) * time.Second,
		},
		Telegram: TelegramConfig{
			BotToken:  cmd.String("telegram-token"),
			ChatID:    int64(cmd.Int("telegram-chat-id")),
			ModChatID: int64(cmd.Int("telegram-mod-chat-id")),
		},
		Mail: platform.MailConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			To:       cmd.String("smtp-to"),
		},
		RateLimit: RateLimitConfig{
			Window: time.Duration(cmd.Int("rate-window")) * time.Second,
			Limit:  int(cmd.Int("rate-limit")),
		},
		Surge: SurgeConfig{
			TickInterval: time.Duration(cmd.Int("surge-tick")) * time.Second,
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	return cfg
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL used in verification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/gatewarden.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "verify-secret",
			Usage:   "HMAC key for signed verification notifications",
			Sources: cli.NewValueSourceChain(cli.EnvVar("VERIFY_SECRET"), toml.TOML("verify.secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "admin-secret",
			Usage:   "Shared secret guarding the export endpoint",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ADMIN_SECRET"), toml.TOML("verify.admin_secret", configFile)),
		},
		&cli.IntFlag{
			Name:    "token-ttl",
			Value:   10,
			Usage:   "Verification token lifetime in minutes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_TTL"), toml.TOML("verify.token_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "quarantine-threshold",
			Value:   60,
			Usage:   "Risk score at which members are quarantined",
			Sources: cli.NewValueSourceChain(cli.EnvVar("QUARANTINE_THRESHOLD"), toml.TOML("quarantine.threshold", configFile)),
		},
		&cli.IntFlag{
			Name:    "quarantine-hours",
			Value:   24,
			Usage:   "Quarantine duration in hours",
			Sources: cli.NewValueSourceChain(cli.EnvVar("QUARANTINE_HOURS"), toml.TOML("quarantine.hours", configFile)),
		},
		&cli.BoolFlag{
			Name:    "auto-ban",
			Usage:   "Ban automatically at extreme risk scores",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTO_BAN"), toml.TOML("quarantine.auto_ban", configFile)),
		},
		&cli.IntFlag{
			Name:    "auto-ban-threshold",
			Value:   95,
			Usage:   "Risk score at which auto-ban fires",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTO_BAN_THRESHOLD"), toml.TOML("quarantine.auto_ban_threshold", configFile)),
		},
		&cli.IntFlag{
			Name:    "sweep-interval",
			Value:   60,
			Usage:   "Quarantine sweep interval in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SWEEP_INTERVAL"), toml.TOML("quarantine.sweep_interval", configFile)),
		},
		&cli.StringFlag{
			Name:    "telegram-token",
			Usage:   "Telegram bot token",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TELEGRAM_TOKEN"), toml.TOML("telegram.token", configFile)),
		},
		&cli.IntFlag{
			Name:    "telegram-chat-id",
			Usage:   "Telegram chat guarded by the bot",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TELEGRAM_CHAT_ID"), toml.TOML("telegram.chat_id", configFile)),
		},
		&cli.IntFlag{
			Name:    "telegram-mod-chat-id",
			Usage:   "Telegram chat receiving mod-log messages (defaults to chat-id)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TELEGRAM_MOD_CHAT_ID"), toml.TOML("telegram.mod_chat_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host for operator mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Operator mail sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-to",
			Usage:   "Operator mail recipient address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TO"), toml.TOML("smtp.to", configFile)),
		},
		&cli.IntFlag{
			Name:    "rate-window",
			Value:   60,
			Usage:   "Submission rate-limit window in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_WINDOW"), toml.TOML("rate.window", configFile)),
		},
		&cli.IntFlag{
			Name:    "rate-limit",
			Value:   10,
			Usage:   "Submissions allowed per IP per window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT"), toml.TOML("rate.limit", configFile)),
		},
		&cli.IntFlag{
			Name:    "surge-tick",
			Value:   10,
			Usage:   "Surge re-evaluation interval in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SURGE_TICK"), toml.TOML("surge.tick", configFile)),
		},
	}
}

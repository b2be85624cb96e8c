// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package server wires the verification service together: store,
// token manager, risk pipeline, decision queue, background sweepers,
// the chat-platform bot and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/urfave/cli/v3"

	"gatewarden/internal/config"
	"gatewarden/internal/database"
	"gatewarden/internal/decision"
	"gatewarden/internal/handlers"
	"gatewarden/internal/ingest"
	"gatewarden/internal/platform"
	"gatewarden/internal/quarantine"
	"gatewarden/internal/repository"
	"gatewarden/internal/surge"
	"gatewarden/internal/token"
)

// Run starts the service with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting gatewarden",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	repo := repository.New(db)
	tokens := token.NewManager(repo)
	ingestor := ingest.NewService(repo, ingest.KeywordOracle{})

	// Chat platform
	var client platform.Client
	var bot *platform.Telegram
	if cfg.Telegram.BotToken != "" {
		bot, err = platform.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.ModChatID)
		if err != nil {
			return fmt.Errorf("failed to connect chat platform: %w", err)
		}
		client = bot
	} else {
		slog.Warn("no bot token configured, platform actions are no-ops")
		client = platform.Noop{}
	}
	notifier := platform.NewNotifier(client, cfg.Mail)

	// Decision pipeline
	engine := decision.NewEngine(repo, tokens, ingestor, client, notifier, decision.Config{
		QuarantineThreshold: cfg.Quarantine.Threshold,
		QuarantineDuration:  cfg.Quarantine.Duration,
		AutoBan:             cfg.Quarantine.AutoBan,
		AutoBanThreshold:    cfg.Quarantine.AutoBanThreshold,
	})
	queue := decision.NewQueue(engine, 0)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	queue.Start(workerCtx)
	defer queue.Close()

	sweeper := quarantine.NewSweeper(repo, client)
	go sweeper.Run(workerCtx, cfg.Quarantine.SweepInterval)

	detector := surge.NewDetector(notifier)
	go detector.Run(workerCtx, cfg.Surge.TickInterval)

	if bot != nil {
		go bot.Listen(workerCtx, joinHandler(bot, tokens, detector, cfg))
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := handlers.New(repo, tokens, ingestor, queue, handlers.Config{
		VerifySecret: cfg.Verify.Secret,
		AdminSecret:  cfg.Verify.AdminSecret,
		BaseURL:      cfg.Server.BaseURL,
		TokenTTL:     cfg.Verify.TokenTTL,
	})
	setupMiddleware(e)
	setupRoutes(e, h, cfg)

	return startWithGracefulShutdown(ctx, e, cfg)
}

// joinHandler reacts to a member joining the guarded chat: the join
// feeds the surge detector and the member receives a fresh
// verification link by DM.
func joinHandler(bot *platform.Telegram, tokens *token.Manager, detector *surge.Detector, cfg *config.Config) platform.JoinHandler {
	return func(ctx context.Context, subjectID string) {
		detector.RecordJoin(ctx)

		tok, err := tokens.Issue(ctx, subjectID, cfg.Verify.TokenTTL)
		if err != nil {
			slog.Error("issuing verification token failed", "subject", subjectID, "error", err)
			return
		}

		link := fmt.Sprintf("%s/start/%s", cfg.Server.BaseURL, tok)
		text := fmt.Sprintf("Welcome! Please verify your account within %s: %s",
			cfg.Verify.TokenTTL, link)
		if err := bot.SendDM(ctx, subjectID, text); err != nil {
			slog.Warn("verification DM failed", "subject", subjectID, "error", err)
			if logErr := bot.ModLog(ctx, fmt.Sprintf("Could not DM verification link to %s.", subjectID)); logErr != nil {
				slog.Warn("mod-log fallback failed", "error", logErr)
			}
		}
		slog.Info("member joined, verification issued", "subject", subjectID, "surging", detector.Surging())
	}
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("1M"))
}

func setupRoutes(e *echo.Echo, h *handlers.Handlers, cfg *config.Config) {
	limiter := newRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Limit)

	e.GET("/health", h.Health)
	e.POST("/submit", h.Submit, limiter.middleware())
	e.POST("/internal/verify", h.InternalVerify)
	e.GET("/status/:token", h.Status)
	e.GET("/start/:token", h.Start)
	e.GET("/admin/export", h.Export)
	e.GET("/admin/scan/:subject", h.Scan)
	e.POST("/admin/reissue/:subject", h.Reissue)
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			} else {
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			}

			return nil
		},
	})
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("shutting down server", "reason", "context canceled")
	case <-quit:
		slog.Info("shutting down server", "reason", "signal")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

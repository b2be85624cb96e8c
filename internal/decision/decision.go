// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package decision consumes a risk score and token state, transitions
// the subject to verified or quarantined, and records the audit trail.
// Each token is decisioned at most once, guarded by the atomic consume.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"gatewarden/internal/ingest"
	"gatewarden/internal/models"
	"gatewarden/internal/platform"
	"gatewarden/internal/repository"
	"gatewarden/internal/risk"
	"gatewarden/internal/token"
)

// Config tunes the enforcement thresholds.
type Config struct { //nolint:govet // fieldalignment not critical for config structs
	QuarantineThreshold int           // score at or above which the subject is quarantined
	QuarantineDuration  time.Duration // how long the time-bomb runs
	AutoBan             bool          // opt-in: irreversible removal on extreme scores
	AutoBanThreshold    int
}

// DefaultConfig mirrors the production defaults: quarantine at 60 for
// 24h, auto-ban off.
func DefaultConfig() Config {
	return Config{
		QuarantineThreshold: 60,
		QuarantineDuration:  24 * time.Hour,
		AutoBan:             false,
		AutoBanThreshold:    95,
	}
}

// Engine is the decision state machine.
type Engine struct {
	repo     *repository.Repository
	tokens   *token.Manager
	ingestor *ingest.Service
	client   platform.Client
	notifier *platform.Notifier
	cfg      Config
}

// NewEngine wires the state machine to its collaborators.
func NewEngine(
	repo *repository.Repository,
	tokens *token.Manager,
	ingestor *ingest.Service,
	client platform.Client,
	notifier *platform.Notifier,
	cfg Config,
) *Engine {
	if cfg.QuarantineThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		repo:     repo,
		tokens:   tokens,
		ingestor: ingestor,
		client:   client,
		notifier: notifier,
		cfg:      cfg,
	}
}

// ProcessToken runs the full decision path for a submitted token:
// validate, correlate, score, consume, enforce. Platform-side failures
// are absorbed; only store failures surface as errors.
func (e *Engine) ProcessToken(ctx context.Context, tok string) error {
	rec, err := e.tokens.Validate(ctx, tok)
	switch {
	case errors.Is(err, token.ErrNotFound):
		slog.Warn("decision requested for unknown token")
		return nil
	case errors.Is(err, token.ErrExpired):
		return e.repo.AppendAction(ctx, rec.SubjectID, models.ActionTokenExpired, "token="+tok)
	case errors.Is(err, token.ErrAlreadyUsed):
		return e.repo.AppendAction(ctx, rec.SubjectID, models.ActionTokenReuse, "token="+tok)
	case err != nil:
		return err
	}

	fingerprints, err := e.repo.ListFingerprintsByToken(ctx, tok)
	if err != nil {
		return err
	}

	var stats risk.Stats
	intel := models.NeutralIntel()
	if len(fingerprints) > 0 {
		current := fingerprints[0]
		intel = current.Intel()
		stats, err = e.ingestor.Correlate(ctx, &current)
		if err != nil {
			return err
		}
	}
	honeypot := lo.SomeBy(fingerprints, func(f models.FingerprintRecord) bool { return f.Honeypot })

	profiles, err := e.repo.ListAllProfiles(ctx)
	if err != nil {
		return err
	}

	accountAge := platform.UnknownAccountAge
	member, resolveErr := e.client.ResolveMember(ctx, rec.SubjectID)
	if resolveErr == nil {
		accountAge = member.AccountAgeDays
	}

	assessment := risk.ComputeRisk(fingerprints, profiles, intel, honeypot, accountAge, stats)

	// Replay guard: consume before any side effect. A lost race means
	// another delivery already owns this token.
	if err := e.tokens.Consume(ctx, tok); err != nil {
		if errors.Is(err, token.ErrAlreadyUsed) {
			return e.repo.AppendAction(ctx, rec.SubjectID, models.ActionTokenReuse, "token="+tok)
		}
		return err
	}

	if resolveErr != nil {
		return e.failNoMember(ctx, rec, tok, assessment)
	}

	if assessment.Score >= e.cfg.QuarantineThreshold {
		return e.quarantine(ctx, rec, tok, assessment)
	}
	return e.verify(ctx, rec, tok, fingerprints, assessment)
}

func (e *Engine) failNoMember(ctx context.Context, rec *models.VerificationToken, tok string, a risk.Assessment) error {
	if err := e.repo.SetTokenStatus(ctx, tok, models.StatusFailed); err != nil {
		return err
	}
	reason := fmt.Sprintf("token=%s;score=%d", tok, a.Score)
	if err := e.repo.AppendAction(ctx, rec.SubjectID, models.ActionVerifyNoMember, reason); err != nil {
		return err
	}
	e.notify(ctx, "Verification without member",
		fmt.Sprintf("Verification submitted for %s but the member is not in the roster.", rec.SubjectID))
	return nil
}

func (e *Engine) quarantine(ctx context.Context, rec *models.VerificationToken, tok string, a risk.Assessment) error {
	if err := e.client.AssignQuarantine(ctx, rec.SubjectID); err != nil {
		slog.Error("quarantine role assignment failed", "subject", rec.SubjectID, "error", err)
	}

	until := time.Now().Add(e.cfg.QuarantineDuration).Unix()
	if err := e.repo.InsertQuarantine(ctx, rec.SubjectID, until); err != nil {
		return err
	}
	if err := e.repo.SetTokenStatus(ctx, tok, models.StatusQuarantined); err != nil {
		return err
	}
	reason := fmt.Sprintf("score=%d;reasons=%s", a.Score, strings.Join(a.Reasons, "|"))
	if err := e.repo.AppendAction(ctx, rec.SubjectID, models.ActionQuarantineAuto, reason); err != nil {
		return err
	}
	e.notify(ctx, "Member quarantined",
		fmt.Sprintf("%s automatically quarantined (score=%d). Reasons: %s",
			rec.SubjectID, a.Score, strings.Join(a.Reasons, "; ")))

	if e.cfg.AutoBan && a.Score >= e.cfg.AutoBanThreshold {
		if err := e.client.Ban(ctx, rec.SubjectID, fmt.Sprintf("auto-ban score=%d", a.Score)); err != nil {
			slog.Error("auto-ban failed", "subject", rec.SubjectID, "error", err)
			return nil
		}
		if err := e.repo.AppendAction(ctx, rec.SubjectID, models.ActionBan, fmt.Sprintf("auto-ban score=%d", a.Score)); err != nil {
			return err
		}
		e.notify(ctx, "Member auto-banned",
			fmt.Sprintf("%s auto-banned (score=%d).", rec.SubjectID, a.Score))
	}
	return nil
}

func (e *Engine) verify(ctx context.Context, rec *models.VerificationToken, tok string, fingerprints []models.FingerprintRecord, a risk.Assessment) error {
	if err := e.client.AssignVerified(ctx, rec.SubjectID); err != nil {
		slog.Error("verified role assignment failed", "subject", rec.SubjectID, "error", err)
	}

	if err := e.repo.SetTokenStatus(ctx, tok, models.StatusVerified); err != nil {
		return err
	}
	reason := fmt.Sprintf("score=%d;reasons=%s", a.Score, strings.Join(a.Reasons, "|"))
	if err := e.repo.AppendAction(ctx, rec.SubjectID, models.ActionVerified, reason); err != nil {
		return err
	}
	e.notify(ctx, "Member verified", fmt.Sprintf("%s verified (score=%d).", rec.SubjectID, a.Score))

	// First successful verification seeds the behavioral reference
	// profile; first writer wins, later sessions never overwrite it.
	if len(fingerprints) > 0 {
		current := fingerprints[0]
		if len(current.Typing) > 0 || len(current.Mouse) > 0 {
			if err := e.repo.InsertProfile(ctx, rec.SubjectID, current.Typing, current.Mouse); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, subject, text string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Alert(ctx, subject, text)
}

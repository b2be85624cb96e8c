// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package quarantine lifts expired quarantines. A background sweeper
// scans the active records on an interval and releases every member
// whose timer has run out.
package quarantine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gatewarden/internal/models"
	"gatewarden/internal/platform"
	"gatewarden/internal/repository"
)

// DefaultInterval is how often the sweeper scans for expired records.
const DefaultInterval = 60 * time.Second

// Sweeper releases quarantined members once their deadline passes.
type Sweeper struct {
	repo    *repository.Repository
	client  platform.Client
	running atomic.Bool
}

// NewSweeper wires a sweeper to the store and the platform.
func NewSweeper(repo *repository.Repository, client platform.Client) *Sweeper {
	return &Sweeper{repo: repo, client: client}
}

// Run sweeps on the given interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("quarantine sweep failed", "error", err)
			}
		}
	}
}

// Sweep releases every quarantine whose deadline has passed. Overlapping
// sweeps are skipped so a slow platform call cannot stack releases.
// Platform failures are absorbed; the record is deleted regardless so a
// wedged role never pins the store.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	defer s.running.Store(false)

	records, err := s.repo.ListActiveQuarantines(ctx)
	if err != nil {
		return fmt.Errorf("listing quarantines: %w", err)
	}

	now := time.Now().Unix()
	for _, rec := range records {
		if rec.Until > now {
			// Records are ordered by deadline; the rest are still active.
			break
		}
		s.release(ctx, rec)
	}
	return nil
}

func (s *Sweeper) release(ctx context.Context, rec models.QuarantineRecord) {
	if s.client != nil {
		if err := s.client.RemoveQuarantine(ctx, rec.SubjectID); err != nil {
			slog.Warn("quarantine release on platform failed", "subject", rec.SubjectID, "error", err)
		}
	}
	if err := s.repo.AppendAction(ctx, rec.SubjectID, models.ActionQuarantineExpired, "automatic release"); err != nil {
		slog.Error("recording quarantine release failed", "subject", rec.SubjectID, "error", err)
	}
	if err := s.repo.DeleteQuarantine(ctx, rec.ID); err != nil {
		slog.Error("deleting quarantine record failed", "subject", rec.SubjectID, "error", err)
		return
	}
	slog.Info("quarantine released", "subject", rec.SubjectID)
}

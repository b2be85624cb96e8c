// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package surge watches the join stream for coordinated raids. When
// enough joins land inside a short window the detector latches into
// surge mode and alerts the operators once; it unlatches, again with a
// single alert, when the window empties.
package surge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"gatewarden/internal/platform"
)

const (
	// DefaultWindow is how far back joins still count toward a surge.
	DefaultWindow = 30 * time.Second
	// DefaultThreshold is the join count that trips surge mode.
	DefaultThreshold = 3
	// DefaultTickInterval is how often the window is re-evaluated so
	// surge mode clears even when no further joins arrive.
	DefaultTickInterval = 10 * time.Second
)

// Detector tracks recent joins in a sliding window. Safe for
// concurrent use.
type Detector struct {
	mu        sync.Mutex
	joins     []time.Time
	surging   bool
	window    time.Duration
	threshold int
	notifier  *platform.Notifier
}

// NewDetector creates a detector with the production defaults. A nil
// notifier disables alerting but keeps detection working.
func NewDetector(notifier *platform.Notifier) *Detector {
	return &Detector{
		window:    DefaultWindow,
		threshold: DefaultThreshold,
		notifier:  notifier,
	}
}

// RecordJoin registers one join and re-evaluates the window.
func (d *Detector) RecordJoin(ctx context.Context) {
	d.recordJoinAt(ctx, time.Now())
}

// Surging reports whether the detector is currently in surge mode
// without mutating the window.
func (d *Detector) Surging() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surging
}

// Run re-evaluates the window on an interval until the context is
// canceled, so surge mode decays after the joins stop.
func (d *Detector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick re-evaluates the window against the current time.
func (d *Detector) Tick(ctx context.Context) {
	d.evaluate(ctx, time.Now())
}

func (d *Detector) recordJoinAt(ctx context.Context, now time.Time) {
	d.mu.Lock()
	d.joins = append(d.joins, now)
	d.mu.Unlock()
	d.evaluate(ctx, now)
}

func (d *Detector) evaluate(ctx context.Context, now time.Time) {
	d.mu.Lock()
	cutoff := now.Add(-d.window)
	d.joins = lo.Filter(d.joins, func(t time.Time, _ int) bool {
		return t.After(cutoff)
	})
	count := len(d.joins)

	var entered, left bool
	switch {
	case !d.surging && count >= d.threshold:
		d.surging = true
		entered = true
	case d.surging && count == 0:
		d.surging = false
		left = true
	}
	d.mu.Unlock()

	if entered {
		slog.Warn("join surge detected", "joins", count, "window", d.window)
		d.alert(ctx, "Join surge detected",
			fmt.Sprintf("%d joins within %s. Tightened scrutiny recommended.", count, d.window))
	}
	if left {
		slog.Info("join surge over")
		d.alert(ctx, "Join surge over", "Join rate back to normal.")
	}
}

func (d *Detector) alert(ctx context.Context, subject, text string) {
	if d.notifier == nil {
		return
	}
	d.notifier.Alert(ctx, subject, text)
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package platform

import (
	"context"
	"log/slog"
)

// Noop is a stand-in client for local development without a bot token.
// Every member resolves with an unknown account age and all mutations
// only log.
type Noop struct{}

// ResolveMember implements Client.
func (Noop) ResolveMember(_ context.Context, subjectID string) (*Member, error) {
	return &Member{SubjectID: subjectID, AccountAgeDays: UnknownAccountAge}, nil
}

// AssignVerified implements Client.
func (Noop) AssignVerified(_ context.Context, subjectID string) error {
	slog.Info("noop platform: assign verified", "subject", subjectID)
	return nil
}

// AssignQuarantine implements Client.
func (Noop) AssignQuarantine(_ context.Context, subjectID string) error {
	slog.Info("noop platform: assign quarantine", "subject", subjectID)
	return nil
}

// RemoveQuarantine implements Client.
func (Noop) RemoveQuarantine(_ context.Context, subjectID string) error {
	slog.Info("noop platform: remove quarantine", "subject", subjectID)
	return nil
}

// Ban implements Client.
func (Noop) Ban(_ context.Context, subjectID, reason string) error {
	slog.Info("noop platform: ban", "subject", subjectID, "reason", reason)
	return nil
}

// ModLog implements Client.
func (Noop) ModLog(_ context.Context, text string) error {
	slog.Info("noop platform: mod-log", "text", text)
	return nil
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package platform is the boundary to the chat platform: member lookup,
// role mutation and operator messaging. Role state is enforced
// best-effort; the store's audit trail stays the source of truth when a
// mutation fails.
package platform

import (
	"context"
	"errors"
)

// ErrMemberNotFound is returned when a subject cannot be resolved in the
// platform's membership roster.
var ErrMemberNotFound = errors.New("member not found")

// UnknownAccountAge is reported when the platform cannot date an
// account. Treated as "old" by the scorer.
const UnknownAccountAge = 9999

// Member is a resolved platform member.
type Member struct {
	SubjectID      string
	DisplayName    string
	AccountAgeDays int
}

// Client mutates platform-side state for a subject.
type Client interface {
	// ResolveMember looks a subject up in the roster.
	ResolveMember(ctx context.Context, subjectID string) (*Member, error)
	// AssignVerified grants the subject normal member capabilities.
	AssignVerified(ctx context.Context, subjectID string) error
	// AssignQuarantine places the subject under restriction.
	AssignQuarantine(ctx context.Context, subjectID string) error
	// RemoveQuarantine lifts a restriction if currently held.
	RemoveQuarantine(ctx context.Context, subjectID string) error
	// Ban removes the subject from the platform. Irreversible.
	Ban(ctx context.Context, subjectID, reason string) error
	// ModLog posts a message to the operator log channel.
	ModLog(ctx context.Context, text string) error
}

// JoinHandler receives the subject ID of a freshly joined member.
type JoinHandler func(ctx context.Context, subjectID string)

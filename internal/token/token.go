// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package token manages the one-time verification token lifecycle:
// issue, validate, consume. Validation never mutates state; consumption
// is a separate explicit step so "check" and "use" stay independently
// auditable.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gatewarden/internal/models"
	"gatewarden/internal/repository"
)

// Validation failure taxonomy.
var (
	ErrNotFound    = errors.New("token not found")
	ErrAlreadyUsed = errors.New("token already used")
	ErrExpired     = errors.New("token expired")
)

const (
	// DefaultTTL is the default lifespan of an issued token.
	DefaultTTL = 10 * time.Minute

	// tokenBytes of randomness per token, base64url encoded.
	tokenBytes = 18
)

// Manager issues, validates and retires one-time tokens.
type Manager struct {
	repo *repository.Repository
}

// NewManager creates a token Manager backed by the verification store.
func NewManager(repo *repository.Repository) *Manager {
	return &Manager{repo: repo}
}

// Issue generates a cryptographically random URL-safe token for a
// subject and stores it as pending. A ttl <= 0 disables expiry.
func (m *Manager) Issue(ctx context.Context, subjectID string, ttl time.Duration) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(buf)

	var expiresAt *time.Time
	if ttl > 0 {
		e := time.Now().UTC().Add(ttl)
		expiresAt = &e
	}
	if err := m.repo.InsertToken(ctx, subjectID, tok, expiresAt); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return tok, nil
}

// Validate checks a token without mutating it. A used token always fails
// with ErrAlreadyUsed regardless of expiry. The record is returned
// alongside a nil error so callers can reach the subject.
func (m *Manager) Validate(ctx context.Context, tok string) (*models.VerificationToken, error) {
	rec, err := m.repo.GetTokenByValue(ctx, tok)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rec.Used {
		return rec, ErrAlreadyUsed
	}
	if rec.Expired(time.Now()) {
		return rec, ErrExpired
	}
	return rec, nil
}

// Consume flips the token to used with a single atomic conditional
// update. A lost race reports ErrAlreadyUsed; the caller must not
// reprocess. Must run before any decision side effects to establish
// at-most-once processing under duplicate notifications.
func (m *Manager) Consume(ctx context.Context, tok string) error {
	ok, err := m.repo.MarkTokenUsed(ctx, tok)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyUsed
	}
	return nil
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"gatewarden/internal/database"
	"gatewarden/internal/models"
	"gatewarden/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestToken inserts a pending token for a subject and returns it.
func NewTestToken(t *testing.T, repo *repository.Repository, subjectID, token string, ttl time.Duration) *models.VerificationToken {
	t.Helper()
	ctx := context.Background()
	var expiresAt *time.Time
	if ttl != 0 {
		e := time.Now().UTC().Add(ttl)
		expiresAt = &e
	}
	require.NoError(t, repo.InsertToken(ctx, subjectID, token, expiresAt))
	rec, err := repo.GetTokenByValue(ctx, token)
	require.NoError(t, err)
	return rec
}

// NewTestFingerprint inserts a fingerprint record for a token.
func NewTestFingerprint(t *testing.T, repo *repository.Repository, token, ip, rawFP string) *models.FingerprintRecord {
	t.Helper()
	rec := &models.FingerprintRecord{
		Token:     token,
		Raw:       rawFP,
		IP:        ip,
		UserAgent: "test-agent",
		Typing:    models.Vector{0.1, 0.2, 0.3},
		Mouse:     models.Vector{1, 2, 3},
	}
	require.NoError(t, repo.InsertFingerprint(context.Background(), rec))
	return rec
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

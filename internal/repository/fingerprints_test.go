// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"gatewarden/internal/models"
	"gatewarden/internal/repository"
	"gatewarden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertFingerprint_RoundTrip(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestToken(t, repo, "subject-1", "tok-fp", 10*time.Minute)

	rec := &models.FingerprintRecord{
		Token:      "tok-fp",
		Raw:        `{"canvas":"deadbeef"}`,
		IP:         "198.51.100.4",
		ASN:        "AS64500",
		UserAgent:  "Mozilla/5.0",
		Honeypot:   true,
		Typing:     models.Vector{110, 95, 130},
		Mouse:      models.Vector{3.5, 1.25},
		IsVPN:      true,
		ProxyScore: 42,
	}
	require.NoError(t, repo.InsertFingerprint(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := repo.ListFingerprintsByToken(ctx, "tok-fp")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.Raw, got[0].Raw)
	assert.Equal(t, models.Vector{110, 95, 130}, got[0].Typing)
	assert.True(t, got[0].Honeypot)
	assert.True(t, got[0].IsVPN)
	assert.Equal(t, 42, got[0].ProxyScore)
}

func TestListFingerprintsByToken_NewestFirst(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestToken(t, repo, "subject-1", "tok-order", 10*time.Minute)

	first := testutil.NewTestFingerprint(t, repo, "tok-order", "198.51.100.1", "fp-a")
	second := testutil.NewTestFingerprint(t, repo, "tok-order", "198.51.100.2", "fp-b")

	got, err := repo.ListFingerprintsByToken(ctx, "tok-order")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "most recent submission wins")
	assert.Equal(t, first.ID, got[1].ID)
}

func TestCountDistinctTokensByIP(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "s1", "tok-a", 10*time.Minute)
	testutil.NewTestToken(t, repo, "s2", "tok-b", 10*time.Minute)
	testutil.NewTestToken(t, repo, "s3", "tok-c", 10*time.Minute)
	testutil.NewTestFingerprint(t, repo, "tok-a", "203.0.113.9", "fp-1")
	testutil.NewTestFingerprint(t, repo, "tok-b", "203.0.113.9", "fp-2")
	testutil.NewTestFingerprint(t, repo, "tok-b", "203.0.113.9", "fp-2b") // same token twice
	testutil.NewTestFingerprint(t, repo, "tok-c", "192.0.2.1", "fp-3")

	count, err := repo.CountDistinctTokensByIP(ctx, "203.0.113.9", "tok-a")

	require.NoError(t, err)
	assert.Equal(t, 1, count, "tok-b counts once, tok-a excluded")
}

func TestCountDistinctTokensByIP_EmptyIP(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	count, err := repo.CountDistinctTokensByIP(context.Background(), "", "tok-a")

	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountDistinctTokensByFingerprint(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "s1", "tok-a", 10*time.Minute)
	testutil.NewTestToken(t, repo, "s2", "tok-b", 10*time.Minute)
	testutil.NewTestToken(t, repo, "s3", "tok-c", 10*time.Minute)
	testutil.NewTestFingerprint(t, repo, "tok-a", "198.51.100.1", "fp-same")
	testutil.NewTestFingerprint(t, repo, "tok-b", "198.51.100.2", "fp-same")
	testutil.NewTestFingerprint(t, repo, "tok-c", "198.51.100.3", "fp-same")

	count, err := repo.CountDistinctTokensByFingerprint(ctx, "fp-same", "tok-a")

	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLatestFingerprintForSubject(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "subject-1", "tok-old", 10*time.Minute)
	testutil.NewTestToken(t, repo, "subject-1", "tok-new", 10*time.Minute)
	testutil.NewTestFingerprint(t, repo, "tok-old", "192.0.2.1", "fp-old")
	latest := testutil.NewTestFingerprint(t, repo, "tok-new", "192.0.2.2", "fp-new")

	got, err := repo.LatestFingerprintForSubject(ctx, "subject-1")

	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
}

func TestLatestFingerprintForSubject_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.LatestFingerprintForSubject(context.Background(), "ghost")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

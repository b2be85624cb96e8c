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

func TestInsertToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	expiresAt := time.Now().UTC().Add(10 * time.Minute)
	err := repo.InsertToken(ctx, "subject-1", "tok-abc", &expiresAt)

	require.NoError(t, err)

	rec, err := repo.GetTokenByValue(ctx, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "subject-1", rec.SubjectID)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.False(t, rec.Used)
	require.NotNil(t, rec.ExpiresAt)
	assert.WithinDuration(t, expiresAt, *rec.ExpiresAt, time.Second)
}

func TestInsertToken_NeverExpires(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.InsertToken(ctx, "subject-1", "tok-forever", nil)
	require.NoError(t, err)

	rec, err := repo.GetTokenByValue(ctx, "tok-forever")
	require.NoError(t, err)
	assert.Nil(t, rec.ExpiresAt)
}

func TestGetTokenByValue_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetTokenByValue(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkTokenUsed_ExactlyOnce(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestToken(t, repo, "subject-1", "tok-once", 10*time.Minute)

	first, err := repo.MarkTokenUsed(ctx, "tok-once")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkTokenUsed(ctx, "tok-once")
	require.NoError(t, err)
	assert.False(t, second, "conditional update must not fire twice")

	rec, err := repo.GetTokenByValue(ctx, "tok-once")
	require.NoError(t, err)
	assert.True(t, rec.Used)
	assert.NotNil(t, rec.VerifiedAt)
}

func TestMarkTokenUsed_Unknown(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	ok, err := repo.MarkTokenUsed(context.Background(), "nope")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetTokenStatus(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestToken(t, repo, "subject-1", "tok-status", 10*time.Minute)

	err := repo.SetTokenStatus(ctx, "tok-status", models.StatusQuarantined)
	require.NoError(t, err)

	rec, err := repo.GetTokenByValue(ctx, "tok-status")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQuarantined, rec.Status)
}

func TestListVerificationsForExport(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "subject-1", "tok-1", 10*time.Minute)
	testutil.NewTestToken(t, repo, "subject-2", "tok-2", 10*time.Minute)
	testutil.NewTestFingerprint(t, repo, "tok-1", "203.0.113.7", `{"canvas":"aa"}`)

	rows, err := repo.ListVerificationsForExport(ctx)

	require.NoError(t, err)
	require.Len(t, rows, 2)

	var withFP, withoutFP int
	for _, row := range rows {
		if row.IP != nil {
			withFP++
			assert.Equal(t, "203.0.113.7", *row.IP)
		} else {
			withoutFP++
		}
	}
	assert.Equal(t, 1, withFP)
	assert.Equal(t, 1, withoutFP)
}

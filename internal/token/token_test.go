// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package token_test

import (
	"context"
	"testing"
	"time"

	"gatewarden/internal/models"
	"gatewarden/internal/testutil"
	"gatewarden/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)
	ctx := context.Background()

	tok, err := mgr.Issue(ctx, "subject-1", token.DefaultTTL)

	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.NotContains(t, tok, "/", "token must be URL-safe")
	assert.NotContains(t, tok, "+")

	rec, err := mgr.Validate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", rec.SubjectID)
	assert.Equal(t, models.StatusPending, rec.Status)
	require.NotNil(t, rec.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(token.DefaultTTL), *rec.ExpiresAt, 5*time.Second)
}

func TestIssue_Unique(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)
	ctx := context.Background()

	a, err := mgr.Issue(ctx, "subject-1", token.DefaultTTL)
	require.NoError(t, err)
	b, err := mgr.Issue(ctx, "subject-1", token.DefaultTTL)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestIssue_NoExpiry(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)
	ctx := context.Background()

	tok, err := mgr.Issue(ctx, "subject-1", 0)
	require.NoError(t, err)

	rec, err := mgr.Validate(ctx, tok)
	require.NoError(t, err)
	assert.Nil(t, rec.ExpiresAt)
}

func TestValidate_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)

	_, err := mgr.Validate(context.Background(), "ghost")

	assert.ErrorIs(t, err, token.ErrNotFound)
}

func TestValidate_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "subject-1", "tok-expired", -time.Minute)

	_, err := mgr.Validate(ctx, "tok-expired")

	assert.ErrorIs(t, err, token.ErrExpired)
}

func TestValidate_UsedWinsOverExpired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "subject-1", "tok-both", -time.Minute)
	_, err := repo.MarkTokenUsed(ctx, "tok-both")
	require.NoError(t, err)

	_, err = mgr.Validate(ctx, "tok-both")

	assert.ErrorIs(t, err, token.ErrAlreadyUsed,
		"a used token always fails as replay, never as expired")
}

func TestValidate_DoesNotMutate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)
	ctx := context.Background()

	tok, err := mgr.Issue(ctx, "subject-1", token.DefaultTTL)
	require.NoError(t, err)

	for range 3 {
		rec, err := mgr.Validate(ctx, tok)
		require.NoError(t, err)
		assert.False(t, rec.Used)
	}
}

func TestConsume(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)
	ctx := context.Background()

	tok, err := mgr.Issue(ctx, "subject-1", token.DefaultTTL)
	require.NoError(t, err)

	require.NoError(t, mgr.Consume(ctx, tok))

	err = mgr.Consume(ctx, tok)
	assert.ErrorIs(t, err, token.ErrAlreadyUsed)

	_, err = mgr.Validate(ctx, tok)
	assert.ErrorIs(t, err, token.ErrAlreadyUsed)
}

func TestConsume_Unknown(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mgr := token.NewManager(repo)

	err := mgr.Consume(context.Background(), "ghost")

	assert.ErrorIs(t, err, token.ErrAlreadyUsed)
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"

	"gatewarden/internal/models"
	"gatewarden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertProfile_FirstWriterWins(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	err := repo.InsertProfile(ctx, "subject-1", models.Vector{1, 2, 3}, models.Vector{4, 5})
	require.NoError(t, err)

	// Second write for the same subject is silently ignored.
	err = repo.InsertProfile(ctx, "subject-1", models.Vector{9, 9, 9}, models.Vector{9, 9})
	require.NoError(t, err)

	profiles, err := repo.ListAllProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, models.Vector{1, 2, 3}, profiles[0].Typing)
	assert.Equal(t, models.Vector{4, 5}, profiles[0].Mouse)
}

func TestHasProfile(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	has, err := repo.HasProfile(ctx, "subject-1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, repo.InsertProfile(ctx, "subject-1", models.Vector{1}, models.Vector{2}))

	has, err = repo.HasProfile(ctx, "subject-1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestListAllProfiles_Empty(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	profiles, err := repo.ListAllProfiles(context.Background())

	require.NoError(t, err)
	assert.Empty(t, profiles)
}

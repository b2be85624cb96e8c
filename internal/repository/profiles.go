// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"gatewarden/internal/models"
)

// InsertProfile stores a behavioral reference profile. First writer wins:
// an existing profile for the subject is never overwritten.
func (r *Repository) InsertProfile(ctx context.Context, subjectID string, typing, mouse models.Vector) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO behavioral_profiles (subject_id, typing_vector, mouse_vector, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (subject_id) DO NOTHING`,
		subjectID, typing, mouse, time.Now().UTC())
	return err
}

// HasProfile reports whether a subject already has a reference profile.
func (r *Repository) HasProfile(ctx context.Context, subjectID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM behavioral_profiles WHERE subject_id = ?`, subjectID)
	return count > 0, err
}

// ListAllProfiles returns every stored reference profile.
func (r *Repository) ListAllProfiles(ctx context.Context) ([]models.BehavioralProfile, error) {
	var profiles []models.BehavioralProfile
	err := r.db.SelectContext(ctx, &profiles, `SELECT * FROM behavioral_profiles`)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

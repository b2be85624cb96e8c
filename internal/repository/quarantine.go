// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"gatewarden/internal/models"
)

// InsertQuarantine appends a quarantine record. Each quarantine event
// gets its own row; multiple rows per subject may coexist.
func (r *Repository) InsertQuarantine(ctx context.Context, subjectID string, until int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quarantine_records (subject_id, until_ts, created_at) VALUES (?, ?, ?)`,
		subjectID, until, time.Now().UTC())
	return err
}

// ListActiveQuarantines returns all quarantine rows still present in the
// store, oldest first. The sweeper decides which ones are due.
func (r *Repository) ListActiveQuarantines(ctx context.Context) ([]models.QuarantineRecord, error) {
	var recs []models.QuarantineRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT * FROM quarantine_records ORDER BY until_ts ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// ActiveQuarantineFor returns the quarantine row with the latest
// deadline for a subject, or ErrNotFound when none exists.
func (r *Repository) ActiveQuarantineFor(ctx context.Context, subjectID string) (*models.QuarantineRecord, error) {
	var rec models.QuarantineRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM quarantine_records WHERE subject_id = ? ORDER BY until_ts DESC, id DESC LIMIT 1`,
		subjectID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &rec, nil
}

// DeleteQuarantine acknowledges an expired record by removing it.
func (r *Repository) DeleteQuarantine(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM quarantine_records WHERE id = ?`, id)
	return err
}

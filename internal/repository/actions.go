// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"gatewarden/internal/models"
)

// AppendAction writes an audit record. The log is append-only; nothing
// ever mutates or deletes entries.
func (r *Repository) AppendAction(ctx context.Context, subjectID, action, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO action_log (subject_id, action, reason, created_at) VALUES (?, ?, ?, ?)`,
		subjectID, action, reason, time.Now().UTC())
	return err
}

// LatestActionFor returns the most recent audit entry for a subject.
func (r *Repository) LatestActionFor(ctx context.Context, subjectID string) (*models.ActionLogEntry, error) {
	var entry models.ActionLogEntry
	err := r.db.GetContext(ctx, &entry,
		`SELECT * FROM action_log WHERE subject_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		subjectID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &entry, nil
}

// CountPriorBans counts ban actions whose free-text reason mentions the
// IP or the serialized fingerprint. Substring matching is intentionally
// loose; this is the pluggable prior-offense correlator, not an exact
// join.
func (r *Repository) CountPriorBans(ctx context.Context, ip, rawFP string) (int, error) {
	clauses := ""
	args := []any{models.ActionBan}
	if ip != "" {
		clauses += " OR reason LIKE ?"
		args = append(args, "%"+ip+"%")
	}
	if rawFP != "" {
		clauses += " OR reason LIKE ?"
		args = append(args, "%"+rawFP+"%")
	}
	if clauses == "" {
		return 0, nil
	}

	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM action_log WHERE action = ? AND (1 = 0`+clauses+`)`,
		args...)
	return count, err
}

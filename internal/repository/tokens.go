// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"gatewarden/internal/models"
)

// InsertToken creates a pending verification token for a subject.
// expiresAt may be nil for never-expiring tokens.
func (r *Repository) InsertToken(ctx context.Context, subjectID, token string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (subject_id, token, status, used, created_at, expires_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		subjectID, token, models.StatusPending, time.Now().UTC(), expiresAt)
	return err
}

// GetTokenByValue retrieves a verification token by its opaque value.
func (r *Repository) GetTokenByValue(ctx context.Context, token string) (*models.VerificationToken, error) {
	var t models.VerificationToken
	err := r.db.GetContext(ctx, &t,
		`SELECT * FROM verification_tokens WHERE token = ?`, token)
	if err != nil {
		return nil, wrapError(err)
	}
	return &t, nil
}

// MarkTokenUsed flips used from 0 to 1 with a single conditional update.
// Returns false when the token was already used (or unknown), which the
// caller must treat as a replay.
func (r *Repository) MarkTokenUsed(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verification_tokens SET used = 1, verified_at = ? WHERE token = ? AND used = 0`,
		time.Now().UTC(), token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetTokenStatus updates the lifecycle status of a token.
func (r *Repository) SetTokenStatus(ctx context.Context, token, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE verification_tokens SET status = ? WHERE token = ?`,
		status, token)
	return err
}

// ListVerificationsForExport returns one row per verification, newest
// first, joined with the most recent fingerprint metadata.
func (r *Repository) ListVerificationsForExport(ctx context.Context) ([]models.ExportRow, error) {
	var rows []models.ExportRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT v.subject_id, v.token, v.status, v.used, v.created_at, v.expires_at,
		        f.ip, f.asn, f.user_agent, f.honeypot
		 FROM verification_tokens v
		 LEFT JOIN fingerprints f ON f.id = (
		     SELECT id FROM fingerprints WHERE token = v.token
		     ORDER BY created_at DESC, id DESC LIMIT 1
		 )
		 ORDER BY v.created_at DESC`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"gatewarden/internal/models"
)

// InsertFingerprint persists a submission record. The record's ID and
// CreatedAt are filled in on return.
func (r *Repository) InsertFingerprint(ctx context.Context, rec *models.FingerprintRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO fingerprints
		     (token, raw_fp, ip, asn, user_agent, honeypot,
		      typing_vector, mouse_vector,
		      is_datacenter, is_vpn, is_tor, proxy_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Token, rec.Raw, rec.IP, rec.ASN, rec.UserAgent, rec.Honeypot,
		rec.Typing, rec.Mouse,
		rec.IsDatacenter, rec.IsVPN, rec.IsTor, rec.ProxyScore, rec.CreatedAt)
	if err != nil {
		return err
	}
	rec.ID, err = res.LastInsertId()
	return err
}

// ListFingerprintsByToken returns all submissions for a token, newest first.
func (r *Repository) ListFingerprintsByToken(ctx context.Context, token string) ([]models.FingerprintRecord, error) {
	var recs []models.FingerprintRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT * FROM fingerprints WHERE token = ? ORDER BY created_at DESC, id DESC`,
		token)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// CountDistinctTokensByIP counts distinct other tokens that submitted
// from the given IP.
func (r *Repository) CountDistinctTokensByIP(ctx context.Context, ip, excludingToken string) (int, error) {
	if ip == "" {
		return 0, nil
	}
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(DISTINCT token) FROM fingerprints WHERE ip = ? AND token != ?`,
		ip, excludingToken)
	return count, err
}

// CountDistinctTokensByFingerprint counts distinct other tokens that
// submitted an identical serialized fingerprint.
func (r *Repository) CountDistinctTokensByFingerprint(ctx context.Context, rawFP, excludingToken string) (int, error) {
	if rawFP == "" {
		return 0, nil
	}
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(DISTINCT token) FROM fingerprints WHERE raw_fp = ? AND token != ?`,
		rawFP, excludingToken)
	return count, err
}

// LatestFingerprintForSubject returns the most recent fingerprint across
// all of a subject's tokens.
func (r *Repository) LatestFingerprintForSubject(ctx context.Context, subjectID string) (*models.FingerprintRecord, error) {
	var rec models.FingerprintRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT f.* FROM fingerprints f
		 JOIN verification_tokens v ON v.token = f.token
		 WHERE v.subject_id = ?
		 ORDER BY f.created_at DESC, f.id DESC LIMIT 1`,
		subjectID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &rec, nil
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package models defines the persisted records of the verification store.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Verification token statuses.
const (
	StatusPending     = "pending"
	StatusVerified    = "verified"
	StatusQuarantined = "quarantined"
	StatusFailed      = "failed"
	StatusExpired     = "expired"
)

// Audit action kinds. The reason column is free text and may embed the
// score and contributing factors.
const (
	ActionVerified          = "verified"
	ActionQuarantineAuto    = "quarantine_auto"
	ActionQuarantineExpired = "quarantine_expired"
	ActionTokenExpired      = "token_expired"
	ActionTokenReuse        = "token_reuse"
	ActionVerifyNoMember    = "verify_no_member"
	ActionBan               = "ban"
)

// VerificationToken is a one-time capability binding a verification
// attempt to a subject. Rows are never deleted.
type VerificationToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64      `db:"id" json:"id"`
	SubjectID  string     `db:"subject_id" json:"subject_id"`
	Token      string     `db:"token" json:"-"`
	Status     string     `db:"status" json:"status"`
	Used       bool       `db:"used" json:"used"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at"`
}

// Expired reports whether the token has an expiry in the past.
func (t *VerificationToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Vector is an ordered sequence of numeric behavior samples, stored as a
// JSON array in a TEXT column.
type Vector []float64

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Unreadable column content degrades to an
// empty vector rather than failing the row scan.
func (v *Vector) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = Vector{}
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return fmt.Errorf("vector: unsupported scan type %T", src)
	}
	var out []float64
	if err := json.Unmarshal(raw, &out); err != nil {
		*v = Vector{}
		return nil
	}
	*v = out
	return nil
}

// IPIntel is the fixed-shape result of an IP intelligence lookup.
type IPIntel struct {
	ASN          string `json:"asn"`
	IsDatacenter bool   `json:"is_datacenter"`
	IsVPN        bool   `json:"is_vpn"`
	IsTor        bool   `json:"is_tor"`
	ProxyScore   int    `json:"proxy_score"` // 0-100
}

// NeutralIntel is the fallback used when no intelligence is available.
func NeutralIntel() IPIntel {
	return IPIntel{}
}

// FingerprintRecord is one client submission for a token. Immutable once
// written; a token may accumulate several, the most recent wins.
type FingerprintRecord struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64     `db:"id" json:"id"`
	Token        string    `db:"token" json:"-"`
	Raw          string    `db:"raw_fp" json:"raw_fp"`
	IP           string    `db:"ip" json:"ip"`
	ASN          string    `db:"asn" json:"asn"`
	UserAgent    string    `db:"user_agent" json:"user_agent"`
	Honeypot     bool      `db:"honeypot" json:"honeypot"`
	Typing       Vector    `db:"typing_vector" json:"typing"`
	Mouse        Vector    `db:"mouse_vector" json:"mouse"`
	IsDatacenter bool      `db:"is_datacenter" json:"is_datacenter"`
	IsVPN        bool      `db:"is_vpn" json:"is_vpn"`
	IsTor        bool      `db:"is_tor" json:"is_tor"`
	ProxyScore   int       `db:"proxy_score" json:"proxy_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Intel reassembles the stored intelligence columns.
func (f *FingerprintRecord) Intel() IPIntel {
	return IPIntel{
		ASN:          f.ASN,
		IsDatacenter: f.IsDatacenter,
		IsVPN:        f.IsVPN,
		IsTor:        f.IsTor,
		ProxyScore:   f.ProxyScore,
	}
}

// BehavioralProfile is the durable typing/mouse reference for a verified
// subject. Written once, first writer wins.
type BehavioralProfile struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Typing    Vector    `db:"typing_vector" json:"typing"`
	Mouse     Vector    `db:"mouse_vector" json:"mouse"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActionLogEntry is an append-only audit record.
type ActionLogEntry struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Action    string    `db:"action" json:"action"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// QuarantineRecord is a time-bomb: the subject is restricted until Until
// (epoch seconds). Several records per subject may coexist.
type QuarantineRecord struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Until     int64     `db:"until_ts" json:"until_ts"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExportRow is one line of the admin CSV export: a verification joined
// with its latest fingerprint metadata.
type ExportRow struct { //nolint:govet // fieldalignment: readability over optimization
	SubjectID string     `db:"subject_id"`
	Token     string     `db:"token"`
	Status    string     `db:"status"`
	Used      bool       `db:"used"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt *time.Time `db:"expires_at"`
	IP        *string    `db:"ip"`
	ASN       *string    `db:"asn"`
	UserAgent *string    `db:"user_agent"`
	Honeypot  *bool      `db:"honeypot"`
}

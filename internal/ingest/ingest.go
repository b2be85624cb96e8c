// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package ingest normalizes inbound fingerprint submissions, enriches
// them with IP intelligence, persists them and correlates them against
// historical records.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gatewarden/internal/models"
	"gatewarden/internal/repository"
	"gatewarden/internal/risk"
)

// DefaultLookupTimeout bounds oracle lookups; on timeout the submission
// proceeds with neutral intelligence.
const DefaultLookupTimeout = 3 * time.Second

// DNA is the behavioral portion of a client payload.
type DNA struct {
	Typing []float64 `json:"typing"`
	Mouse  []float64 `json:"mouse"`
}

// Payload is the client-supplied submission body. Every field is
// optional; missing or malformed data defaults rather than failing.
type Payload struct { //nolint:govet // fieldalignment: readability over optimization
	Token    string          `json:"token"`
	FP       json.RawMessage `json:"fp"`
	DNA      DNA             `json:"dna"`
	Honeypot bool            `json:"honeypot"`
	Intel    *models.IPIntel `json:"ip_info"`
}

// ParsePayload decodes a submission body defensively. A malformed or
// partial body degrades to an empty payload: availability of the
// verification funnel outweighs strictness, and a syntactically broken
// payload is itself a signal the scorer picks up through empty vectors.
func ParsePayload(raw []byte) Payload {
	var p Payload
	if len(raw) == 0 {
		return p
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}
	}
	return p
}

// SerializedFP returns the canonical serialization of the device
// fingerprint, used for exact-duplicate correlation.
func (p Payload) SerializedFP() string {
	if len(p.FP) == 0 {
		return ""
	}
	// Recompact so semantically equal submissions compare equal.
	var v any
	if err := json.Unmarshal(p.FP, &v); err != nil {
		return string(p.FP)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(p.FP)
	}
	return string(b)
}

// Service is the fingerprint ingestion pipeline.
type Service struct {
	repo          *repository.Repository
	oracle        Oracle
	lookupTimeout time.Duration
}

// NewService creates an ingestion service. A nil oracle disables
// enrichment; submissions then carry client-attached or neutral intel.
func NewService(repo *repository.Repository, oracle Oracle) *Service {
	return &Service{repo: repo, oracle: oracle, lookupTimeout: DefaultLookupTimeout}
}

// Ingest persists one submission for a token and returns the stored
// record together with the correlation counts feeding the risk scorer.
// Enrichment failure never fails the request.
func (s *Service) Ingest(ctx context.Context, tok string, rawPayload []byte, ip, userAgent string) (*models.FingerprintRecord, risk.Stats, error) {
	payload := ParsePayload(rawPayload)
	intel := s.resolveIntel(ctx, payload, ip)

	rec := &models.FingerprintRecord{
		Token:        tok,
		Raw:          payload.SerializedFP(),
		IP:           ip,
		ASN:          intel.ASN,
		UserAgent:    userAgent,
		Honeypot:     payload.Honeypot,
		Typing:       payload.DNA.Typing,
		Mouse:        payload.DNA.Mouse,
		IsDatacenter: intel.IsDatacenter,
		IsVPN:        intel.IsVPN,
		IsTor:        intel.IsTor,
		ProxyScore:   intel.ProxyScore,
	}
	if err := s.repo.InsertFingerprint(ctx, rec); err != nil {
		return nil, risk.Stats{}, err
	}

	stats, err := s.Correlate(ctx, rec)
	if err != nil {
		return nil, risk.Stats{}, err
	}
	return rec, stats, nil
}

// Correlate derives the historical correlation counts for a stored
// record: distinct other tokens on the same IP, on an identical
// serialized fingerprint, and prior ban actions mentioning either value.
func (s *Service) Correlate(ctx context.Context, rec *models.FingerprintRecord) (risk.Stats, error) {
	sameIP, err := s.repo.CountDistinctTokensByIP(ctx, rec.IP, rec.Token)
	if err != nil {
		return risk.Stats{}, err
	}
	sameFP, err := s.repo.CountDistinctTokensByFingerprint(ctx, rec.Raw, rec.Token)
	if err != nil {
		return risk.Stats{}, err
	}
	priorBans, err := s.repo.CountPriorBans(ctx, rec.IP, rec.Raw)
	if err != nil {
		return risk.Stats{}, err
	}
	return risk.Stats{
		SameFingerprintCount: sameFP,
		SameIPCount:          sameIP,
		PriorBanCount:        priorBans,
	}, nil
}

// resolveIntel prefers intelligence the client-facing collaborator
// already attached, then the oracle, then neutral defaults.
func (s *Service) resolveIntel(ctx context.Context, payload Payload, ip string) models.IPIntel {
	if payload.Intel != nil {
		return *payload.Intel
	}
	if s.oracle == nil {
		return models.NeutralIntel()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	intel, err := s.oracle.Lookup(lookupCtx, ip)
	if err != nil {
		slog.Warn("ip intelligence lookup failed, using neutral defaults", "ip", ip, "error", err)
		return models.NeutralIntel()
	}
	return intel
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

// Package risk scores a verification submission for automation and fraud
// signals. ComputeRisk is pure: identical inputs always produce an
// identical assessment, including reason ordering.
package risk

import (
	"fmt"
	"math"
	"time"

	"gatewarden/internal/models"
)

// Signal weights. Each independent signal contributes additively; the
// final score is clamped to [0, 100].
const (
	WeightDuplicateFingerprint = 25.0
	WeightDuplicateIP          = 20.0
	WeightDatacenterASN        = 25.0
	WeightVPN                  = 35.0
	WeightTor                  = 40.0
	WeightProxyScoreFactor     = 0.5
	WeightHoneypot             = 90.0
	WeightAccountAge           = 20.0
	WeightDNAMatch             = 35.0
	WeightPriorBans            = 25.0
)

// MatchThreshold is the behavioral similarity above which two profiles
// are considered the same operator. Strictly greater-than.
const MatchThreshold = 0.78

// Stats carries the correlation counts the ingestion path derives from
// historical records.
type Stats struct {
	SameFingerprintCount int
	SameIPCount          int
	PriorBanCount        int
}

// Match is a behavioral-similarity hit against a stored profile.
type Match struct {
	SubjectID  string  `json:"subject_id"`
	Similarity float64 `json:"similarity"`
}

// Assessment is the transient scoring result. Not persisted.
type Assessment struct { //nolint:govet // fieldalignment: readability over optimization
	Score      int       `json:"score"`
	Reasons    []string  `json:"reasons"`
	Matches    []Match   `json:"dna_matches"`
	ComputedAt time.Time `json:"computed_at"`
}

// Cosine returns the cosine similarity of two sample vectors, defined as
// 0 when either vector is empty or has zero norm. Dimensionality need
// not match; the shorter length is used.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := range n {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Similarity combines typing and mouse cosine similarities, weighted
// 0.6/0.4 toward typing dynamics.
func Similarity(typingA, mouseA, typingB, mouseB []float64) float64 {
	return 0.6*Cosine(typingA, typingB) + 0.4*Cosine(mouseA, mouseB)
}

// ComputeRisk combines ingestion signals, IP intelligence, honeypot
// triggers, account age and behavioral matches into a bounded score with
// explainable reasons. fingerprints are ordered newest first; the most
// recent submission supplies the current behavior vectors.
func ComputeRisk(
	fingerprints []models.FingerprintRecord,
	knownProfiles []models.BehavioralProfile,
	intel models.IPIntel,
	honeypotTriggered bool,
	accountAgeDays int,
	stats Stats,
) Assessment {
	var score float64
	reasons := []string{}
	matches := []Match{}

	if stats.SameFingerprintCount > 0 {
		delta := float64(min(3, stats.SameFingerprintCount))
		add := WeightDuplicateFingerprint * delta
		score += add
		reasons = append(reasons, fmt.Sprintf("Duplicate fingerprint matches %d (+%.0f)", stats.SameFingerprintCount, add))
	}

	if stats.SameIPCount > 0 {
		delta := float64(min(4, stats.SameIPCount))
		add := WeightDuplicateIP * (delta / 2.0)
		score += add
		reasons = append(reasons, fmt.Sprintf("Same IP seen across %d accounts (+%.0f)", stats.SameIPCount, add))
	}

	if stats.PriorBanCount > 0 {
		add := math.Min(WeightPriorBans, float64(stats.PriorBanCount)*10)
		score += add
		reasons = append(reasons, fmt.Sprintf("Previously banned accounts on same device/IP (+%.0f)", add))
	}

	if intel.IsDatacenter {
		score += WeightDatacenterASN
		reasons = append(reasons, fmt.Sprintf("Datacenter ASN detected (+%.0f)", WeightDatacenterASN))
	}
	if intel.IsVPN {
		score += WeightVPN
		reasons = append(reasons, fmt.Sprintf("VPN/proxy likely (+%.0f)", WeightVPN))
	}
	if intel.IsTor {
		score += WeightTor
		reasons = append(reasons, fmt.Sprintf("Tor exit node detected (+%.0f)", WeightTor))
	}
	if intel.ProxyScore > 0 {
		add := float64(intel.ProxyScore) * WeightProxyScoreFactor
		score += add
		reasons = append(reasons, fmt.Sprintf("Proxy score %d (+%.1f)", intel.ProxyScore, add))
	}

	if honeypotTriggered {
		score += WeightHoneypot
		reasons = append(reasons, fmt.Sprintf("Honeypot triggered (+%.0f)", WeightHoneypot))
	}

	if accountAgeDays < 1 {
		score += WeightAccountAge
		reasons = append(reasons, fmt.Sprintf("New account (<1d) (+%.0f)", WeightAccountAge))
	} else if accountAgeDays < 7 {
		add := WeightAccountAge * 0.6
		score += add
		reasons = append(reasons, fmt.Sprintf("New account (<7d) (+%.0f)", add))
	}

	if len(fingerprints) > 0 && len(knownProfiles) > 0 {
		current := fingerprints[0]
		for _, prof := range knownProfiles {
			sim := Similarity(current.Typing, current.Mouse, prof.Typing, prof.Mouse)
			if sim > MatchThreshold {
				matches = append(matches, Match{SubjectID: prof.SubjectID, Similarity: math.Round(sim*1000) / 1000})
				score += WeightDNAMatch
				reasons = append(reasons, fmt.Sprintf("DNA match to %s sim=%.2f (+%.0f)", prof.SubjectID, sim, WeightDNAMatch))
			}
		}
	}

	final := int(math.Round(score))
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	return Assessment{
		Score:      final,
		Reasons:    reasons,
		Matches:    matches,
		ComputedAt: time.Now().UTC(),
	}
}

// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package ingest

import (
	"context"
	"strings"

	"gatewarden/internal/models"
)

// Oracle resolves IP intelligence for an address. Implementations must
// honor context cancellation; callers bound every lookup with a short
// timeout and degrade to neutral intel on failure.
type Oracle interface {
	Lookup(ctx context.Context, ip string) (models.IPIntel, error)
}

// datacenterKeywords flag hosting-provider addresses when they leak into
// the forwarded address or its reverse name.
var datacenterKeywords = []string{
	"aws", "amazon", "google", "gcp", "ovh", "digitalocean",
	"linode", "hetzner", "azure", "microsoft",
}

// KeywordOracle is the built-in heuristic oracle. It only detects
// datacenter keywords; VPN/Tor/proxy detection needs an external
// provider behind the same interface.
type KeywordOracle struct{}

// Lookup implements Oracle.
func (KeywordOracle) Lookup(_ context.Context, ip string) (models.IPIntel, error) {
	lower := strings.ToLower(ip)
	intel := models.IPIntel{ASN: "AS-LOCAL"}
	for _, kw := range datacenterKeywords {
		if strings.Contains(lower, kw) {
			intel.IsDatacenter = true
			break
		}
	}
	return intel, nil
}

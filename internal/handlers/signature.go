// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sign computes the hex HMAC-SHA256 signature trusted backends attach
// to verification notifications.
func Sign(secret, tok string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(tok))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a presented signature in constant time. An
// unconfigured secret rejects everything.
func VerifySignature(secret, tok, presented string) bool {
	if secret == "" || presented == "" {
		return false
	}
	want, err := hex.DecodeString(Sign(secret, tok))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(presented)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

func secretsMatch(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

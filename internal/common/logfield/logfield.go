package logfield

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

var bootNonce = randomNonce()

// FingerprintID maps an identifier to a stable, per-process pseudonym.
// Log lines from one run can be correlated without recording the identifier itself.
func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

// Subject logs an OAuth subject as a fingerprint
func Subject(sub string) zap.Field {
	return zap.String("subject_fp", FingerprintID(sub))
}

// Session logs a session id
func Session(id string) zap.Field {
	return zap.String("session_id", id)
}

// Address logs a derived on-chain address
func Address(addr string) zap.Field {
	return zap.String("address", addr)
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}

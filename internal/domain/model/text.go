package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeInterests trims each comma-separated term, drops empty ones and
// rejoins them with ", " so cosmetic edits do not invalidate a cached embedding.
func NormalizeInterests(s string) string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// ContentHash returns the hex SHA-256 of text. Empty text hashes to "".
func ContentHash(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ValidVector reports whether v has the model dimension.
func ValidVector(v []float32) bool {
	return len(v) == Dimension
}

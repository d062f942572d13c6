package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// MakeHash returns hash string from plain text
func MakeHash(s string) string {
	hash := sha1.New()
	hash.Write([]byte(s))
	hashBytes := hash.Sum(nil)
	return hex.EncodeToString(hashBytes)
}

// NormalizeKey returns the canonical text form of a statement and its parameters
func NormalizeKey(statement string, parameters []string) string {
	sb := strings.Builder{}
	sb.WriteString(statement)
	for _, parameter := range parameters {
		// unit separator keeps ("ab","c") and ("a","bc") distinct
		sb.WriteByte(0x1f)
		sb.WriteString(parameter)
	}
	return sb.String()
}

// MakeCacheKey returns a deterministic cache key for a statement and its parameters
func MakeCacheKey(statement string, parameters []string) string {
	return MakeHash(NormalizeKey(statement, parameters))
}

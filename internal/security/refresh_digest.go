package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// RefreshDigest returns the hex SHA-256 of a raw refresh token. Sessions store this
// instead of the token itself.
func RefreshDigest(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshDigestMatches reports, in constant time, whether token hashes to storedDigest.
// An empty token or digest never matches.
func RefreshDigestMatches(token, storedDigest string) bool {
	if token == "" || storedDigest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(RefreshDigest(token)), []byte(storedDigest)) == 1
}

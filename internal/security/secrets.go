package security

import (
	"bytes"
	"errors"
	"os"
	"strings"
)

// ErrInvalidKey is returned when a signing secret is empty or unusable.
var ErrInvalidKey = errors.New("invalid key")

// secretFilePrefix marks a secret value that names a file instead of holding the secret inline.
const secretFilePrefix = "file:"

// minSecretLen is the shortest HMAC secret accepted for HS256.
const minSecretLen = 16

// LoadSecret returns the HMAC secret for s. s is either the secret itself or "file:<path>",
// in which case the file content with surrounding whitespace trimmed is used.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	var b []byte
	if path, ok := strings.CutPrefix(s, secretFilePrefix); ok {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		b = bytes.TrimSpace(raw)
	} else {
		b = []byte(s)
	}
	if len(b) < minSecretLen {
		return nil, ErrInvalidKey
	}
	return b, nil
}

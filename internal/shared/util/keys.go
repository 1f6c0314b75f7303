package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
)

const maxFileNameRunes = 200

var ErrInvalidFileName = errors.New("invalid file name")

// HashUserKey maps a user id such as "google:123" to a hex string that is
// safe as a path segment and does not reveal the id.
func HashUserKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// SanitizeFileName turns a client-supplied name into a single path segment.
// Separators become "_", control characters are dropped and long names are
// cut. Traversal attempts and names that end up empty are rejected.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(name) {
		if n == maxFileNameRunes {
			break
		}
		switch {
		case r == '/' || r == '\\':
			r = '_'
		case unicode.IsControl(r):
			continue
		}
		b.WriteRune(r)
		n++
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." {
		return "", ErrInvalidFileName
	}
	return out, nil
}

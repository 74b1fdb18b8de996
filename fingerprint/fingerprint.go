package fingerprint

import (
	"strconv"
	"strings"
)

// Normalize returns the canonical form of raw text used for cache-key
// derivation: surrounding whitespace trimmed, internal whitespace runs
// collapsed to a single space, lowercased. The original text is never
// normalized before being sent to the backend.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Hash maps a string to a compact 32-bit key using a rolling
// multiply-and-fold over its character codes. Signed overflow wraps;
// collisions are acceptable since this is a dedup key, not a digest.
func Hash(s string) int32 {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	return h
}

// Key derives the cache key for a (mode, persona, text) triple.
func Key(mode, persona, text string) string {
	return strconv.FormatInt(int64(Hash(mode+"|"+persona+"|"+Normalize(text))), 10)
}

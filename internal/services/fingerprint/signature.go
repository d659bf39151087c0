// Package fingerprint derives content-addressed issue signatures. Detection
// runs produce no stable ids, so identity is the hash of the fields that stay
// put when the AI rewords punctuation or casing.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"contentaudit/internal/domain"
)

// Normalize lowercases, trims, drops everything outside [a-z0-9] and
// whitespace, then collapses whitespace runs to a single space.
func Normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Signature hashes (page url, normalized text, normalized evidence) into a
// 64 character hex string.
func Signature(pageURL, text, evidence string) string {
	h := sha256.New()
	for i, part := range []string{strings.TrimSpace(pageURL), Normalize(text), Normalize(evidence)} {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ForIssue picks the identity text for a raw detection: the title when the
// detector supplied one, otherwise the description.
func ForIssue(ri domain.RawIssue) string {
	text := ri.Title
	if strings.TrimSpace(text) == "" {
		text = ri.Description
	}
	return Signature(ri.PageURL, text, ri.Evidence)
}

package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"contentaudit/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only punctuation", "!!! ...", ""},
		{"casing", "Missing ALT Text", "missing alt text"},
		{"punctuation", "Missing alt-text!", "missing alttext"},
		{"trailing punctuation", "Missing alt text !", "missing alt text"},
		{"whitespace runs", "  missing \t alt\n\ntext  ", "missing alt text"},
		{"non ascii dropped", "Café menu", "caf menu"},
		{"digits kept", "Page 404 error", "page 404 error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSignature_Deterministic(t *testing.T) {
	a := Signature("https://a.com/x", "Missing alt text", "img src=...")
	b := Signature("https://a.com/x", "missing ALT text.", "IMG   src=")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Equal(t, a, Signature("https://a.com/x", "Missing alt text", "img src=..."))
}

func TestSignature_Sensitive(t *testing.T) {
	base := Signature("https://a.com/x", "Missing alt text", "img")
	assert.NotEqual(t, base, Signature("https://a.com/x", "Missing title text", "img"))
	assert.NotEqual(t, base, Signature("https://a.com/y", "Missing alt text", "img"))
	assert.NotEqual(t, base, Signature("https://a.com/x", "Missing alt text", "video"))
}

func TestSignature_FieldBoundaries(t *testing.T) {
	// Moving words between fields must not collide.
	assert.NotEqual(t,
		Signature("u", "missing alt", "text"),
		Signature("u", "missing", "alt text"))
}

func TestSignature_Total(t *testing.T) {
	assert.NotPanics(t, func() { _ = Signature("", "", "") })
	assert.Len(t, Signature("", "", ""), 64)
}

func TestForIssue_PrefersTitle(t *testing.T) {
	withTitle := domain.RawIssue{PageURL: "https://a.com", Title: "Broken link", Description: "The link to /foo returns 404"}
	assert.Equal(t, Signature("https://a.com", "Broken link", ""), ForIssue(withTitle))

	noTitle := domain.RawIssue{PageURL: "https://a.com", Description: "The link to /foo returns 404"}
	assert.Equal(t, Signature("https://a.com", "The link to /foo returns 404", ""), ForIssue(noTitle))
}

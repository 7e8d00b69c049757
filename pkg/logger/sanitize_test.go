package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizedEmail(t *testing.T) {
	tests := map[string]string{
		"user@example.com":   "u***@*******.com",
		"a@b.co":             "a@*.co",
		"ops@mail.corp.io":   "o**@****.****.io",
		"not-an-email":       "[invalid-email]",
		"two@@signs.example": "[invalid-email]",
	}

	for in, expected := range tests {
		assert.Equal(t, expected, SanitizedEmail(in), in)
	}
}

func TestSanitizeQueryString(t *testing.T) {
	tests := []struct {
		query    string
		redacted bool
	}{
		{"", false},
		{"limit=20&offset=40", false},
		{"limit=20&access_token=abc", true},
		{"Email=someone@example.com", true},
		{"limit=%zz", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.redacted, SanitizeQueryString(tt.query), tt.query)
	}
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), `"msg":"kept"`)

	buf.Reset()
	New(&buf, "nonsense").Info("fallback")
	assert.Contains(t, buf.String(), `"msg":"fallback"`)
}

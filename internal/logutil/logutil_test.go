package logutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveLogField(t *testing.T) {
	t.Parallel()

	sensitive := []string{"Authorization", "X-Session-Token", "cookie", "Set-Cookie", "password", "client_secret", "X-Auth-Key"}
	for _, k := range sensitive {
		assert.True(t, IsSensitiveLogField(k), "expected %q to be sensitive", k)
	}

	plain := []string{"Content-Type", "Accept", "User-Agent", "X-Request-Id"}
	for _, k := range plain {
		assert.False(t, IsSensitiveLogField(k), "expected %q to be plain", k)
	}
}

func TestFormatHeadersForLog_RedactsAndSorts(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Cookie", "session_id=abc123")
	h.Set("User-Agent", "test-agent")
	h.Set("Accept", "text/html")

	out := FormatHeadersForLog(h)
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "test-agent")
	// Sorted: Accept before Cookie before User-Agent.
	assert.Less(t, strings.Index(out, "accept"), strings.Index(out, "cookie"))
	assert.Less(t, strings.Index(out, "cookie"), strings.Index(out, "user-agent"))
}

func TestFormatHeadersForLog_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "{}", FormatHeadersForLog(http.Header{}))
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", TruncateForLog("   ", 10))
	assert.Equal(t, "short", TruncateForLog("short", 10))
	assert.Equal(t, "line\\nbreak", TruncateForLog("line\nbreak", 0))
	assert.Equal(t, "abcde... [truncated]", TruncateForLog("abcdefghij", 5))
}

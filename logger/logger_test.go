package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"user_id", "u1", "service_token", "abc", "Authorization", "Bearer x", "dangling"})
	assert.Equal(t, []interface{}{"user_id", "u1", "service_token", "[REDACTED]", "Authorization", "[REDACTED]", "dangling"}, out)
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	assert.NotNil(t, l)
	l.Info("discarded", "k", "v")
}

package shared_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysense/internal/shared"
)

func TestParse_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "CACHE_TTL_SECONDS", "CHECKOUT_CURRENCY", "SESSION_TTL"} {
		unsetenv(t, k)
	}

	c, err := shared.Parse()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "inr", c.CheckoutCurrency)
	assert.Equal(t, 300*time.Second, c.CacheTTL())
	assert.Equal(t, 168*time.Hour, c.SessionTTL)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("CACHE_TTL_SECONDS", "12")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("UPLOAD_WORKERS", "2")

	c, err := shared.Parse()
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.HTTPAddr)
	assert.Equal(t, 12*time.Second, c.CacheTTL())
	assert.True(t, c.CookieSecure)
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.Equal(t, 2, c.UploadWorkers)
}

func TestParse_BadInt(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	_, err := shared.Parse()
	assert.Error(t, err)
}

// unsetenv clears k for the duration of the test.
func unsetenv(t *testing.T, k string) {
	t.Helper()
	t.Setenv(k, "")
	require.NoError(t, os.Unsetenv(k))
}

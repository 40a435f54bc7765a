package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPRoundtrip(t *testing.T) {
	ctx := context.Background()
	c := New()

	code, err := c.GetOTP(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Empty(t, code, "no code stored yet")

	require.NoError(t, c.SetOTP(ctx, "a@example.com", "123456"))
	code, err = c.GetOTP(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	ttl, err := c.GetOTPTTL(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Greater(t, ttl, 290*time.Second)

	require.NoError(t, c.DeleteOTP(ctx, "a@example.com"))
	code, err = c.GetOTP(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestCheckRateLimit(t *testing.T) {
	ctx := context.Background()
	c := New()
	for i := 0; i < 10; i++ {
		ok, err := c.CheckRateLimit(ctx, "a@example.com")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within limit", i+1)
	}
	ok, err := c.CheckRateLimit(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok, "11th request in the window must be refused")

	ok, err = c.CheckRateLimit(ctx, "b@example.com")
	require.NoError(t, err)
	assert.True(t, ok, "limits are per email")
}

func TestSessionSecrets(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.SetSessionSecret(ctx, "sess-1", "secret"))
	v, err := c.GetSessionSecret(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	require.NoError(t, c.DeleteSessionSecret(ctx, "sess-1"))
	v, err = c.GetSessionSecret(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, v)
}

package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "123456", onlyDigits("123456"))
	assert.Equal(t, "123456", onlyDigits(" 123 456 "))
	assert.Equal(t, "123456", onlyDigits("12-34-56"))
	assert.Equal(t, "", onlyDigits("abcdef"))
}

func TestNormalizeEmailForKey(t *testing.T) {
	assert.Equal(t, "user@example.com", normalizeEmailForKey("  User@Example.COM "))
	// Cyrillic look-alikes pasted from a clipboard map to latin.
	assert.Equal(t, "open@example.com", normalizeEmailForKey("оpеn@example.com"))
}

func TestEmailRegexp(t *testing.T) {
	assert.True(t, emailRegexp.MatchString("a@b.co"))
	assert.True(t, emailRegexp.MatchString("first.last+tag@sub.domain.org"))
	assert.False(t, emailRegexp.MatchString("no-at-sign"))
	assert.False(t, emailRegexp.MatchString("user@localhost"))
	assert.False(t, emailRegexp.MatchString("@missing-local.com"))
}

func TestDeriveUsername(t *testing.T) {
	assert.Equal(t, "jane_doe", deriveUsername("jane.doe@example.com"))
	assert.Equal(t, "plain", deriveUsername("plain@example.com"))
	assert.True(t, strings.HasPrefix(deriveUsername("@example.com"), "user_"))
	assert.True(t, strings.HasPrefix(deriveUsername("not-an-email"), "user_"))
}

func TestGenerateOTP(t *testing.T) {
	code := generateOTP(6)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "OTP must be digits only, got %q", code)
	}
	// Two consecutive codes colliding is possible but vanishingly unlikely;
	// at minimum the generator must not be constant.
	different := false
	for i := 0; i < 10 && !different; i++ {
		different = generateOTP(6) != code
	}
	assert.True(t, different)
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "****", maskSessionID("abc"))
	assert.Equal(t, "1234***", maskSessionID("1234567890"))
}

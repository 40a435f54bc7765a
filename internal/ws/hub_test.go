package ws

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncatePreview(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncatePreview("hello", 120))
	})

	t.Run("long ascii", func(t *testing.T) {
		got := truncatePreview(strings.Repeat("a", 200), 120)
		assert.Len(t, got, 120)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("never splits a rune", func(t *testing.T) {
		got := truncatePreview(strings.Repeat("é", 100), 120)
		assert.True(t, utf8.ValidString(got))
		assert.LessOrEqual(t, len(got), 120)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("exactly at the cap", func(t *testing.T) {
		s := strings.Repeat("b", 120)
		assert.Equal(t, s, truncatePreview(s, 120))
	})
}

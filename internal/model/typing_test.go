package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingActiveAt(t *testing.T) {
	now := time.Now()

	fresh := &TypingStatus{IsTyping: true, UpdatedAt: now.Add(-time.Second)}
	assert.True(t, fresh.ActiveAt(now))

	// Exactly at the staleness boundary counts as stale.
	boundary := &TypingStatus{IsTyping: true, UpdatedAt: now.Add(-TypingStaleAfter)}
	assert.False(t, boundary.ActiveAt(now))

	stale := &TypingStatus{IsTyping: true, UpdatedAt: now.Add(-TypingStaleAfter - time.Millisecond)}
	assert.False(t, stale.ActiveAt(now))

	stopped := &TypingStatus{IsTyping: false, UpdatedAt: now}
	assert.False(t, stopped.ActiveAt(now))
}

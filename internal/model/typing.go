package model

import "time"

// TypingStaleAfter is how long a typing row stays meaningful without an
// update. Readers must treat older rows as "not typing" even if no explicit
// is_typing=false ever arrived.
const TypingStaleAfter = 3 * time.Second

// TypingStatus is an ephemeral per-(conversation, user) row. It is not part
// of the durable message history.
type TypingStatus struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           UserRole  `json:"role"`
	IsTyping       bool      `json:"is_typing"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ActiveAt reports whether the row still indicates live typing at the given
// moment, applying the client-side staleness window.
func (t *TypingStatus) ActiveAt(now time.Time) bool {
	if !t.IsTyping {
		return false
	}
	return now.Sub(t.UpdatedAt) < TypingStaleAfter
}

package model

import "time"

type ConversationStatus string

const (
	ConversationPending  ConversationStatus = "pending"
	ConversationAccepted ConversationStatus = "accepted"
	ConversationRejected ConversationStatus = "rejected"
	ConversationActive   ConversationStatus = "active"
	ConversationClosed   ConversationStatus = "closed"
)

// conversationTransitions is the only legal status graph. rejected and
// closed are terminal.
var conversationTransitions = map[ConversationStatus][]ConversationStatus{
	ConversationPending:  {ConversationAccepted, ConversationRejected},
	ConversationAccepted: {ConversationActive, ConversationClosed},
	ConversationActive:   {ConversationClosed},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to ConversationStatus) bool {
	for _, next := range conversationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationPending, ConversationAccepted, ConversationRejected,
		ConversationActive, ConversationClosed:
		return true
	}
	return false
}

// Conversation pairs exactly one influencer with one advertiser, optionally
// tied to a campaign. The two party columns are asymmetric and never
// interchangeable.
type Conversation struct {
	ID                   string             `json:"id"`
	InfluencerID         string             `json:"influencer_id"`
	AdvertiserID         string             `json:"advertiser_id"`
	CampaignID           *string            `json:"campaign_id,omitempty"`
	CampaignTitle        string             `json:"campaign_title,omitempty"`
	Status               ConversationStatus `json:"status"`
	InitiatedBy          UserRole           `json:"initiated_by"`
	LastMessage          string             `json:"last_message"`
	LastMessageAt        *time.Time         `json:"last_message_at,omitempty"`
	ArchivedByInfluencer bool               `json:"archived_by_influencer"`
	ArchivedByAdvertiser bool               `json:"archived_by_advertiser"`
	Blocked              bool               `json:"blocked"`
	BlockedBy            *string            `json:"blocked_by,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// IsActiveCollaboration is true only while the parties are working together.
func (c *Conversation) IsActiveCollaboration() bool {
	return c.Status == ConversationAccepted || c.Status == ConversationActive
}

// AcceptsMessages reports whether new messages may be written to the
// conversation. Blocked and terminated conversations are read-only.
func (c *Conversation) AcceptsMessages() bool {
	if c.Blocked {
		return false
	}
	return c.Status != ConversationRejected && c.Status != ConversationClosed
}

// ParticipantRole returns the role userID plays in the conversation, or ""
// if the user is not a party.
func (c *Conversation) ParticipantRole(userID string) UserRole {
	switch userID {
	case c.InfluencerID:
		return RoleInfluencer
	case c.AdvertiserID:
		return RoleAdvertiser
	}
	return ""
}

// OtherParty returns the user ID of the peer, or "" for non-participants.
func (c *Conversation) OtherParty(userID string) string {
	switch userID {
	case c.InfluencerID:
		return c.AdvertiserID
	case c.AdvertiserID:
		return c.InfluencerID
	}
	return ""
}

// VisibleTo applies the inbox visibility rule: a conversation is hidden from
// a side that archived it, and a pending conversation the influencer opened
// themselves stays out of the influencer's own inbox until the advertiser
// responds.
func (c *Conversation) VisibleTo(userID string) bool {
	switch c.ParticipantRole(userID) {
	case RoleInfluencer:
		if c.ArchivedByInfluencer {
			return false
		}
		if c.Status == ConversationPending && c.InitiatedBy == RoleInfluencer {
			return false
		}
		return true
	case RoleAdvertiser:
		return !c.ArchivedByAdvertiser
	}
	return false
}

// ConversationWithUnread decorates a conversation for inbox rendering.
type ConversationWithUnread struct {
	Conversation
	UnreadCount int         `json:"unread_count"`
	Peer        *UserPublic `json:"peer,omitempty"`
}

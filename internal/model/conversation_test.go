package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to ConversationStatus }{
		{ConversationPending, ConversationAccepted},
		{ConversationPending, ConversationRejected},
		{ConversationAccepted, ConversationActive},
		{ConversationAccepted, ConversationClosed},
		{ConversationActive, ConversationClosed},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to ConversationStatus }{
		{ConversationPending, ConversationActive},
		{ConversationPending, ConversationClosed},
		{ConversationAccepted, ConversationPending},
		{ConversationActive, ConversationAccepted},
		{ConversationActive, ConversationRejected},
		{ConversationRejected, ConversationAccepted},
		{ConversationRejected, ConversationPending},
		{ConversationClosed, ConversationActive},
		{ConversationClosed, ConversationPending},
		{ConversationPending, ConversationPending},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestAcceptsMessages(t *testing.T) {
	for _, status := range []ConversationStatus{ConversationPending, ConversationAccepted, ConversationActive} {
		c := &Conversation{Status: status}
		assert.True(t, c.AcceptsMessages(), "status %s", status)
	}
	for _, status := range []ConversationStatus{ConversationRejected, ConversationClosed} {
		c := &Conversation{Status: status}
		assert.False(t, c.AcceptsMessages(), "status %s", status)
	}

	blocked := &Conversation{Status: ConversationActive, Blocked: true}
	assert.False(t, blocked.AcceptsMessages(), "blocked conversation must refuse messages regardless of status")
}

func TestVisibleTo(t *testing.T) {
	base := Conversation{InfluencerID: "inf", AdvertiserID: "adv"}

	t.Run("pending influencer-initiated hidden from influencer only", func(t *testing.T) {
		c := base
		c.Status = ConversationPending
		c.InitiatedBy = RoleInfluencer
		assert.False(t, c.VisibleTo("inf"))
		assert.True(t, c.VisibleTo("adv"))
	})

	t.Run("pending advertiser-initiated visible to both", func(t *testing.T) {
		c := base
		c.Status = ConversationPending
		c.InitiatedBy = RoleAdvertiser
		assert.True(t, c.VisibleTo("inf"))
		assert.True(t, c.VisibleTo("adv"))
	})

	t.Run("accepted becomes visible to the initiator", func(t *testing.T) {
		c := base
		c.Status = ConversationAccepted
		c.InitiatedBy = RoleInfluencer
		assert.True(t, c.VisibleTo("inf"))
		assert.True(t, c.VisibleTo("adv"))
	})

	t.Run("archive hides per side", func(t *testing.T) {
		c := base
		c.Status = ConversationActive
		c.ArchivedByInfluencer = true
		assert.False(t, c.VisibleTo("inf"))
		assert.True(t, c.VisibleTo("adv"))

		c.ArchivedByInfluencer = false
		c.ArchivedByAdvertiser = true
		assert.True(t, c.VisibleTo("inf"))
		assert.False(t, c.VisibleTo("adv"))
	})

	t.Run("non-participant sees nothing", func(t *testing.T) {
		c := base
		c.Status = ConversationActive
		assert.False(t, c.VisibleTo("someone-else"))
	})
}

func TestParticipantRoleAndOtherParty(t *testing.T) {
	c := &Conversation{InfluencerID: "inf", AdvertiserID: "adv"}
	assert.Equal(t, RoleInfluencer, c.ParticipantRole("inf"))
	assert.Equal(t, RoleAdvertiser, c.ParticipantRole("adv"))
	assert.Equal(t, UserRole(""), c.ParticipantRole("other"))

	assert.Equal(t, "adv", c.OtherParty("inf"))
	assert.Equal(t, "inf", c.OtherParty("adv"))
	assert.Equal(t, "", c.OtherParty("other"))
}

func TestIsActiveCollaboration(t *testing.T) {
	assert.True(t, (&Conversation{Status: ConversationAccepted}).IsActiveCollaboration())
	assert.True(t, (&Conversation{Status: ConversationActive}).IsActiveCollaboration())
	assert.False(t, (&Conversation{Status: ConversationPending}).IsActiveCollaboration())
	assert.False(t, (&Conversation{Status: ConversationClosed}).IsActiveCollaboration())
}

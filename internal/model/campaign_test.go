package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignCanTransition(t *testing.T) {
	assert.True(t, CampaignCanTransition(CampaignDraft, CampaignActive))
	assert.True(t, CampaignCanTransition(CampaignDraft, CampaignClosed))
	assert.True(t, CampaignCanTransition(CampaignActive, CampaignClosed))

	assert.False(t, CampaignCanTransition(CampaignActive, CampaignDraft))
	assert.False(t, CampaignCanTransition(CampaignClosed, CampaignActive))
	assert.False(t, CampaignCanTransition(CampaignClosed, CampaignDraft))
	assert.False(t, CampaignCanTransition(CampaignDraft, CampaignDraft))
}

func TestCampaignStatusValid(t *testing.T) {
	assert.True(t, CampaignDraft.Valid())
	assert.True(t, CampaignActive.Valid())
	assert.True(t, CampaignClosed.Valid())
	assert.False(t, CampaignStatus("archived").Valid())
	assert.False(t, CampaignStatus("").Valid())
}

func TestUserRoleValid(t *testing.T) {
	assert.True(t, RoleInfluencer.Valid())
	assert.True(t, RoleAdvertiser.Valid())
	// Admin accounts cannot be self-assigned at signup.
	assert.False(t, RoleAdmin.Valid())
	assert.False(t, UserRole("moderator").Valid())
}

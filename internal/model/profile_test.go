package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullInfluencerProfile() InfluencerProfile {
	return InfluencerProfile{
		DisplayName: "Ana",
		Bio:         "lifestyle creator",
		Categories:  []string{"beauty"},
		Platforms:   []PlatformAccount{{Platform: "instagram", Handle: "@ana", Followers: 12000}},
		Location:    "Berlin",
		AvatarURL:   "/api/files/a.png",
		RatePerPost: 250,
	}
}

func TestInfluencerCompletionPercent(t *testing.T) {
	empty := &InfluencerProfile{}
	assert.Equal(t, 0, empty.CompletionPercent())

	full := fullInfluencerProfile()
	assert.Equal(t, 100, full.CompletionPercent())

	// Engagement rate does not count towards completion.
	withRate := fullInfluencerProfile()
	withRate.EngagementRate = 4.2
	assert.Equal(t, 100, withRate.CompletionPercent())

	// 6 of 7 fields is 85 and passes the gate; 5 of 7 is 71 and does not.
	sixOfSeven := fullInfluencerProfile()
	sixOfSeven.Location = ""
	assert.Equal(t, 85, sixOfSeven.CompletionPercent())
	assert.GreaterOrEqual(t, sixOfSeven.CompletionPercent(), ProfileGateMinPercent)

	fiveOfSeven := sixOfSeven
	fiveOfSeven.Bio = ""
	assert.Equal(t, 71, fiveOfSeven.CompletionPercent())
	assert.Less(t, fiveOfSeven.CompletionPercent(), ProfileGateMinPercent)
}

func TestAdvertiserCompletionPercent(t *testing.T) {
	empty := &AdvertiserProfile{}
	assert.Equal(t, 0, empty.CompletionPercent())

	full := &AdvertiserProfile{
		CompanyName: "Acme",
		Industry:    "fitness",
		Website:     "https://acme.example",
		Description: "makers of things",
		LogoURL:     "/api/files/logo.png",
		ContactName: "Jordan",
		Location:    "Madrid",
	}
	assert.Equal(t, 100, full.CompletionPercent())

	partial := *full
	partial.Website = ""
	partial.LogoURL = ""
	assert.Equal(t, 71, partial.CompletionPercent())
	assert.Less(t, partial.CompletionPercent(), ProfileGateMinPercent)
}

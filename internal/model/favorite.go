package model

import "time"

// FavoriteCampaign is a saved campaign in a user's favorites list.
type FavoriteCampaign struct {
	CampaignID string    `json:"campaign_id"`
	AddedAt    time.Time `json:"added_at"`
	Campaign   *Campaign `json:"campaign,omitempty"`
}

// CampaignView is one entry in a user's browsing history. Re-viewing a
// campaign refreshes the timestamp instead of adding a second row.
type CampaignView struct {
	CampaignID string    `json:"campaign_id"`
	ViewedAt   time.Time `json:"viewed_at"`
	Campaign   *Campaign `json:"campaign,omitempty"`
}

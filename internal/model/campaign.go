package model

import "time"

type CampaignStatus string

const (
	CampaignDraft  CampaignStatus = "draft"
	CampaignActive CampaignStatus = "active"
	CampaignClosed CampaignStatus = "closed"
)

func (s CampaignStatus) Valid() bool {
	return s == CampaignDraft || s == CampaignActive || s == CampaignClosed
}

// CampaignCanTransition validates lifecycle changes: draft -> active ->
// closed, with closing straight from draft allowed.
func CampaignCanTransition(from, to CampaignStatus) bool {
	switch from {
	case CampaignDraft:
		return to == CampaignActive || to == CampaignClosed
	case CampaignActive:
		return to == CampaignClosed
	}
	return false
}

type Campaign struct {
	ID           string         `json:"id"`
	AdvertiserID string         `json:"advertiser_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Platforms    []string       `json:"platforms"`
	BudgetMin    int64          `json:"budget_min"`
	BudgetMax    int64          `json:"budget_max"`
	Currency     string         `json:"currency"`
	FollowerMin  int64          `json:"follower_min"`
	Deadline     *time.Time     `json:"deadline,omitempty"`
	Requirements string         `json:"requirements"`
	ImageURL     string         `json:"image_url"`
	Status       CampaignStatus `json:"status"`
	ViewCount    int64          `json:"view_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Advertiser   *UserPublic    `json:"advertiser,omitempty"`
}

// CampaignFilter narrows campaign listings. Zero values mean "no filter".
type CampaignFilter struct {
	Category  string
	Platform  string
	MinBudget int64
	Search    string
	Status    CampaignStatus
	Limit     int
	Offset    int
}

package model

import "time"

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Application is an influencer's pitch for a campaign. One application per
// (campaign, influencer) pair.
type Application struct {
	ID            string            `json:"id"`
	CampaignID    string            `json:"campaign_id"`
	InfluencerID  string            `json:"influencer_id"`
	Message       string            `json:"message"`
	ProposedRate  int64             `json:"proposed_rate"`
	Status        ApplicationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Influencer    *UserPublic       `json:"influencer,omitempty"`
	CampaignTitle string            `json:"campaign_title,omitempty"`
}

// Decidable reports whether the campaign owner may still accept or reject.
func (a *Application) Decidable() bool {
	return a.Status == ApplicationPending
}

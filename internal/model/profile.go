package model

import "time"

// ProfileGateMinPercent is the completion level required before an
// advertiser may create campaigns or an influencer may apply and start
// conversations.
const ProfileGateMinPercent = 80

// PlatformAccount is one social account an influencer publishes on.
type PlatformAccount struct {
	Platform  string `json:"platform"`
	Handle    string `json:"handle"`
	Followers int64  `json:"followers"`
}

// InfluencerProfile and AdvertiserProfile carry different field sets; which
// one applies is decided by the user's role.
type InfluencerProfile struct {
	UserID         string            `json:"user_id"`
	DisplayName    string            `json:"display_name"`
	Bio            string            `json:"bio"`
	Categories     []string          `json:"categories"`
	Platforms      []PlatformAccount `json:"platforms"`
	Location       string            `json:"location"`
	AvatarURL      string            `json:"avatar_url"`
	EngagementRate float64           `json:"engagement_rate"`
	RatePerPost    int64             `json:"rate_per_post"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type AdvertiserProfile struct {
	UserID      string    `json:"user_id"`
	CompanyName string    `json:"company_name"`
	Industry    string    `json:"industry"`
	Website     string    `json:"website"`
	Description string    `json:"description"`
	LogoURL     string    `json:"logo_url"`
	ContactName string    `json:"contact_name"`
	Location    string    `json:"location"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CompletionPercent scores an influencer profile by its filled required
// fields. Engagement rate is optional and does not count.
func (p *InfluencerProfile) CompletionPercent() int {
	filled := 0
	const total = 7
	if p.DisplayName != "" {
		filled++
	}
	if p.Bio != "" {
		filled++
	}
	if len(p.Categories) > 0 {
		filled++
	}
	if len(p.Platforms) > 0 {
		filled++
	}
	if p.Location != "" {
		filled++
	}
	if p.AvatarURL != "" {
		filled++
	}
	if p.RatePerPost > 0 {
		filled++
	}
	return filled * 100 / total
}

// CompletionPercent scores an advertiser profile by its filled required
// fields.
func (p *AdvertiserProfile) CompletionPercent() int {
	filled := 0
	const total = 7
	if p.CompanyName != "" {
		filled++
	}
	if p.Industry != "" {
		filled++
	}
	if p.Website != "" {
		filled++
	}
	if p.Description != "" {
		filled++
	}
	if p.LogoURL != "" {
		filled++
	}
	if p.ContactName != "" {
		filled++
	}
	if p.Location != "" {
		filled++
	}
	return filled * 100 / total
}

package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponsorhub/internal/model"
)

func TestCampaignRequestValidate(t *testing.T) {
	valid := campaignRequest{Title: "Summer push", BudgetMin: 100, BudgetMax: 500}
	assert.Empty(t, valid.validate())

	tests := []struct {
		name string
		req  campaignRequest
		msg  string
	}{
		{"missing title", campaignRequest{Title: "   "}, "title required"},
		{"negative budget", campaignRequest{Title: "x", BudgetMin: -1}, "budget must be non-negative"},
		{"inverted budget range", campaignRequest{Title: "x", BudgetMin: 500, BudgetMax: 100}, "budgetMin must not exceed budgetMax"},
		{"negative follower floor", campaignRequest{Title: "x", FollowerMin: -10}, "followerMin must be non-negative"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.msg, tc.req.validate())
		})
	}

	// budgetMax of zero means "no ceiling"; any budgetMin is fine alongside.
	open := campaignRequest{Title: "x", BudgetMin: 1000, BudgetMax: 0}
	assert.Empty(t, open.validate())
}

func TestCampaignRequestApply(t *testing.T) {
	deadline := "2026-10-01T00:00:00Z"
	req := campaignRequest{
		Title:        "  Autumn launch  ",
		Description:  " new product ",
		Category:     "tech",
		Platforms:    []string{"instagram", "youtube"},
		BudgetMin:    200,
		BudgetMax:    900,
		FollowerMin:  5000,
		Deadline:     &deadline,
		Requirements: " at least one reel ",
		ImageURL:     "/api/files/banner.png",
	}

	var c model.Campaign
	require.NoError(t, req.apply(&c))
	assert.Equal(t, "Autumn launch", c.Title)
	assert.Equal(t, "new product", c.Description)
	assert.Equal(t, "at least one reel", c.Requirements)
	assert.Equal(t, "USD", c.Currency, "currency defaults when omitted")
	require.NotNil(t, c.Deadline)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), c.Deadline.UTC())

	// nil platforms become an empty slice so JSON renders [] instead of null.
	bare := campaignRequest{Title: "x"}
	var c2 model.Campaign
	require.NoError(t, bare.apply(&c2))
	assert.NotNil(t, c2.Platforms)
	assert.Len(t, c2.Platforms, 0)
	assert.Nil(t, c2.Deadline)

	bad := campaignRequest{Title: "x", Deadline: strPtr("next friday")}
	var c3 model.Campaign
	assert.Error(t, bad.apply(&c3))
}

func strPtr(s string) *string { return &s }

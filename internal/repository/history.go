package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/model"
)

type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Record notes that the user viewed a campaign. Repeated views move the
// entry to the top rather than duplicating it.
func (r *HistoryRepository) Record(ctx context.Context, userID, campaignID string) error {
	defer logger.DeferLogDuration("history.Record", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO campaign_views (user_id, campaign_id, viewed_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, campaign_id) DO UPDATE SET viewed_at = NOW()`,
		userID, campaignID,
	)
	if err != nil {
		return fmt.Errorf("historyRepo.Record: %w", err)
	}
	return nil
}

// Recent returns the user's most recently viewed campaigns, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, userID string, limit int) ([]model.CampaignView, error) {
	defer logger.DeferLogDuration("history.Recent", time.Now())()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT v.campaign_id, v.viewed_at, `+campaignCols+`
		 FROM campaign_views v
		 JOIN campaigns c ON c.id = v.campaign_id
		 WHERE v.user_id = $1
		 ORDER BY v.viewed_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("historyRepo.Recent query: %w", err)
	}
	defer rows.Close()

	views := make([]model.CampaignView, 0, limit)
	for rows.Next() {
		var v model.CampaignView
		var c model.Campaign
		if err := rows.Scan(&v.CampaignID, &v.ViewedAt,
			&c.ID, &c.AdvertiserID, &c.Title, &c.Description, &c.Category, &c.Platforms,
			&c.BudgetMin, &c.BudgetMax, &c.Currency, &c.FollowerMin, &c.Deadline,
			&c.Requirements, &c.ImageURL, &c.Status, &c.ViewCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("historyRepo.Recent scan: %w", err)
		}
		v.Campaign = &c
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("historyRepo.Recent rows: %w", err)
	}
	return views, nil
}

// Clear wipes the user's view history.
func (r *HistoryRepository) Clear(ctx context.Context, userID string) error {
	defer logger.DeferLogDuration("history.Clear", time.Now())()
	_, err := r.pool.Exec(ctx, `DELETE FROM campaign_views WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("historyRepo.Clear: %w", err)
	}
	return nil
}

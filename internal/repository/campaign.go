package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/model"
)

type CampaignRepository struct {
	pool *pgxpool.Pool
}

func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

const campaignCols = `c.id, c.advertiser_id, c.title, c.description, c.category, c.platforms,
	c.budget_min, c.budget_max, c.currency, c.follower_min, c.deadline,
	COALESCE(c.requirements,''), c.image_url, c.status, c.view_count, c.created_at, c.updated_at`

func scanCampaign(s interface{ Scan(dest ...any) error }, c *model.Campaign) error {
	return s.Scan(&c.ID, &c.AdvertiserID, &c.Title, &c.Description, &c.Category, &c.Platforms,
		&c.BudgetMin, &c.BudgetMax, &c.Currency, &c.FollowerMin, &c.Deadline,
		&c.Requirements, &c.ImageURL, &c.Status, &c.ViewCount, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	defer logger.DeferLogDuration("campaign.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO campaigns (id, advertiser_id, title, description, category, platforms, budget_min, budget_max, currency, follower_min, deadline, requirements, image_url, status, view_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.AdvertiserID, c.Title, c.Description, c.Category, c.Platforms, c.BudgetMin, c.BudgetMax, c.Currency, c.FollowerMin, c.Deadline, c.Requirements, c.ImageURL, c.Status, c.ViewCount, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("campaignRepo.Create: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	defer logger.DeferLogDuration("campaign.GetByID", time.Now())()
	c := &model.Campaign{}
	row := r.pool.QueryRow(ctx, `SELECT `+campaignCols+` FROM campaigns c WHERE c.id = $1`, id)
	if err := scanCampaign(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("campaignRepo.GetByID: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	defer logger.DeferLogDuration("campaign.Update", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET title = $1, description = $2, category = $3, platforms = $4,
		   budget_min = $5, budget_max = $6, currency = $7, follower_min = $8,
		   deadline = $9, requirements = $10, image_url = $11, updated_at = $12
		 WHERE id = $13`,
		c.Title, c.Description, c.Category, c.Platforms, c.BudgetMin, c.BudgetMax, c.Currency, c.FollowerMin, c.Deadline, c.Requirements, c.ImageURL, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("campaignRepo.Update: %w", err)
	}
	return nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	defer logger.DeferLogDuration("campaign.UpdateStatus", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("campaignRepo.UpdateStatus: %w", err)
	}
	return nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("campaign.Delete", time.Now())()
	_, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("campaignRepo.Delete: %w", err)
	}
	return nil
}

// IncrementViewCount bumps the campaign's view counter. Kept separate from
// GetByID so admin/owner reads do not inflate the number.
func (r *CampaignRepository) IncrementViewCount(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("campaign.IncrementViewCount", time.Now())()
	_, err := r.pool.Exec(ctx, `UPDATE campaigns SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("campaignRepo.IncrementViewCount: %w", err)
	}
	return nil
}

// List returns campaigns matching the filter, newest first.
func (r *CampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]model.Campaign, error) {
	defer logger.DeferLogDuration("campaign.List", time.Now())()
	sql := `SELECT ` + campaignCols + ` FROM campaigns c WHERE 1=1`
	args := make([]any, 0, 6)
	if f.Status != "" {
		args = append(args, f.Status)
		sql += fmt.Sprintf(` AND c.status = $%d`, len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		sql += fmt.Sprintf(` AND c.category = $%d`, len(args))
	}
	if f.Platform != "" {
		args = append(args, f.Platform)
		sql += fmt.Sprintf(` AND $%d = ANY(c.platforms)`, len(args))
	}
	if f.MinBudget > 0 {
		args = append(args, f.MinBudget)
		sql += fmt.Sprintf(` AND c.budget_max >= $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		sql += fmt.Sprintf(` AND (c.title ILIKE $%d OR c.description ILIKE $%d)`, len(args), len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY c.created_at DESC LIMIT $%d`, len(args))
	args = append(args, f.Offset)
	sql += fmt.Sprintf(` OFFSET $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("campaignRepo.List query: %w", err)
	}
	defer rows.Close()

	campaigns := make([]model.Campaign, 0, limit)
	for rows.Next() {
		var c model.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, fmt.Errorf("campaignRepo.List scan: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaignRepo.List rows: %w", err)
	}
	return campaigns, nil
}

// ListByAdvertiser returns all of an advertiser's campaigns, any status.
func (r *CampaignRepository) ListByAdvertiser(ctx context.Context, advertiserID string) ([]model.Campaign, error) {
	defer logger.DeferLogDuration("campaign.ListByAdvertiser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignCols+` FROM campaigns c WHERE c.advertiser_id = $1 ORDER BY c.created_at DESC`,
		advertiserID,
	)
	if err != nil {
		return nil, fmt.Errorf("campaignRepo.ListByAdvertiser query: %w", err)
	}
	defer rows.Close()

	campaigns := make([]model.Campaign, 0, 16)
	for rows.Next() {
		var c model.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, fmt.Errorf("campaignRepo.ListByAdvertiser scan: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaignRepo.ListByAdvertiser rows: %w", err)
	}
	return campaigns, nil
}

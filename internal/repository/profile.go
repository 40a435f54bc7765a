package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/model"
)

// ProfileRepository stores role-specific profiles. Influencer platform
// accounts are kept as a JSONB column since they are always read and written
// as a whole.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) GetInfluencer(ctx context.Context, userID string) (*model.InfluencerProfile, error) {
	defer logger.DeferLogDuration("profile.GetInfluencer", time.Now())()
	p := &model.InfluencerProfile{}
	var platforms []byte
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, display_name, bio, categories, platforms, location, avatar_url, engagement_rate, rate_per_post, updated_at
		 FROM influencer_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.DisplayName, &p.Bio, &p.Categories, &platforms, &p.Location, &p.AvatarURL, &p.EngagementRate, &p.RatePerPost, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.GetInfluencer: %w", err)
	}
	if len(platforms) > 0 {
		if err := json.Unmarshal(platforms, &p.Platforms); err != nil {
			return nil, fmt.Errorf("profileRepo.GetInfluencer platforms: %w", err)
		}
	}
	return p, nil
}

func (r *ProfileRepository) UpsertInfluencer(ctx context.Context, p *model.InfluencerProfile) error {
	defer logger.DeferLogDuration("profile.UpsertInfluencer", time.Now())()
	platforms, err := json.Marshal(p.Platforms)
	if err != nil {
		return fmt.Errorf("profileRepo.UpsertInfluencer marshal: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO influencer_profiles (user_id, display_name, bio, categories, platforms, location, avatar_url, engagement_rate, rate_per_post, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
		   display_name = EXCLUDED.display_name, bio = EXCLUDED.bio,
		   categories = EXCLUDED.categories, platforms = EXCLUDED.platforms,
		   location = EXCLUDED.location, avatar_url = EXCLUDED.avatar_url,
		   engagement_rate = EXCLUDED.engagement_rate, rate_per_post = EXCLUDED.rate_per_post,
		   updated_at = EXCLUDED.updated_at`,
		p.UserID, p.DisplayName, p.Bio, p.Categories, platforms, p.Location, p.AvatarURL, p.EngagementRate, p.RatePerPost, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("profileRepo.UpsertInfluencer: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetAdvertiser(ctx context.Context, userID string) (*model.AdvertiserProfile, error) {
	defer logger.DeferLogDuration("profile.GetAdvertiser", time.Now())()
	p := &model.AdvertiserProfile{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, company_name, industry, website, description, logo_url, contact_name, location, updated_at
		 FROM advertiser_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.CompanyName, &p.Industry, &p.Website, &p.Description, &p.LogoURL, &p.ContactName, &p.Location, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.GetAdvertiser: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) UpsertAdvertiser(ctx context.Context, p *model.AdvertiserProfile) error {
	defer logger.DeferLogDuration("profile.UpsertAdvertiser", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO advertiser_profiles (user_id, company_name, industry, website, description, logo_url, contact_name, location, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO UPDATE SET
		   company_name = EXCLUDED.company_name, industry = EXCLUDED.industry,
		   website = EXCLUDED.website, description = EXCLUDED.description,
		   logo_url = EXCLUDED.logo_url, contact_name = EXCLUDED.contact_name,
		   location = EXCLUDED.location, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.CompanyName, p.Industry, p.Website, p.Description, p.LogoURL, p.ContactName, p.Location, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("profileRepo.UpsertAdvertiser: %w", err)
	}
	return nil
}

// CompletionPercent resolves the profile completion for a user of either
// role. A missing profile scores zero.
func (r *ProfileRepository) CompletionPercent(ctx context.Context, userID string, role model.UserRole) (int, error) {
	switch role {
	case model.RoleInfluencer:
		p, err := r.GetInfluencer(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return p.CompletionPercent(), nil
	case model.RoleAdvertiser:
		p, err := r.GetAdvertiser(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return p.CompletionPercent(), nil
	}
	return 0, fmt.Errorf("profileRepo.CompletionPercent: no profile for role %q", role)
}

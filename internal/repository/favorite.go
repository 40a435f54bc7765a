package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/model"
)

type FavoriteRepository struct {
	pool *pgxpool.Pool
}

func NewFavoriteRepository(pool *pgxpool.Pool) *FavoriteRepository {
	return &FavoriteRepository{pool: pool}
}

// Add favorites a campaign. Re-favoriting is a silent no-op.
func (r *FavoriteRepository) Add(ctx context.Context, userID, campaignID string) error {
	defer logger.DeferLogDuration("favorite.Add", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO favorites (user_id, campaign_id, added_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, campaign_id) DO NOTHING`,
		userID, campaignID,
	)
	if err != nil {
		return fmt.Errorf("favoriteRepo.Add: %w", err)
	}
	return nil
}

// Remove unfavorites. Removing a non-favorite returns ErrNotFound.
func (r *FavoriteRepository) Remove(ctx context.Context, userID, campaignID string) error {
	defer logger.DeferLogDuration("favorite.Remove", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND campaign_id = $2`,
		userID, campaignID,
	)
	if err != nil {
		return fmt.Errorf("favoriteRepo.Remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the user's favorites, most recently added first, with the
// campaign attached. Favorites whose campaign was deleted disappear with it.
func (r *FavoriteRepository) List(ctx context.Context, userID string) ([]model.FavoriteCampaign, error) {
	defer logger.DeferLogDuration("favorite.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT f.campaign_id, f.added_at, `+campaignCols+`
		 FROM favorites f
		 JOIN campaigns c ON c.id = f.campaign_id
		 WHERE f.user_id = $1
		 ORDER BY f.added_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("favoriteRepo.List query: %w", err)
	}
	defer rows.Close()

	favs := make([]model.FavoriteCampaign, 0, 16)
	for rows.Next() {
		var f model.FavoriteCampaign
		var c model.Campaign
		if err := rows.Scan(&f.CampaignID, &f.AddedAt,
			&c.ID, &c.AdvertiserID, &c.Title, &c.Description, &c.Category, &c.Platforms,
			&c.BudgetMin, &c.BudgetMax, &c.Currency, &c.FollowerMin, &c.Deadline,
			&c.Requirements, &c.ImageURL, &c.Status, &c.ViewCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("favoriteRepo.List scan: %w", err)
		}
		f.Campaign = &c
		favs = append(favs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("favoriteRepo.List rows: %w", err)
	}
	return favs, nil
}

// IsFavorite reports whether the campaign is in the user's favorites.
func (r *FavoriteRepository) IsFavorite(ctx context.Context, userID, campaignID string) (bool, error) {
	defer logger.DeferLogDuration("favorite.IsFavorite", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND campaign_id = $2)`,
		userID, campaignID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("favoriteRepo.IsFavorite: %w", err)
	}
	return exists, nil
}

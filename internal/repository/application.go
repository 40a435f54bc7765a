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

// ErrDuplicate is returned when a uniqueness constraint would be violated,
// e.g. applying twice to the same campaign.
var ErrDuplicate = errors.New("duplicate")

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

const applicationCols = `a.id, a.campaign_id, a.influencer_id, COALESCE(a.message,''), a.proposed_rate, a.status, a.created_at, a.updated_at`

func scanApplication(s interface{ Scan(dest ...any) error }, a *model.Application) error {
	return s.Scan(&a.ID, &a.CampaignID, &a.InfluencerID, &a.Message, &a.ProposedRate, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

// Create inserts an application. A second application by the same influencer
// to the same campaign returns ErrDuplicate.
func (r *ApplicationRepository) Create(ctx context.Context, a *model.Application) error {
	defer logger.DeferLogDuration("application.Create", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO applications (id, campaign_id, influencer_id, message, proposed_rate, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (campaign_id, influencer_id) DO NOTHING`,
		a.ID, a.CampaignID, a.InfluencerID, a.Message, a.ProposedRate, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("applicationRepo.Create: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*model.Application, error) {
	defer logger.DeferLogDuration("application.GetByID", time.Now())()
	a := &model.Application{}
	row := r.pool.QueryRow(ctx, `SELECT `+applicationCols+` FROM applications a WHERE a.id = $1`, id)
	if err := scanApplication(row, a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("applicationRepo.GetByID: %w", err)
	}
	return a, nil
}

// UpdateStatus moves an application to a new status. Only applications still
// in the expected current status are updated; a stale update returns
// ErrNotFound so callers can report the conflict.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, from, to model.ApplicationStatus) error {
	defer logger.DeferLogDuration("application.UpdateStatus", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE applications SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("applicationRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByCampaign returns applications for a campaign with the applicant's
// public profile attached, newest first.
func (r *ApplicationRepository) ListByCampaign(ctx context.Context, campaignID string) ([]model.Application, error) {
	defer logger.DeferLogDuration("application.ListByCampaign", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+applicationCols+`, u.id, u.username, u.role, COALESCE(u.avatar_url,''), u.is_online, u.last_seen_at
		 FROM applications a
		 JOIN users u ON u.id = a.influencer_id
		 WHERE a.campaign_id = $1
		 ORDER BY a.created_at DESC`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("applicationRepo.ListByCampaign query: %w", err)
	}
	defer rows.Close()

	apps := make([]model.Application, 0, 16)
	for rows.Next() {
		var a model.Application
		var u model.UserPublic
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.InfluencerID, &a.Message, &a.ProposedRate, &a.Status, &a.CreatedAt, &a.UpdatedAt,
			&u.ID, &u.Username, &u.Role, &u.AvatarURL, &u.IsOnline, &u.LastSeenAt); err != nil {
			return nil, fmt.Errorf("applicationRepo.ListByCampaign scan: %w", err)
		}
		a.Influencer = &u
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("applicationRepo.ListByCampaign rows: %w", err)
	}
	return apps, nil
}

// ListByInfluencer returns an influencer's applications with the campaign
// title attached, newest first.
func (r *ApplicationRepository) ListByInfluencer(ctx context.Context, influencerID string) ([]model.Application, error) {
	defer logger.DeferLogDuration("application.ListByInfluencer", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+applicationCols+`, c.title
		 FROM applications a
		 JOIN campaigns c ON c.id = a.campaign_id
		 WHERE a.influencer_id = $1
		 ORDER BY a.created_at DESC`,
		influencerID,
	)
	if err != nil {
		return nil, fmt.Errorf("applicationRepo.ListByInfluencer query: %w", err)
	}
	defer rows.Close()

	apps := make([]model.Application, 0, 16)
	for rows.Next() {
		var a model.Application
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.InfluencerID, &a.Message, &a.ProposedRate, &a.Status, &a.CreatedAt, &a.UpdatedAt,
			&a.CampaignTitle); err != nil {
			return nil, fmt.Errorf("applicationRepo.ListByInfluencer scan: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("applicationRepo.ListByInfluencer rows: %w", err)
	}
	return apps, nil
}

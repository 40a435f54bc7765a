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

// ErrInvalidTransition is returned when a status change is not allowed by the
// conversation lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

const conversationCols = `cv.id, cv.influencer_id, cv.advertiser_id, cv.campaign_id, COALESCE(c.title,''),
	cv.status, cv.initiated_by, COALESCE(cv.last_message,''), cv.last_message_at,
	cv.archived_by_influencer, cv.archived_by_advertiser, cv.blocked, cv.blocked_by, cv.created_at`

func scanConversation(s interface{ Scan(dest ...any) error }, cv *model.Conversation) error {
	return s.Scan(&cv.ID, &cv.InfluencerID, &cv.AdvertiserID, &cv.CampaignID, &cv.CampaignTitle,
		&cv.Status, &cv.InitiatedBy, &cv.LastMessage, &cv.LastMessageAt,
		&cv.ArchivedByInfluencer, &cv.ArchivedByAdvertiser, &cv.Blocked, &cv.BlockedBy, &cv.CreatedAt)
}

// Create inserts a conversation. The caller is responsible for de-duplication
// via FindByParties first; a racing insert on the same (influencer,
// advertiser, campaign) triple returns ErrDuplicate.
func (r *ConversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	defer logger.DeferLogDuration("conversation.Create", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, influencer_id, advertiser_id, campaign_id, status, initiated_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (influencer_id, advertiser_id, COALESCE(campaign_id, '')) DO NOTHING`,
		cv.ID, cv.InfluencerID, cv.AdvertiserID, cv.CampaignID, cv.Status, cv.InitiatedBy, cv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conversationRepo.Create: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conversation.GetByID", time.Now())()
	cv := &model.Conversation{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+conversationCols+` FROM conversations cv LEFT JOIN campaigns c ON c.id = cv.campaign_id WHERE cv.id = $1`, id)
	if err := scanConversation(row, cv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversationRepo.GetByID: %w", err)
	}
	return cv, nil
}

// FindByParties looks up the existing conversation for an (influencer,
// advertiser, campaign) triple. campaignID may be nil for a direct chat.
func (r *ConversationRepository) FindByParties(ctx context.Context, influencerID, advertiserID string, campaignID *string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conversation.FindByParties", time.Now())()
	cv := &model.Conversation{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+conversationCols+` FROM conversations cv LEFT JOIN campaigns c ON c.id = cv.campaign_id
		 WHERE cv.influencer_id = $1 AND cv.advertiser_id = $2 AND cv.campaign_id IS NOT DISTINCT FROM $3`,
		influencerID, advertiserID, campaignID,
	)
	if err := scanConversation(row, cv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversationRepo.FindByParties: %w", err)
	}
	return cv, nil
}

// ListForUser returns the user's inbox with unread counts and the peer's
// public profile, most recently active first. The visibility rule is applied
// in SQL: a side that archived the conversation does not see it, and a
// pending conversation opened by the influencer is hidden from the
// influencer until the advertiser responds.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]model.ConversationWithUnread, error) {
	defer logger.DeferLogDuration("conversation.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+conversationCols+`,
		   (SELECT COUNT(*) FROM messages m
		     WHERE m.conversation_id = cv.id AND m.sender_id <> $1
		       AND NOT m.is_read AND NOT m.is_deleted),
		   u.id, u.username, u.role, COALESCE(u.avatar_url,''), u.is_online, u.last_seen_at
		 FROM conversations cv
		 LEFT JOIN campaigns c ON c.id = cv.campaign_id
		 JOIN users u ON u.id = CASE WHEN cv.influencer_id = $1 THEN cv.advertiser_id ELSE cv.influencer_id END
		 WHERE (cv.influencer_id = $1 OR cv.advertiser_id = $1)
		   AND NOT (cv.influencer_id = $1 AND cv.archived_by_influencer)
		   AND NOT (cv.advertiser_id = $1 AND cv.archived_by_advertiser)
		   AND NOT (cv.influencer_id = $1 AND cv.status = 'pending' AND cv.initiated_by = 'influencer')
		 ORDER BY cv.last_message_at DESC NULLS LAST, cv.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("conversationRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	convs := make([]model.ConversationWithUnread, 0, 16)
	for rows.Next() {
		var cw model.ConversationWithUnread
		var peer model.UserPublic
		if err := rows.Scan(&cw.ID, &cw.InfluencerID, &cw.AdvertiserID, &cw.CampaignID, &cw.CampaignTitle,
			&cw.Status, &cw.InitiatedBy, &cw.LastMessage, &cw.LastMessageAt,
			&cw.ArchivedByInfluencer, &cw.ArchivedByAdvertiser, &cw.Blocked, &cw.BlockedBy, &cw.CreatedAt,
			&cw.UnreadCount,
			&peer.ID, &peer.Username, &peer.Role, &peer.AvatarURL, &peer.IsOnline, &peer.LastSeenAt); err != nil {
			return nil, fmt.Errorf("conversationRepo.ListForUser scan: %w", err)
		}
		cw.Peer = &peer
		convs = append(convs, cw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversationRepo.ListForUser rows: %w", err)
	}
	return convs, nil
}

// PeerIDs returns the distinct user ids the user shares a conversation with,
// for presence fanout.
func (r *ConversationRepository) PeerIDs(ctx context.Context, userID string) ([]string, error) {
	defer logger.DeferLogDuration("conversation.PeerIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT CASE WHEN influencer_id = $1 THEN advertiser_id ELSE influencer_id END
		 FROM conversations
		 WHERE influencer_id = $1 OR advertiser_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("conversationRepo.PeerIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("conversationRepo.PeerIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversationRepo.PeerIDs rows: %w", err)
	}
	return ids, nil
}

// UpdateStatus performs a validated from -> to status change. The update is
// conditional on the current status, so concurrent decisions cannot skip a
// state: the loser sees ErrInvalidTransition.
func (r *ConversationRepository) UpdateStatus(ctx context.Context, id string, from, to model.ConversationStatus) error {
	defer logger.DeferLogDuration("conversation.UpdateStatus", time.Now())()
	if !model.CanTransition(from, to) {
		return ErrInvalidTransition
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE conversations SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("conversationRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SetArchived flips the archive flag for the side userID is on.
func (r *ConversationRepository) SetArchived(ctx context.Context, id, userID string, archived bool) error {
	defer logger.DeferLogDuration("conversation.SetArchived", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE conversations SET
		   archived_by_influencer = CASE WHEN influencer_id = $2 THEN $3 ELSE archived_by_influencer END,
		   archived_by_advertiser = CASE WHEN advertiser_id = $2 THEN $3 ELSE archived_by_advertiser END
		 WHERE id = $1 AND (influencer_id = $2 OR advertiser_id = $2)`,
		id, userID, archived,
	)
	if err != nil {
		return fmt.Errorf("conversationRepo.SetArchived: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBlocked blocks or unblocks the conversation. Only the user who blocked
// may unblock; blocked_by records who did it.
func (r *ConversationRepository) SetBlocked(ctx context.Context, id, userID string, blocked bool) error {
	defer logger.DeferLogDuration("conversation.SetBlocked", time.Now())()
	var tagSQL string
	if blocked {
		tagSQL = `UPDATE conversations SET blocked = TRUE, blocked_by = $2
		          WHERE id = $1 AND NOT blocked AND (influencer_id = $2 OR advertiser_id = $2)`
	} else {
		tagSQL = `UPDATE conversations SET blocked = FALSE, blocked_by = NULL
		          WHERE id = $1 AND blocked AND blocked_by = $2`
	}
	tag, err := r.pool.Exec(ctx, tagSQL, id, userID)
	if err != nil {
		return fmt.Errorf("conversationRepo.SetBlocked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/model"
)

type TypingRepository struct {
	pool *pgxpool.Pool
}

func NewTypingRepository(pool *pgxpool.Pool) *TypingRepository {
	return &TypingRepository{pool: pool}
}

// Set upserts the caller's typing flag for a conversation. updated_at is
// always refreshed so the staleness window restarts on every keystroke.
func (r *TypingRepository) Set(ctx context.Context, conversationID, userID string, role model.UserRole, isTyping bool) error {
	defer logger.DeferLogDuration("typing.Set", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO typing_status (conversation_id, user_id, role, is_typing, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (conversation_id, user_id)
		 DO UPDATE SET is_typing = EXCLUDED.is_typing, role = EXCLUDED.role, updated_at = NOW()`,
		conversationID, userID, role, isTyping,
	)
	if err != nil {
		return fmt.Errorf("typingRepo.Set: %w", err)
	}
	return nil
}

// ListActive returns who is currently typing in the conversation, excluding
// the asking user. Rows older than the staleness window are treated as
// not typing even if the flag was never cleared.
func (r *TypingRepository) ListActive(ctx context.Context, conversationID, excludeUserID string) ([]model.TypingStatus, error) {
	defer logger.DeferLogDuration("typing.ListActive", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT conversation_id, user_id, role, is_typing, updated_at
		 FROM typing_status
		 WHERE conversation_id = $1 AND user_id <> $2 AND is_typing
		   AND updated_at > NOW() - $3::interval`,
		conversationID, excludeUserID, model.TypingStaleAfter.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("typingRepo.ListActive query: %w", err)
	}
	defer rows.Close()

	statuses := make([]model.TypingStatus, 0, 2)
	for rows.Next() {
		var ts model.TypingStatus
		if err := rows.Scan(&ts.ConversationID, &ts.UserID, &ts.Role, &ts.IsTyping, &ts.UpdatedAt); err != nil {
			return nil, fmt.Errorf("typingRepo.ListActive scan: %w", err)
		}
		statuses = append(statuses, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("typingRepo.ListActive rows: %w", err)
	}
	return statuses, nil
}

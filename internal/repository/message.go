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

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageCols = `m.id, m.conversation_id, m.sender_id, m.sender_type, m.content, m.message_type,
	COALESCE(m.file_url,''), COALESCE(m.file_name,''), COALESCE(m.file_size,0), COALESCE(m.file_type,''),
	m.is_read, m.read_at, m.is_deleted, m.deleted_at, m.created_at`

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	return s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderType, &m.Content, &m.MessageType,
		&m.FileURL, &m.FileName, &m.FileSize, &m.FileType,
		&m.IsRead, &m.ReadAt, &m.IsDeleted, &m.DeletedAt, &m.CreatedAt)
}

// Create inserts the message and refreshes the parent conversation's
// last_message / last_message_at preview in the same transaction, so the
// inbox never shows a preview for a message that was not stored or vice
// versa.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("message.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("messageRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, sender_type, content, message_type, file_url, file_name, file_size, file_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), NULLIF($9,0), NULLIF($10,''), $11)`,
		m.ID, m.ConversationID, m.SenderID, m.SenderType, m.Content, m.MessageType, m.FileURL, m.FileName, m.FileSize, m.FileType, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("messageRepo.Create insert: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE conversations SET last_message = $1, last_message_at = $2 WHERE id = $3`,
		m.Content, m.CreatedAt, m.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("messageRepo.Create denorm: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("messageRepo.Create commit: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("message.GetByID", time.Now())()
	m := &model.Message{}
	row := r.pool.QueryRow(ctx, `SELECT `+messageCols+` FROM messages m WHERE m.id = $1`, id)
	if err := scanMessage(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("messageRepo.GetByID: %w", err)
	}
	return m, nil
}

// List pages through a conversation's messages in chronological order,
// excluding soft-deleted ones. before, when set, is a (created_at, id)
// cursor: only messages strictly older are returned, so a client walks the
// history backwards one page at a time while reading each page oldest first.
func (r *MessageRepository) List(ctx context.Context, conversationID string, before *model.Message, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("message.List", time.Now())()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sql := `SELECT ` + messageCols + `, u.id, u.username, u.role, COALESCE(u.avatar_url,''), u.is_online, u.last_seen_at
	 FROM messages m
	 JOIN users u ON u.id = m.sender_id
	 WHERE m.conversation_id = $1 AND NOT m.is_deleted`
	args := []any{conversationID}
	if before != nil {
		args = append(args, before.CreatedAt, before.ID)
		sql += fmt.Sprintf(` AND (m.created_at, m.id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY m.created_at DESC, m.id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.List query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		var u model.UserPublic
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderType, &m.Content, &m.MessageType,
			&m.FileURL, &m.FileName, &m.FileSize, &m.FileType,
			&m.IsRead, &m.ReadAt, &m.IsDeleted, &m.DeletedAt, &m.CreatedAt,
			&u.ID, &u.Username, &u.Role, &u.AvatarURL, &u.IsOnline, &u.LastSeenAt); err != nil {
			return nil, fmt.Errorf("messageRepo.List scan: %w", err)
		}
		m.Sender = &u
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messageRepo.List rows: %w", err)
	}
	// Fetched newest-first for the cursor; flip to chronological for the client.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead marks every unread message from the peer as read and returns the
// affected message IDs. Re-running on an already-read conversation is a
// no-op returning an empty slice.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) ([]string, error) {
	defer logger.DeferLogDuration("message.MarkRead", time.Now())()
	rows, err := r.pool.Query(ctx,
		`UPDATE messages SET is_read = TRUE, read_at = NOW()
		 WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read AND NOT is_deleted
		 RETURNING id`,
		conversationID, readerID,
	)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.MarkRead: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("messageRepo.MarkRead scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messageRepo.MarkRead rows: %w", err)
	}
	return ids, nil
}

// SoftDelete hides a message the sender authored. The row stays for audit;
// deleting someone else's message or a missing one returns ErrNotFound.
func (r *MessageRepository) SoftDelete(ctx context.Context, id, senderID string) error {
	defer logger.DeferLogDuration("message.SoftDelete", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET is_deleted = TRUE, deleted_at = NOW()
		 WHERE id = $1 AND sender_id = $2 AND NOT is_deleted`,
		id, senderID,
	)
	if err != nil {
		return fmt.Errorf("messageRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadTotal counts unread messages addressed to the user across all
// conversations, for the inbox badge.
func (r *MessageRepository) UnreadTotal(ctx context.Context, userID string) (int, error) {
	defer logger.DeferLogDuration("message.UnreadTotal", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN conversations cv ON cv.id = m.conversation_id
		 WHERE (cv.influencer_id = $1 OR cv.advertiser_id = $1)
		   AND m.sender_id <> $1 AND NOT m.is_read AND NOT m.is_deleted`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("messageRepo.UnreadTotal: %w", err)
	}
	return n, nil
}

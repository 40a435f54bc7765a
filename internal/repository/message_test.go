package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
	"github.com/sponsorhub/internal/testdb"
)

func seedUser(t *testing.T, repo *repository.UserRepository, role model.UserRole) *model.User {
	t.Helper()
	now := time.Now().UTC()
	u := &model.User{
		ID:             uuid.New().String(),
		Username:       "u_" + uuid.New().String()[:8],
		Email:          uuid.New().String()[:8] + "@example.com",
		Role:           role,
		ApprovalStatus: model.ApprovalApproved,
		LastSeenAt:     now,
		CreatedAt:      now,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func seedConversation(t *testing.T, repo *repository.ConversationRepository, influencerID, advertiserID string, status model.ConversationStatus) *model.Conversation {
	t.Helper()
	cv := &model.Conversation{
		ID:           uuid.New().String(),
		InfluencerID: influencerID,
		AdvertiserID: advertiserID,
		Status:       status,
		InitiatedBy:  model.RoleAdvertiser,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), cv))
	return cv
}

func seedMessage(t *testing.T, repo *repository.MessageRepository, conversationID, senderID string, senderType model.UserRole, content string, at time.Time) *model.Message {
	t.Helper()
	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderType:     senderType,
		Content:        content,
		MessageType:    model.MessageTypeText,
		CreatedAt:      at,
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestMessageListOrderingSkipsDeleted(t *testing.T) {
	pool := testdb.New(t)
	ctx := context.Background()
	userRepo := repository.NewUserRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)

	inf := seedUser(t, userRepo, model.RoleInfluencer)
	adv := seedUser(t, userRepo, model.RoleAdvertiser)
	cv := seedConversation(t, convRepo, inf.ID, adv.ID, model.ConversationActive)

	base := time.Now().UTC()
	m1 := seedMessage(t, msgRepo, cv.ID, inf.ID, model.RoleInfluencer, "first", base)
	m2 := seedMessage(t, msgRepo, cv.ID, adv.ID, model.RoleAdvertiser, "second", base.Add(time.Millisecond))
	m3 := seedMessage(t, msgRepo, cv.ID, inf.ID, model.RoleInfluencer, "third", base.Add(2*time.Millisecond))

	require.NoError(t, msgRepo.SoftDelete(ctx, m2.ID, adv.ID))

	got, err := msgRepo.List(ctx, cv.ID, nil, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, m1.ID, got[0].ID, "oldest first")
	assert.Equal(t, m3.ID, got[1].ID)
	assert.True(t, got[0].CreatedAt.Before(got[1].CreatedAt))
}

func TestMessageCreateUpdatesInboxPreview(t *testing.T) {
	pool := testdb.New(t)
	ctx := context.Background()
	userRepo := repository.NewUserRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)

	inf := seedUser(t, userRepo, model.RoleInfluencer)
	adv := seedUser(t, userRepo, model.RoleAdvertiser)
	cv := seedConversation(t, convRepo, inf.ID, adv.ID, model.ConversationActive)

	m := seedMessage(t, msgRepo, cv.ID, inf.ID, model.RoleInfluencer, "kick-off", time.Now().UTC())

	reloaded, err := convRepo.GetByID(ctx, cv.ID)
	require.NoError(t, err)
	assert.Equal(t, "kick-off", reloaded.LastMessage)
	require.NotNil(t, reloaded.LastMessageAt)
	assert.WithinDuration(t, m.CreatedAt, *reloaded.LastMessageAt, time.Millisecond,
		"preview timestamp written in the same transaction as the message")
}

func TestMarkReadPeerMessagesOnlyAndIdempotent(t *testing.T) {
	pool := testdb.New(t)
	ctx := context.Background()
	userRepo := repository.NewUserRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)

	inf := seedUser(t, userRepo, model.RoleInfluencer)
	adv := seedUser(t, userRepo, model.RoleAdvertiser)
	cv := seedConversation(t, convRepo, inf.ID, adv.ID, model.ConversationActive)

	base := time.Now().UTC()
	in1 := seedMessage(t, msgRepo, cv.ID, inf.ID, model.RoleInfluencer, "hi", base)
	in2 := seedMessage(t, msgRepo, cv.ID, inf.ID, model.RoleInfluencer, "there", base.Add(time.Millisecond))
	own := seedMessage(t, msgRepo, cv.ID, adv.ID, model.RoleAdvertiser, "hello", base.Add(2*time.Millisecond))

	ids, err := msgRepo.MarkRead(ctx, cv.ID, adv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{in1.ID, in2.ID}, ids)

	read, err := msgRepo.GetByID(ctx, in1.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	// Reader's own message is never touched.
	mine, err := msgRepo.GetByID(ctx, own.ID)
	require.NoError(t, err)
	assert.False(t, mine.IsRead)

	again, err := msgRepo.MarkRead(ctx, cv.ID, adv.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestConversationUpdateStatusConditional(t *testing.T) {
	pool := testdb.New(t)
	ctx := context.Background()
	userRepo := repository.NewUserRepository(pool)
	convRepo := repository.NewConversationRepository(pool)

	inf := seedUser(t, userRepo, model.RoleInfluencer)
	adv := seedUser(t, userRepo, model.RoleAdvertiser)
	cv := seedConversation(t, convRepo, inf.ID, adv.ID, model.ConversationAccepted)

	require.NoError(t, convRepo.UpdateStatus(ctx, cv.ID, model.ConversationAccepted, model.ConversationActive))

	// The conditional update makes the second mover lose, not skip a state.
	err := convRepo.UpdateStatus(ctx, cv.ID, model.ConversationAccepted, model.ConversationActive)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)

	reloaded, err := convRepo.GetByID(ctx, cv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationActive, reloaded.Status)
}

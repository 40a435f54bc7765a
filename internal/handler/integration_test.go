package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
	"github.com/sponsorhub/internal/testdb"
)

// authedRequest builds a request the way the router middleware would hand it
// to a handler: user id and role in the context, URL params on the chi route
// context.
func authedRequest(t *testing.T, method, target string, body any, userID string, role model.UserRole, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
	return r.WithContext(ctx)
}

func createUser(t *testing.T, repo *repository.UserRepository, role model.UserRole) *model.User {
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

func completeInfluencerProfile(t *testing.T, repo *repository.ProfileRepository, userID string) {
	t.Helper()
	require.NoError(t, repo.UpsertInfluencer(context.Background(), &model.InfluencerProfile{
		UserID:      userID,
		DisplayName: "Creator",
		Bio:         "Lifestyle and tech content.",
		Categories:  []string{"tech"},
		Platforms:   []model.PlatformAccount{{Platform: "instagram", Handle: "creator", Followers: 12000}},
		Location:    "Berlin",
		AvatarURL:   "/api/files/avatar.png",
		RatePerPost: 500,
		UpdatedAt:   time.Now().UTC(),
	}))
}

func TestCreateConversationRequiresCompleteProfile(t *testing.T) {
	pool := testdb.New(t)
	ctx := context.Background()
	userRepo := repository.NewUserRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	campRepo := repository.NewCampaignRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	h := NewConversationHandler(convRepo, userRepo, campRepo, profileRepo, nil)

	inf := createUser(t, userRepo, model.RoleInfluencer)
	adv := createUser(t, userRepo, model.RoleAdvertiser)

	body := map[string]string{"peerId": adv.ID}

	// No profile at all: refused before anything is created.
	w := httptest.NewRecorder()
	h.Create(w, authedRequest(t, http.MethodPost, "/api/conversations", body, inf.ID, model.RoleInfluencer, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	_, err := convRepo.FindByParties(ctx, inf.ID, adv.ID, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	completeInfluencerProfile(t, profileRepo, inf.ID)

	w = httptest.NewRecorder()
	h.Create(w, authedRequest(t, http.MethodPost, "/api/conversations", body, inf.ID, model.RoleInfluencer, nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	cv, err := convRepo.FindByParties(ctx, inf.ID, adv.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationPending, cv.Status)
	assert.Equal(t, model.RoleInfluencer, cv.InitiatedBy)
}

func TestSendMessageActivatesCollaboration(t *testing.T) {
	pool := testdb.New(t)
	ctx := context.Background()
	userRepo := repository.NewUserRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	typingRepo := repository.NewTypingRepository(pool)
	h := NewMessageHandler(msgRepo, convRepo, userRepo, typingRepo, nil)

	inf := createUser(t, userRepo, model.RoleInfluencer)
	adv := createUser(t, userRepo, model.RoleAdvertiser)
	cv := &model.Conversation{
		ID:           uuid.New().String(),
		InfluencerID: inf.ID,
		AdvertiserID: adv.ID,
		Status:       model.ConversationAccepted,
		InitiatedBy:  model.RoleAdvertiser,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, convRepo.Create(ctx, cv))

	params := map[string]string{"conversationId": cv.ID}
	w := httptest.NewRecorder()
	h.SendMessage(w, authedRequest(t, http.MethodPost, "/api/conversations/"+cv.ID+"/messages",
		map[string]string{"content": "when do we start?"}, adv.ID, model.RoleAdvertiser, params))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	reloaded, err := convRepo.GetByID(ctx, cv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationActive, reloaded.Status,
		"first message flips an accepted conversation to active")

	// Further messages leave the status alone.
	w = httptest.NewRecorder()
	h.SendMessage(w, authedRequest(t, http.MethodPost, "/api/conversations/"+cv.ID+"/messages",
		map[string]string{"content": "next week"}, inf.ID, model.RoleInfluencer, params))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	reloaded, err = convRepo.GetByID(ctx, cv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationActive, reloaded.Status)
}

func TestDecideAcceptOpensConversationWithProposal(t *testing.T) {
	pool := testdb.New(t)
	ctx := context.Background()
	userRepo := repository.NewUserRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	campRepo := repository.NewCampaignRepository(pool)
	appRepo := repository.NewApplicationRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	h := NewApplicationHandler(appRepo, campRepo, convRepo, msgRepo, profileRepo, nil)

	inf := createUser(t, userRepo, model.RoleInfluencer)
	adv := createUser(t, userRepo, model.RoleAdvertiser)

	now := time.Now().UTC()
	camp := &model.Campaign{
		ID:           uuid.New().String(),
		AdvertiserID: adv.ID,
		Title:        "Spring launch",
		Description:  "Product launch posts",
		Category:     "tech",
		Platforms:    []string{"instagram"},
		BudgetMin:    1000,
		BudgetMax:    5000,
		Currency:     "USD",
		Status:       model.CampaignActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, campRepo.Create(ctx, camp))

	a := &model.Application{
		ID:           uuid.New().String(),
		CampaignID:   camp.ID,
		InfluencerID: inf.ID,
		Message:      "Two reels and a story",
		ProposedRate: 1500,
		Status:       model.ApplicationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, appRepo.Create(ctx, a))

	w := httptest.NewRecorder()
	h.Decide(w, authedRequest(t, http.MethodPut, "/api/applications/"+a.ID+"/decision",
		map[string]bool{"accept": true}, adv.ID, model.RoleAdvertiser,
		map[string]string{"applicationId": a.ID}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cv, err := convRepo.FindByParties(ctx, inf.ID, adv.ID, &camp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationAccepted, cv.Status)

	msgs, err := msgRepo.List(ctx, cv.ID, nil, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageTypeProposal, msgs[0].MessageType)
	assert.Equal(t, inf.ID, msgs[0].SenderID)
	assert.True(t, strings.Contains(msgs[0].Content, "Two reels and a story"))
	assert.True(t, strings.Contains(msgs[0].Content, "1500"))
}

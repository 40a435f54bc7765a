package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
)

type ApplicationHandler struct {
	appRepo      *repository.ApplicationRepository
	campaignRepo *repository.CampaignRepository
	convRepo     *repository.ConversationRepository
	msgRepo      *repository.MessageRepository
	profileRepo  *repository.ProfileRepository
	hub          ConversationNotifier
}

// ConversationNotifier lets the handler announce conversations born from an
// accepted application without importing the ws package directly.
type ConversationNotifier interface {
	NotifyConversationCreated(userID string, conv *model.Conversation)
}

func NewApplicationHandler(
	appRepo *repository.ApplicationRepository,
	campaignRepo *repository.CampaignRepository,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	profileRepo *repository.ProfileRepository,
	hub ConversationNotifier,
) *ApplicationHandler {
	return &ApplicationHandler{
		appRepo:      appRepo,
		campaignRepo: campaignRepo,
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		profileRepo:  profileRepo,
		hub:          hub,
	}
}

type applyRequest struct {
	Message      string `json:"message"`
	ProposedRate int64  `json:"proposedRate"`
}

// Apply submits an influencer's application to an active campaign. One per
// campaign; a repeat returns 409.
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	userID := middleware.GetUserID(r.Context())

	percent, err := h.profileRepo.CompletionPercent(r.Context(), userID, model.RoleInfluencer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check profile")
		return
	}
	if percent < model.ProfileGateMinPercent {
		writeErrorDetails(w, http.StatusForbidden, "profile incomplete",
			"complete your creator profile before applying")
		return
	}

	c, err := h.campaignRepo.GetByID(r.Context(), campaignID)
	if err != nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.Status != model.CampaignActive {
		writeError(w, http.StatusConflict, "campaign is not accepting applications")
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProposedRate < 0 {
		writeError(w, http.StatusBadRequest, "proposedRate must be non-negative")
		return
	}

	now := time.Now().UTC()
	a := &model.Application{
		ID:           uuid.New().String(),
		CampaignID:   campaignID,
		InfluencerID: userID,
		Message:      strings.TrimSpace(req.Message),
		ProposedRate: req.ProposedRate,
		Status:       model.ApplicationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.appRepo.Create(r.Context(), a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusConflict, "already applied to this campaign")
			return
		}
		logger.Errorf("create application campaign=%s user=%s: %v", campaignID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to apply")
		return
	}
	writeSuccess(w, http.StatusCreated, a)
}

// ListForCampaign returns applications for a campaign. Campaign owner only.
func (h *ApplicationHandler) ListForCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	userID := middleware.GetUserID(r.Context())

	c, err := h.campaignRepo.GetByID(r.Context(), campaignID)
	if err != nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.AdvertiserID != userID {
		writeError(w, http.StatusForbidden, "not your campaign")
		return
	}

	apps, err := h.appRepo.ListByCampaign(r.Context(), campaignID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list applications")
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// ListMine returns the influencer's own applications.
func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	apps, err := h.appRepo.ListByInfluencer(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list applications")
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// Withdraw cancels the influencer's own pending application.
func (h *ApplicationHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "applicationId")
	userID := middleware.GetUserID(r.Context())

	a, err := h.appRepo.GetByID(r.Context(), applicationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "application not found")
		return
	}
	if a.InfluencerID != userID {
		writeError(w, http.StatusForbidden, "not your application")
		return
	}
	if !a.Decidable() {
		writeError(w, http.StatusConflict, "application already decided")
		return
	}
	if err := h.appRepo.UpdateStatus(r.Context(), applicationID, model.ApplicationPending, model.ApplicationWithdrawn); err != nil {
		writeError(w, http.StatusConflict, "application already decided")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

type decideRequest struct {
	Accept bool `json:"accept"`
}

// Decide lets the campaign owner accept or reject a pending application.
// Accepting opens an accepted conversation between the two parties (or
// reuses the existing one) so they can start talking immediately.
func (h *ApplicationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "applicationId")
	userID := middleware.GetUserID(r.Context())

	a, err := h.appRepo.GetByID(r.Context(), applicationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "application not found")
		return
	}
	c, err := h.campaignRepo.GetByID(r.Context(), a.CampaignID)
	if err != nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.AdvertiserID != userID {
		writeError(w, http.StatusForbidden, "not your campaign")
		return
	}
	if !a.Decidable() {
		writeError(w, http.StatusConflict, "application already decided")
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	to := model.ApplicationRejected
	if req.Accept {
		to = model.ApplicationAccepted
	}
	if err := h.appRepo.UpdateStatus(r.Context(), applicationID, model.ApplicationPending, to); err != nil {
		writeError(w, http.StatusConflict, "application already decided")
		return
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()

	if req.Accept {
		conv := h.openConversation(r, a, c)
		writeSuccess(w, http.StatusOK, map[string]any{"application": a, "conversation": conv})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"application": a})
}

// openConversation finds or creates the conversation for an accepted
// application, then drops the application's terms into it as a proposal
// message so the thread starts from what was actually pitched.
func (h *ApplicationHandler) openConversation(r *http.Request, a *model.Application, c *model.Campaign) *model.Conversation {
	conv, err := h.convRepo.FindByParties(r.Context(), a.InfluencerID, c.AdvertiserID, &c.ID)
	fresh := false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		conv = &model.Conversation{
			ID:            uuid.New().String(),
			InfluencerID:  a.InfluencerID,
			AdvertiserID:  c.AdvertiserID,
			CampaignID:    &c.ID,
			CampaignTitle: c.Title,
			Status:        model.ConversationAccepted,
			InitiatedBy:   model.RoleAdvertiser,
			CreatedAt:     time.Now().UTC(),
		}
		if cerr := h.convRepo.Create(r.Context(), conv); cerr != nil {
			if !errors.Is(cerr, repository.ErrDuplicate) {
				logger.Errorf("create conversation application=%s: %v", a.ID, cerr)
				return nil
			}
			// Lost a race with a concurrent open; use the winner's row.
			if conv, err = h.convRepo.FindByParties(r.Context(), a.InfluencerID, c.AdvertiserID, &c.ID); err != nil {
				logger.Errorf("find conversation application=%s: %v", a.ID, err)
				return nil
			}
		} else {
			fresh = true
		}
	case err != nil:
		logger.Errorf("find conversation application=%s: %v", a.ID, err)
		return nil
	}

	m := proposalMessage(conv, a, c)
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		logger.Errorf("proposal message application=%s: %v", a.ID, err)
	} else {
		conv.LastMessage = m.Content
		conv.LastMessageAt = &m.CreatedAt
	}

	if fresh && h.hub != nil {
		h.hub.NotifyConversationCreated(conv.InfluencerID, conv)
		h.hub.NotifyConversationCreated(conv.AdvertiserID, conv)
	}
	return conv
}

// proposalMessage turns an accepted application into the conversation's
// opening message, attributed to the influencer whose terms it carries.
func proposalMessage(conv *model.Conversation, a *model.Application, c *model.Campaign) *model.Message {
	content := a.Message
	if a.ProposedRate > 0 {
		rate := fmt.Sprintf("Proposed rate: %d %s", a.ProposedRate, c.Currency)
		if content == "" {
			content = rate
		} else {
			content += "\n" + rate
		}
	}
	if content == "" {
		content = "Application accepted for " + c.Title
	}
	return &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       a.InfluencerID,
		SenderType:     model.RoleInfluencer,
		Content:        strings.TrimSpace(content),
		MessageType:    model.MessageTypeProposal,
		CreatedAt:      time.Now().UTC(),
	}
}

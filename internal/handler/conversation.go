package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
	"github.com/sponsorhub/internal/ws"
)

type ConversationHandler struct {
	convRepo    *repository.ConversationRepository
	userRepo    *repository.UserRepository
	campRepo    *repository.CampaignRepository
	profileRepo *repository.ProfileRepository
	hub         *ws.Hub
}

func NewConversationHandler(
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	campRepo *repository.CampaignRepository,
	profileRepo *repository.ProfileRepository,
	hub *ws.Hub,
) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo, userRepo: userRepo, campRepo: campRepo, profileRepo: profileRepo, hub: hub}
}

// List returns the caller's inbox with unread counts, visibility rules
// applied.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convs, err := h.convRepo.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

type createConversationRequest struct {
	PeerID     string  `json:"peerId"`
	CampaignID *string `json:"campaignId"`
}

// Create opens a conversation with another user, optionally about a
// campaign. An influencer opening one starts it pending and must clear the
// same profile-completion bar as applying; an existing conversation for the
// same triple is returned instead of duplicated.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())

	if role == model.RoleInfluencer {
		percent, err := h.profileRepo.CompletionPercent(r.Context(), userID, model.RoleInfluencer)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check profile")
			return
		}
		if percent < model.ProfileGateMinPercent {
			writeErrorDetails(w, http.StatusForbidden, "profile incomplete",
				"complete your creator profile before reaching out")
			return
		}
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PeerID == "" || req.PeerID == userID {
		writeError(w, http.StatusBadRequest, "peerId required")
		return
	}

	peer, err := h.userRepo.GetByID(r.Context(), req.PeerID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	// The two sides are always one influencer and one advertiser.
	var influencerID, advertiserID string
	switch {
	case role == model.RoleInfluencer && peer.Role == model.RoleAdvertiser:
		influencerID, advertiserID = userID, peer.ID
	case role == model.RoleAdvertiser && peer.Role == model.RoleInfluencer:
		influencerID, advertiserID = peer.ID, userID
	default:
		writeError(w, http.StatusBadRequest, "conversations pair an influencer with an advertiser")
		return
	}

	var campaignTitle string
	if req.CampaignID != nil && *req.CampaignID != "" {
		c, err := h.campRepo.GetByID(r.Context(), *req.CampaignID)
		if err != nil {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		if c.AdvertiserID != advertiserID {
			writeError(w, http.StatusBadRequest, "campaign belongs to another advertiser")
			return
		}
		campaignTitle = c.Title
	} else {
		req.CampaignID = nil
	}

	if existing, err := h.convRepo.FindByParties(r.Context(), influencerID, advertiserID, req.CampaignID); err == nil {
		writeSuccess(w, http.StatusOK, existing)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to check conversation")
		return
	}

	conv := &model.Conversation{
		ID:            uuid.New().String(),
		InfluencerID:  influencerID,
		AdvertiserID:  advertiserID,
		CampaignID:    req.CampaignID,
		CampaignTitle: campaignTitle,
		Status:        model.ConversationPending,
		InitiatedBy:   role,
		CreatedAt:     time.Now().UTC(),
	}
	// An advertiser reaching out is an implicit acceptance of the contact.
	if role == model.RoleAdvertiser {
		conv.Status = model.ConversationAccepted
	}

	if err := h.convRepo.Create(r.Context(), conv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if existing, ferr := h.convRepo.FindByParties(r.Context(), influencerID, advertiserID, req.CampaignID); ferr == nil {
				writeSuccess(w, http.StatusOK, existing)
				return
			}
		}
		logger.Errorf("create conversation %s<->%s: %v", influencerID, advertiserID, err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	if h.hub != nil {
		h.hub.NotifyConversationCreated(conv.OtherParty(userID), conv)
	}
	writeSuccess(w, http.StatusCreated, conv)
}

// Get returns one conversation. Participants only.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type conversationStatusRequest struct {
	Status model.ConversationStatus `json:"status"`
}

// UpdateStatus moves the conversation along its lifecycle. Only the
// advertiser decides on a pending request; either side may close.
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}

	var req conversationStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if conv.Status == model.ConversationPending && conv.ParticipantRole(userID) != model.RoleAdvertiser {
		writeError(w, http.StatusForbidden, "only the advertiser decides on a pending request")
		return
	}
	if err := h.convRepo.UpdateStatus(r.Context(), conv.ID, conv.Status, req.Status); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			writeErrorDetails(w, http.StatusConflict, "invalid status transition",
				string(conv.Status)+" -> "+string(req.Status))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	conv.Status = req.Status

	if h.hub != nil {
		h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingMessage{
			Type: ws.EventConversationUpdated,
			Payload: ws.ConversationStatusPayload{
				ConversationID: conv.ID,
				Status:         conv.Status,
				Blocked:        conv.Blocked,
			},
		})
	}
	writeSuccess(w, http.StatusOK, conv)
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

// Archive hides the conversation from the caller's inbox only; the other
// side keeps seeing it.
func (h *ConversationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.convRepo.SetArchived(r.Context(), conv.ID, userID, req.Archived); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to archive")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

type blockRequest struct {
	Blocked bool `json:"blocked"`
}

// Block freezes the conversation; only the blocker may unblock.
func (h *ConversationHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conv, ok := h.loadParticipant(w, r)
	if !ok {
		return
	}
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.convRepo.SetBlocked(r.Context(), conv.ID, userID, req.Blocked); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusConflict, "block state unchanged or not yours to change")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update block")
		return
	}
	conv.Blocked = req.Blocked

	if h.hub != nil {
		h.hub.BroadcastToConversation(r.Context(), conv.ID, ws.OutgoingMessage{
			Type: ws.EventConversationUpdated,
			Payload: ws.ConversationStatusPayload{
				ConversationID: conv.ID,
				Status:         conv.Status,
				Blocked:        conv.Blocked,
			},
		})
	}
	writeSuccess(w, http.StatusOK, nil)
}

// loadParticipant fetches the conversation from the URL and checks the
// caller is a party to it. Writes the error response itself.
func (h *ConversationHandler) loadParticipant(w http.ResponseWriter, r *http.Request) (*model.Conversation, bool) {
	conversationID := chi.URLParam(r, "conversationId")
	userID := middleware.GetUserID(r.Context())

	conv, err := h.convRepo.GetByID(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return nil, false
	}
	if conv.ParticipantRole(userID) == "" {
		writeError(w, http.StatusForbidden, "not a participant")
		return nil, false
	}
	return conv, true
}

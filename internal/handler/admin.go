package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sponsorhub/internal/email"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
)

// AdminHandler serves the signup approval queue. All routes are behind
// RequireRole(admin).
type AdminHandler struct {
	userRepo *repository.UserRepository
	sender   *email.Sender
}

func NewAdminHandler(userRepo *repository.UserRepository, sender *email.Sender) *AdminHandler {
	return &AdminHandler{userRepo: userRepo, sender: sender}
}

// ListPending returns signups awaiting a decision, oldest first.
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	users, err := h.userRepo.ListPendingApproval(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending users")
		return
	}
	pending := make([]model.PendingUser, 0, len(users))
	for _, u := range users {
		pending = append(pending, model.PendingUser{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, pending)
}

// Approve lets a pending user in and mails them the good news.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadPending(w, r)
	if !ok {
		return
	}
	if err := h.userRepo.SetApproval(r.Context(), user.ID, model.ApprovalApproved, ""); err != nil {
		logger.Errorf("approve user=%s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to approve")
		return
	}
	h.notify(user.Email, true, "")
	writeSuccess(w, http.StatusOK, nil)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject turns a pending signup down, optionally with a reason that goes in
// the notification mail.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadPending(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if err := h.userRepo.SetApproval(r.Context(), user.ID, model.ApprovalRejected, reason); err != nil {
		logger.Errorf("reject user=%s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to reject")
		return
	}
	h.notify(user.Email, false, reason)
	writeSuccess(w, http.StatusOK, nil)
}

type disableRequest struct {
	Disabled bool `json:"disabled"`
}

// SetDisabled toggles an account lock. A disabled user cannot sign in or
// pass the approval gate.
func (h *AdminHandler) SetDisabled(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if _, err := h.userRepo.GetByID(r.Context(), userID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	var req disableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.userRepo.SetDisabled(r.Context(), userID, req.Disabled); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (h *AdminHandler) loadPending(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID := chi.URLParam(r, "userId")
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	if user.ApprovalStatus != model.ApprovalPending {
		writeError(w, http.StatusConflict, "user already decided")
		return nil, false
	}
	return user, true
}

// notify mails the decision without blocking the response; failures only log.
func (h *AdminHandler) notify(to string, approved bool, reason string) {
	if h.sender == nil || to == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.sender.SendApprovalDecision(ctx, to, approved, reason); err != nil {
			logger.Errorf("approval mail to %s: %v", to, err)
		}
	}()
}

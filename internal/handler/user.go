package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/repository"
)

type UserHandler struct {
	userRepo *repository.UserRepository
}

func NewUserHandler(userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// GetMe returns the caller's own account, approval status included.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateAccountRequest struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Phone     string `json:"phone"`
}

// UpdateMe changes username, avatar and phone.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}
	if len(username) > 64 {
		writeError(w, http.StatusBadRequest, "username too long")
		return
	}
	if existing, err := h.userRepo.GetByUsername(r.Context(), username); err == nil && existing.ID != userID {
		writeError(w, http.StatusConflict, "username taken")
		return
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to check username")
		return
	}

	if err := h.userRepo.UpdateAccount(r.Context(), userID, username, req.AvatarURL, strings.TrimSpace(req.Phone)); err != nil {
		logger.Errorf("update account user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload account")
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

// GetUser returns another user's public card.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userId")
	user, err := h.userRepo.GetByID(r.Context(), targetID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

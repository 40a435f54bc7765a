package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/repository"
)

type FavoriteHandler struct {
	favRepo      *repository.FavoriteRepository
	campaignRepo *repository.CampaignRepository
}

func NewFavoriteHandler(favRepo *repository.FavoriteRepository, campaignRepo *repository.CampaignRepository) *FavoriteHandler {
	return &FavoriteHandler{favRepo: favRepo, campaignRepo: campaignRepo}
}

// List returns the caller's favorites, newest first.
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	favs, err := h.favRepo.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

// Add favorites a campaign. Idempotent.
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	userID := middleware.GetUserID(r.Context())

	if _, err := h.campaignRepo.GetByID(r.Context(), campaignID); err != nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if err := h.favRepo.Add(r.Context(), userID, campaignID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add favorite")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// Remove unfavorites a campaign.
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	userID := middleware.GetUserID(r.Context())

	if err := h.favRepo.Remove(r.Context(), userID, campaignID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not in favorites")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove favorite")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

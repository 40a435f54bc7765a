package handler

import (
	"net/http"

	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/repository"
)

type HistoryHandler struct {
	historyRepo *repository.HistoryRepository
}

func NewHistoryHandler(historyRepo *repository.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{historyRepo: historyRepo}
}

// Recent returns the caller's recently viewed campaigns, newest first.
func (h *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit := queryInt(r, "limit", 20)
	views, err := h.historyRepo.Recent(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Clear wipes the caller's view history.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.historyRepo.Clear(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

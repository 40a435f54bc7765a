package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
)

type ProfileHandler struct {
	profileRepo *repository.ProfileRepository
	userRepo    *repository.UserRepository
}

func NewProfileHandler(profileRepo *repository.ProfileRepository, userRepo *repository.UserRepository) *ProfileHandler {
	return &ProfileHandler{profileRepo: profileRepo, userRepo: userRepo}
}

// GetMine returns the caller's role-specific profile plus its completion
// percentage. A user who never saved one gets an empty profile at 0%.
func (h *ProfileHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())

	switch role {
	case model.RoleInfluencer:
		p, err := h.profileRepo.GetInfluencer(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to get profile")
				return
			}
			p = &model.InfluencerProfile{UserID: userID, Categories: []string{}, Platforms: []model.PlatformAccount{}}
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": p, "completion_percent": p.CompletionPercent()})
	case model.RoleAdvertiser:
		p, err := h.profileRepo.GetAdvertiser(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to get profile")
				return
			}
			p = &model.AdvertiserProfile{UserID: userID}
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": p, "completion_percent": p.CompletionPercent()})
	default:
		writeError(w, http.StatusForbidden, "no profile for this role")
	}
}

type influencerProfileRequest struct {
	DisplayName    string                  `json:"displayName"`
	Bio            string                  `json:"bio"`
	Categories     []string                `json:"categories"`
	Platforms      []model.PlatformAccount `json:"platforms"`
	Location       string                  `json:"location"`
	AvatarURL      string                  `json:"avatarUrl"`
	EngagementRate float64                 `json:"engagementRate"`
	RatePerPost    int64                   `json:"ratePerPost"`
}

type advertiserProfileRequest struct {
	CompanyName string `json:"companyName"`
	Industry    string `json:"industry"`
	Website     string `json:"website"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
	ContactName string `json:"contactName"`
	Location    string `json:"location"`
}

// UpdateMine replaces the caller's profile for their role.
func (h *ProfileHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	now := time.Now().UTC()

	switch role {
	case model.RoleInfluencer:
		var req influencerProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RatePerPost < 0 || req.EngagementRate < 0 {
			writeError(w, http.StatusBadRequest, "rates must be non-negative")
			return
		}
		p := &model.InfluencerProfile{
			UserID:         userID,
			DisplayName:    strings.TrimSpace(req.DisplayName),
			Bio:            strings.TrimSpace(req.Bio),
			Categories:     req.Categories,
			Platforms:      req.Platforms,
			Location:       strings.TrimSpace(req.Location),
			AvatarURL:      req.AvatarURL,
			EngagementRate: req.EngagementRate,
			RatePerPost:    req.RatePerPost,
			UpdatedAt:      now,
		}
		if p.Categories == nil {
			p.Categories = []string{}
		}
		if p.Platforms == nil {
			p.Platforms = []model.PlatformAccount{}
		}
		if err := h.profileRepo.UpsertInfluencer(r.Context(), p); err != nil {
			logger.Errorf("upsert influencer profile user=%s: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "failed to save profile")
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"profile": p, "completion_percent": p.CompletionPercent()})
	case model.RoleAdvertiser:
		var req advertiserProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p := &model.AdvertiserProfile{
			UserID:      userID,
			CompanyName: strings.TrimSpace(req.CompanyName),
			Industry:    strings.TrimSpace(req.Industry),
			Website:     strings.TrimSpace(req.Website),
			Description: strings.TrimSpace(req.Description),
			LogoURL:     req.LogoURL,
			ContactName: strings.TrimSpace(req.ContactName),
			Location:    strings.TrimSpace(req.Location),
			UpdatedAt:   now,
		}
		if err := h.profileRepo.UpsertAdvertiser(r.Context(), p); err != nil {
			logger.Errorf("upsert advertiser profile user=%s: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "failed to save profile")
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"profile": p, "completion_percent": p.CompletionPercent()})
	default:
		writeError(w, http.StatusForbidden, "no profile for this role")
	}
}

// GetPublic returns another user's profile, shaped by that user's role.
func (h *ProfileHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userId")

	user, err := h.userRepo.GetByID(r.Context(), targetID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	pub := user.ToPublic()

	switch user.Role {
	case model.RoleInfluencer:
		p, err := h.profileRepo.GetInfluencer(r.Context(), targetID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to get profile")
				return
			}
			p = &model.InfluencerProfile{UserID: targetID, Categories: []string{}, Platforms: []model.PlatformAccount{}}
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": pub, "profile": p})
	case model.RoleAdvertiser:
		p, err := h.profileRepo.GetAdvertiser(r.Context(), targetID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to get profile")
				return
			}
			p = &model.AdvertiserProfile{UserID: targetID}
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": pub, "profile": p})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"user": pub})
	}
}

package handler

import (
	"encoding/json"
	"errors"
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

type CampaignHandler struct {
	campaignRepo *repository.CampaignRepository
	historyRepo  *repository.HistoryRepository
	favRepo      *repository.FavoriteRepository
	userRepo     *repository.UserRepository
	profileRepo  *repository.ProfileRepository
}

func NewCampaignHandler(
	campaignRepo *repository.CampaignRepository,
	historyRepo *repository.HistoryRepository,
	favRepo *repository.FavoriteRepository,
	userRepo *repository.UserRepository,
	profileRepo *repository.ProfileRepository,
) *CampaignHandler {
	return &CampaignHandler{
		campaignRepo: campaignRepo,
		historyRepo:  historyRepo,
		favRepo:      favRepo,
		userRepo:     userRepo,
		profileRepo:  profileRepo,
	}
}

// campaignRequest is the single place where the clients' camelCase field
// names are mapped onto the stored snake_case shape. Handlers never touch
// raw key names anywhere else.
type campaignRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Platforms    []string `json:"platforms"`
	BudgetMin    int64    `json:"budgetMin"`
	BudgetMax    int64    `json:"budgetMax"`
	Currency     string   `json:"currency"`
	FollowerMin  int64    `json:"followerMin"`
	Deadline     *string  `json:"deadline"`
	Requirements string   `json:"requirements"`
	ImageURL     string   `json:"imageUrl"`
}

func (req *campaignRequest) validate() string {
	if strings.TrimSpace(req.Title) == "" {
		return "title required"
	}
	if req.BudgetMin < 0 || req.BudgetMax < 0 {
		return "budget must be non-negative"
	}
	if req.BudgetMax > 0 && req.BudgetMin > req.BudgetMax {
		return "budgetMin must not exceed budgetMax"
	}
	if req.FollowerMin < 0 {
		return "followerMin must be non-negative"
	}
	return ""
}

func (req *campaignRequest) apply(c *model.Campaign) error {
	c.Title = strings.TrimSpace(req.Title)
	c.Description = strings.TrimSpace(req.Description)
	c.Category = strings.TrimSpace(req.Category)
	c.Platforms = req.Platforms
	if c.Platforms == nil {
		c.Platforms = []string{}
	}
	c.BudgetMin = req.BudgetMin
	c.BudgetMax = req.BudgetMax
	c.Currency = req.Currency
	if c.Currency == "" {
		c.Currency = "USD"
	}
	c.FollowerMin = req.FollowerMin
	c.Requirements = strings.TrimSpace(req.Requirements)
	c.ImageURL = req.ImageURL
	if req.Deadline != nil && *req.Deadline != "" {
		t, err := time.Parse(time.RFC3339, *req.Deadline)
		if err != nil {
			return err
		}
		c.Deadline = &t
	} else {
		c.Deadline = nil
	}
	return nil
}

// Create opens a new campaign in draft status. Advertisers only, and only
// once their profile is complete enough.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	percent, err := h.profileRepo.CompletionPercent(r.Context(), userID, model.RoleAdvertiser)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check profile")
		return
	}
	if percent < model.ProfileGateMinPercent {
		writeErrorDetails(w, http.StatusForbidden, "profile incomplete",
			"complete your company profile before publishing campaigns")
		return
	}

	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now().UTC()
	c := &model.Campaign{
		ID:           uuid.New().String(),
		AdvertiserID: userID,
		Status:       model.CampaignDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := req.apply(c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline format")
		return
	}

	if err := h.campaignRepo.Create(r.Context(), c); err != nil {
		logger.Errorf("create campaign user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	writeSuccess(w, http.StatusCreated, c)
}

// List returns browsable campaigns. Non-owners only ever see active ones.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	f := model.CampaignFilter{
		Category:  r.URL.Query().Get("category"),
		Platform:  r.URL.Query().Get("platform"),
		MinBudget: int64(queryInt(r, "min_budget", 0)),
		Search:    strings.TrimSpace(r.URL.Query().Get("search")),
		Status:    model.CampaignActive,
		Limit:     queryInt(r, "limit", 50),
		Offset:    queryInt(r, "offset", 0),
	}
	campaigns, err := h.campaignRepo.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

// ListMine returns the advertiser's own campaigns, drafts included.
func (h *CampaignHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	campaigns, err := h.campaignRepo.ListByAdvertiser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

// Get returns one campaign. A view by anyone but the owner bumps the view
// counter and lands in the viewer's history.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	userID := middleware.GetUserID(r.Context())

	c, err := h.campaignRepo.GetByID(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if c.Status != model.CampaignActive && c.AdvertiserID != userID {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}

	if c.AdvertiserID != userID {
		if err := h.campaignRepo.IncrementViewCount(r.Context(), campaignID); err != nil {
			logger.Errorf("increment view count campaign=%s: %v", campaignID, err)
		} else {
			c.ViewCount++
		}
		if err := h.historyRepo.Record(r.Context(), userID, campaignID); err != nil {
			logger.Errorf("record view user=%s campaign=%s: %v", userID, campaignID, err)
		}
	}

	if owner, err := h.userRepo.GetByID(r.Context(), c.AdvertiserID); err == nil {
		pub := owner.ToPublic()
		c.Advertiser = &pub
	}

	writeJSON(w, http.StatusOK, c)
}

// Update edits a campaign's content. Owner only.
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := req.apply(c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline format")
		return
	}
	c.UpdatedAt = time.Now().UTC()

	if err := h.campaignRepo.Update(r.Context(), c); err != nil {
		logger.Errorf("update campaign %s: %v", campaignID, err)
		writeError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	writeSuccess(w, http.StatusOK, c)
}

type campaignStatusRequest struct {
	Status model.CampaignStatus `json:"status"`
}

// UpdateStatus moves a campaign along draft -> active -> closed. Owner only.
func (h *CampaignHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req campaignStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.CampaignCanTransition(c.Status, req.Status) {
		writeErrorDetails(w, http.StatusConflict, "invalid status transition",
			string(c.Status)+" -> "+string(req.Status))
		return
	}
	if err := h.campaignRepo.UpdateStatus(r.Context(), campaignID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	c.Status = req.Status
	writeSuccess(w, http.StatusOK, c)
}

// Delete removes a campaign permanently. Owner only.
func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.campaignRepo.Delete(r.Context(), campaignID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete campaign")
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

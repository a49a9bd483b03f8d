package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/collably/backend/internal/models"
)

// campaignTransitions defines the legal status moves. Completed and
// rejected are terminal. Rejection is a moderation action reserved for
// admins.
var campaignTransitions = map[string][]string{
	models.CampaignStatusDraft:  {models.CampaignStatusActive, models.CampaignStatusRejected},
	models.CampaignStatusActive: {models.CampaignStatusPaused, models.CampaignStatusCompleted, models.CampaignStatusRejected},
	models.CampaignStatusPaused: {models.CampaignStatusActive, models.CampaignStatusCompleted, models.CampaignStatusRejected},
}

// CampaignService manages campaign records and their status machine. Price
// edits are refused once any application on the campaign has been
// approved, so already-escrowed orders are never affected.
type CampaignService struct {
	db        *sql.DB
	bus       *EventBus
	validator *ValidationHelper
}

func NewCampaignService(db *sql.DB, bus *EventBus) *CampaignService {
	return &CampaignService{
		db:        db,
		bus:       bus,
		validator: NewValidationHelper(),
	}
}

func campaignTransitionAllowed(from, to string) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *CampaignService) fetchCampaign(campaignID string) (*models.Campaign, error) {
	campaign := &models.Campaign{ID: campaignID}
	err := s.db.QueryRow(`
		SELECT founder_id, title, description, price, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1`, campaignID).Scan(
		&campaign.FounderID, &campaign.Title, &campaign.Description,
		&campaign.Price, &campaign.Status, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return campaign, nil
}

// UpdateCampaignPrice changes the campaign price unless any application
// has been approved, at which point the price is frozen forever.
func (s *CampaignService) UpdateCampaignPrice(campaignID, actorID, role string, price int64) (*models.Campaign, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	campaign := &models.Campaign{ID: campaignID}
	err = tx.QueryRow(`
		SELECT founder_id, title, description, price, status, created_at
		FROM campaigns
		WHERE id = $1
		FOR UPDATE`, campaignID).Scan(
		&campaign.FounderID, &campaign.Title, &campaign.Description,
		&campaign.Price, &campaign.Status, &campaign.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if role != models.RoleAdmin && actorID != campaign.FounderID {
		return nil, ErrForbidden
	}

	var approved bool
	err = tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM applications
			WHERE campaign_id = $1 AND status = 'approved'
		)`, campaignID).Scan(&approved)
	if err != nil {
		return nil, err
	}
	if approved && price != campaign.Price {
		return nil, ErrConflict
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE campaigns SET price = $1, updated_at = $2 WHERE id = $3`,
		price, now, campaignID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	campaign.Price = price
	campaign.UpdatedAt = now

	s.bus.Publish(Event{
		Type:       EventCampaignUpdated,
		EntityType: EntityTypeCampaign,
		EntityID:   campaign.ID,
		Snapshot:   campaign,
	})

	return campaign, nil
}

// ChangeStatus applies one legal campaign status transition.
func (s *CampaignService) ChangeStatus(campaignID, actorID, role, status string) (*models.Campaign, error) {
	campaign, err := s.fetchCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	if role != models.RoleAdmin && actorID != campaign.FounderID {
		return nil, ErrForbidden
	}
	if status == models.CampaignStatusRejected && role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if !campaignTransitionAllowed(campaign.Status, status) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE campaigns SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		status, now, campaignID, campaign.Status)
	if err != nil {
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrConflict
	}

	campaign.Status = status
	campaign.UpdatedAt = now

	s.bus.Publish(Event{
		Type:       EventCampaignUpdated,
		EntityType: EntityTypeCampaign,
		EntityID:   campaign.ID,
		Snapshot:   campaign,
	})

	log.Printf("[CAMPAIGN] Campaign %s moved to %s", campaignID, status)
	return campaign, nil
}

// CreateCampaign creates a draft campaign for a founder
// @Summary Create campaign
// @Description Create a new draft campaign owned by the authenticated founder
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateCampaignRequest true "Campaign"
// @Success 201 {object} models.Campaign
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /campaigns [post]
func (s *CampaignService) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if role != models.RoleFounder && role != models.RoleAdmin {
		SendErrorResponse(w, "Founder access required", http.StatusForbidden, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.CreateCampaignRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	campaign := &models.Campaign{
		ID:          uuid.NewString(),
		FounderID:   userID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Status:      models.CampaignStatusDraft,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO campaigns (id, founder_id, title, description, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		campaign.ID, campaign.FounderID, campaign.Title, campaign.Description,
		campaign.Price, campaign.Status, campaign.CreatedAt, campaign.UpdatedAt)
	if err != nil {
		log.Printf("[CAMPAIGN] Create failed for founder %s: %v", userID, err)
		SendErrorResponse(w, "Failed to create campaign", http.StatusInternalServerError, nil)
		return
	}

	s.bus.Publish(Event{
		Type:       EventCampaignUpdated,
		EntityType: EntityTypeCampaign,
		EntityID:   campaign.ID,
		Snapshot:   campaign,
	})

	log.Printf("[CAMPAIGN] Campaign %s created by founder %s", campaign.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

// GetCampaign returns one campaign
// @Summary Get campaign
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param campaignId path string true "Campaign ID"
// @Success 200 {object} models.Campaign
// @Failure 404 {object} ErrorResponse
// @Router /campaigns/{campaignId} [get]
func (s *CampaignService) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := s.fetchCampaign(chi.URLParam(r, "campaignId"))
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(campaign)
}

// ListCampaigns returns campaigns visible to the caller
// @Summary List campaigns
// @Description Active campaigns for talents; pass mine=true for a founder's own campaigns
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param mine query bool false "Only campaigns owned by the caller"
// @Success 200 {object} object{campaigns=[]models.Campaign,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /campaigns [get]
func (s *CampaignService) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	query := `
		SELECT id, founder_id, title, description, price, status, created_at, updated_at
		FROM campaigns
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT 100`
	args := []any{}

	if r.URL.Query().Get("mine") == "true" {
		query = `
			SELECT id, founder_id, title, description, price, status, created_at, updated_at
			FROM campaigns
			WHERE founder_id = $1
			ORDER BY created_at DESC
			LIMIT 100`
		args = append(args, userID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch campaigns", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.FounderID, &c.Title, &c.Description, &c.Price, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch campaigns", http.StatusInternalServerError, nil)
			return
		}
		campaigns = append(campaigns, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

// UpdateCampaignStatus applies a status transition
// @Summary Change campaign status
// @Description Apply a legal campaign status transition (owner or admin; rejection admin-only)
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param campaignId path string true "Campaign ID"
// @Param request body models.CampaignStatusRequest true "New status"
// @Success 200 {object} models.Campaign
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /campaigns/{campaignId}/status [put]
func (s *CampaignService) UpdateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.CampaignStatusRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	campaign, err := s.ChangeStatus(chi.URLParam(r, "campaignId"), userID, role, req.Status)
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(campaign)
}

// UpdateCampaignPriceHandler changes the campaign price
// @Summary Change campaign price
// @Description Update the price; refused once any application is approved
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param campaignId path string true "Campaign ID"
// @Param request body object{price=int64} true "New price in cents"
// @Success 200 {object} models.Campaign
// @Failure 409 {object} ErrorResponse
// @Router /campaigns/{campaignId}/price [put]
func (s *CampaignService) UpdateCampaignPriceHandler(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req struct {
		Price int64 `json:"price" validate:"required,gt=0"`
	}
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	campaign, err := s.UpdateCampaignPrice(chi.URLParam(r, "campaignId"), userID, role, req.Price)
	if err != nil {
		if err == ErrConflict {
			SendErrorResponse(w, "Price is frozen once an application is approved", http.StatusConflict, nil)
			return
		}
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(campaign)
}

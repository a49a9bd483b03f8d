package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/collably/backend/internal/metrics"
	"github.com/collably/backend/internal/models"
)

// WorkflowService is the single gatekeeper for status transitions on
// campaigns, applications and orders. Every compound operation runs as one
// SQL transaction, so an approved application can never exist without its
// order and escrow hold, or vice versa.
type WorkflowService struct {
	db        *sql.DB
	ledger    *LedgerService
	escrow    *EscrowService
	bus       *EventBus
	validator *ValidationHelper
}

func NewWorkflowService(db *sql.DB, ledger *LedgerService, escrow *EscrowService, bus *EventBus) *WorkflowService {
	return &WorkflowService{
		db:        db,
		ledger:    ledger,
		escrow:    escrow,
		bus:       bus,
		validator: NewValidationHelper(),
	}
}

// uniqueViolation reports whether err is a Postgres unique constraint
// rejection.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// SubmitApplication creates a pending application for a talent on an
// active campaign. At most one non-rejected application may exist per
// (campaign, talent) pair; the store's partial unique index backs up the
// pre-check.
func (s *WorkflowService) SubmitApplication(campaignID, talentID, message string) (*models.Application, error) {
	var campaignStatus string
	err := s.db.QueryRow(`SELECT status FROM campaigns WHERE id = $1`, campaignID).Scan(&campaignStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if campaignStatus != models.CampaignStatusActive {
		metrics.WorkflowErrors.WithLabelValues("campaign_not_active").Inc()
		return nil, ErrCampaignNotActive
	}

	var exists bool
	err = s.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM applications
			WHERE campaign_id = $1 AND talent_id = $2 AND status <> 'rejected'
		)`, campaignID, talentID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		metrics.WorkflowErrors.WithLabelValues("duplicate_application").Inc()
		return nil, ErrDuplicateApplication
	}

	application := &models.Application{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		TalentID:   talentID,
		Message:    message,
		Status:     models.ApplicationStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO applications (id, campaign_id, talent_id, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		application.ID, application.CampaignID, application.TalentID,
		application.Message, application.Status, application.CreatedAt, application.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			metrics.WorkflowErrors.WithLabelValues("duplicate_application").Inc()
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}

	metrics.ApplicationsSubmitted.Inc()
	s.bus.Publish(Event{
		Type:       EventApplicationSubmitted,
		EntityType: EntityTypeApplication,
		EntityID:   application.ID,
		Snapshot:   application,
	})

	log.Printf("[WORKFLOW] Application %s submitted by talent %s for campaign %s",
		application.ID, talentID, campaignID)
	return application, nil
}

// DecideApplication applies the founder's decision to a pending
// application. Approval atomically marks the application approved, creates
// the order with payout frozen at the campaign's current price, and places
// the escrow hold; insufficient founder balance rejects the whole unit.
func (s *WorkflowService) DecideApplication(applicationID, deciderID, role, decision string) (*models.Application, *models.Order, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	application := &models.Application{ID: applicationID}
	err = tx.QueryRow(`
		SELECT campaign_id, talent_id, message, status, created_at
		FROM applications
		WHERE id = $1
		FOR UPDATE`, applicationID).Scan(
		&application.CampaignID, &application.TalentID, &application.Message,
		&application.Status, &application.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	if application.Status != models.ApplicationStatusPending {
		metrics.WorkflowErrors.WithLabelValues("not_pending").Inc()
		return nil, nil, ErrNotPending
	}

	// Lock the campaign row too: the price read here is the payout frozen
	// into the order, so a concurrent price edit must wait.
	var founderID string
	var price int64
	err = tx.QueryRow(`
		SELECT founder_id, price FROM campaigns WHERE id = $1 FOR UPDATE`,
		application.CampaignID).Scan(&founderID, &price)
	if err != nil {
		return nil, nil, err
	}

	if role != models.RoleAdmin && deciderID != founderID {
		return nil, nil, ErrForbidden
	}

	now := time.Now()

	if decision == models.ApplicationDecisionReject {
		if _, err := tx.Exec(`
			UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
			models.ApplicationStatusRejected, now, applicationID); err != nil {
			return nil, nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, nil, err
		}

		application.Status = models.ApplicationStatusRejected
		application.UpdatedAt = now

		metrics.ApplicationsDecided.WithLabelValues("reject").Inc()
		s.bus.Publish(Event{
			Type:       EventApplicationRejected,
			EntityType: EntityTypeApplication,
			EntityID:   application.ID,
			Snapshot:   application,
		})

		log.Printf("[WORKFLOW] Application %s rejected", applicationID)
		return application, nil, nil
	}

	// Approve path. Balance check and hold are serialized per founder by
	// the user row lock, so two concurrent approvals cannot jointly
	// overdraw the account.
	if err := s.ledger.LockUser(tx, founderID); err != nil {
		return nil, nil, err
	}

	balance, err := s.ledger.BalanceTx(tx, founderID)
	if err != nil {
		return nil, nil, err
	}
	if balance < price {
		metrics.WorkflowErrors.WithLabelValues("insufficient_funds").Inc()
		return nil, nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(`
		UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
		models.ApplicationStatusApproved, now, applicationID); err != nil {
		return nil, nil, err
	}

	order := &models.Order{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		CampaignID:    application.CampaignID,
		TalentID:      application.TalentID,
		FounderID:     founderID,
		Payout:        price,
		Status:        models.OrderStatusPendingShipment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = tx.Exec(`
		INSERT INTO orders (id, application_id, campaign_id, talent_id, founder_id, payout, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.ApplicationID, order.CampaignID, order.TalentID,
		order.FounderID, order.Payout, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return nil, nil, ErrConflict
		}
		return nil, nil, err
	}

	if _, err := s.escrow.HoldTx(tx, founderID, order.ID, price); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, ErrLedgerWriteFailed
	}

	application.Status = models.ApplicationStatusApproved
	application.UpdatedAt = now

	metrics.ApplicationsDecided.WithLabelValues("approve").Inc()
	metrics.EscrowMovements.WithLabelValues("hold").Inc()
	metrics.EscrowAmount.WithLabelValues("hold").Add(float64(price))

	s.bus.Publish(Event{
		Type:       EventApplicationApproved,
		EntityType: EntityTypeApplication,
		EntityID:   application.ID,
		Snapshot:   application,
	})
	s.bus.Publish(Event{
		Type:       EventOrderCreated,
		EntityType: EntityTypeOrder,
		EntityID:   order.ID,
		Snapshot:   order,
	})

	log.Printf("[WORKFLOW] Application %s approved, order %s holds %d for founder %s",
		applicationID, order.ID, price, founderID)
	return application, order, nil
}

func (s *WorkflowService) fetchOrder(orderID string) (*models.Order, error) {
	order := &models.Order{ID: orderID}
	err := s.db.QueryRow(`
		SELECT application_id, campaign_id, talent_id, founder_id, payout, status,
		       delivery_info, review_submission, created_at, updated_at
		FROM orders
		WHERE id = $1`, orderID).Scan(
		&order.ApplicationID, &order.CampaignID, &order.TalentID, &order.FounderID,
		&order.Payout, &order.Status, &order.DeliveryInfo, &order.ReviewSubmission,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// ShipOrder moves pending_shipment to shipped, recording the delivery
// info the transition requires. Founder or admin only.
func (s *WorkflowService) ShipOrder(orderID, actorID, role string, info models.DeliveryInfo) (*models.Order, error) {
	order, err := s.fetchOrder(orderID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && actorID != order.FounderID {
		return nil, ErrForbidden
	}
	if order.Status != models.OrderStatusPendingShipment {
		metrics.WorkflowErrors.WithLabelValues("invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE orders SET status = $1, delivery_info = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		models.OrderStatusShipped, info, now, orderID, models.OrderStatusPendingShipment)
	if err != nil {
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		metrics.WorkflowErrors.WithLabelValues("conflict").Inc()
		return nil, ErrConflict
	}

	order.Status = models.OrderStatusShipped
	order.DeliveryInfo = &info
	order.UpdatedAt = now

	metrics.OrdersAdvanced.WithLabelValues(models.OrderEventShip).Inc()
	s.bus.Publish(Event{
		Type:       EventOrderShipped,
		EntityType: EntityTypeOrder,
		EntityID:   order.ID,
		Snapshot:   order,
	})

	log.Printf("[WORKFLOW] Order %s shipped", orderID)
	return order, nil
}

// DeliverOrder moves shipped to delivered. Any party to the order (or
// admin) may confirm delivery.
func (s *WorkflowService) DeliverOrder(orderID, actorID, role string) (*models.Order, error) {
	order, err := s.fetchOrder(orderID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && actorID != order.FounderID && actorID != order.TalentID {
		return nil, ErrForbidden
	}
	if order.Status != models.OrderStatusShipped {
		metrics.WorkflowErrors.WithLabelValues("invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		models.OrderStatusDelivered, now, orderID, models.OrderStatusShipped)
	if err != nil {
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		metrics.WorkflowErrors.WithLabelValues("conflict").Inc()
		return nil, ErrConflict
	}

	order.Status = models.OrderStatusDelivered
	order.UpdatedAt = now

	metrics.OrdersAdvanced.WithLabelValues(models.OrderEventDeliver).Inc()
	s.bus.Publish(Event{
		Type:       EventOrderDelivered,
		EntityType: EntityTypeOrder,
		EntityID:   order.ID,
		Snapshot:   order,
	})

	log.Printf("[WORKFLOW] Order %s delivered", orderID)
	return order, nil
}

// SubmitReview moves delivered to review_submitted with the talent's
// review content. Requires at least one media item; assigned talent only.
func (s *WorkflowService) SubmitReview(orderID, actorID, role string, submission models.ReviewSubmission) (*models.Order, error) {
	if len(submission.Media) == 0 {
		metrics.WorkflowErrors.WithLabelValues("invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	order, err := s.fetchOrder(orderID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && actorID != order.TalentID {
		return nil, ErrForbidden
	}
	if order.Status != models.OrderStatusDelivered {
		metrics.WorkflowErrors.WithLabelValues("invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	submission.SubmittedAt = now
	result, err := s.db.Exec(`
		UPDATE orders SET status = $1, review_submission = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		models.OrderStatusReviewSubmitted, submission, now, orderID, models.OrderStatusDelivered)
	if err != nil {
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		metrics.WorkflowErrors.WithLabelValues("conflict").Inc()
		return nil, ErrConflict
	}

	order.Status = models.OrderStatusReviewSubmitted
	order.ReviewSubmission = &submission
	order.UpdatedAt = now

	metrics.OrdersAdvanced.WithLabelValues(models.OrderEventSubmitReview).Inc()
	s.bus.Publish(Event{
		Type:       EventReviewSubmitted,
		EntityType: EntityTypeOrder,
		EntityID:   order.ID,
		Snapshot:   order,
	})

	log.Printf("[WORKFLOW] Order %s review submitted with %d media items", orderID, len(submission.Media))
	return order, nil
}

// DecideSubmission resolves a submitted review. Approval completes the
// order and releases the escrowed payout to the talent in the same SQL
// transaction; rejection returns the order to delivered for resubmission
// with no fund movement.
func (s *WorkflowService) DecideSubmission(orderID, actorID, role, decision string) (*models.Order, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order := &models.Order{ID: orderID}
	err = tx.QueryRow(`
		SELECT application_id, campaign_id, talent_id, founder_id, payout, status,
		       delivery_info, review_submission, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE`, orderID).Scan(
		&order.ApplicationID, &order.CampaignID, &order.TalentID, &order.FounderID,
		&order.Payout, &order.Status, &order.DeliveryInfo, &order.ReviewSubmission,
		&order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if role != models.RoleAdmin && actorID != order.FounderID {
		return nil, ErrForbidden
	}
	if order.Status != models.OrderStatusReviewSubmitted {
		if order.Status == models.OrderStatusCompleted && decision == models.ApplicationDecisionApprove {
			metrics.WorkflowErrors.WithLabelValues("already_released").Inc()
			return nil, ErrAlreadyReleased
		}
		metrics.WorkflowErrors.WithLabelValues("invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	now := time.Now()

	if decision == models.ApplicationDecisionReject {
		if _, err := tx.Exec(`
			UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
			models.OrderStatusDelivered, now, orderID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}

		order.Status = models.OrderStatusDelivered
		order.UpdatedAt = now

		metrics.OrdersAdvanced.WithLabelValues(models.OrderEventRejectSubmission).Inc()
		s.bus.Publish(Event{
			Type:       EventSubmissionRejected,
			EntityType: EntityTypeOrder,
			EntityID:   order.ID,
			Snapshot:   order,
		})

		log.Printf("[WORKFLOW] Order %s submission rejected, returned to delivered", orderID)
		return order, nil
	}

	if _, err := tx.Exec(`
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		models.OrderStatusCompleted, now, orderID); err != nil {
		return nil, err
	}

	_, earning, err := s.escrow.ReleaseTx(tx, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, ErrLedgerWriteFailed
	}

	order.Status = models.OrderStatusCompleted
	order.UpdatedAt = now

	metrics.OrdersAdvanced.WithLabelValues(models.OrderEventApproveSubmission).Inc()
	metrics.EscrowMovements.WithLabelValues("release").Inc()
	metrics.EscrowAmount.WithLabelValues("release").Add(float64(order.Payout))

	s.bus.Publish(Event{
		Type:       EventOrderCompleted,
		EntityType: EntityTypeOrder,
		EntityID:   order.ID,
		Snapshot:   order,
	})
	s.bus.Publish(Event{
		Type:       EventWalletUpdated,
		EntityType: EntityTypeEarning,
		EntityID:   earning.ID,
		Snapshot:   earning,
	})

	log.Printf("[WORKFLOW] Order %s completed, released %d to talent %s",
		orderID, order.Payout, order.TalentID)
	return order, nil
}

// CancelOrder cancels a non-terminal order and refunds the escrow hold to
// the founder. Admin only; completed orders can never be cancelled, so
// release and refund stay mutually exclusive.
func (s *WorkflowService) CancelOrder(orderID, role string) (*models.Order, error) {
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order := &models.Order{ID: orderID}
	err = tx.QueryRow(`
		SELECT application_id, campaign_id, talent_id, founder_id, payout, status, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE`, orderID).Scan(
		&order.ApplicationID, &order.CampaignID, &order.TalentID, &order.FounderID,
		&order.Payout, &order.Status, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if models.OrderStatusTerminal(order.Status) {
		metrics.WorkflowErrors.WithLabelValues("invalid_transition").Inc()
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		models.OrderStatusCancelled, now, orderID); err != nil {
		return nil, err
	}

	if _, err := s.escrow.RefundTx(tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, ErrLedgerWriteFailed
	}

	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = now

	metrics.EscrowMovements.WithLabelValues("refund").Inc()
	metrics.EscrowAmount.WithLabelValues("refund").Add(float64(order.Payout))

	s.bus.Publish(Event{
		Type:       EventOrderCancelled,
		EntityType: EntityTypeOrder,
		EntityID:   order.ID,
		Snapshot:   order,
	})

	log.Printf("[WORKFLOW] Order %s cancelled, refunded %d to founder %s",
		orderID, order.Payout, order.FounderID)
	return order, nil
}

// workflowErrorStatus maps a workflow error kind to its HTTP status.
func workflowErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrDuplicateApplication),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyReleased):
		return http.StatusConflict
	case errors.Is(err, ErrCampaignNotActive),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *WorkflowService) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := s.validator.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func identity(r *http.Request) (userID, role string, ok bool) {
	userID, _ = r.Context().Value("userID").(string)
	role, _ = r.Context().Value("role").(string)
	return userID, role, userID != ""
}

// SubmitApplicationHandler handles a talent applying to a campaign
// @Summary Apply to a campaign
// @Description Submit a pending application for the authenticated talent
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param campaignId path string true "Campaign ID"
// @Param request body models.SubmitApplicationRequest true "Application"
// @Success 201 {object} models.Application
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /campaigns/{campaignId}/applications [post]
func (s *WorkflowService) SubmitApplicationHandler(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if role != models.RoleTalent {
		SendErrorResponse(w, "Talent access required", http.StatusForbidden, nil)
		return
	}

	var req models.SubmitApplicationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	application, err := s.SubmitApplication(chi.URLParam(r, "campaignId"), userID, req.Message)
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(application)
}

// DecideApplicationHandler handles the founder's decision on an application
// @Summary Decide an application
// @Description Approve (creating the order and escrow hold) or reject a pending application
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param applicationId path string true "Application ID"
// @Param request body models.DecideApplicationRequest true "Decision"
// @Success 200 {object} object{application=models.Application,order=models.Order}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /applications/{applicationId}/decision [put]
func (s *WorkflowService) DecideApplicationHandler(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.DecideApplicationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	application, order, err := s.DecideApplication(chi.URLParam(r, "applicationId"), userID, role, req.Decision)
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"application": application,
		"order":       order,
	})
}

// ShipOrderHandler records shipment of an order
// @Summary Ship an order
// @Description Move a pending_shipment order to shipped with delivery info
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body models.ShipOrderRequest true "Delivery info"
// @Success 200 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Router /orders/{orderId}/ship [put]
func (s *WorkflowService) ShipOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.ShipOrderRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	order, err := s.ShipOrder(chi.URLParam(r, "orderId"), userID, role, models.DeliveryInfo{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
	})
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// DeliverOrderHandler confirms delivery of an order
// @Summary Confirm order delivery
// @Description Move a shipped order to delivered
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Router /orders/{orderId}/deliver [put]
func (s *WorkflowService) DeliverOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	order, err := s.DeliverOrder(chi.URLParam(r, "orderId"), userID, role)
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// SubmitReviewHandler records the talent's review content
// @Summary Submit review content
// @Description Move a delivered order to review_submitted with at least one media item
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body models.SubmitReviewRequest true "Review content"
// @Success 200 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Router /orders/{orderId}/review [post]
func (s *WorkflowService) SubmitReviewHandler(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.SubmitReviewRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	order, err := s.SubmitReview(chi.URLParam(r, "orderId"), userID, role, models.ReviewSubmission{
		Media:   req.Media,
		Caption: req.Caption,
	})
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// DecideSubmissionHandler resolves a submitted review
// @Summary Decide submitted review
// @Description Approve (completing the order and releasing escrow) or reject the submission
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body models.SubmissionDecisionRequest true "Decision"
// @Success 200 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{orderId}/review/decision [put]
func (s *WorkflowService) DecideSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.SubmissionDecisionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	order, err := s.DecideSubmission(chi.URLParam(r, "orderId"), userID, role, req.Decision)
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// CancelOrderHandler cancels an order and refunds the escrow hold
// @Summary Cancel an order
// @Description Cancel a non-terminal order and refund the hold to the founder (admin only)
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 403 {object} ErrorResponse
// @Failure 400 {object} ErrorResponse
// @Router /orders/{orderId}/cancel [put]
func (s *WorkflowService) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	_, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	order, err := s.CancelOrder(chi.URLParam(r, "orderId"), role)
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// GetOrder returns one order visible to the caller
// @Summary Get order
// @Description Fetch an order; restricted to its founder, talent, or admin
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 404 {object} ErrorResponse
// @Router /orders/{orderId} [get]
func (s *WorkflowService) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	order, err := s.fetchOrder(chi.URLParam(r, "orderId"))
	if err != nil {
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}
	if role != models.RoleAdmin && userID != order.FounderID && userID != order.TalentID {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// ListOrders returns the orders the caller is party to
// @Summary List orders
// @Description Get orders where the authenticated user is founder or talent
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{orders=[]models.Order,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /orders [get]
func (s *WorkflowService) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, application_id, campaign_id, talent_id, founder_id, payout, status,
		       delivery_info, review_submission, created_at, updated_at
		FROM orders
		WHERE founder_id = $1 OR talent_id = $1
		ORDER BY created_at DESC
		LIMIT 100`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.ApplicationID, &o.CampaignID, &o.TalentID, &o.FounderID,
			&o.Payout, &o.Status, &o.DeliveryInfo, &o.ReviewSubmission, &o.CreatedAt, &o.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch orders", http.StatusInternalServerError, nil)
			return
		}
		orders = append(orders, o)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

// ListCampaignApplications returns a campaign's applications to its founder
// @Summary List campaign applications
// @Description Get all applications for a campaign the caller owns
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param campaignId path string true "Campaign ID"
// @Success 200 {object} object{applications=[]models.Application,count=int}
// @Failure 403 {object} ErrorResponse
// @Router /campaigns/{campaignId}/applications [get]
func (s *WorkflowService) ListCampaignApplications(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	campaignID := chi.URLParam(r, "campaignId")

	var founderID string
	err := s.db.QueryRow(`SELECT founder_id FROM campaigns WHERE id = $1`, campaignID).Scan(&founderID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, "Failed to fetch campaign", http.StatusInternalServerError, nil)
		return
	}
	if role != models.RoleAdmin && userID != founderID {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, campaign_id, talent_id, message, status, created_at, updated_at
		FROM applications
		WHERE campaign_id = $1
		ORDER BY created_at DESC`, campaignID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch applications", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	applications := []models.Application{}
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.TalentID, &a.Message, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch applications", http.StatusInternalServerError, nil)
			return
		}
		applications = append(applications, a)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"applications": applications,
		"count":        len(applications),
	})
}

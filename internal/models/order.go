package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Order statuses
const (
	OrderStatusPendingShipment = "pending_shipment"
	OrderStatusShipped         = "shipped"
	OrderStatusDelivered       = "delivered"
	OrderStatusReviewSubmitted = "review_submitted"
	OrderStatusCompleted       = "completed"
	OrderStatusCancelled       = "cancelled"
)

// Order lifecycle events
const (
	OrderEventShip             = "ship"
	OrderEventDeliver          = "deliver"
	OrderEventSubmitReview     = "submit_review"
	OrderEventApproveSubmission = "approve_submission"
	OrderEventRejectSubmission  = "reject_submission"
)

// DeliveryInfo is the founder-provided shipping record for an order
type DeliveryInfo struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	Notes          string `json:"notes,omitempty"`
}

// ReviewSubmission is the talent-provided review content for an order.
// Media holds addressable attachment URLs; at least one is required to
// submit a review.
type ReviewSubmission struct {
	Media       []string  `json:"media"`
	Caption     string    `json:"caption,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Order is the authoritative escrow record, created at the moment an
// application is approved. Payout is copied from Campaign.Price at
// approval time and never changes afterwards.
type Order struct {
	ID               string            `json:"id" db:"id"`
	ApplicationID    string            `json:"application_id" db:"application_id"`
	CampaignID       string            `json:"campaign_id" db:"campaign_id"`
	TalentID         string            `json:"talent_id" db:"talent_id"`
	FounderID        string            `json:"founder_id" db:"founder_id"`
	Payout           int64             `json:"payout" db:"payout"` // in cents, frozen at creation
	Status           string            `json:"status" db:"status"`
	DeliveryInfo     *DeliveryInfo     `json:"delivery_info,omitempty" db:"delivery_info"`
	ReviewSubmission *ReviewSubmission `json:"review_submission,omitempty" db:"review_submission"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// ShipOrderRequest carries the delivery info required to ship an order
type ShipOrderRequest struct {
	Carrier        string `json:"carrier" validate:"required,max=100"`
	TrackingNumber string `json:"trackingNumber" validate:"required,max=100"`
	Notes          string `json:"notes" validate:"max=500"`
}

// SubmitReviewRequest carries the review content for an order
type SubmitReviewRequest struct {
	Media   []string `json:"media" validate:"required,min=1,dive,url"`
	Caption string   `json:"caption" validate:"max=2000"`
}

// SubmissionDecisionRequest is the founder's verdict on submitted review content
type SubmissionDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string `json:"reason" validate:"max=500"`
}

// OrderStatusTerminal reports whether an order can advance no further.
func OrderStatusTerminal(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}

// Value implements driver.Valuer for JSONB storage of DeliveryInfo
func (d DeliveryInfo) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for DeliveryInfo
func (d *DeliveryInfo) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, d)
}

// Value implements driver.Valuer for JSONB storage of ReviewSubmission
func (r ReviewSubmission) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for ReviewSubmission
func (r *ReviewSubmission) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, r)
}

package models

import (
	"time"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusRejected  = "rejected"
)

// Campaign represents a founder-owned sponsorship campaign
type Campaign struct {
	ID          string    `json:"id" db:"id"`
	FounderID   string    `json:"founder_id" db:"founder_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Price       int64     `json:"price" db:"price"` // escrow amount per approved talent, in cents
	Status      string    `json:"status" db:"status"`
	Metadata    Metadata  `json:"metadata" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CreateCampaignRequest represents a new campaign payload
type CreateCampaignRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Price       int64  `json:"price" validate:"required,gt=0"`
}

// CampaignStatusRequest represents a campaign status change payload
type CampaignStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active paused completed rejected"`
}

// CampaignStatusTerminal reports whether a campaign status accepts no
// further transitions or applications.
func CampaignStatusTerminal(status string) bool {
	return status == CampaignStatusCompleted || status == CampaignStatusRejected
}

package models

import (
	"time"
)

// Application statuses
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusApproved = "approved"
	ApplicationStatusRejected = "rejected"
)

// Application decisions
const (
	ApplicationDecisionApprove = "approve"
	ApplicationDecisionReject  = "reject"
)

// Application represents a talent's request to work a campaign. At most
// one non-rejected application exists per (campaign, talent) pair; a
// pending application is decided exactly once.
type Application struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	TalentID   string    `json:"talent_id" db:"talent_id"`
	Message    string    `json:"message,omitempty" db:"message"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// SubmitApplicationRequest represents a talent applying to a campaign
type SubmitApplicationRequest struct {
	Message string `json:"message" validate:"max=1000"`
}

// DecideApplicationRequest represents a founder's decision on an application
type DecideApplicationRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

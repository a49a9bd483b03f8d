package models

import "time"

// User roles
const (
	RoleAdmin   = "admin"
	RoleFounder = "founder"
	RoleTalent  = "talent"
)

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email" example:"user@example.com"`
	DisplayName string     `json:"displayName" example:"Jane Doe"`
	Role        string     `json:"role" example:"founder"` // admin, founder or talent
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

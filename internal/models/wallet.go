package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Transaction types
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)

// Transaction is an immutable wallet ledger entry. Rows are appended and
// never updated or deleted; a user's balance is the signed sum of their
// transactions.
type Transaction struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Type           string    `json:"type" db:"type"` // credit or debit
	Amount         int64     `json:"amount" db:"amount"` // in cents, always > 0
	Description    string    `json:"description" db:"description"`
	RelatedOrderID *string   `json:"related_order_id,omitempty" db:"related_order_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Earning statuses
const (
	EarningStatusPending   = "pending"
	EarningStatusPaid      = "paid"
	EarningStatusCancelled = "cancelled"
)

// Earning is a talent-facing settlement record, distinct from the raw
// ledger. Exactly one is created per completed order.
type Earning struct {
	ID       string     `json:"id" db:"id"`
	TalentID string     `json:"talent_id" db:"talent_id"`
	OrderID  string     `json:"order_id" db:"order_id"`
	Amount   int64      `json:"amount" db:"amount"` // in cents
	Status   string     `json:"status" db:"status"`
	EarnedAt time.Time  `json:"earned_at" db:"earned_at"`
	PaidAt   *time.Time `json:"paid_at,omitempty" db:"paid_at"`
}

// TopUpRequest is an admin wallet credit payload
type TopUpRequest struct {
	UserID      string `json:"userId" validate:"required,uuid4"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=200"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}

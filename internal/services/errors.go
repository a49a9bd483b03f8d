package services

import "errors"

// Workflow error kinds. Handlers translate these to HTTP responses; the
// services themselves only ever return the stable kind.
var (
	ErrDuplicateApplication = errors.New("duplicate application")
	ErrCampaignNotActive    = errors.New("campaign not active")
	ErrNotPending           = errors.New("application not pending")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrConflict             = errors.New("conflicting concurrent update")
	ErrLedgerWriteFailed    = errors.New("ledger write failed")
	ErrAlreadyReleased      = errors.New("escrow already released")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrSubscriptionLost     = errors.New("sync subscription lost")
)

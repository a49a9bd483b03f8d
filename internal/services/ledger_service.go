package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/collably/backend/internal/models"
)

// LedgerService owns the append-only wallet transaction log. Balances are
// always recomputed from the log, never cached, so they cannot drift.
type LedgerService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// Balance returns the spendable balance for a user: sum of credits minus
// sum of debits over their transactions.
func (s *LedgerService) Balance(userID string) (int64, error) {
	return balanceQuery(s.db.QueryRow, userID)
}

// BalanceTx computes the balance inside an open transaction. Callers that
// need check-then-debit semantics must lock the user row first so two
// concurrent holds cannot both pass the check.
func (s *LedgerService) BalanceTx(tx *sql.Tx, userID string) (int64, error) {
	return balanceQuery(tx.QueryRow, userID)
}

func balanceQuery(queryRow func(string, ...any) *sql.Row, userID string) (int64, error) {
	var balance int64
	err := queryRow(`
		SELECT COALESCE(SUM(CASE WHEN type = 'credit' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AppendTx appends one immutable ledger entry inside the caller's
// transaction. The row is never updated or deleted afterwards.
func (s *LedgerService) AppendTx(tx *sql.Tx, userID, txType string, amount int64, description string, relatedOrderID *string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrLedgerWriteFailed
	}
	if txType != models.TransactionTypeCredit && txType != models.TransactionTypeDebit {
		return nil, ErrLedgerWriteFailed
	}

	entry := &models.Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           txType,
		Amount:         amount,
		Description:    description,
		RelatedOrderID: relatedOrderID,
		CreatedAt:      time.Now(),
	}

	_, err := tx.Exec(`
		INSERT INTO transactions (id, user_id, type, amount, description, related_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.Type, entry.Amount, entry.Description, entry.RelatedOrderID, entry.CreatedAt)
	if err != nil {
		log.Printf("[LEDGER] Append failed for user %s: %v", userID, err)
		return nil, ErrLedgerWriteFailed
	}

	return entry, nil
}

// LockUser takes a row lock on the user so balance check plus hold form one
// serialized unit per account.
func (s *LedgerService) LockUser(tx *sql.Tx, userID string) error {
	var id string
	err := tx.QueryRow(`SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *LedgerService) fetchTransactions(userID string, limit int) ([]models.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, type, amount, description, related_order_id, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &t.RelatedOrderID, &t.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

// GetWalletBalance returns the caller's current wallet balance
// @Summary Get wallet balance
// @Description Recompute the authenticated user's balance from the transaction log
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balance=int64}
// @Failure 401 {object} ErrorResponse
// @Router /wallet/balance [get]
func (s *LedgerService) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := s.Balance(userID)
	if err != nil {
		log.Printf("[LEDGER] Balance query failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"balance": balance})
}

// ListWalletTransactions returns the caller's transaction history
// @Summary List wallet transactions
// @Description Get the authenticated user's ledger entries, most recent first
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries to return (default 50, max 200)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /wallet/transactions [get]
func (s *LedgerService) ListWalletTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	transactions, err := s.fetchTransactions(userID, limit)
	if err != nil {
		log.Printf("[LEDGER] Transaction fetch failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// TopUpWallet credits a user's wallet (admin only)
// @Summary Top up a wallet
// @Description Append a credit transaction to a user's ledger
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.TopUpRequest true "Top-up request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /wallet/topup [post]
func (s *LedgerService) TopUpWallet(w http.ResponseWriter, r *http.Request) {
	role, _ := r.Context().Value("role").(string)
	if role != models.RoleAdmin {
		SendErrorResponse(w, "Admin access required", http.StatusForbidden, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.TopUpRequest
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

	description := req.Description
	if description == "" {
		description = "Wallet top-up"
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to process top-up", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	entry, err := s.AppendTx(tx, req.UserID, models.TransactionTypeCredit, req.Amount, description, nil)
	if err != nil {
		SendErrorResponse(w, "Failed to process top-up", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LEDGER] Top-up commit failed for user %s: %v", req.UserID, err)
		SendErrorResponse(w, "Failed to process top-up", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LEDGER] Top-up of %d for user %s", req.Amount, req.UserID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

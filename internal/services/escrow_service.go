package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/collably/backend/internal/audit"
	"github.com/collably/backend/internal/models"
)

// EscrowService is the only writer of Transaction and Earning records tied
// to orders. Hold, release and refund each append ledger entries inside the
// caller's SQL transaction, so a failed write rolls back with everything
// else in the compound operation.
type EscrowService struct {
	db     *sql.DB
	ledger *LedgerService
	audit  *audit.Logger
}

func NewEscrowService(db *sql.DB, ledger *LedgerService) *EscrowService {
	return &EscrowService{
		db:     db,
		ledger: ledger,
		audit:  audit.NewLogger(),
	}
}

// HoldTx debits the founder's wallet for the order payout. The caller has
// already verified sufficient balance under the same user row lock.
func (s *EscrowService) HoldTx(tx *sql.Tx, founderID, orderID string, amount int64) (*models.Transaction, error) {
	description := fmt.Sprintf("Escrow hold for order %s", orderID)
	entry, err := s.ledger.AppendTx(tx, founderID, models.TransactionTypeDebit, amount, description, &orderID)
	if err != nil {
		s.audit.LogError(orderID, founderID, err)
		return nil, err
	}

	s.audit.LogHold(orderID, founderID, amount)
	return entry, nil
}

// ReleaseTx credits the held payout to the talent and creates the pending
// earning. At most one release ever succeeds per order: a second call finds
// the existing credit and fails with ErrAlreadyReleased.
func (s *EscrowService) ReleaseTx(tx *sql.Tx, order *models.Order) (*models.Transaction, *models.Earning, error) {
	released, err := s.orderCreditExistsTx(tx, order.ID)
	if err != nil {
		return nil, nil, ErrLedgerWriteFailed
	}
	if released {
		return nil, nil, ErrAlreadyReleased
	}

	description := fmt.Sprintf("Payout for order %s", order.ID)
	entry, err := s.ledger.AppendTx(tx, order.TalentID, models.TransactionTypeCredit, order.Payout, description, &order.ID)
	if err != nil {
		s.audit.LogError(order.ID, order.TalentID, err)
		return nil, nil, err
	}

	earning := &models.Earning{
		ID:       uuid.NewString(),
		TalentID: order.TalentID,
		OrderID:  order.ID,
		Amount:   order.Payout,
		Status:   models.EarningStatusPending,
		EarnedAt: time.Now(),
	}

	_, err = tx.Exec(`
		INSERT INTO earnings (id, talent_id, order_id, amount, status, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		earning.ID, earning.TalentID, earning.OrderID, earning.Amount, earning.Status, earning.EarnedAt)
	if err != nil {
		log.Printf("[ESCROW] Earning insert failed for order %s: %v", order.ID, err)
		s.audit.LogError(order.ID, order.TalentID, err)
		return nil, nil, ErrLedgerWriteFailed
	}

	s.audit.LogRelease(order.ID, order.TalentID, order.Payout)
	return entry, earning, nil
}

// RefundTx credits the held amount back to the founder. Mutually exclusive
// with release: any existing credit for the order blocks the refund.
func (s *EscrowService) RefundTx(tx *sql.Tx, order *models.Order) (*models.Transaction, error) {
	released, err := s.orderCreditExistsTx(tx, order.ID)
	if err != nil {
		return nil, ErrLedgerWriteFailed
	}
	if released {
		return nil, ErrAlreadyReleased
	}

	description := fmt.Sprintf("Escrow refund for order %s", order.ID)
	entry, err := s.ledger.AppendTx(tx, order.FounderID, models.TransactionTypeCredit, order.Payout, description, &order.ID)
	if err != nil {
		s.audit.LogError(order.ID, order.FounderID, err)
		return nil, err
	}

	s.audit.LogRefund(order.ID, order.FounderID, order.Payout)
	return entry, nil
}

// orderCreditExistsTx reports whether funds have already left escrow for
// the order, by release or by refund.
func (s *EscrowService) orderCreditExistsTx(tx *sql.Tx, orderID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE related_order_id = $1 AND type = 'credit'
		)`, orderID).Scan(&exists)
	return exists, err
}

func (s *EscrowService) fetchEarnings(talentID string, limit int) ([]models.Earning, error) {
	rows, err := s.db.Query(`
		SELECT id, talent_id, order_id, amount, status, earned_at, paid_at
		FROM earnings
		WHERE talent_id = $1
		ORDER BY earned_at DESC
		LIMIT $2`, talentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	earnings := []models.Earning{}
	for rows.Next() {
		var e models.Earning
		if err := rows.Scan(&e.ID, &e.TalentID, &e.OrderID, &e.Amount, &e.Status, &e.EarnedAt, &e.PaidAt); err != nil {
			return nil, err
		}
		earnings = append(earnings, e)
	}

	return earnings, rows.Err()
}

// ListEarnings returns the caller's settlement records
// @Summary List earnings
// @Description Get the authenticated talent's earnings, most recent first
// @Tags earnings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{earnings=[]models.Earning,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /earnings [get]
func (s *EscrowService) ListEarnings(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	earnings, err := s.fetchEarnings(userID, 100)
	if err != nil {
		log.Printf("[ESCROW] Earnings fetch failed for talent %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch earnings", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"earnings": earnings,
		"count":    len(earnings),
	})
}

// MarkEarningPaid moves a pending earning to paid (admin only)
// @Summary Mark earning as paid
// @Description Record settlement of a pending earning
// @Tags earnings
// @Produce json
// @Security BearerAuth
// @Param earningId path string true "Earning ID"
// @Success 200 {object} object{success=bool}
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /earnings/{earningId}/pay [put]
func (s *EscrowService) MarkEarningPaid(w http.ResponseWriter, r *http.Request) {
	role, _ := r.Context().Value("role").(string)
	if role != models.RoleAdmin {
		SendErrorResponse(w, "Admin access required", http.StatusForbidden, nil)
		return
	}

	earningID := chi.URLParam(r, "earningId")

	result, err := s.db.Exec(`
		UPDATE earnings
		SET status = $1, paid_at = $2
		WHERE id = $3 AND status = $4`,
		models.EarningStatusPaid, time.Now(), earningID, models.EarningStatusPending)
	if err != nil {
		log.Printf("[ESCROW] Earning payout update failed for %s: %v", earningID, err)
		SendErrorResponse(w, "Failed to update earning", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendErrorResponse(w, "Earning not pending", http.StatusConflict, nil)
		return
	}

	log.Printf("[ESCROW] Earning %s marked paid", earningID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

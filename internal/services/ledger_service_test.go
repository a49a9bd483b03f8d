package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestLedgerService_Balance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("credits minus debits", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN type = 'credit' THEN amount ELSE -amount END\\), 0\\)").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(15000))

		balance, err := service.Balance("user-1")
		assert.NoError(t, err)
		assert.Equal(t, int64(15000), balance)
	})

	t.Run("empty ledger is zero", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN type = 'credit' THEN amount ELSE -amount END\\), 0\\)").
			WithArgs("user-2").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

		balance, err := service.Balance("user-2")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})
}

func TestLedgerService_AppendTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("appends a credit entry", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "user-1", "credit", int64(5000), "Wallet top-up", nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		tx, err := db.Begin()
		assert.NoError(t, err)

		entry, err := service.AppendTx(tx, "user-1", "credit", 5000, "Wallet top-up", nil)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", entry.UserID)
		assert.Equal(t, int64(5000), entry.Amount)
		assert.NotEmpty(t, entry.ID)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		mock.ExpectBegin()
		tx, err := db.Begin()
		assert.NoError(t, err)

		_, err = service.AppendTx(tx, "user-1", "credit", 0, "bad", nil)
		assert.ErrorIs(t, err, ErrLedgerWriteFailed)

		_, err = service.AppendTx(tx, "user-1", "credit", -100, "bad", nil)
		assert.ErrorIs(t, err, ErrLedgerWriteFailed)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		mock.ExpectBegin()
		tx, err := db.Begin()
		assert.NoError(t, err)

		_, err = service.AppendTx(tx, "user-1", "transfer", 100, "bad", nil)
		assert.ErrorIs(t, err, ErrLedgerWriteFailed)
	})
}

func TestLedgerService_LockUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM users WHERE id = \\$1 FOR UPDATE").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.LockUser(tx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLedgerService_GetWalletBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("returns balance for authenticated user", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN type = 'credit' THEN amount ELSE -amount END\\), 0\\)").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2500))

		req := httptest.NewRequest("GET", "/wallet/balance", nil)
		req = req.WithContext(context.WithValue(req.Context(), "userID", "user-1"))
		w := httptest.NewRecorder()

		service.GetWalletBalance(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, float64(2500), response["balance"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/wallet/balance", nil)
		w := httptest.NewRecorder()

		service.GetWalletBalance(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLedgerService_TopUpWallet(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	adminCtx := func(r *http.Request) *http.Request {
		ctx := context.WithValue(r.Context(), "userID", "admin-1")
		ctx = context.WithValue(ctx, "role", "admin")
		return r.WithContext(ctx)
	}

	t.Run("admin credits a wallet", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]interface{}{
			"userId": "c3b7f1d2-54a8-4c6e-9f21-8a4d6e0b3c19",
			"amount": 10000,
		})
		req := adminCtx(httptest.NewRequest("POST", "/wallet/topup", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.TopUpWallet(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"userId": "c3b7f1d2-54a8-4c6e-9f21-8a4d6e0b3c19",
			"amount": 10000,
		})
		req := httptest.NewRequest("POST", "/wallet/topup", bytes.NewBuffer(body))
		req = req.WithContext(context.WithValue(req.Context(), "role", "founder"))
		w := httptest.NewRecorder()

		service.TopUpWallet(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid amount", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"userId": "c3b7f1d2-54a8-4c6e-9f21-8a4d6e0b3c19",
			"amount": -50,
		})
		req := adminCtx(httptest.NewRequest("POST", "/wallet/topup", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.TopUpWallet(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

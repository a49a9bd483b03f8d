package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/collably/backend/internal/models"
)

func newCampaignFixture(t *testing.T) (*CampaignService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	service := NewCampaignService(db, NewEventBus())
	return service, mock, func() { db.Close() }
}

func campaignRow(status string, price int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"founder_id", "title", "description", "price", "status", "created_at", "updated_at"}).
		AddRow("founder-1", "Spring launch", "Unbox and review", price, status, time.Now(), time.Now())
}

func lockedCampaignRow(status string, price int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"founder_id", "title", "description", "price", "status", "created_at"}).
		AddRow("founder-1", "Spring launch", "Unbox and review", price, status, time.Now())
}

func TestCampaignService_UpdateCampaignPrice(t *testing.T) {
	service, mock, teardown := newCampaignFixture(t)
	defer teardown()

	t.Run("price changes before any approval", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(lockedCampaignRow("active", 10000))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("campaign-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("UPDATE campaigns").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		campaign, err := service.UpdateCampaignPrice("campaign-1", "founder-1", "founder", 12000)
		assert.NoError(t, err)
		assert.Equal(t, int64(12000), campaign.Price)
	})

	t.Run("price frozen after first approval", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(lockedCampaignRow("active", 10000))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("campaign-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := service.UpdateCampaignPrice("campaign-1", "founder-1", "founder", 12000)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("same price is allowed even when frozen", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(lockedCampaignRow("active", 10000))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("campaign-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectExec("UPDATE campaigns").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		campaign, err := service.UpdateCampaignPrice("campaign-1", "founder-1", "founder", 10000)
		assert.NoError(t, err)
		assert.Equal(t, int64(10000), campaign.Price)
	})

	t.Run("other founders forbidden", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(lockedCampaignRow("active", 10000))
		mock.ExpectRollback()

		_, err := service.UpdateCampaignPrice("campaign-1", "founder-2", "founder", 12000)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestCampaignService_ChangeStatus(t *testing.T) {
	service, mock, teardown := newCampaignFixture(t)
	defer teardown()

	t.Run("draft activates", func(t *testing.T) {
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at, updated_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(campaignRow("draft", 10000))
		mock.ExpectExec("UPDATE campaigns").
			WillReturnResult(sqlmock.NewResult(0, 1))

		campaign, err := service.ChangeStatus("campaign-1", "founder-1", "founder", "active")
		assert.NoError(t, err)
		assert.Equal(t, models.CampaignStatusActive, campaign.Status)
	})

	t.Run("terminal status cannot move", func(t *testing.T) {
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at, updated_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(campaignRow("completed", 10000))

		_, err := service.ChangeStatus("campaign-1", "founder-1", "founder", "active")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("rejection is admin only", func(t *testing.T) {
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at, updated_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(campaignRow("active", 10000))

		_, err := service.ChangeStatus("campaign-1", "founder-1", "founder", "rejected")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("concurrent status edit conflicts", func(t *testing.T) {
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at, updated_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(campaignRow("draft", 10000))
		mock.ExpectExec("UPDATE campaigns").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := service.ChangeStatus("campaign-1", "founder-1", "founder", "active")
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestCampaignService_CreateCampaign(t *testing.T) {
	service, mock, teardown := newCampaignFixture(t)
	defer teardown()

	founderReq := func(body []byte) *http.Request {
		req := httptest.NewRequest("POST", "/campaigns", bytes.NewBuffer(body))
		ctx := context.WithValue(req.Context(), "userID", "founder-1")
		ctx = context.WithValue(ctx, "role", "founder")
		return req.WithContext(ctx)
	}

	t.Run("founder creates a draft", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO campaigns").
			WillReturnResult(sqlmock.NewResult(1, 1))

		body, _ := json.Marshal(map[string]interface{}{
			"title":       "Spring launch",
			"description": "Unbox and review our spring line",
			"price":       10000,
		})
		w := httptest.NewRecorder()
		service.CreateCampaign(w, founderReq(body))

		assert.Equal(t, http.StatusCreated, w.Code)
		var campaign models.Campaign
		json.Unmarshal(w.Body.Bytes(), &campaign)
		assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
		assert.Equal(t, "founder-1", campaign.FounderID)
	})

	t.Run("talent cannot create", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"title":       "Spring launch",
			"description": "Unbox and review our spring line",
			"price":       10000,
		})
		req := httptest.NewRequest("POST", "/campaigns", bytes.NewBuffer(body))
		ctx := context.WithValue(req.Context(), "userID", "talent-1")
		ctx = context.WithValue(ctx, "role", "talent")
		w := httptest.NewRecorder()
		service.CreateCampaign(w, req.WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.CreateCampaign(w, founderReq([]byte("not json")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCampaignService_GetCampaign(t *testing.T) {
	service, mock, teardown := newCampaignFixture(t)
	defer teardown()

	router := chi.NewRouter()
	router.Get("/campaigns/{campaignId}", service.GetCampaign)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at, updated_at FROM campaigns").
			WithArgs("campaign-1").
			WillReturnRows(campaignRow("active", 10000))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/campaigns/campaign-1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT founder_id, title, description, price, status, created_at, updated_at FROM campaigns").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{
				"founder_id", "title", "description", "price", "status", "created_at", "updated_at"}))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/campaigns/ghost", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

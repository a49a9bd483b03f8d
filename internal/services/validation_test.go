package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collably/backend/internal/models"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid top-up request", func(t *testing.T) {
		req := models.TopUpRequest{
			UserID: "c3b7f1d2-54a8-4c6e-9f21-8a4d6e0b3c19",
			Amount: 10000,
		}
		assert.NoError(t, vh.ValidateStruct(&req))
	})

	t.Run("missing required fields", func(t *testing.T) {
		assert.Error(t, vh.ValidateStruct(&models.TopUpRequest{}))
	})

	t.Run("decision must be approve or reject", func(t *testing.T) {
		req := models.SubmissionDecisionRequest{Decision: "maybe"}
		assert.Error(t, vh.ValidateStruct(&req))

		req.Decision = "approve"
		assert.NoError(t, vh.ValidateStruct(&req))
	})

	t.Run("review media must be urls", func(t *testing.T) {
		req := models.SubmitReviewRequest{Media: []string{"not a url"}}
		assert.Error(t, vh.ValidateStruct(&req))

		req.Media = []string{"https://cdn.example.com/clip.mp4"}
		assert.NoError(t, vh.ValidateStruct(&req))
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Not found", http.StatusNotFound, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Not found", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation details included", func(t *testing.T) {
		vh := NewValidationHelper()
		err := vh.ValidateStruct(&models.TopUpRequest{})
		assert.Error(t, err)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)

		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "UserID")
		assert.Contains(t, resp.Details, "Amount")
	})
}

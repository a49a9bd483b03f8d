package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestQRService_GenerateShareCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewQRService(db, redisClient)

	t.Run("active campaign gets a code and image", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM campaigns WHERE id = \\$1").
			WithArgs("campaign-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("active"))
		redisMock.Regexp().ExpectSet(`share:.+`, `.+`, 24*time.Hour).SetVal("OK")

		code, image, err := service.GenerateShareCode(context.Background(), "campaign-1")
		assert.NoError(t, err)
		assert.NotEmpty(t, code)
		assert.NotEmpty(t, image)

		decoded, err := base64.URLEncoding.DecodeString(code)
		assert.NoError(t, err)
		var payload map[string]interface{}
		assert.NoError(t, json.Unmarshal(decoded, &payload))
		assert.Equal(t, "campaign-1", payload["campaignId"])
	})

	t.Run("draft campaign refused", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM campaigns WHERE id = \\$1").
			WithArgs("campaign-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))

		_, _, err := service.GenerateShareCode(context.Background(), "campaign-1")
		assert.ErrorIs(t, err, ErrCampaignNotActive)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM campaigns WHERE id = \\$1").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		_, _, err := service.GenerateShareCode(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestQRService_ResolveShareCode(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewQRService(db, redisClient)

	t.Run("live code resolves", func(t *testing.T) {
		payload := `{"campaignId":"campaign-1","timestamp":1740830400}`
		redisMock.ExpectGet("share:somecode").SetVal(payload)

		result, err := service.ResolveShareCode(context.Background(), "somecode")
		assert.NoError(t, err)
		assert.Equal(t, "campaign-1", result["campaignId"])
	})

	t.Run("expired code", func(t *testing.T) {
		redisMock.ExpectGet("share:expired").RedisNil()

		_, err := service.ResolveShareCode(context.Background(), "expired")
		assert.Error(t, err)
	})
}

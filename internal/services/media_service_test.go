package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newMediaFixture(t *testing.T) (*MediaService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	viper.Set("media.dir", t.TempDir())
	viper.Set("media.base_url", "/static/media")

	service := NewMediaService(db)
	return service, mock, func() {
		db.Close()
		viper.Set("media.dir", nil)
		viper.Set("media.base_url", nil)
	}
}

func TestMediaService_SaveAttachment(t *testing.T) {
	service, _, teardown := newMediaFixture(t)
	defer teardown()

	t.Run("stores supported types", func(t *testing.T) {
		url, err := service.SaveAttachment("clip.MP4", strings.NewReader("video bytes"))
		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "/static/media/"))
		assert.True(t, strings.HasSuffix(url, ".mp4"))

		name := strings.TrimPrefix(url, "/static/media/")
		content, err := os.ReadFile(filepath.Join(service.dir, name))
		assert.NoError(t, err)
		assert.Equal(t, "video bytes", string(content))
	})

	t.Run("rejects unsupported types", func(t *testing.T) {
		_, err := service.SaveAttachment("payload.exe", strings.NewReader("nope"))
		assert.Error(t, err)

		_, err = service.SaveAttachment("noextension", strings.NewReader("nope"))
		assert.Error(t, err)
	})
}

func TestMediaService_DeleteAttachment(t *testing.T) {
	service, mock, teardown := newMediaFixture(t)
	defer teardown()

	submissionJSON := `{"media":["/static/media/a.mp4","/static/media/b.mp4"],"submitted_at":"2026-03-01T12:00:00Z"}`

	t.Run("talent strips own order media", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT talent_id, review_submission FROM orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"talent_id", "review_submission"}).
				AddRow("talent-1", []byte(submissionJSON)))
		mock.ExpectExec("UPDATE orders SET review_submission").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.DeleteAttachment("order-1", "/static/media/a.mp4", "talent-1", "talent")
		assert.NoError(t, err)
	})

	t.Run("other talents forbidden", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT talent_id, review_submission FROM orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"talent_id", "review_submission"}).
				AddRow("talent-1", []byte(submissionJSON)))
		mock.ExpectRollback()

		err := service.DeleteAttachment("order-1", "/static/media/a.mp4", "talent-2", "talent")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("url not referenced is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT talent_id, review_submission FROM orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"talent_id", "review_submission"}).
				AddRow("talent-1", []byte(submissionJSON)))
		mock.ExpectRollback()

		err := service.DeleteAttachment("order-1", "/static/media/unrelated.mp4", "talent-1", "talent")
		assert.NoError(t, err)
	})
}

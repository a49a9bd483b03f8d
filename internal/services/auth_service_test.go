package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestAuthService_PasswordHashing(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	_ = NewAuthService(db, redisClient)

	t.Run("round trip", func(t *testing.T) {
		hashed, err := hashPassword("correct horse battery staple")
		assert.NoError(t, err)
		assert.True(t, verifyPassword("correct horse battery staple", hashed))
		assert.False(t, verifyPassword("wrong password", hashed))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		first, err := hashPassword("password123")
		assert.NoError(t, err)
		second, err := hashPassword("password123")
		assert.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("malformed stored hash", func(t *testing.T) {
		assert.False(t, verifyPassword("password123", "no-dollar-separator"))
	})
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	t.Run("successful registration", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(1, 1))

		body, _ := json.Marshal(map[string]string{
			"email":       "Jane@Example.com",
			"password":    "password123",
			"displayName": "Jane Doe",
			"role":        "founder",
		})
		req := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "jane@example.com", response.User.Email)
		assert.Equal(t, "founder", response.User.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WillReturnError(errors.New("pq: duplicate key value violates unique constraint"))

		body, _ := json.Marshal(map[string]string{
			"email":       "jane@example.com",
			"password":    "password123",
			"displayName": "Jane Doe",
			"role":        "founder",
		})
		req := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("admin role cannot self-register", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"email":       "root@example.com",
			"password":    "password123",
			"displayName": "Root",
			"role":        "admin",
		})
		req := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	hashed, err := hashPassword("password123")
	assert.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, display_name, role, password FROM users").
			WithArgs("jane@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "role", "password"}).
				AddRow("user-1", "jane@example.com", "Jane Doe", "founder", hashed))
		mock.ExpectExec("UPDATE users SET last_login").
			WithArgs("user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body, _ := json.Marshal(map[string]string{
			"email":    "jane@example.com",
			"password": "password123",
		})
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, display_name, role, password FROM users").
			WithArgs("jane@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "role", "password"}).
				AddRow("user-1", "jane@example.com", "Jane Doe", "founder", hashed))

		body, _ := json.Marshal(map[string]string{
			"email":    "jane@example.com",
			"password": "not-the-password",
		})
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	t.Run("token is blacklisted", func(t *testing.T) {
		expiry := time.Duration(72) * time.Hour
		redisMock.ExpectSet("blacklist:sometoken", "1", expiry).SetVal("OK")

		req := httptest.NewRequest("POST", "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		w := httptest.NewRecorder()

		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/collably/backend/internal/config"
	"github.com/collably/backend/internal/models"
)

// QRService issues scannable share codes for active campaigns, so founders
// can hand talents a direct route to the application form.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
	cfg   *config.ShareConfig
}

func NewQRService(db *sql.DB, redisClient *redis.Client) *QRService {
	return &QRService{
		db:    db,
		redis: redisClient,
		cfg:   config.LoadShareConfig(),
	}
}

// GenerateShareCode creates a share code and QR image for an active
// campaign. Codes expire after the configured share TTL.
func (s *QRService) GenerateShareCode(ctx context.Context, campaignID string) (string, string, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM campaigns WHERE id = $1`, campaignID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", ErrNotFound
		}
		return "", "", err
	}
	if status != models.CampaignStatusActive {
		return "", "", ErrCampaignNotActive
	}

	shareData := map[string]any{
		"campaignId": campaignID,
		"timestamp":  time.Now().Unix(),
		"nonce":      s.generateNonce(),
	}

	jsonData, err := json.Marshal(shareData)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	key := s.cfg.RedisKeyPrefix + code
	if err := s.redis.Set(ctx, key, jsonData, s.cfg.CodeTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.cfg.QRSize)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return code, qrImage, nil
}

// ResolveShareCode looks up a scanned share code and returns the campaign
// it points to.
func (s *QRService) ResolveShareCode(ctx context.Context, code string) (map[string]any, error) {
	key := s.cfg.RedisKeyPrefix + code

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired share code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

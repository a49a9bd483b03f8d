package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/collably/backend/internal/models"
)

// MediaService stores delivery and review attachments on disk and returns
// addressable URLs. Deleting an attachment also removes its reference from
// the owning order's review submission; both operations are attempted and
// either failure is reported.
type MediaService struct {
	db      *sql.DB
	dir     string
	baseURL string
}

func NewMediaService(db *sql.DB) *MediaService {
	viper.SetDefault("media.dir", "./static/media")
	viper.SetDefault("media.base_url", "/static/media")

	return &MediaService{
		db:      db,
		dir:     viper.GetString("media.dir"),
		baseURL: viper.GetString("media.base_url"),
	}
}

// SaveAttachment writes the uploaded content under a fresh name and
// returns its addressable URL.
func (s *MediaService) SaveAttachment(filename string, content io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".mp4", ".mov":
	default:
		return "", fmt.Errorf("unsupported attachment type %q", ext)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(path)
		return "", err
	}

	return s.baseURL + "/" + name, nil
}

// DeleteAttachment removes the stored file and strips the URL from the
// order's review submission. Both are attempted; a combined error reports
// any failure rather than silently dropping it.
func (s *MediaService) DeleteAttachment(orderID, mediaURL, actorID, role string) error {
	var fileErr, refErr error

	if name, ok := strings.CutPrefix(mediaURL, s.baseURL+"/"); ok && !strings.Contains(name, "/") {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			fileErr = fmt.Errorf("remove attachment file: %w", err)
		}
	}

	refErr = s.stripOrderMedia(orderID, mediaURL, actorID, role)

	return errors.Join(fileErr, refErr)
}

func (s *MediaService) stripOrderMedia(orderID, mediaURL, actorID, role string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var talentID string
	var submission *models.ReviewSubmission
	err = tx.QueryRow(`
		SELECT talent_id, review_submission FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&talentID, &submission)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}

	if role != models.RoleAdmin && actorID != talentID {
		return ErrForbidden
	}
	if submission == nil {
		return nil
	}

	kept := submission.Media[:0]
	for _, m := range submission.Media {
		if m != mediaURL {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(submission.Media) {
		return nil
	}
	submission.Media = kept

	if _, err := tx.Exec(`
		UPDATE orders SET review_submission = $1, updated_at = NOW() WHERE id = $2`,
		submission, orderID); err != nil {
		return err
	}

	return tx.Commit()
}

// UploadMedia stores an attachment
// @Summary Upload media
// @Description Store a delivery or review attachment and return its URL
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Attachment"
// @Success 201 {object} object{url=string}
// @Failure 400 {object} ErrorResponse
// @Router /media [post]
func (s *MediaService) UploadMedia(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)
	if userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 25<<20) // 25 MB
	file, header, err := r.FormFile("file")
	if err != nil {
		SendErrorResponse(w, "Missing file", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	url, err := s.SaveAttachment(header.Filename, file)
	if err != nil {
		log.Printf("[MEDIA] Upload failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to store attachment", http.StatusBadRequest, nil)
		return
	}

	log.Printf("[MEDIA] Stored attachment %s for user %s", url, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"url": url})
}

// DeleteMedia removes an attachment and its order reference
// @Summary Delete media
// @Description Remove an attachment file and strip it from the order's review submission
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{orderId=string,url=string} true "Attachment reference"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} ErrorResponse
// @Router /media/delete [post]
func (s *MediaService) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := identity(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req struct {
		OrderID string `json:"orderId" validate:"required,uuid4"`
		URL     string `json:"url" validate:"required"`
	}
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := NewValidationHelper().ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := s.DeleteAttachment(req.OrderID, req.URL, userID, role); err != nil {
		log.Printf("[MEDIA] Delete failed for order %s: %v", req.OrderID, err)
		SendErrorResponse(w, err.Error(), workflowErrorStatus(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

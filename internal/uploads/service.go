// Package uploads ingests lesion images, runs triage on them and manages the stored records.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"skincheck-back/internal/analysis"
	"skincheck-back/internal/apperr"
	"skincheck-back/internal/metrics"
	"skincheck-back/internal/models"
	"skincheck-back/internal/storage"
	"skincheck-back/pkg/imaging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxFilenameLength = 255

const (
	errTooLarge    = "Image file is too large. Maximum size is %s."
	errInvalidType = "Invalid file type. Please upload JPEG, PNG, BMP, or TIFF images."
)

type Service struct {
	db       *gorm.DB
	store    storage.Store
	analyzer *analysis.Analyzer
	maxBytes int64
	logger   *slog.Logger
}

func NewService(db *gorm.DB, store storage.Store, analyzer *analysis.Analyzer, maxBytes int64, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		store:    store,
		analyzer: analyzer,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// MaxBytes is the largest accepted image size.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// TooLarge is the error reported for images over MaxBytes.
func (s *Service) TooLarge() error {
	return apperr.Validation(errTooLarge, humanSize(s.maxBytes))
}

// File is an incoming upload as received from the client.
type File struct {
	Filename    string
	ContentType string // as declared by the client, may be empty
	Size        int64
	Body        io.Reader
}

// Ingest validates the image, scores it and stores both the object and the record.
func (s *Service) Ingest(ctx context.Context, userID uint, f File) (*models.ImageUpload, error) {
	if f.Size > s.maxBytes {
		return nil, s.TooLarge()
	}
	if declared := mediaType(f.ContentType); declared != "" && declared != "application/octet-stream" && !imaging.AllowedContentType(declared) {
		return nil, apperr.Validation(errInvalidType)
	}

	data, err := io.ReadAll(io.LimitReader(f.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, s.TooLarge()
	}

	info, err := imaging.Inspect(data)
	switch {
	case errors.Is(err, imaging.ErrUnsupportedType):
		return nil, apperr.Validation(errInvalidType)
	case err != nil:
		return nil, apperr.InvalidImage("Invalid image file.")
	}

	filename := cleanFilename(f.Filename, info.Ext)
	size := int64(len(data))
	assessment := s.analyzer.Analyze(analysis.Input{
		Filename: filename,
		Width:    info.Width,
		Height:   info.Height,
		FileSize: size,
	})

	objectName := storage.GenerateObjectName(userID, filename, info.Ext)
	if err := s.store.Put(ctx, objectName, bytes.NewReader(data), size, info.ContentType); err != nil {
		s.logger.Error("store image failed", slog.String("object", objectName), slog.String("error", err.Error()))
		return nil, fmt.Errorf("store image: %w", err)
	}

	upload := &models.ImageUpload{
		ID:                    uuid.NewString(),
		UserID:                userID,
		ImagePath:             objectName,
		ContentType:           info.ContentType,
		Filename:              filename,
		FileSize:              size,
		ImageWidth:            info.Width,
		ImageHeight:           info.Height,
		Result:                assessment.Result,
		Confidence:            assessment.Confidence,
		RiskScore:             assessment.RiskScore,
		CancerType:            assessment.CancerType,
		CancerTypeConfidence:  assessment.CancerTypeConfidence,
		CancerTypeName:        assessment.CancerTypeName,
		RiskLevel:             assessment.RiskLevel,
		ShouldConsultDoctor:   assessment.ShouldConsultDoctor,
		UrgencyLevel:          assessment.UrgencyLevel,
		RecommendationMessage: assessment.RecommendationMessage,
		AnalysisFactors:       assessment.Factors,
	}
	if err := s.db.WithContext(ctx).Create(upload).Error; err != nil {
		s.removeObject(ctx, objectName)
		return nil, fmt.Errorf("save upload: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues(upload.Result).Inc()
	s.logger.Info("image analysed",
		slog.String("upload_id", upload.ID),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("result", upload.Result),
		slog.String("cancer_type", upload.CancerType),
	)
	return upload, nil
}

// Get returns the upload if userID owns it.
func (s *Service) Get(ctx context.Context, userID uint, id string) (*models.ImageUpload, error) {
	var upload models.ImageUpload
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("upload not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query upload: %w", err)
	}
	if upload.UserID != userID {
		return nil, apperr.Forbidden("you do not have access to this upload")
	}
	return &upload, nil
}

// Delete removes one upload and, best-effort, its stored image.
func (s *Service) Delete(ctx context.Context, userID uint, id string) error {
	upload, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", upload.ID, userID).Delete(&models.ImageUpload{})
	if res.Error != nil {
		return fmt.Errorf("delete upload: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("upload not found")
	}
	s.removeObject(ctx, upload.ImagePath)
	return nil
}

// ClearHistory deletes every upload of userID and reports how many were removed.
func (s *Service) ClearHistory(ctx context.Context, userID uint) (int64, error) {
	var paths []string
	if err := s.db.WithContext(ctx).Model(&models.ImageUpload{}).
		Where("user_id = ?", userID).
		Pluck("image_path", &paths).Error; err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}

	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ImageUpload{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear uploads: %w", res.Error)
	}
	for _, p := range paths {
		s.removeObject(ctx, p)
	}

	s.logger.Info("upload history cleared", slog.Uint64("user_id", uint64(userID)), slog.Int64("deleted", res.RowsAffected))
	return res.RowsAffected, nil
}

// ImageURL resolves where the client can fetch the stored image.
func (s *Service) ImageURL(ctx context.Context, upload *models.ImageUpload) string {
	url, err := s.store.URL(ctx, upload.ImagePath)
	if err != nil {
		s.logger.Warn("resolve image url failed", slog.String("upload_id", upload.ID), slog.String("error", err.Error()))
		return ""
	}
	return url
}

func (s *Service) removeObject(ctx context.Context, objectName string) {
	if objectName == "" {
		return
	}
	if err := s.store.Delete(ctx, objectName); err != nil {
		s.logger.Warn("delete stored image failed", slog.String("object", objectName), slog.String("error", err.Error()))
	}
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// cleanFilename keeps the client's base name for display only.
func cleanFilename(name, ext string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = "upload" + ext
	}
	if len(name) > maxFilenameLength {
		i := len(name) - maxFilenameLength
		for i < len(name) && !utf8.RuneStart(name[i]) {
			i++
		}
		name = name[i:]
	}
	return name
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}

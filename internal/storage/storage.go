// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"skincheck-back/internal/config"

	"github.com/google/uuid"
)

// Store persists uploaded image bytes under generated object names.
type Store interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectName string) error
	// URL returns a link the client can fetch the object from.
	URL(ctx context.Context, objectName string) (string, error)
}

// New builds the store selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case "local":
		store, err = NewLocalStore(cfg.LocalDir, cfg.PublicURL)
	case "minio":
		store, err = NewMinIOClient(ctx, cfg.MinIO)
	case "s3":
		store, err = NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// GenerateObjectName creates a unique object name with folder structure. The
// client-supplied filename only contributes its extension.
func GenerateObjectName(userID uint, filename, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !validExt(ext) {
		ext = fallbackExt
	}
	return fmt.Sprintf("users/%d/original/%s%s", userID, uuid.New().String(), ext)
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

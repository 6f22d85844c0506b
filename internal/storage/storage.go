package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/incial/crm-api/internal/config"
	"go.uber.org/zap"
)

// ErrFileNotFound is returned when a stored object does not exist
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidPath is returned for storage paths that escape the storage root
var ErrInvalidPath = errors.New("invalid storage path")

// Storage holds payment proof files. Paths returned by Upload are opaque
// references that are later passed back to Download and Delete.
type Storage interface {
	Upload(ctx context.Context, folder, filename, contentType string, data io.Reader) (string, int64, error)
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
}

// NewStorage creates a storage backend for the configured mode
func NewStorage(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "local", "":
		return NewLocalStorage(cfg.LocalBasePath)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(context.Background(), cfg.CloudConnectionString, cfg.CloudContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// objectName builds "<folder>/<uuid><ext>" using forward slashes
func objectName(folder, filename string) string {
	name := uuid.New().String() + strings.ToLower(filepath.Ext(filename))
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// LocalStorage keeps files under a base directory
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./uploads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	return &LocalStorage{basePath: abs}, nil
}

func (s *LocalStorage) resolve(storagePath string) (string, error) {
	if storagePath == "" {
		return "", ErrInvalidPath
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(storagePath))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, storagePath)
	}
	return full, nil
}

// Upload writes data to a fresh file under folder
func (s *LocalStorage) Upload(ctx context.Context, folder, filename, contentType string, data io.Reader) (string, int64, error) {
	storagePath := objectName(folder, filename)
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, data)
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	return storagePath, size, nil
}

// Download opens a stored file
func (s *LocalStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalStorage) Delete(ctx context.Context, storagePath string) error {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

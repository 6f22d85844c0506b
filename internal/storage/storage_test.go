package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/storage"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path, size, err := s.Upload(ctx, "payments/42", "Receipt.PDF", "application/pdf", strings.NewReader("%PDF-1.4 proof"))
	require.NoError(t, err)
	assert.Equal(t, int64(14), size)
	assert.True(t, strings.HasPrefix(path, "payments/42/"))
	assert.True(t, strings.HasSuffix(path, ".pdf"))

	rc, err := s.Download(ctx, path)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 proof", string(body))

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Download(ctx, path)
	assert.ErrorIs(t, err, storage.ErrFileNotFound)

	assert.NoError(t, s.Delete(ctx, path), "deleting twice is not an error")
}

func TestLocalStorage_RejectsEscapingPaths(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, p := range []string{"../secret.txt", "a/../../b", ""} {
		_, err := s.Download(context.Background(), p)
		assert.ErrorIs(t, err, storage.ErrInvalidPath, p)
	}
}

func TestLocalStorage_FolderIsCleaned(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	path, _, err := s.Upload(context.Background(), "../../etc", "x.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "etc/"))
}

func TestNewStorage_Modes(t *testing.T) {
	log := zap.NewNop()

	s, err := storage.NewStorage(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()}, log)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, s)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "azure"}, log)
	assert.Error(t, err)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "ftp"}, log)
	assert.Error(t, err)
}

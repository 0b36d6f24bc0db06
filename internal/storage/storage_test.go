package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	a, err := s.Save(ctx, "balance/2026-10-14/balance.xlsx", XLSXContentType, strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.Size)
	assert.FileExists(t, a.Location)

	rc, err := s.Open(ctx, a.Key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(filepath.Dir(a.Location))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")

	require.NoError(t, s.Delete(ctx, a.Key))
	require.NoError(t, s.Delete(ctx, a.Key))
	_, err = s.Open(ctx, a.Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	for _, key := range []string{"../outside.xlsx", "/etc/passwd", "", "a/../../b"} {
		_, err := s.Save(context.Background(), key, XLSXContentType, strings.NewReader("x"))
		assert.Error(t, err, key)
	}
}

func TestArtifactKey(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 5, 0, time.UTC)
	key := ArtifactKey("laser-task", ".xlsx", at)
	assert.True(t, strings.HasPrefix(key, "laser-task/2026-10-14/laser-task_20261014_093005_"), key)
	assert.True(t, strings.HasSuffix(key, ".xlsx"))
	assert.NotEqual(t, key, ArtifactKey("laser-task", ".xlsx", at))
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(&config.StorageConfig{Mode: "azure"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewStorage(&config.StorageConfig{Mode: "ftp"}, zap.NewNop())
	assert.Error(t, err)
}

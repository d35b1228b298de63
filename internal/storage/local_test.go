package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/feedback-importer/config"
)

func readAll(t *testing.T, s Storage, key string) string {
	t.Helper()
	rc, err := s.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestLocalSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "batches/b1/data.csv", strings.NewReader("a,b\n1,2\n")))
	assert.Equal(t, "a,b\n1,2\n", readAll(t, s, "batches/b1/data.csv"))

	require.NoError(t, s.Save(ctx, "batches/b1/data.csv", strings.NewReader("replaced")))
	assert.Equal(t, "replaced", readAll(t, s, "batches/b1/data.csv"))

	require.NoError(t, s.Delete(ctx, "batches/b1/data.csv"))
	_, err = s.Open(ctx, "batches/b1/data.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "batches/b1/data.csv"), "deleting a missing file")
}

func TestLocalList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalFileStorage(dir)
	require.NoError(t, err)

	for _, key := range []string{"batches/b2/x.json", "batches/b1/y.csv", "other/z.csv"} {
		require.NoError(t, s.Save(ctx, key, strings.NewReader(key)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batches", ".upload-123"), nil, 0o644))

	keys, err := s.List(ctx, "batches/")
	require.NoError(t, err)
	assert.Equal(t, []string{"batches/b1/y.csv", "batches/b2/x.json"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", ".", "../outside.csv", "a/../../outside.csv"} {
		assert.Error(t, s.Save(context.Background(), key, strings.NewReader("x")), "key %q", key)
	}
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "files")
	s, err := New(context.Background(), config.StorageConfig{Type: "local", OutputDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &LocalFileStorage{}, s)
	assert.DirExists(t, dir)

	_, err = New(context.Background(), config.StorageConfig{Type: "gcs"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.StorageConfig{Type: "s3"})
	assert.Error(t, err)
}

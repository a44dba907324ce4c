package local_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lite-site-auditor/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates missing directory", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "nested", "archive")
		_, err := local.New(dir)
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	})

	t.Run("empty directory", func(t *testing.T) {
		t.Parallel()
		_, err := local.New("  ")
		require.Error(t, err)
	})

	t.Run("path is a file", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(file)
		require.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive, err := local.New(dir)
	require.NoError(t, err)

	uri, err := archive.PutObject(context.Background(), "audits/abc.json", "application/json", strings.NewReader(`{"id":"abc"}`))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))
	require.True(t, strings.HasSuffix(uri, "/audits/abc.json"))

	got, err := os.ReadFile(filepath.Join(dir, "audits", "abc.json"))
	require.NoError(t, err)
	require.Equal(t, `{"id":"abc"}`, string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "audits"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
}

func TestPutObjectRejectsBadPaths(t *testing.T) {
	t.Parallel()

	archive, err := local.New(t.TempDir())
	require.NoError(t, err)

	_, err = archive.PutObject(context.Background(), "", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")
	_, err = archive.PutObject(context.Background(), "../escape.json", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "path traversal")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestPutObjectLeavesNothingOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive, err := local.New(dir)
	require.NoError(t, err)

	_, err = archive.PutObject(context.Background(), "a.json", "", failingReader{})
	require.ErrorContains(t, err, "disk on fire")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = archive.PutObject(ctx, "b.json", "", strings.NewReader("x"))
	require.ErrorIs(t, err, context.Canceled)
}

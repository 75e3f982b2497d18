package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/forlulz/spring-batch/pkg/batch/adapter/storage/config"
)

func TestLocalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "objects")
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{Type: ProviderType, BaseDir: base, BucketName: "archive"}, "archive")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Upload(ctx, "", "runs/2026/a.txt", strings.NewReader("alpha"), "text/plain"))
	require.NoError(t, conn.Upload(ctx, "", "runs/2026/b.txt", strings.NewReader("beta"), "text/plain"))
	require.NoError(t, conn.Upload(ctx, "", "other/c.txt", strings.NewReader("gamma"), "text/plain"))
	assert.FileExists(t, filepath.Join(base, "archive", "runs", "2026", "a.txt"))

	r, err := conn.Download(ctx, "", "runs/2026/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	var names []string
	require.NoError(t, conn.ListObjects(ctx, "", "runs/", func(name string) error {
		names = append(names, name)
		return nil
	}))
	assert.ElementsMatch(t, []string{"runs/2026/a.txt", "runs/2026/b.txt"}, names)

	require.NoError(t, conn.DeleteObject(ctx, "", "runs/2026/a.txt"))
	require.NoError(t, conn.DeleteObject(ctx, "", "runs/2026/a.txt"))
	_, err = conn.Download(ctx, "", "runs/2026/a.txt")
	assert.Error(t, err)

	// Listing a bucket that was never written is empty.
	require.NoError(t, conn.ListObjects(ctx, "empty", "", func(string) error {
		t.Fatal("unexpected object")
		return nil
	}))
}

func TestLocalAdapter_RejectsEscapingPaths(t *testing.T) {
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{BaseDir: t.TempDir()}, "local")
	require.NoError(t, err)

	err = conn.Upload(context.Background(), "", "../outside.txt", strings.NewReader("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of base_dir")
}

func TestNewLocalAdapter_Validation(t *testing.T) {
	_, err := NewLocalAdapter(storageConfig.StorageConfig{}, "local")
	assert.ErrorContains(t, err, "base_dir must be specified")

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewLocalAdapter(storageConfig.StorageConfig{BaseDir: file}, "local")
	assert.ErrorContains(t, err, "is not a directory")
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestProvider(t *testing.T) (*LocalProvider, string) {
	t.Helper()
	dir := t.TempDir()
	provider, err := NewLocalProvider(dir)
	require.NoError(t, err)
	return provider, dir
}

func TestLocalProvider_PutGetObject(t *testing.T) {
	provider, baseDir := setupTestProvider(t)
	ctx := context.Background()

	content := []byte("zip bytes")
	require.NoError(t, provider.PutObject(ctx, "archives", "batch/metal_holes_detections.zip", bytes.NewReader(content)))

	data, err := os.ReadFile(filepath.Join(baseDir, "archives", "batch", "metal_holes_detections.zip"))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	data, err = provider.GetObject(ctx, "archives", "batch/metal_holes_detections.zip")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLocalProvider_GetMissingObject(t *testing.T) {
	provider, _ := setupTestProvider(t)

	_, err := provider.GetObject(context.Background(), "archives", "missing.zip")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalProvider_CreateBucket(t *testing.T) {
	provider, baseDir := setupTestProvider(t)

	require.NoError(t, provider.CreateBucket(context.Background(), "archives"))
	info, err := os.Stat(filepath.Join(baseDir, "archives"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, provider.CreateBucket(context.Background(), "archives"))
}

func TestLocalProvider_ListObjects(t *testing.T) {
	provider, _ := setupTestProvider(t)
	ctx := context.Background()

	for _, key := range []string{"a/one.zip", "a/two.zip", "b/three.zip"} {
		require.NoError(t, provider.PutObject(ctx, "archives", key, bytes.NewReader([]byte(key))))
	}

	objects, err := provider.ListObjects(ctx, "archives", "a/")
	require.NoError(t, err)

	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		names = append(names, obj.Name)
		assert.Equal(t, int64(len(obj.Name)), obj.Size)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a/one.zip", "a/two.zip"}, names)

	all, err := provider.ListObjects(ctx, "archives", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	missing, err := provider.ListObjects(ctx, "no-such-bucket", "")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLocalProvider_DeleteObjects(t *testing.T) {
	provider, _ := setupTestProvider(t)
	ctx := context.Background()

	for _, key := range []string{"a/one.zip", "a/two.zip", "b/three.zip"} {
		require.NoError(t, provider.PutObject(ctx, "archives", key, bytes.NewReader([]byte(key))))
	}

	require.NoError(t, provider.DeleteObjects(ctx, "archives", "a/"))

	_, err := provider.GetObject(ctx, "archives", "a/one.zip")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	data, err := provider.GetObject(ctx, "archives", "b/three.zip")
	require.NoError(t, err)
	assert.Equal(t, []byte("b/three.zip"), data)
}

func TestLocalProvider_DeleteObjectsRemovesEmptyPrefix(t *testing.T) {
	provider, baseDir := setupTestProvider(t)
	ctx := context.Background()

	require.NoError(t, provider.CreateBucket(ctx, "archives"))
	require.NoError(t, provider.PutObject(ctx, "archives", "batch/metal_holes_detections.zip", bytes.NewReader([]byte("zip"))))
	require.NoError(t, provider.PutObject(ctx, "archives", "other/metal_holes_detections.zip", bytes.NewReader([]byte("zip"))))

	require.NoError(t, provider.DeleteObjects(ctx, "archives", "batch/"))

	_, err := os.Stat(filepath.Join(baseDir, "archives", "batch"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	info, err := os.Stat(filepath.Join(baseDir, "archives"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(baseDir, "archives", "other", "metal_holes_detections.zip"))
	assert.NoError(t, err)
}

type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("connection reset")
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestLocalProvider_PutObjectFailureLeavesNoFile(t *testing.T) {
	provider, baseDir := setupTestProvider(t)
	ctx := context.Background()

	err := provider.PutObject(ctx, "archives", "batch/metal_holes_detections.zip", &failingReader{data: []byte("partial")})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(baseDir, "archives", "batch", "metal_holes_detections.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = provider.GetObject(ctx, "archives", "batch/metal_holes_detections.zip")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalProvider_IterObjectsStopsEarly(t *testing.T) {
	provider, _ := setupTestProvider(t)
	ctx := context.Background()

	for _, key := range []string{"x/1", "x/2", "x/3"} {
		require.NoError(t, provider.PutObject(ctx, "bucket", key, bytes.NewReader([]byte("1"))))
	}

	count := 0
	for _, err := range provider.IterObjects(ctx, "bucket", "") {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

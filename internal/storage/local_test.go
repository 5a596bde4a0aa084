package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("the quick brown fox")
	key := NewKey("report.pdf")

	info, err := store.Put(ctx, key, bytes.NewReader(content), PutObjectOptions{
		Size:        int64(len(content)),
		ContentType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, key, info.Key)
	assert.Equal(t, int64(len(content)), info.Size)

	rc, getInfo, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), getInfo.Size)
}

func TestLocalStore_GetMissing(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "documents/missing.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutSizeMismatch(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "documents/short.bin", strings.NewReader("abc"), PutObjectOptions{Size: 10})
	assert.Error(t, err)

	// The failed upload must not be visible under the key.
	_, _, err = store.Get(context.Background(), "documents/short.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)

	key := NewKey("notes.txt")
	_, err = store.Put(context.Background(), key, strings.NewReader("hello"), PutObjectOptions{Size: 5})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "documents"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".upload-"), "temp file left behind: %s", e.Name())
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := NewKey("x.bin")
	_, err = store.Put(ctx, key, strings.NewReader("data"), PutObjectOptions{Size: 4})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))
	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, store.Delete(ctx, key))
}

func TestLocalStore_KeyEscapesRoot(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.bin", strings.NewReader("x"), PutObjectOptions{Size: 1})
	assert.Error(t, err)

	_, _, err = store.Get(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestNewKey(t *testing.T) {
	k1 := NewKey("report.pdf")
	k2 := NewKey("report.pdf")

	assert.True(t, strings.HasPrefix(k1, "documents/"))
	assert.True(t, strings.HasSuffix(k1, ".pdf"))
	assert.NotEqual(t, k1, k2)

	assert.False(t, strings.HasSuffix(NewKey("README"), "."))
}

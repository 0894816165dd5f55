package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	name := "matches/a.jpg/b.jpg"
	data := []byte("hello world, this is a match array record")

	w, err := store.Create(ctx, name)
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, w.Close())

	_, err = os.Stat(filepath.Join(tmpDir, "matches", "a.jpg", "b.jpg"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, name)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	r, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "this", string(content))
	require.NoError(t, r.Close())
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, "keypoints/a.jpg", []byte("kp")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"keypoints/a.jpg", name}, names)

	names, err = store.List(ctx, "matches/")
	require.NoError(t, err)
	require.Equal(t, []string{name}, names)

	require.NoError(t, store.Delete(ctx, name))
	require.NoError(t, store.Delete(ctx, name))

	_, err = store.Open(ctx, name)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutReplaces(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "x", []byte("first")))
	require.NoError(t, store.Put(ctx, "x", []byte("second")))

	data, err := ReadAll(ctx, store, "x")
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	require.NoError(t, store.Put(ctx, "empty", nil))
	data, err = ReadAll(ctx, store, "empty")
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestLocalStore_ReadRangeBoundaries(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "boundary.bin", data))

	blob, err := store.Open(ctx, "boundary.bin")
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	content, _ := io.ReadAll(r)
	require.True(t, bytes.Equal(data, content))

	r, err = blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(content))

	_, err = blob.ReadRange(ctx, 20, 5)
	require.ErrorIs(t, err, io.EOF)
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Wirlhawk/skillswap-sub000/config"
)

func TestLocalStorePutAndDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(config.StorageConfig{RootDir: root, PublicBaseURL: "https://cdn.example.com/files/"})
	require.NoError(t, err)

	ctx := context.Background()
	url, err := store.Put(ctx, "orders/42/logo.png", []byte("png"))
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/files/orders/42/logo.png", url)

	data, err := os.ReadFile(filepath.Join(root, "orders", "42", "logo.png"))
	require.NoError(t, err)
	require.Equal(t, "png", string(data))

	// Overwrite in place
	_, err = store.Put(ctx, "orders/42/logo.png", []byte("png2"))
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(root, "orders", "42", "logo.png"))
	require.NoError(t, err)
	require.Equal(t, "png2", string(data))

	require.NoError(t, store.Delete(ctx, "orders/42/logo.png"))
	require.NoError(t, store.Delete(ctx, "orders/42/logo.png"))
	_, err = os.Stat(filepath.Join(root, "orders", "42", "logo.png"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(config.StorageConfig{RootDir: t.TempDir()})
	require.NoError(t, err)

	for _, key := range []string{"", "../secret", "a/../../b", "/"} {
		_, err := store.Put(context.Background(), key, []byte("x"))
		require.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalStoreDefaultBaseURL(t *testing.T) {
	store, err := NewLocalStore(config.StorageConfig{RootDir: t.TempDir()})
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "/drafts/a.txt", []byte("a"))
	require.NoError(t, err)
	require.Equal(t, "/files/drafts/a.txt", url)
}

func TestSafeName(t *testing.T) {
	require.Equal(t, "logo.png", SafeName("logo.png"))
	require.Equal(t, "passwd", SafeName("../../etc/passwd"))
	require.Equal(t, "evil.exe", SafeName(`C:\temp\evil.exe`))
	require.Equal(t, "file", SafeName(""))
	require.Equal(t, "file", SafeName(".."))
}

package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalRoundtrip(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("sku,name\nGZ-100,Gauze\n")
	obj, err := local.Upload(ctx, data, UploadInput{
		Folder:      "uploads/supplier-1",
		Filename:    "catalog.csv",
		ContentType: "text/csv",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(obj.StorageKey, "uploads/supplier-1/"))
	require.True(t, strings.HasSuffix(obj.StorageKey, "-catalog.csv"))
	require.Equal(t, "/files/"+obj.StorageKey, obj.URL)
	require.Equal(t, int64(len(data)), obj.FileSize)

	got, err := local.Get(ctx, obj.StorageKey)
	require.NoError(t, err)
	require.Equal(t, data, got)

	exists, err := local.Exists(ctx, obj.StorageKey)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, local.Delete(ctx, obj.StorageKey))
	exists, err = local.Exists(ctx, obj.StorageKey)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = local.Get(ctx, obj.StorageKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalRejectsUnsafeKeys(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "media/../../secret", "/abs/path"} {
		_, err := local.Get(ctx, key)
		require.ErrorIs(t, err, ErrInvalidKey, key)
		_, err = local.Exists(ctx, key)
		require.ErrorIs(t, err, ErrInvalidKey, key)
		require.ErrorIs(t, local.Delete(ctx, key), ErrInvalidKey, key)
	}
}

func TestLocalSanitizesInput(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := local.Upload(ctx, []byte("x"), UploadInput{
		Folder:   "../outside",
		Filename: "../../evil name?.png",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(obj.StorageKey, "misc/"))
	require.True(t, strings.HasSuffix(obj.StorageKey, "-evil_name_.png"))

	got, err := local.Get(ctx, obj.StorageKey)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}

func TestLocalDeleteMissingKeyIsNoop(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, local.Delete(context.Background(), "media/nothing-here.png"))
}

func TestNewLocalRequiresBaseDir(t *testing.T) {
	_, err := NewLocal("", "")
	require.Error(t, err)
}

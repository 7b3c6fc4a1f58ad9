package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
)

func TestLocalPutListDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewLocal(dir, "uploads/")
	require.NoError(t, err)

	stored, err := store.Put(ctx, PutInput{Body: strings.NewReader("hello"), Size: 5, OriginalName: "My Notes.PDF"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.Locator, "/uploads/My_Notes_"))
	assert.True(t, strings.HasSuffix(stored.Locator, ".pdf"))
	assert.Empty(t, stored.StorageID)
	assert.Equal(t, int64(5), stored.Size)

	key, err := store.Key(Ref{Locator: stored.Locator})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// 未完成的临时文件不出现在列表中
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.bin.tmp"), []byte("x"), 0o600))

	var keys []string
	require.NoError(t, store.List(ctx, func(o Object) error {
		keys = append(keys, o.Key)

		return nil
	}))
	assert.Equal(t, []string{key}, keys)

	require.NoError(t, store.Delete(ctx, Ref{Locator: stored.Locator}))
	_, err = os.Stat(filepath.Join(dir, key))
	assert.True(t, os.IsNotExist(err))

	// 再次删除不报错
	assert.NoError(t, store.Delete(ctx, Ref{Locator: stored.Locator}))
}

func TestLocalKeyRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	for _, ref := range []Ref{
		{Locator: "/uploads/../etc/passwd"},
		{Locator: "/elsewhere/file.txt"},
		{StorageID: "a/b"},
		{Locator: "/uploads/"},
	} {
		_, err := store.Key(ref)
		assert.ErrorIs(t, err, ErrInvalidRef, "ref %+v", ref)
	}
}

func TestLocalPing(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestStorageName(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	name := StorageName(`C:\docs\Report (final).tar.GZ`, now)
	assert.Regexp(t, `^Report_final_\.tar_20260102030405_[0-9a-f]{8}\.gz$`, name)

	assert.Regexp(t, `^file_20260102030405_[0-9a-f]{8}$`, StorageName("", now))
	assert.Regexp(t, `^file_20260102030405_[0-9a-f]{8}$`, StorageName("../..", now))
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := configs.Defaults()
	cfg.Blob.Dir = t.TempDir()

	store, err := New(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "local", store.Type())

	cfg.Blob.Type = "ftp"
	_, err = New(context.Background(), &cfg)
	assert.Error(t, err)

	assert.Contains(t, GetRegisteredTypes(), configs.BlobTypeS3)
}

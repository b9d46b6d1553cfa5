package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/autolot/applications/server/domain"
)

func TestStorageUploadAndRead(t *testing.T) {
	ctx := context.Background()
	st := NewStorage("storage_0", 10, log.NewNopLogger())

	n, err := st.UploadFilePart(ctx, "a.png", strings.NewReader("12345"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	free, err := st.GetFreeSpace()
	require.NoError(t, err)
	assert.Equal(t, int64(5), free)

	body, err := st.ReadFilePart(ctx, "a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = st.UploadFilePart(ctx, "b.png", bytes.NewReader(make([]byte, 6)))
	assert.ErrorIs(t, err, domain.ErrNotEnoughSpace)

	require.NoError(t, st.DeleteFilePart(ctx, "a.png"))
	free, _ = st.GetFreeSpace()
	assert.Equal(t, int64(10), free)

	_, err = st.ReadFilePart(ctx, "a.png")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestStorageOverwriteReleasesSpace(t *testing.T) {
	ctx := context.Background()
	st := NewStorage("storage_0", 10, log.NewNopLogger())

	_, err := st.UploadFilePart(ctx, "a.png", bytes.NewReader(make([]byte, 8)))
	require.NoError(t, err)
	_, err = st.UploadFilePart(ctx, "a.png", bytes.NewReader(make([]byte, 9)))
	require.NoError(t, err)

	free, _ := st.GetFreeSpace()
	assert.Equal(t, int64(1), free)
}

func TestStorageManagerPicksEmptiest(t *testing.T) {
	ctx := context.Background()
	logger := log.NewNopLogger()
	m := NewStorageManager(logger)
	assert.Equal(t, 0, m.StoragesCount(ctx))

	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("storage_%d", i)
		require.NoError(t, m.AddStorage(ctx, url, NewStorage(url, int64(100*(i+1)), logger)))
	}
	assert.Error(t, m.AddStorage(ctx, "storage_0", NewStorage("storage_0", 1, logger)))
	assert.Equal(t, 3, m.StoragesCount(ctx))

	got, err := m.GetStorages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "storage_2", got[0].GetStorageURL())
	assert.Equal(t, "storage_1", got[1].GetStorageURL())

	_, err = m.GetStorages(ctx, 4)
	assert.Error(t, err)

	st, err := m.GetStorage(ctx, "storage_1")
	require.NoError(t, err)
	assert.Equal(t, "storage_1", st.GetStorageURL())

	_, err = m.GetStorage(ctx, "missing")
	assert.Error(t, err)
}

func TestFileMetaStorageHidesUnfinished(t *testing.T) {
	ctx := context.Background()
	s := NewFileMetaStorage()

	meta := domain.FileMeta{Name: "car.jpg", ContentLength: 3}
	require.NoError(t, s.StartProcessingFileMeta(ctx, meta))
	assert.Error(t, s.StartProcessingFileMeta(ctx, meta))

	_, err := s.GetFileMeta(ctx, "car.jpg")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	require.NoError(t, s.CompleteFileMeta(ctx, "car.jpg"))
	got, err := s.GetFileMeta(ctx, "car.jpg")
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	require.NoError(t, s.DeleteFileMeta(ctx, "car.jpg"))
	_, err = s.GetFileMeta(ctx, "car.jpg")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	assert.ErrorIs(t, s.CompleteFileMeta(ctx, "missing"), domain.ErrFileNotFound)
}

package interfaces

import (
	"context"
	"io"
)

// Storage keeps the parts of listing images. A single Storage never holds
// more than one part of the same file.
type Storage interface {
	UploadFilePart(ctx context.Context, path string, body io.Reader) (int64, error)
	ReadFilePart(ctx context.Context, path string) (io.ReadCloser, error)
	DeleteFilePart(ctx context.Context, path string) error
	GetFreeSpace() (int64, error)
	GetStorageURL() string
}

type StorageManager interface {
	// GetStorages returns count distinct storages, the emptiest first.
	GetStorages(ctx context.Context, count int) ([]Storage, error)
	GetStorage(ctx context.Context, storageURL string) (Storage, error)
	StoragesCount(ctx context.Context) int
	AddStorage(ctx context.Context, storageURL string, storage Storage) error
}

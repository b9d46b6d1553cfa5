package interfaces

import (
	"context"

	"github.com/donmikel/autolot/applications/server/domain"
)

type FileMetaStorage interface {
	StartProcessingFileMeta(ctx context.Context, meta domain.FileMeta) error
	CompleteFileMeta(ctx context.Context, name string) error
	// GetFileMeta returns domain.ErrFileNotFound for unknown and unfinished files.
	GetFileMeta(ctx context.Context, name string) (domain.FileMeta, error)
	DeleteFileMeta(ctx context.Context, name string) error
}

package server

import (
	"context"

	"github.com/donmikel/autolot/applications/server/domain"
)

type FileService interface {
	PutFile(ctx context.Context, file domain.File) error
	GetFile(ctx context.Context, name string) (domain.File, error)
}

// UploadService stores a batch of listing images sent to the upload endpoint.
// The batch is stored completely or not at all.
type UploadService interface {
	UploadFiles(ctx context.Context, files []domain.File) ([]domain.UploadedFile, error)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/donmikel/autolot/applications/server/domain"
	"github.com/donmikel/autolot/applications/server/interfaces"
)

const (
	defaultPartsNumToSplit     = 5
	defaultMinChunkSizeInBytes = 10 * 1024 // 10 kB
)

var extByContentType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// Service splits files into parts spread over several storages and
// assembles them back on read.
type Service struct {
	fileMetaStorage     interfaces.FileMetaStorage
	storageManager      interfaces.StorageManager
	partsNumToSplit     int
	minChunkSizeInBytes int64
	publicURL           string
	newName             func() string
}

type Option func(*Service)

// WithPublicURL sets the base used to build URLs of uploaded files.
func WithPublicURL(u string) Option {
	return func(s *Service) {
		s.publicURL = strings.TrimRight(u, "/")
	}
}

func WithPartsNumToSplit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.partsNumToSplit = n
		}
	}
}

func WithMinChunkSize(size int64) Option {
	return func(s *Service) {
		if size > 0 {
			s.minChunkSizeInBytes = size
		}
	}
}

func withNameGenerator(f func() string) Option {
	return func(s *Service) {
		s.newName = f
	}
}

func NewService(fileMetaStorage interfaces.FileMetaStorage, storageManager interfaces.StorageManager, opts ...Option) *Service {
	s := &Service{
		fileMetaStorage:     fileMetaStorage,
		storageManager:      storageManager,
		partsNumToSplit:     defaultPartsNumToSplit,
		minChunkSizeInBytes: defaultMinChunkSizeInBytes,
		newName:             func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) PutFile(ctx context.Context, file domain.File) error {
	// A re-upload replaces the previous version and its parts.
	s.deleteFile(ctx, file.Meta.Name)

	// A part never shares a storage with another part of the same file.
	splitCount := min(s.partsNumToSplit, s.storageManager.StoragesCount(ctx))
	if splitCount < 1 && file.Meta.ContentLength > 0 {
		return fmt.Errorf("can't store %s: no storages registered", file.Meta.Name)
	}

	partSizes := s.calculatePartsSize(file.Meta.ContentLength, splitCount)

	storages, err := s.storageManager.GetStorages(ctx, len(partSizes))
	if err != nil {
		return fmt.Errorf("can't get storages error: %w", err)
	}

	fileParts := s.getFileParts(storages, file.Meta, partSizes)
	file.Meta.Parts = fileParts

	if err = s.fileMetaStorage.StartProcessingFileMeta(ctx, file.Meta); err != nil {
		return fmt.Errorf("can't put starting file meta: %w", err)
	}

	for i, filePart := range fileParts {
		body := io.LimitReader(file.Body, filePart.ContentLength)

		n, err := storages[i].UploadFilePart(ctx, filePart.Path, body)
		if err == nil && n != filePart.ContentLength {
			err = fmt.Errorf("part %d truncated: got %d of %d bytes", i, n, filePart.ContentLength)
		}
		if err != nil {
			s.rollback(ctx, file.Meta.Name, fileParts[:i])
			return fmt.Errorf("can't upload file part: %w", err)
		}
	}

	if err = s.fileMetaStorage.CompleteFileMeta(ctx, file.Meta.Name); err != nil {
		s.rollback(ctx, file.Meta.Name, fileParts)
		return fmt.Errorf("can't complete file meta: %w", err)
	}

	return nil
}

// UploadFiles stores every file under a fresh name and returns their public
// descriptors in request order. Files already stored are removed when a later
// one fails.
func (s *Service) UploadFiles(ctx context.Context, files []domain.File) ([]domain.UploadedFile, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}

	result := make([]domain.UploadedFile, 0, len(files))
	stored := make([]string, 0, len(files))

	for _, f := range files {
		name := s.newName() + extension(f.Meta)
		f.Meta.Name = name

		if err := s.PutFile(ctx, f); err != nil {
			for _, n := range stored {
				s.deleteFile(ctx, n)
			}
			return nil, fmt.Errorf("can't store %s: %w", name, err)
		}

		stored = append(stored, name)
		result = append(result, domain.UploadedFile{
			URL:         s.fileURL(name),
			Name:        name,
			Size:        f.Meta.ContentLength,
			ContentType: f.Meta.ContentType,
		})
	}

	return result, nil
}

func (s *Service) GetFile(ctx context.Context, name string) (domain.File, error) {
	meta, err := s.fileMetaStorage.GetFileMeta(ctx, name)
	if err != nil {
		return domain.File{}, fmt.Errorf("can't get file metadata, error: %w", err)
	}

	return domain.File{
		Meta: meta,
		Body: &filePartsReader{
			storageManger: s.storageManager,
			meta:          meta,
			ctx:           ctx,
		},
	}, nil
}

func (s *Service) fileURL(name string) string {
	return s.publicURL + path.Join("/file", name)
}

func (s *Service) deleteFile(ctx context.Context, name string) {
	meta, err := s.fileMetaStorage.GetFileMeta(ctx, name)
	if err != nil {
		return
	}
	s.rollback(ctx, name, meta.Parts)
}

// rollback is best effort: storages that fail to delete keep orphaned parts.
func (s *Service) rollback(ctx context.Context, name string, parts []domain.FilePart) {
	for _, part := range parts {
		storage, err := s.storageManager.GetStorage(ctx, part.StorageURL)
		if err != nil {
			continue
		}
		_ = storage.DeleteFilePart(ctx, part.Path)
	}
	_ = s.fileMetaStorage.DeleteFileMeta(ctx, name)
}

func extension(meta domain.FileMeta) string {
	if ext, ok := extByContentType[meta.ContentType]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(meta.Name))
}

type filePartsReader struct {
	currentPart     int
	storageManger   interfaces.StorageManager
	currentPartBody io.ReadCloser
	meta            domain.FileMeta
	ctx             context.Context
}

func (f *filePartsReader) getNextStorage() error {
	if f.currentPart >= len(f.meta.Parts) {
		f.currentPartBody = nil
		return io.EOF
	}

	part := f.meta.Parts[f.currentPart]
	storage, err := f.storageManger.GetStorage(f.ctx, part.StorageURL)
	if err != nil {
		return fmt.Errorf("can't get storage by URL, error: %w", err)
	}

	body, err := storage.ReadFilePart(f.ctx, part.Path)
	if err != nil {
		f.currentPartBody = nil
		return fmt.Errorf("can't read part from storage, error: %w", err)
	}

	f.currentPartBody = body
	f.currentPart++

	return nil
}

func (f *filePartsReader) Read(p []byte) (n int, err error) {
	if f.currentPartBody == nil {
		if err = f.getNextStorage(); err != nil {
			return 0, err
		}
	}

	n, err = f.currentPartBody.Read(p)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return n, err
		}

		if err = f.currentPartBody.Close(); err != nil {
			return n, fmt.Errorf("can't close body, error: %w", err)
		}

		// The next part is opened on the following Read.
		f.currentPartBody = nil
		if n == 0 {
			return f.Read(p)
		}

		return n, nil
	}

	return n, nil
}

func (f *filePartsReader) Close() error {
	if f.currentPartBody != nil {
		return f.currentPartBody.Close()
	}

	return nil
}

func (s *Service) getFileParts(storages []interfaces.Storage, fileMeta domain.FileMeta, partSizes []int64) []domain.FilePart {
	fileParts := make([]domain.FilePart, 0, len(partSizes))

	for i, size := range partSizes {
		fileParts = append(fileParts, domain.FilePart{
			StorageURL:    storages[i].GetStorageURL(),
			Path:          fileMeta.Name,
			ContentLength: size,
		})
	}

	return fileParts
}

func (s *Service) calculatePartsSize(total int64, splitCount int) []int64 {
	result := make([]int64, 0, splitCount)

	remain := total
	for remain > 0 && splitCount > 0 {
		partSize := remain / int64(splitCount)
		if remain%int64(splitCount) != 0 {
			partSize++
		}

		if partSize <= s.minChunkSizeInBytes {
			partSize = min(remain, s.minChunkSizeInBytes)
		}

		result = append(result, partSize)

		remain -= partSize
		splitCount--
	}

	return result
}

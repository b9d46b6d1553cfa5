package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/donmikel/autolot/applications/server/domain"
	"github.com/donmikel/autolot/applications/server/interfaces"
)

type fileMeta struct {
	meta       domain.FileMeta
	inProgress bool
}

type inMemoryFileMetaStorage struct {
	metaData map[string]fileMeta
	mutex    sync.RWMutex
}

func NewFileMetaStorage() interfaces.FileMetaStorage {
	return &inMemoryFileMetaStorage{
		metaData: map[string]fileMeta{},
	}
}

func (i *inMemoryFileMetaStorage) StartProcessingFileMeta(ctx context.Context, meta domain.FileMeta) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if m, ok := i.metaData[meta.Name]; ok && m.inProgress {
		return fmt.Errorf("file %s is already being uploaded", meta.Name)
	}

	i.metaData[meta.Name] = fileMeta{
		meta:       meta,
		inProgress: true,
	}

	return nil
}

func (i *inMemoryFileMetaStorage) CompleteFileMeta(ctx context.Context, name string) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	m, ok := i.metaData[name]
	if !ok {
		return fmt.Errorf("file %s: %w", name, domain.ErrFileNotFound)
	}

	m.inProgress = false
	i.metaData[name] = m

	return nil
}

func (i *inMemoryFileMetaStorage) GetFileMeta(ctx context.Context, name string) (domain.FileMeta, error) {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	m, ok := i.metaData[name]
	if !ok || m.inProgress {
		return domain.FileMeta{}, fmt.Errorf("file %s: %w", name, domain.ErrFileNotFound)
	}

	return m.meta, nil
}

func (i *inMemoryFileMetaStorage) DeleteFileMeta(ctx context.Context, name string) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	delete(i.metaData, name)

	return nil
}

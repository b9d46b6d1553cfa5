package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/autolot/applications/server/domain"
	"github.com/donmikel/autolot/applications/server/interfaces"
)

const DefaultFreeSpaceInBytes = 100 * 1024 * 1024 // 100 Mb

type inMemoryStorage struct {
	dataByPath map[string][]byte
	freeSpace  int64
	url        string
	log        log.Logger
	mutex      sync.RWMutex
}

func NewStorage(url string, freeSpace int64, logger log.Logger) interfaces.Storage {
	if freeSpace <= 0 {
		freeSpace = DefaultFreeSpaceInBytes
	}

	return &inMemoryStorage{
		url:        url,
		log:        logger,
		dataByPath: map[string][]byte{},
		freeSpace:  freeSpace,
	}
}

func (m *inMemoryStorage) GetStorageURL() string {
	return m.url
}

func (m *inMemoryStorage) UploadFilePart(ctx context.Context, path string, body io.Reader) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("can't read part body: %w", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	dataLen := int64(len(data))
	if old, ok := m.dataByPath[path]; ok {
		m.freeSpace += int64(len(old))
		delete(m.dataByPath, path)
	}
	if dataLen > m.freeSpace {
		return 0, fmt.Errorf("storage %s: %w", m.url, domain.ErrNotEnoughSpace)
	}

	m.dataByPath[path] = data
	m.freeSpace -= dataLen

	level.Debug(m.log).Log("msg", "file part uploaded",
		"path", path,
		"storage", m.url,
		"size", humanize.Bytes(uint64(dataLen)),
		"free_space", humanize.Bytes(uint64(m.freeSpace)),
	)

	return dataLen, nil
}

func (m *inMemoryStorage) ReadFilePart(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	data, ok := m.dataByPath[path]
	if !ok {
		return nil, fmt.Errorf("part %s on %s: %w", path, m.url, domain.ErrFileNotFound)
	}

	level.Debug(m.log).Log("msg", "file part read",
		"path", path,
		"storage", m.url,
	)

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *inMemoryStorage) DeleteFilePart(ctx context.Context, path string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.freeSpace += int64(len(m.dataByPath[path]))
	delete(m.dataByPath, path)

	return nil
}

func (m *inMemoryStorage) GetFreeSpace() (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.freeSpace, nil
}

package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/autolot/applications/server/interfaces"
)

type storages []interfaces.Storage

type sm struct {
	hostToStorage map[string]interfaces.Storage
	storages      storages
	m             sync.Mutex
	logger        log.Logger
}

func NewStorageManager(logger log.Logger) interfaces.StorageManager {
	return &sm{
		hostToStorage: map[string]interfaces.Storage{},
		storages:      storages{},
		logger:        logger,
	}
}

func (s *sm) GetStorages(ctx context.Context, count int) ([]interfaces.Storage, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if count > len(s.storages) {
		return nil, fmt.Errorf("requested %d storages, only %d registered", count, len(s.storages))
	}

	sort.Stable(sort.Reverse(s.storages))

	result := make(storages, count)
	copy(result, s.storages[:count])

	level.Debug(s.logger).Log("msg", "selected storages",
		"storages", result,
	)

	return result, nil
}

func (s *sm) StoragesCount(ctx context.Context) int {
	s.m.Lock()
	defer s.m.Unlock()

	return len(s.storages)
}

func (s *sm) GetStorage(ctx context.Context, storageURL string) (interfaces.Storage, error) {
	s.m.Lock()
	defer s.m.Unlock()

	st, ok := s.hostToStorage[storageURL]
	if !ok {
		return nil, fmt.Errorf("storage with URL = %s not found", storageURL)
	}

	return st, nil
}

func (s *sm) AddStorage(ctx context.Context, storageURL string, st interfaces.Storage) error {
	s.m.Lock()
	defer s.m.Unlock()

	if _, ok := s.hostToStorage[storageURL]; ok {
		return fmt.Errorf("storage with URL = %s already registered", storageURL)
	}

	s.storages = append(s.storages, st)
	s.hostToStorage[storageURL] = st

	return nil
}

func (s storages) Len() int {
	return len(s)
}

func (s storages) Less(i, j int) bool {
	si, err := s[i].GetFreeSpace()
	if err != nil {
		return false
	}
	sj, err := s[j].GetFreeSpace()
	if err != nil {
		return false
	}

	return si < sj
}

func (s storages) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s storages) String() string {
	result := make([]string, 0, len(s))
	for _, storage := range s {
		result = append(result, storage.GetStorageURL())
	}

	return strings.Join(result, ", ")
}

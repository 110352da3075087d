package store

import (
	"errors"
	"sync"

	"igarchive/pkg/accounts"
	"igarchive/pkg/logger"
)

// Set lazily opens and caches one Store per partition
type Set struct {
	mu     sync.Mutex
	stores map[string]*Store
	log    logger.Logger
}

// NewSet creates an empty set
func NewSet(log logger.Logger) *Set {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Set{stores: make(map[string]*Store), log: log}
}

// Open returns the store for p, opening it on first use. Partitions are
// keyed by store path, so two ids pointing at one file share a handle.
func (s *Set) Open(p accounts.Partition) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[p.StorePath]; ok {
		return st, nil
	}

	st, err := Open(p.StorePath, s.log)
	if err != nil {
		return nil, err
	}
	s.stores[p.StorePath] = st
	s.log.DebugWithFields("Opened partition store", map[string]interface{}{
		"partition": p.ID,
		"path":      p.StorePath,
	})
	return st, nil
}

// Close closes every open store
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for path, st := range s.stores {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.stores, path)
	}
	return errors.Join(errs...)
}

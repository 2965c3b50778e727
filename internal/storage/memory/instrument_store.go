package memory

import (
	"context"
	"sort"
	"sync"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

// InstrumentStore is an in-memory implementation of storage.InstrumentStore.
type InstrumentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PaymentInstrument // keyed by chainID:symbol
}

// NewInstrumentStore creates a new in-memory instrument store.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		data: make(map[string]*domain.PaymentInstrument),
	}
}

// Upsert inserts or replaces an instrument by its key.
func (s *InstrumentStore) Upsert(_ context.Context, ins *domain.PaymentInstrument) error {
	if ins == nil || ins.Symbol == "" || ins.ChainID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *ins
	s.data[ins.Key()] = &copy
	return nil
}

// Get retrieves an instrument by key. Returns ErrNotFound if not configured.
func (s *InstrumentStore) Get(_ context.Context, key string) (*domain.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ins, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *ins
	return &copy, nil
}

// List retrieves all configured instruments, ordered by key.
func (s *InstrumentStore) List(_ context.Context) ([]*domain.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(*domain.PaymentInstrument) bool { return true }), nil
}

// ListEnabled retrieves all enabled instruments, ordered by key.
func (s *InstrumentStore) ListEnabled(_ context.Context) ([]*domain.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(ins *domain.PaymentInstrument) bool { return ins.Enabled }), nil
}

// collect returns copies of matching instruments sorted by key.
// Caller must hold at least a read lock.
func (s *InstrumentStore) collect(match func(*domain.PaymentInstrument) bool) []*domain.PaymentInstrument {
	var result []*domain.PaymentInstrument
	for _, ins := range s.data {
		if match(ins) {
			copy := *ins
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key() < result[j].Key()
	})

	return result
}

var _ storage.InstrumentStore = (*InstrumentStore)(nil)

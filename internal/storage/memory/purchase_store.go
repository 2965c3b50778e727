package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

// PurchaseStore is an in-memory implementation of storage.PurchaseStore.
// The append and the counter update happen under one lock so totals
// always equal the sum over stored records.
type PurchaseStore struct {
	mu          sync.RWMutex
	records     []*domain.PurchaseRecord // append order, Sequence = index+1
	totalSold   decimal.Decimal
	totalRaised decimal.Decimal
}

// NewPurchaseStore creates a new in-memory purchase store.
func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{
		totalSold:   decimal.Zero,
		totalRaised: decimal.Zero,
	}
}

// Append stores a new purchase record and increments the sale counters
// in the same atomic step.
func (s *PurchaseStore) Append(_ context.Context, rec *domain.PurchaseRecord) error {
	if rec == nil || rec.Buyer == "" || rec.InstrumentKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *rec
	copy.Sequence = int64(len(s.records)) + 1
	s.records = append(s.records, &copy)
	s.totalSold = s.totalSold.Add(rec.TokenAmount)
	s.totalRaised = s.totalRaised.Add(rec.USDValue)

	rec.Sequence = copy.Sequence
	return nil
}

// GetByBuyer retrieves all purchases for a buyer, ordered by sequence ASC.
func (s *PurchaseStore) GetByBuyer(_ context.Context, buyer string) ([]*domain.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PurchaseRecord
	for _, rec := range s.records {
		if rec.Buyer == buyer {
			copy := *rec
			result = append(result, &copy)
		}
	}

	return result, nil
}

// Totals returns the running totals: BAK sold, USD raised, purchase count.
func (s *PurchaseStore) Totals(_ context.Context) (decimal.Decimal, decimal.Decimal, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totalSold, s.totalRaised, int64(len(s.records)), nil
}

var _ storage.PurchaseStore = (*PurchaseStore)(nil)

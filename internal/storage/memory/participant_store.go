package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

// ParticipantStore is an in-memory implementation of storage.ParticipantStore.
type ParticipantStore struct {
	mu            sync.RWMutex
	participants  map[string]*domain.Participant // keyed by address
	claimed       []string                       // append order
	claimedIndex  map[string]struct{}
	referrals     []*domain.ReferralEdge
	totalClaimed  decimal.Decimal
	totalReferral decimal.Decimal
}

// NewParticipantStore creates a new in-memory participant store.
func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{
		participants:  make(map[string]*domain.Participant),
		claimedIndex:  make(map[string]struct{}),
		totalClaimed:  decimal.Zero,
		totalReferral: decimal.Zero,
	}
}

// Get retrieves a participant by address.
func (s *ParticipantStore) Get(_ context.Context, address string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.participants[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyParticipant(p), nil
}

// Put inserts or replaces a participant.
func (s *ParticipantStore) Put(_ context.Context, p *domain.Participant) error {
	if p == nil || p.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants[p.Address] = copyParticipant(p)
	return nil
}

// AppendClaimed appends an address to the claimed list and returns its
// 1-based ordinal. Returns ErrDuplicateKey if already claimed.
func (s *ParticipantStore) AppendClaimed(_ context.Context, address string) (int64, error) {
	if address == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claimedIndex[address]; exists {
		return 0, storage.ErrDuplicateKey
	}

	s.claimed = append(s.claimed, address)
	s.claimedIndex[address] = struct{}{}
	return int64(len(s.claimed)), nil
}

// ClaimedRange returns claimed addresses in append order for
// [offset, offset+limit). Returns ErrInvalidInput if offset exceeds
// the claimed count.
func (s *ParticipantStore) ClaimedRange(_ context.Context, offset, limit int64) ([]string, error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := int64(len(s.claimed))
	if offset > count {
		return nil, storage.ErrInvalidInput
	}

	end := offset + limit
	if end > count {
		end = count
	}

	result := make([]string, end-offset)
	copy(result, s.claimed[offset:end])
	return result, nil
}

// ClaimedCount returns the number of claimed participants.
func (s *ParticipantStore) ClaimedCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.claimed)), nil
}

// AppendReferral stores a referral edge. Append-only.
func (s *ParticipantStore) AppendReferral(_ context.Context, edge *domain.ReferralEdge) error {
	if edge == nil || edge.Referrer == "" || edge.Referee == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *edge
	s.referrals = append(s.referrals, &copy)
	return nil
}

// ReferralsByReferrer retrieves all edges credited to a referrer.
func (s *ParticipantStore) ReferralsByReferrer(_ context.Context, referrer string) ([]*domain.ReferralEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReferralEdge
	for _, edge := range s.referrals {
		if edge.Referrer == referrer {
			copy := *edge
			result = append(result, &copy)
		}
	}

	return result, nil
}

// AddCounters atomically adds to the running totals.
func (s *ParticipantStore) AddCounters(_ context.Context, claimed, referralBonus decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalClaimed = s.totalClaimed.Add(claimed)
	s.totalReferral = s.totalReferral.Add(referralBonus)
	return nil
}

// Counters returns the running claimed-amount and referral-bonus totals.
func (s *ParticipantStore) Counters(_ context.Context) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.totalClaimed, s.totalReferral, nil
}

// copyParticipant deep-copies a participant including its task map.
func copyParticipant(p *domain.Participant) *domain.Participant {
	c := *p
	c.CompletedTasks = make(map[string]bool, len(p.CompletedTasks))
	for task, done := range p.CompletedTasks {
		c.CompletedTasks[task] = done
	}
	return &c
}

var _ storage.ParticipantStore = (*ParticipantStore)(nil)

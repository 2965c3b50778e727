package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
)

// InstrumentStore provides access to payment_instruments storage.
// Instruments are admin-configured and mutable.
type InstrumentStore interface {
	// Upsert inserts or replaces an instrument by its key.
	Upsert(ctx context.Context, ins *domain.PaymentInstrument) error

	// Get retrieves an instrument by key. Returns ErrNotFound if not configured.
	Get(ctx context.Context, key string) (*domain.PaymentInstrument, error)

	// List retrieves all configured instruments, ordered by key.
	List(ctx context.Context) ([]*domain.PaymentInstrument, error)

	// ListEnabled retrieves all enabled instruments, ordered by key.
	ListEnabled(ctx context.Context) ([]*domain.PaymentInstrument, error)
}

// PurchaseStore provides access to purchase_records storage and the
// running sale counters. Records are append-only; the store assigns
// each record a strictly increasing sequence and updates the counters
// atomically with the append, so totals always equal the sum over all
// records.
type PurchaseStore interface {
	// Append stores a new purchase record and increments the sale
	// counters in the same atomic step. The record's Sequence field is
	// assigned by the store.
	Append(ctx context.Context, rec *domain.PurchaseRecord) error

	// GetByBuyer retrieves all purchases for a buyer, ordered by sequence ASC.
	GetByBuyer(ctx context.Context, buyer string) ([]*domain.PurchaseRecord, error)

	// Totals returns the running totals: BAK sold, USD raised, purchase count.
	Totals(ctx context.Context) (sold, raised decimal.Decimal, count int64, err error)
}

// ParticipantStore provides access to airdrop participants, referral
// edges and the airdrop counters. Participants are created on first
// write and never deleted; the claimed list preserves append order.
type ParticipantStore interface {
	// Get retrieves a participant by address. Returns ErrNotFound if
	// the address has never been seen.
	Get(ctx context.Context, address string) (*domain.Participant, error)

	// Put inserts or replaces a participant.
	Put(ctx context.Context, p *domain.Participant) error

	// AppendClaimed appends an address to the claimed participant list
	// and returns its 1-based ordinal. Returns ErrDuplicateKey if the
	// address is already on the list.
	AppendClaimed(ctx context.Context, address string) (int64, error)

	// ClaimedRange returns claimed participant addresses in append
	// order for [offset, offset+limit). Returns ErrInvalidInput if
	// offset exceeds the claimed count.
	ClaimedRange(ctx context.Context, offset, limit int64) ([]string, error)

	// ClaimedCount returns the number of claimed participants.
	ClaimedCount(ctx context.Context) (int64, error)

	// AppendReferral stores a referral edge. Append-only.
	AppendReferral(ctx context.Context, edge *domain.ReferralEdge) error

	// ReferralsByReferrer retrieves all edges credited to a referrer.
	ReferralsByReferrer(ctx context.Context, referrer string) ([]*domain.ReferralEdge, error)

	// AddCounters atomically adds to the claimed-amount and
	// referral-bonus running totals.
	AddCounters(ctx context.Context, claimed, referralBonus decimal.Decimal) error

	// Counters returns the running claimed-amount and referral-bonus totals.
	Counters(ctx context.Context) (claimed, referralBonus decimal.Decimal, err error)
}

// SnapshotHistoryStore records every computed liquidity snapshot for
// later analysis. Append-only timeseries.
type SnapshotHistoryStore interface {
	// Append stores one snapshot's aggregate row.
	Append(ctx context.Context, snap *domain.LiquiditySnapshot) error

	// GetRange retrieves aggregate rows computed within [start, end]
	// (inclusive, ms), ordered by computed_at ASC.
	GetRange(ctx context.Context, start, end int64) ([]*domain.LiquiditySnapshot, error)
}

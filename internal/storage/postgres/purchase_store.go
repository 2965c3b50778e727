package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

// PurchaseStore implements storage.PurchaseStore using PostgreSQL.
// Sequences come from a BIGSERIAL column and totals are computed by
// aggregation, so the counters can never drift from the records.
type PurchaseStore struct {
	pool *Pool
}

// NewPurchaseStore creates a new PurchaseStore.
func NewPurchaseStore(pool *Pool) *PurchaseStore {
	return &PurchaseStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PurchaseStore = (*PurchaseStore)(nil)

// Append stores a new purchase record. The record's Sequence field is
// assigned from the insert.
func (s *PurchaseStore) Append(ctx context.Context, rec *domain.PurchaseRecord) error {
	query := `
		INSERT INTO purchase_records (
			buyer, instrument_key, payment_amount, token_amount, usd_value, treasury_wallet, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING sequence
	`

	err := s.pool.QueryRow(ctx, query,
		rec.Buyer,
		rec.InstrumentKey,
		rec.PaymentAmount.String(),
		rec.TokenAmount.String(),
		rec.USDValue.String(),
		rec.TreasuryWallet,
		rec.Timestamp,
	).Scan(&rec.Sequence)
	if err != nil {
		return fmt.Errorf("append purchase: %w", err)
	}
	return nil
}

// GetByBuyer retrieves all purchases for a buyer, ordered by sequence ASC.
func (s *PurchaseStore) GetByBuyer(ctx context.Context, buyer string) ([]*domain.PurchaseRecord, error) {
	query := `
		SELECT sequence, buyer, instrument_key,
		       payment_amount::text, token_amount::text, usd_value::text, treasury_wallet, ts
		FROM purchase_records
		WHERE buyer = $1
		ORDER BY sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, buyer)
	if err != nil {
		return nil, fmt.Errorf("get purchases by buyer: %w", err)
	}
	defer rows.Close()

	var records []*domain.PurchaseRecord
	for rows.Next() {
		var (
			rec                  domain.PurchaseRecord
			payment, tokens, usd string
		)
		err := rows.Scan(
			&rec.Sequence,
			&rec.Buyer,
			&rec.InstrumentKey,
			&payment,
			&tokens,
			&usd,
			&rec.TreasuryWallet,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		if rec.PaymentAmount, err = parseNumeric(payment); err != nil {
			return nil, err
		}
		if rec.TokenAmount, err = parseNumeric(tokens); err != nil {
			return nil, err
		}
		if rec.USDValue, err = parseNumeric(usd); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}
	return records, nil
}

// Totals returns the running totals: BAK sold, USD raised, purchase count.
func (s *PurchaseStore) Totals(ctx context.Context) (decimal.Decimal, decimal.Decimal, int64, error) {
	query := `
		SELECT COALESCE(SUM(token_amount), 0)::text,
		       COALESCE(SUM(usd_value), 0)::text,
		       COUNT(*)
		FROM purchase_records
	`

	var (
		soldStr, raisedStr string
		count              int64
	)
	if err := s.pool.QueryRow(ctx, query).Scan(&soldStr, &raisedStr, &count); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, 0, fmt.Errorf("sale totals: %w", err)
	}

	sold, err := parseNumeric(soldStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, 0, err
	}
	raised, err := parseNumeric(raisedStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, 0, err
	}
	return sold, raised, count, nil
}

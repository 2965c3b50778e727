package postgres

import (
	"context"
	"fmt"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

// InstrumentStore implements storage.InstrumentStore using PostgreSQL.
type InstrumentStore struct {
	pool *Pool
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(pool *Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InstrumentStore = (*InstrumentStore)(nil)

// Upsert inserts or replaces an instrument by its key.
func (s *InstrumentStore) Upsert(ctx context.Context, ins *domain.PaymentInstrument) error {
	query := `
		INSERT INTO payment_instruments (
			key, symbol, chain_id, contract_address, decimals,
			price_usd, min_purchase_usd, max_purchase_usd, enabled, treasury_wallet
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			chain_id = EXCLUDED.chain_id,
			contract_address = EXCLUDED.contract_address,
			decimals = EXCLUDED.decimals,
			price_usd = EXCLUDED.price_usd,
			min_purchase_usd = EXCLUDED.min_purchase_usd,
			max_purchase_usd = EXCLUDED.max_purchase_usd,
			enabled = EXCLUDED.enabled,
			treasury_wallet = EXCLUDED.treasury_wallet,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		ins.Key(),
		ins.Symbol,
		int64(ins.ChainID),
		ins.ContractAddress,
		ins.Decimals,
		ins.PriceUSD.String(),
		ins.MinPurchaseUSD.String(),
		ins.MaxPurchaseUSD.String(),
		ins.Enabled,
		ins.TreasuryWallet,
	)
	if err != nil {
		return fmt.Errorf("upsert instrument: %w", err)
	}
	return nil
}

// Get retrieves an instrument by key. Returns ErrNotFound if not configured.
func (s *InstrumentStore) Get(ctx context.Context, key string) (*domain.PaymentInstrument, error) {
	query := `
		SELECT symbol, chain_id, contract_address, decimals,
		       price_usd::text, min_purchase_usd::text, max_purchase_usd::text, enabled, treasury_wallet
		FROM payment_instruments
		WHERE key = $1
	`

	row := s.pool.QueryRow(ctx, query, key)
	ins, err := scanInstrument(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get instrument by key: %w", err)
	}
	return ins, nil
}

// List retrieves all configured instruments, ordered by key.
func (s *InstrumentStore) List(ctx context.Context) ([]*domain.PaymentInstrument, error) {
	return s.list(ctx, `
		SELECT symbol, chain_id, contract_address, decimals,
		       price_usd::text, min_purchase_usd::text, max_purchase_usd::text, enabled, treasury_wallet
		FROM payment_instruments
		ORDER BY key ASC
	`)
}

// ListEnabled retrieves all enabled instruments, ordered by key.
func (s *InstrumentStore) ListEnabled(ctx context.Context) ([]*domain.PaymentInstrument, error) {
	return s.list(ctx, `
		SELECT symbol, chain_id, contract_address, decimals,
		       price_usd::text, min_purchase_usd::text, max_purchase_usd::text, enabled, treasury_wallet
		FROM payment_instruments
		WHERE enabled
		ORDER BY key ASC
	`)
}

func (s *InstrumentStore) list(ctx context.Context, query string) ([]*domain.PaymentInstrument, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*domain.PaymentInstrument
	for rows.Next() {
		ins, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument row: %w", err)
		}
		instruments = append(instruments, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument rows: %w", err)
	}
	return instruments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanInstrument scans a single row into a PaymentInstrument.
func scanInstrument(row rowScanner) (*domain.PaymentInstrument, error) {
	var (
		ins             domain.PaymentInstrument
		chainID         int64
		price, min, max string
	)

	err := row.Scan(
		&ins.Symbol,
		&chainID,
		&ins.ContractAddress,
		&ins.Decimals,
		&price,
		&min,
		&max,
		&ins.Enabled,
		&ins.TreasuryWallet,
	)
	if err != nil {
		return nil, err
	}

	ins.ChainID = domain.ChainID(chainID)
	if ins.PriceUSD, err = parseNumeric(price); err != nil {
		return nil, err
	}
	if ins.MinPurchaseUSD, err = parseNumeric(min); err != nil {
		return nil, err
	}
	if ins.MaxPurchaseUSD, err = parseNumeric(max); err != nil {
		return nil, err
	}
	return &ins, nil
}

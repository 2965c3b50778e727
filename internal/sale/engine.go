package sale

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/observability"
	"brainark-core/internal/storage"
)

// DefaultTotalSupply is the BAK allocation for the primary sale.
var DefaultTotalSupply = decimal.NewFromInt(100_000_000)

// Engine validates and records purchases against the configured
// instruments. Concurrent writers are serialized by the purchase
// store, not by the engine; the paused flag and instrument mutations
// are the only state the engine guards itself.
type Engine struct {
	instruments storage.InstrumentStore
	purchases   storage.PurchaseStore
	quotes      *QuoteEngine

	owner           string
	defaultTreasury string
	totalSupply     decimal.Decimal

	mu     sync.Mutex
	paused bool

	log *log.Logger
	now func() time.Time
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) setPaused(v bool) {
	e.mu.Lock()
	e.paused = v
	e.mu.Unlock()
}

// Config carries the engine's fixed parameters.
type Config struct {
	Owner           string
	DefaultTreasury string
	TotalSupply     decimal.Decimal
	TokenPriceUSD   decimal.Decimal
}

// NewEngine creates a sale engine over the given stores. Zero supply
// and price fall back to the defaults.
func NewEngine(instruments storage.InstrumentStore, purchases storage.PurchaseStore, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.TotalSupply.IsZero() {
		cfg.TotalSupply = DefaultTotalSupply
	}
	return &Engine{
		instruments:     instruments,
		purchases:       purchases,
		quotes:          NewQuoteEngine(cfg.TokenPriceUSD),
		owner:           strings.ToLower(cfg.Owner),
		defaultTreasury: cfg.DefaultTreasury,
		totalSupply:     cfg.TotalSupply,
		log:             logger,
		now:             time.Now,
	}
}

// GetQuote prices paymentAmount against the instrument identified by
// key without recording anything.
func (e *Engine) GetQuote(ctx context.Context, key string, paymentAmount decimal.Decimal) (*domain.Quote, error) {
	ins, err := e.lookupInstrument(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.quotes.Quote(ins, paymentAmount)
}

// Purchase validates a purchase and appends its record. Validation
// order is fixed: instrument, minimum, maximum, slippage. The store
// assigns the record's sequence and bumps the sale counters in the
// same step.
func (e *Engine) Purchase(ctx context.Context, buyer, key string, paymentAmount, minTokenAmountOut decimal.Decimal) (*domain.PurchaseRecord, error) {
	if e.isPaused() {
		observability.RecordPurchaseRejection("sale_inactive")
		return nil, ErrSaleInactive
	}

	ins, err := e.lookupInstrument(ctx, key)
	if err != nil {
		observability.RecordPurchaseRejection("unknown_instrument")
		return nil, err
	}
	q, err := e.quotes.Quote(ins, paymentAmount)
	if err != nil {
		observability.RecordPurchaseRejection("bad_instrument")
		return nil, err
	}
	if q.USDValue.LessThan(ins.MinPurchaseUSD) {
		observability.RecordPurchaseRejection("below_minimum")
		return nil, ErrBelowMinimum
	}
	if q.USDValue.GreaterThan(ins.MaxPurchaseUSD) {
		observability.RecordPurchaseRejection("above_maximum")
		return nil, ErrAboveMaximum
	}
	if q.TokenAmount.LessThan(minTokenAmountOut) {
		observability.RecordPurchaseRejection("slippage")
		return nil, ErrSlippageExceeded
	}

	treasury := ins.TreasuryWallet
	if treasury == "" {
		treasury = e.defaultTreasury
	}

	rec := &domain.PurchaseRecord{
		Buyer:          strings.ToLower(buyer),
		InstrumentKey:  ins.Key(),
		PaymentAmount:  q.PaymentAmount,
		TokenAmount:    q.TokenAmount,
		USDValue:       q.USDValue,
		TreasuryWallet: treasury,
		Timestamp:      e.now().UnixMilli(),
	}
	if err := e.purchases.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append purchase: %w", err)
	}

	observability.RecordPurchase(rec.USDValue.InexactFloat64(), rec.TokenAmount.InexactFloat64())
	e.log.Printf("purchase recorded: buyer=%s instrument=%s usd=%s tokens=%s treasury=%s",
		rec.Buyer, rec.InstrumentKey, rec.USDValue.String(), rec.TokenAmount.String(), rec.TreasuryWallet)
	return rec, nil
}

// GetEPOStats returns the running sale totals and remaining supply.
func (e *Engine) GetEPOStats(ctx context.Context) (*domain.SaleStats, error) {
	sold, raised, count, err := e.purchases.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("sale totals: %w", err)
	}
	return &domain.SaleStats{
		TotalSold:       sold,
		TotalRaised:     raised,
		TotalPurchases:  count,
		RemainingSupply: e.totalSupply.Sub(sold),
		TokenPriceUSD:   e.quotes.TokenPriceUSD(),
		Active:          !e.isPaused(),
	}, nil
}

// GetPurchaseHistory returns all purchases made by buyer, oldest first.
func (e *Engine) GetPurchaseHistory(ctx context.Context, buyer string) ([]*domain.PurchaseRecord, error) {
	return e.purchases.GetByBuyer(ctx, strings.ToLower(buyer))
}

// GetSupportedInstruments returns the enabled instruments.
func (e *Engine) GetSupportedInstruments(ctx context.Context) ([]*domain.PaymentInstrument, error) {
	return e.instruments.ListEnabled(ctx)
}

// UpdateInstrumentPrice sets a new USD price on an instrument.
func (e *Engine) UpdateInstrumentPrice(ctx context.Context, caller, key string, priceUSD decimal.Decimal) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	ins, err := e.lookupInstrument(ctx, key)
	if err != nil {
		return err
	}
	ins.PriceUSD = priceUSD
	return e.instruments.Upsert(ctx, ins)
}

// UpdateMinMax sets new purchase bounds (USD) on an instrument.
func (e *Engine) UpdateMinMax(ctx context.Context, caller, key string, minUSD, maxUSD decimal.Decimal) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if maxUSD.LessThan(minUSD) {
		return storage.ErrInvalidInput
	}
	ins, err := e.lookupInstrument(ctx, key)
	if err != nil {
		return err
	}
	ins.MinPurchaseUSD = minUSD
	ins.MaxPurchaseUSD = maxUSD
	return e.instruments.Upsert(ctx, ins)
}

// UpdateTreasuryWallet changes where an instrument's payments are
// custodied. The old and new wallets are logged for the audit trail.
func (e *Engine) UpdateTreasuryWallet(ctx context.Context, caller, key, wallet string) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	ins, err := e.lookupInstrument(ctx, key)
	if err != nil {
		return err
	}
	old := ins.TreasuryWallet
	ins.TreasuryWallet = wallet
	if err := e.instruments.Upsert(ctx, ins); err != nil {
		return err
	}
	e.log.Printf("treasury wallet updated: instrument=%s old=%s new=%s", key, old, wallet)
	return nil
}

// Pause stops new purchases. Quotes and reads keep working.
func (e *Engine) Pause(caller string) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.setPaused(true)
	e.log.Printf("sale paused by %s", caller)
	return nil
}

// Unpause resumes purchases.
func (e *Engine) Unpause(caller string) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.setPaused(false)
	e.log.Printf("sale unpaused by %s", caller)
	return nil
}

// WithdrawalReceipt records an emergency withdrawal instruction.
type WithdrawalReceipt struct {
	InstrumentKey string
	Amount        decimal.Decimal
	To            string
	Timestamp     int64
}

// EmergencyWithdraw instructs moving amount of an instrument's custody
// to an arbitrary address. Owner-gated and otherwise unconditional:
// there is no time-lock and no balance check at this layer, transfer
// execution belongs to the custody signer downstream.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller, key string, amount decimal.Decimal, to string) (*WithdrawalReceipt, error) {
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	ins, err := e.lookupInstrument(ctx, key)
	if err != nil {
		return nil, err
	}
	r := &WithdrawalReceipt{
		InstrumentKey: ins.Key(),
		Amount:        amount,
		To:            to,
		Timestamp:     e.now().UnixMilli(),
	}
	e.log.Printf("emergency withdrawal: instrument=%s amount=%s to=%s by=%s", r.InstrumentKey, amount.String(), to, caller)
	return r, nil
}

func (e *Engine) lookupInstrument(ctx context.Context, key string) (*domain.PaymentInstrument, error) {
	ins, err := e.instruments.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownInstrument
	}
	if err != nil {
		return nil, fmt.Errorf("load instrument %s: %w", key, err)
	}
	return ins, nil
}

func (e *Engine) requireOwner(caller string) error {
	if !strings.EqualFold(caller, e.owner) {
		return ErrNotOwner
	}
	return nil
}

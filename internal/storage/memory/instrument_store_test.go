package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

func usdtInstrument() *domain.PaymentInstrument {
	return &domain.PaymentInstrument{
		Symbol:          "USDT",
		ChainID:         domain.ChainEthereum,
		ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		Decimals:        6,
		PriceUSD:        decimal.NewFromInt(1),
		MinPurchaseUSD:  decimal.NewFromInt(1),
		MaxPurchaseUSD:  decimal.NewFromInt(10000),
		Enabled:         true,
	}
}

func TestInstrumentStore_UpsertAndGet(t *testing.T) {
	store := NewInstrumentStore()
	ctx := context.Background()

	ins := usdtInstrument()
	if err := store.Upsert(ctx, ins); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, ins.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Symbol != "USDT" || got.ChainID != domain.ChainEthereum {
		t.Errorf("instrument mismatch: %+v", got)
	}

	// Upsert replaces.
	ins.PriceUSD = decimal.NewFromFloat(0.99)
	if err := store.Upsert(ctx, ins); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, err = store.Get(ctx, ins.Key())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.PriceUSD.Equal(decimal.NewFromFloat(0.99)) {
		t.Errorf("price not replaced: got %s", got.PriceUSD)
	}
}

func TestInstrumentStore_GetNotFound(t *testing.T) {
	store := NewInstrumentStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "1:WETH")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestInstrumentStore_ListEnabled(t *testing.T) {
	store := NewInstrumentStore()
	ctx := context.Background()

	enabled := usdtInstrument()
	disabled := usdtInstrument()
	disabled.Symbol = "USDC"
	disabled.Enabled = false

	if err := store.Upsert(ctx, enabled); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, disabled); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List: got %d, want 2", len(all))
	}

	active, err := store.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled failed: %v", err)
	}
	if len(active) != 1 || active[0].Symbol != "USDT" {
		t.Errorf("ListEnabled mismatch: %+v", active)
	}
}

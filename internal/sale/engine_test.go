package sale

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage/memory"
)

const (
	testOwner    = "0xOwner00000000000000000000000000000000001"
	testTreasury = "0xTreasury0000000000000000000000000000001"
	testBuyer    = "0xBuyer000000000000000000000000000000001"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	instruments := memory.NewInstrumentStore()
	purchases := memory.NewPurchaseStore()
	ctx := context.Background()

	for _, ins := range []*domain.PaymentInstrument{usdtInstrument(), ethInstrument()} {
		if err := instruments.Upsert(ctx, ins); err != nil {
			t.Fatalf("seed instrument: %v", err)
		}
	}

	return NewEngine(instruments, purchases, Config{
		Owner:           testOwner,
		DefaultTreasury: testTreasury,
	}, log.New(io.Discard, "", 0))
}

func TestEngine_Purchase(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// 100 USDT -> 5000 BAK.
	rec, err := e.Purchase(ctx, testBuyer, domain.InstrumentKey(domain.ChainEthereum, "USDT"),
		decimal.NewFromInt(100_000_000), decimal.NewFromInt(4900))
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if !rec.TokenAmount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("token amount = %s, want 5000", rec.TokenAmount)
	}
	if rec.TreasuryWallet != testTreasury {
		t.Errorf("treasury = %s, want default %s", rec.TreasuryWallet, testTreasury)
	}
	if rec.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", rec.Sequence)
	}

	history, err := e.GetPurchaseHistory(ctx, testBuyer)
	if err != nil {
		t.Fatalf("GetPurchaseHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
}

func TestEngine_PurchaseTreasuryOverride(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	override := "0xPerInstrument00000000000000000000000001"
	ins := usdtInstrument()
	ins.TreasuryWallet = override
	if err := e.instruments.Upsert(ctx, ins); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rec, err := e.Purchase(ctx, testBuyer, ins.Key(), decimal.NewFromInt(100_000_000), decimal.Zero)
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if rec.TreasuryWallet != override {
		t.Errorf("treasury = %s, want override %s", rec.TreasuryWallet, override)
	}
}

func TestEngine_PurchaseValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	usdtKey := domain.InstrumentKey(domain.ChainEthereum, "USDT")

	tests := []struct {
		name    string
		key     string
		amount  decimal.Decimal
		minOut  decimal.Decimal
		wantErr error
	}{
		{"unknown instrument", "1:DOGE", decimal.NewFromInt(100_000_000), decimal.Zero, ErrUnknownInstrument},
		{"below minimum", usdtKey, decimal.NewFromInt(5_000_000), decimal.Zero, ErrBelowMinimum},
		{"above maximum", usdtKey, decimal.NewFromInt(20_000_000_000), decimal.Zero, ErrAboveMaximum},
		{"slippage exceeded", usdtKey, decimal.NewFromInt(100_000_000), decimal.NewFromInt(5001), ErrSlippageExceeded},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Purchase(ctx, testBuyer, tc.key, tc.amount, tc.minOut)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Purchase = %v, want %v", err, tc.wantErr)
			}
		})
	}

	// Rejections must not touch the counters.
	sold, raised, count, err := e.purchases.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if !sold.IsZero() || !raised.IsZero() || count != 0 {
		t.Errorf("rejected purchases mutated totals: sold=%s raised=%s count=%d", sold, raised, count)
	}
}

func TestEngine_PurchaseDisabledInstrument(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	ins := usdtInstrument()
	ins.Enabled = false
	if err := e.instruments.Upsert(ctx, ins); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	_, err := e.Purchase(ctx, testBuyer, ins.Key(), decimal.NewFromInt(100_000_000), decimal.Zero)
	if !errors.Is(err, ErrInstrumentDisabled) {
		t.Errorf("Purchase = %v, want ErrInstrumentDisabled", err)
	}
}

func TestEngine_PauseBlocksPurchase(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	usdtKey := domain.InstrumentKey(domain.ChainEthereum, "USDT")

	if err := e.Pause(testBuyer); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner Pause = %v, want ErrNotOwner", err)
	}
	if err := e.Pause(testOwner); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	_, err := e.Purchase(ctx, testBuyer, usdtKey, decimal.NewFromInt(100_000_000), decimal.Zero)
	if !errors.Is(err, ErrSaleInactive) {
		t.Errorf("paused Purchase = %v, want ErrSaleInactive", err)
	}

	// Quotes keep working while paused.
	if _, err := e.GetQuote(ctx, usdtKey, decimal.NewFromInt(100_000_000)); err != nil {
		t.Errorf("paused GetQuote failed: %v", err)
	}

	if err := e.Unpause(testOwner); err != nil {
		t.Fatalf("Unpause failed: %v", err)
	}
	if _, err := e.Purchase(ctx, testBuyer, usdtKey, decimal.NewFromInt(100_000_000), decimal.Zero); err != nil {
		t.Errorf("Purchase after Unpause failed: %v", err)
	}
}

func TestEngine_GetEPOStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	usdtKey := domain.InstrumentKey(domain.ChainEthereum, "USDT")

	for i := 0; i < 3; i++ {
		if _, err := e.Purchase(ctx, testBuyer, usdtKey, decimal.NewFromInt(100_000_000), decimal.Zero); err != nil {
			t.Fatalf("Purchase failed: %v", err)
		}
	}

	stats, err := e.GetEPOStats(ctx)
	if err != nil {
		t.Fatalf("GetEPOStats failed: %v", err)
	}
	if !stats.TotalSold.Equal(decimal.NewFromInt(15_000)) {
		t.Errorf("total sold = %s, want 15000", stats.TotalSold)
	}
	if !stats.TotalRaised.Equal(decimal.NewFromInt(300)) {
		t.Errorf("total raised = %s, want 300", stats.TotalRaised)
	}
	if stats.TotalPurchases != 3 {
		t.Errorf("total purchases = %d, want 3", stats.TotalPurchases)
	}
	want := DefaultTotalSupply.Sub(decimal.NewFromInt(15_000))
	if !stats.RemainingSupply.Equal(want) {
		t.Errorf("remaining supply = %s, want %s", stats.RemainingSupply, want)
	}
	if !stats.Active {
		t.Error("stats must report active while unpaused")
	}
}

func TestEngine_AdminUpdates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	usdtKey := domain.InstrumentKey(domain.ChainEthereum, "USDT")

	if err := e.UpdateInstrumentPrice(ctx, testBuyer, usdtKey, decimal.NewFromInt(2)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner UpdateInstrumentPrice = %v, want ErrNotOwner", err)
	}

	if err := e.UpdateInstrumentPrice(ctx, testOwner, usdtKey, decimal.NewFromFloat(0.999)); err != nil {
		t.Fatalf("UpdateInstrumentPrice failed: %v", err)
	}
	q, err := e.GetQuote(ctx, usdtKey, decimal.NewFromInt(100_000_000))
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if !q.USDValue.Equal(decimal.NewFromFloat(99.9)) {
		t.Errorf("usd value after price update = %s, want 99.9", q.USDValue)
	}

	if err := e.UpdateMinMax(ctx, testOwner, usdtKey, decimal.NewFromInt(50), decimal.NewFromInt(500)); err != nil {
		t.Fatalf("UpdateMinMax failed: %v", err)
	}
	_, err = e.Purchase(ctx, testBuyer, usdtKey, decimal.NewFromInt(20_000_000), decimal.Zero)
	if !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("Purchase below new minimum = %v, want ErrBelowMinimum", err)
	}

	if err := e.UpdateMinMax(ctx, testOwner, usdtKey, decimal.NewFromInt(500), decimal.NewFromInt(50)); err == nil {
		t.Error("UpdateMinMax with max < min must fail")
	}

	newWallet := "0xRotated0000000000000000000000000000001"
	if err := e.UpdateTreasuryWallet(ctx, testOwner, usdtKey, newWallet); err != nil {
		t.Fatalf("UpdateTreasuryWallet failed: %v", err)
	}
	rec, err := e.Purchase(ctx, testBuyer, usdtKey, decimal.NewFromInt(100_000_000), decimal.Zero)
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if rec.TreasuryWallet != newWallet {
		t.Errorf("treasury = %s, want rotated %s", rec.TreasuryWallet, newWallet)
	}
}

func TestEngine_EmergencyWithdraw(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	usdtKey := domain.InstrumentKey(domain.ChainEthereum, "USDT")
	to := "0xRescue00000000000000000000000000000001"

	if _, err := e.EmergencyWithdraw(ctx, testBuyer, usdtKey, decimal.NewFromInt(1), to); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner EmergencyWithdraw = %v, want ErrNotOwner", err)
	}

	r, err := e.EmergencyWithdraw(ctx, testOwner, usdtKey, decimal.NewFromInt(1000), to)
	if err != nil {
		t.Fatalf("EmergencyWithdraw failed: %v", err)
	}
	if r.InstrumentKey != usdtKey || r.To != to || !r.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("receipt mismatch: %+v", r)
	}

	// Works while paused too; the owner gate is the only guard.
	if err := e.Pause(testOwner); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if _, err := e.EmergencyWithdraw(ctx, testOwner, usdtKey, decimal.NewFromInt(1), to); err != nil {
		t.Errorf("paused EmergencyWithdraw failed: %v", err)
	}
}

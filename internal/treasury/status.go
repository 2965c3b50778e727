package treasury

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
)

// DefaultDailyVolumeUSD is the assumed daily inflow used for the
// unlock time estimate.
var DefaultDailyVolumeUSD = decimal.NewFromInt(15_000)

// LiquidityStatus is the dashboard view of the current snapshot.
type LiquidityStatus struct {
	TotalLiquidityUSD  decimal.Decimal
	ThresholdUSD       decimal.Decimal
	RemainingUSD       decimal.Decimal
	LockActive         bool
	ProgressPercentage float64
	ChainTotals        map[domain.ChainID]decimal.Decimal
	Message            string
	UnlockEstimate     string
	ComputedAt         int64
}

// GetLiquidityStatus derives the dashboard view from the cached
// snapshot.
func (a *Aggregator) GetLiquidityStatus(ctx context.Context) (*LiquidityStatus, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	chainTotals := make(map[domain.ChainID]decimal.Decimal, len(snap.BalancesByChain))
	for chainID := range snap.BalancesByChain {
		chainTotals[chainID] = snap.ChainSubtotal(chainID)
	}

	remaining := a.cfg.LockThresholdUSD.Sub(snap.TotalUSD)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	status := &LiquidityStatus{
		TotalLiquidityUSD:  snap.TotalUSD,
		ThresholdUSD:       a.cfg.LockThresholdUSD,
		RemainingUSD:       remaining,
		LockActive:         snap.LockActive,
		ProgressPercentage: snap.ProgressPercentage,
		ChainTotals:        chainTotals,
		ComputedAt:         snap.ComputedAt,
	}

	if snap.LockActive {
		status.Message = fmt.Sprintf("Liquidity lock active: $%s of $%s raised (%.1f%%). $%s remaining until selling unlocks.",
			formatUSD(snap.TotalUSD), formatUSD(a.cfg.LockThresholdUSD), snap.ProgressPercentage, formatUSD(remaining))
		status.UnlockEstimate = unlockEstimate(remaining)
	} else {
		status.Message = fmt.Sprintf("Liquidity lock released: $%s raised. Selling is enabled.", formatUSD(snap.TotalUSD))
	}
	return status, nil
}

// unlockEstimate projects days until unlock at the assumed daily
// volume.
func unlockEstimate(remaining decimal.Decimal) string {
	if remaining.IsZero() {
		return "unlocking now"
	}
	days, _ := remaining.Div(DefaultDailyVolumeUSD).Float64()
	whole := int64(math.Ceil(days))
	if whole <= 1 {
		return "about 1 day at current volume"
	}
	return fmt.Sprintf("about %d days at current volume", whole)
}

// formatUSD renders a decimal with two fraction digits and thousands
// separators.
func formatUSD(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}

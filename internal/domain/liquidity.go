package domain

import "github.com/shopspring/decimal"

// TreasuryBalance is the custodial balance of a single instrument's
// treasury wallet at snapshot time.
type TreasuryBalance struct {
	ChainID        ChainID
	Symbol         string
	TreasuryWallet string
	Balance        decimal.Decimal // normalized by instrument decimals
	USDValue       decimal.Decimal
}

// LiquiditySnapshot is the aggregate treasury value across all chains
// at a point in time. Recomputed whole and never partially mutated.
// Corresponds to liquidity_snapshots table in ClickHouse.
type LiquiditySnapshot struct {
	TotalUSD           decimal.Decimal
	LockActive         bool // true iff TotalUSD < lock threshold
	ProgressPercentage float64
	BalancesByChain    map[ChainID][]TreasuryBalance
	ComputedAt         int64 // Unix timestamp in milliseconds
}

// ChainSubtotal returns the USD subtotal for one chain.
func (s *LiquiditySnapshot) ChainSubtotal(chainID ChainID) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range s.BalancesByChain[chainID] {
		sum = sum.Add(b.USDValue)
	}
	return sum
}

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ZeroAddress marks a native asset (ETH, BNB, MATIC) instead of a
// token contract.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// PaymentInstrument is an asset the sale accepts as payment.
// Admin-configured and mutable; corresponds to payment_instruments
// table in PostgreSQL.
type PaymentInstrument struct {
	Symbol          string          // e.g. "USDT"
	ChainID         ChainID         // network the instrument lives on
	ContractAddress string          // token contract; ZeroAddress for native asset
	Decimals        int32           // on-chain decimal precision
	PriceUSD        decimal.Decimal // USD unit price
	MinPurchaseUSD  decimal.Decimal // minimum purchase in USD
	MaxPurchaseUSD  decimal.Decimal // maximum purchase in USD
	Enabled         bool
	TreasuryWallet  string // per-instrument override; empty falls back to default wallet
}

// InstrumentKey builds the unique instrument key. Symbol alone is not
// unique: USDT exists on both Ethereum and BSC.
func InstrumentKey(chainID ChainID, symbol string) string {
	return fmt.Sprintf("%d:%s", chainID, symbol)
}

// Key returns the unique instrument key.
func (p *PaymentInstrument) Key() string {
	return InstrumentKey(p.ChainID, p.Symbol)
}

// IsNative reports whether the instrument is the chain's native asset.
func (p *PaymentInstrument) IsNative() bool {
	return p.ContractAddress == "" || p.ContractAddress == ZeroAddress
}

// Quote is the result of pricing a payment amount against an
// instrument. Pure derivation, no side effects.
type Quote struct {
	Instrument    *PaymentInstrument
	PaymentAmount decimal.Decimal // raw amount in the instrument's base units
	TokenAmount   decimal.Decimal // BAK tokens out
	USDValue      decimal.Decimal
	EffectiveRate decimal.Decimal // USD per BAK at this quote
}

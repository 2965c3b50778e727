package domain

import "github.com/shopspring/decimal"

// PurchaseRecord is one completed sale purchase. Append-only and
// immutable once created; corresponds to purchase_records table in
// PostgreSQL.
type PurchaseRecord struct {
	Sequence       int64 // store-assigned, strictly increasing
	Buyer          string
	InstrumentKey  string          // chainID:symbol of the payment instrument
	PaymentAmount  decimal.Decimal // raw amount in instrument base units
	TokenAmount    decimal.Decimal // BAK credited
	USDValue       decimal.Decimal
	TreasuryWallet string // wallet that custodies this payment
	Timestamp      int64  // Unix timestamp in milliseconds
}

// SaleStats is the aggregate sale state. Counters equal the sums over
// all purchase records.
type SaleStats struct {
	TotalSold       decimal.Decimal // BAK sold
	TotalRaised     decimal.Decimal // USD raised
	TotalPurchases  int64
	RemainingSupply decimal.Decimal
	TokenPriceUSD   decimal.Decimal
	Active          bool
}

// Package sale implements the fixed-rate primary token sale: quoting,
// purchase validation and recording, and the sale admin surface.
package sale

import (
	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
)

// DefaultTokenPriceUSD is the fixed BAK issuance rate.
var DefaultTokenPriceUSD = decimal.NewFromFloat(0.02)

// QuoteEngine prices a payment amount against an instrument. Pure:
// the same (instrument, amount) pair always produces the same quote.
type QuoteEngine struct {
	tokenPriceUSD decimal.Decimal
}

// NewQuoteEngine creates a quote engine at the given issuance rate.
// A zero rate falls back to DefaultTokenPriceUSD.
func NewQuoteEngine(tokenPriceUSD decimal.Decimal) *QuoteEngine {
	if tokenPriceUSD.IsZero() {
		tokenPriceUSD = DefaultTokenPriceUSD
	}
	return &QuoteEngine{tokenPriceUSD: tokenPriceUSD}
}

// TokenPriceUSD returns the issuance rate.
func (e *QuoteEngine) TokenPriceUSD() decimal.Decimal {
	return e.tokenPriceUSD
}

// Quote prices paymentAmount (in the instrument's base units) and
// derives the token amount at the fixed issuance rate. This is a
// fixed-rate sale, not an AMM curve: effective rate never depends on
// size or order of quotes.
func (e *QuoteEngine) Quote(ins *domain.PaymentInstrument, paymentAmount decimal.Decimal) (*domain.Quote, error) {
	if ins == nil {
		return nil, ErrUnknownInstrument
	}
	if !ins.Enabled {
		return nil, ErrInstrumentDisabled
	}

	usdValue := paymentAmount.Shift(-ins.Decimals).Mul(ins.PriceUSD)
	tokenAmount := usdValue.Div(e.tokenPriceUSD)

	return &domain.Quote{
		Instrument:    ins,
		PaymentAmount: paymentAmount,
		TokenAmount:   tokenAmount,
		USDValue:      usdValue,
		EffectiveRate: e.tokenPriceUSD,
	}, nil
}

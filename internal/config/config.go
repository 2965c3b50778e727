// Package config loads the deployment configuration: chains, payment
// instruments and the sale/airdrop/treasury parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
)

// Chain describes one EVM network.
type Chain struct {
	ChainID     int64  `json:"chain_id"`
	Name        string `json:"name"`
	RPCEndpoint string `json:"rpc_endpoint"`
	WSEndpoint  string `json:"ws_endpoint,omitempty"`
}

// Instrument describes one accepted payment asset.
type Instrument struct {
	Symbol          string          `json:"symbol"`
	ChainID         int64           `json:"chain_id"`
	ContractAddress string          `json:"contract_address"`
	Decimals        int32           `json:"decimals"`
	PriceUSD        decimal.Decimal `json:"price_usd"`
	MinPurchaseUSD  decimal.Decimal `json:"min_purchase_usd"`
	MaxPurchaseUSD  decimal.Decimal `json:"max_purchase_usd"`
	Enabled         bool            `json:"enabled"`
	TreasuryWallet  string          `json:"treasury_wallet,omitempty"`
}

// Config is the full deployment configuration file.
type Config struct {
	Owner            string          `json:"owner"`
	DefaultTreasury  string          `json:"default_treasury"`
	TokenPriceUSD    decimal.Decimal `json:"token_price_usd"`
	LockThresholdUSD decimal.Decimal `json:"lock_threshold_usd"`
	Chains           []Chain         `json:"chains"`
	Instruments      []Instrument    `json:"instruments"`
	Verifiers        []string        `json:"verifiers,omitempty"`
}

// Load reads and validates a JSON config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks cross-references and required fields.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.DefaultTreasury == "" {
		return fmt.Errorf("default_treasury is required")
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}

	chains := make(map[int64]bool, len(c.Chains))
	for i, ch := range c.Chains {
		if ch.ChainID == 0 {
			return fmt.Errorf("chain %d: chain_id is required", i)
		}
		if ch.RPCEndpoint == "" {
			return fmt.Errorf("chain %d (%s): rpc_endpoint is required", i, ch.Name)
		}
		if chains[ch.ChainID] {
			return fmt.Errorf("duplicate chain_id %d", ch.ChainID)
		}
		chains[ch.ChainID] = true
	}

	keys := make(map[string]bool, len(c.Instruments))
	for i, ins := range c.Instruments {
		if ins.Symbol == "" {
			return fmt.Errorf("instrument %d: symbol is required", i)
		}
		if !chains[ins.ChainID] {
			return fmt.Errorf("instrument %s: unknown chain_id %d", ins.Symbol, ins.ChainID)
		}
		if ins.MaxPurchaseUSD.LessThan(ins.MinPurchaseUSD) {
			return fmt.Errorf("instrument %s: max_purchase_usd below min_purchase_usd", ins.Symbol)
		}
		key := domain.InstrumentKey(domain.ChainID(ins.ChainID), ins.Symbol)
		if keys[key] {
			return fmt.Errorf("duplicate instrument %s", key)
		}
		keys[key] = true
	}
	return nil
}

// ChainConfigs converts the chain list to domain types.
func (c *Config) ChainConfigs() map[domain.ChainID]domain.ChainConfig {
	out := make(map[domain.ChainID]domain.ChainConfig, len(c.Chains))
	for _, ch := range c.Chains {
		id := domain.ChainID(ch.ChainID)
		out[id] = domain.ChainConfig{
			ChainID:     id,
			Name:        ch.Name,
			RPCEndpoint: ch.RPCEndpoint,
			WSEndpoint:  ch.WSEndpoint,
		}
	}
	return out
}

// DomainInstruments converts the instrument list to domain types.
func (c *Config) DomainInstruments() []*domain.PaymentInstrument {
	out := make([]*domain.PaymentInstrument, 0, len(c.Instruments))
	for _, ins := range c.Instruments {
		out = append(out, &domain.PaymentInstrument{
			Symbol:          ins.Symbol,
			ChainID:         domain.ChainID(ins.ChainID),
			ContractAddress: ins.ContractAddress,
			Decimals:        ins.Decimals,
			PriceUSD:        ins.PriceUSD,
			MinPurchaseUSD:  ins.MinPurchaseUSD,
			MaxPurchaseUSD:  ins.MaxPurchaseUSD,
			Enabled:         ins.Enabled,
			TreasuryWallet:  ins.TreasuryWallet,
		})
	}
	return out
}

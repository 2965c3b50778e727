// Package evm provides read-only JSON-RPC clients for EVM chains and
// a self-healing per-chain client pool.
package evm

import (
	"context"
	"math/big"
)

// Client is a read-only client for one EVM chain.
type Client interface {
	// GetBalance retrieves the native-asset balance of an address in wei.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// GetTokenBalance retrieves an ERC-20 balance via eth_call balanceOf,
	// in the token's base units.
	GetTokenBalance(ctx context.Context, token, holder string) (*big.Int, error)

	// BlockNumber retrieves the latest block number.
	BlockNumber(ctx context.Context) (int64, error)
}

// balanceOfSelector is the 4-byte selector of balanceOf(address).
const balanceOfSelector = "0x70a08231"

// Package stub provides a scripted evm.Client for testing.
package stub

import (
	"context"
	"math/big"
	"sync"

	"brainark-core/internal/evm"
)

// Client implements evm.Client for testing. Balances are keyed by
// holder address for native assets and "token|holder" for ERC-20.
type Client struct {
	mu       sync.Mutex
	Native   map[string]*big.Int
	Token    map[string]*big.Int
	Block    int64
	Err      error // returned by every call when set
	FailNext int   // fail this many calls, then succeed
	Calls    int
}

// NewClient creates a new stub client.
func NewClient() *Client {
	return &Client{
		Native: make(map[string]*big.Int),
		Token:  make(map[string]*big.Int),
	}
}

func tokenKey(token, holder string) string {
	return token + "|" + holder
}

// SetNative sets the native balance for a holder.
func (c *Client) SetNative(holder string, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Native[holder] = wei
}

// SetToken sets the ERC-20 balance for a token/holder pair.
func (c *Client) SetToken(token, holder string, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Token[tokenKey(token, holder)] = amount
}

// fail returns the scripted error, if any, and counts the call.
func (c *Client) fail() error {
	c.Calls++
	if c.Err != nil {
		return c.Err
	}
	if c.FailNext > 0 {
		c.FailNext--
		return &evm.TransientError{Err: context.DeadlineExceeded}
	}
	return nil
}

// GetBalance returns the scripted native balance, or zero.
func (c *Client) GetBalance(_ context.Context, address string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail(); err != nil {
		return nil, err
	}
	if bal, ok := c.Native[address]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// GetTokenBalance returns the scripted ERC-20 balance, or zero.
func (c *Client) GetTokenBalance(_ context.Context, token, holder string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail(); err != nil {
		return nil, err
	}
	if bal, ok := c.Token[tokenKey(token, holder)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// BlockNumber returns the scripted block height.
func (c *Client) BlockNumber(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail(); err != nil {
		return 0, err
	}
	return c.Block, nil
}

var _ evm.Client = (*Client)(nil)

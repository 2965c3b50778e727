package evm

import (
	"fmt"
	"sync"

	"brainark-core/internal/domain"
)

// Factory builds a client for one chain.
type Factory func(chainID domain.ChainID) (Client, error)

// ClientPool memoizes one long-lived client per chain, created on
// first use. After a network-class failure the caller invalidates the
// chain's entry and the next Get rebuilds it from scratch on demand.
// No backoff is applied before rebuild; the aggregator's per-fetch
// retry budget is the only pacing.
type ClientPool struct {
	mu      sync.Mutex
	clients map[domain.ChainID]Client
	factory Factory
}

// NewClientPool creates a pool backed by the given factory.
func NewClientPool(factory Factory) *ClientPool {
	return &ClientPool{
		clients: make(map[domain.ChainID]Client),
		factory: factory,
	}
}

// Get returns the chain's client, creating it on first use.
func (p *ClientPool) Get(chainID domain.ChainID) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[chainID]; exists {
		return client, nil
	}

	client, err := p.factory(chainID)
	if err != nil {
		return nil, fmt.Errorf("create client for chain %d: %w", chainID, err)
	}

	p.clients[chainID] = client
	return client, nil
}

// Invalidate discards the chain's client so the next Get rebuilds it.
func (p *ClientPool) Invalidate(chainID domain.ChainID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.clients, chainID)
}

// Size returns the number of live clients.
func (p *ClientPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.clients)
}

// Package treasury computes the aggregate USD value custodied across
// all treasury wallets and derives the sell-permission gate from it.
package treasury

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"brainark-core/internal/cache"
	"brainark-core/internal/domain"
	"brainark-core/internal/evm"
	"brainark-core/internal/observability"
	"brainark-core/internal/storage"
)

// Aggregation parameters.
const (
	// DefaultLockThresholdUSD releases the liquidity lock once total
	// treasury value reaches it.
	DefaultLockThresholdUSD = 1_000_000

	// DefaultMaxConcurrency bounds concurrent balance fetches per chain.
	DefaultMaxConcurrency = 10

	// DefaultBatchDelay paces successive batches on the same chain.
	DefaultBatchDelay = 100 * time.Millisecond

	// DefaultFetchTimeout bounds one balance fetch.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultSnapshotTTL is the shared snapshot cache window.
	DefaultSnapshotTTL = 2 * time.Minute

	// DefaultSellPermissionTTL is the shorter window for the sell gate.
	DefaultSellPermissionTTL = 30 * time.Second

	// DefaultRefreshTimeout bounds one full snapshot computation.
	DefaultRefreshTimeout = 30 * time.Second
)

// Cache keys.
const (
	snapshotCacheKey = "liquidity_snapshot"
	sellCacheKey     = "sell_permission"
)

// Config carries the aggregator's fixed parameters. Zero values fall
// back to the defaults.
type Config struct {
	// DefaultTreasury receives funds for instruments without a
	// per-instrument wallet override, mirroring purchase routing.
	DefaultTreasury string

	LockThresholdUSD  decimal.Decimal
	MaxConcurrency    int
	BatchDelay        time.Duration
	FetchTimeout      time.Duration
	RefreshTimeout    time.Duration
	SnapshotTTL       time.Duration
	SellPermissionTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.LockThresholdUSD.IsZero() {
		c.LockThresholdUSD = decimal.NewFromInt(DefaultLockThresholdUSD)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = DefaultBatchDelay
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.RefreshTimeout == 0 {
		c.RefreshTimeout = DefaultRefreshTimeout
	}
	if c.SnapshotTTL == 0 {
		c.SnapshotTTL = DefaultSnapshotTTL
	}
	if c.SellPermissionTTL == 0 {
		c.SellPermissionTTL = DefaultSellPermissionTTL
	}
}

// Aggregator fans out balance reads across chains, aggregates them to
// USD and caches the resulting snapshot. A failed fetch contributes
// zero instead of failing the snapshot; that fail-open policy is
// specific to this computation.
type Aggregator struct {
	instruments storage.InstrumentStore
	pool        *evm.ClientPool
	history     storage.SnapshotHistoryStore // optional

	snapshots *cache.Cache[*domain.LiquiditySnapshot]
	sellPerm  *cache.Cache[bool]

	cfg Config
	log *log.Logger
	now func() time.Time
}

// NewAggregator creates an aggregator over the given instrument store
// and client pool. history may be nil to skip snapshot archival.
func NewAggregator(instruments storage.InstrumentStore, pool *evm.ClientPool, history storage.SnapshotHistoryStore, cfg Config, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	cfg.applyDefaults()
	return &Aggregator{
		instruments: instruments,
		pool:        pool,
		history:     history,
		snapshots:   cache.New(cache.WithTTL[*domain.LiquiditySnapshot](cfg.SnapshotTTL)),
		sellPerm:    cache.New(cache.WithTTL[bool](cfg.SellPermissionTTL)),
		cfg:         cfg,
		log:         logger,
		now:         time.Now,
	}
}

// Snapshot returns the current liquidity snapshot, recomputing it when
// the cached one has expired. Concurrent callers within the TTL window
// share one computation's result; racing recomputes resolve
// last-write-wins.
func (a *Aggregator) Snapshot(ctx context.Context) (*domain.LiquiditySnapshot, error) {
	if snap, ok := a.snapshots.Get(snapshotCacheKey); ok {
		observability.RecordCacheHit(true)
		return snap, nil
	}
	observability.RecordCacheHit(false)
	return a.RefreshSnapshot(ctx)
}

// RefreshSnapshot bypasses the cache, recomputes the snapshot and
// stores it under the fixed key. The computation runs detached from
// the caller's cancellation: the result is shared by every reader for
// the cache window, and a caller disconnecting mid-refresh must not
// park an all-zero snapshot there.
func (a *Aggregator) RefreshSnapshot(ctx context.Context) (*domain.LiquiditySnapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.RefreshTimeout)
	defer cancel()

	started := a.now()
	snap, err := a.compute(ctx)
	if err != nil {
		return nil, err
	}
	a.snapshots.Set(snapshotCacheKey, snap)

	total, _ := snap.TotalUSD.Float64()
	observability.RecordSnapshot(total, snap.LockActive, a.now().Sub(started).Seconds())

	if a.history != nil {
		if err := a.history.Append(ctx, snap); err != nil {
			// Archival is best-effort; the snapshot itself stands.
			a.log.Printf("snapshot archival failed: %v", err)
		}
	}
	return snap, nil
}

// compute performs the full fan-out: enabled instruments grouped by
// chain, per-chain batches bounded by MaxConcurrency, one fetch per
// instrument with its own timeout. Chains run concurrently; batches
// within a chain run in sequence with a small delay between them to
// avoid bursting a single endpoint.
func (a *Aggregator) compute(ctx context.Context) (*domain.LiquiditySnapshot, error) {
	enabled, err := a.instruments.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}

	byChain := make(map[domain.ChainID][]*domain.PaymentInstrument)
	for _, ins := range enabled {
		byChain[ins.ChainID] = append(byChain[ins.ChainID], ins)
	}

	var (
		mu       sync.Mutex
		balances = make(map[domain.ChainID][]domain.TreasuryBalance)
		wg       sync.WaitGroup
	)
	for chainID, list := range byChain {
		wg.Add(1)
		go func(chainID domain.ChainID, list []*domain.PaymentInstrument) {
			defer wg.Done()
			chainBalances := a.collectChain(ctx, chainID, list)
			mu.Lock()
			balances[chainID] = chainBalances
			mu.Unlock()
		}(chainID, list)
	}
	wg.Wait()

	total := decimal.Zero
	for _, list := range balances {
		for _, b := range list {
			total = total.Add(b.USDValue)
		}
	}

	progress := 100.0
	if total.LessThan(a.cfg.LockThresholdUSD) {
		ratio, _ := total.Div(a.cfg.LockThresholdUSD).Float64()
		progress = ratio * 100
	}

	snap := &domain.LiquiditySnapshot{
		TotalUSD:           total,
		LockActive:         total.LessThan(a.cfg.LockThresholdUSD),
		ProgressPercentage: progress,
		BalancesByChain:    balances,
		ComputedAt:         a.now().UnixMilli(),
	}
	a.log.Printf("snapshot computed: total=$%s lock=%t progress=%.1f%% chains=%d",
		total.StringFixed(2), snap.LockActive, snap.ProgressPercentage, len(balances))
	return snap, nil
}

// collectChain fetches one chain's treasury balances in bounded
// concurrent batches. Sibling fetches are independent: a timed-out
// fetch contributes zero without cancelling the others.
func (a *Aggregator) collectChain(ctx context.Context, chainID domain.ChainID, list []*domain.PaymentInstrument) []domain.TreasuryBalance {
	out := make([]domain.TreasuryBalance, len(list))

	for start := 0; start < len(list); start += a.cfg.MaxConcurrency {
		end := start + a.cfg.MaxConcurrency
		if end > len(list) {
			end = len(list)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = a.fetchBalance(ctx, chainID, list[i])
			}(i)
		}
		wg.Wait()

		if end < len(list) {
			select {
			case <-time.After(a.cfg.BatchDelay):
			case <-ctx.Done():
				return out
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// fetchBalance reads one instrument's treasury balance and converts
// it to USD. Instruments without a wallet override are custodied at
// the default treasury, same resolution as purchase routing. Any
// failure yields a zero balance; transient failures also invalidate
// the chain's pooled client so the next fetch rebuilds it.
func (a *Aggregator) fetchBalance(ctx context.Context, chainID domain.ChainID, ins *domain.PaymentInstrument) domain.TreasuryBalance {
	wallet := ins.TreasuryWallet
	if wallet == "" {
		wallet = a.cfg.DefaultTreasury
	}

	b := domain.TreasuryBalance{
		ChainID:        chainID,
		Symbol:         ins.Symbol,
		TreasuryWallet: wallet,
		Balance:        decimal.Zero,
		USDValue:       decimal.Zero,
	}

	client, err := a.pool.Get(chainID)
	if err != nil {
		a.log.Printf("balance fetch skipped: chain=%d symbol=%s: %v", chainID, ins.Symbol, err)
		observability.RecordBalanceFetchError(fmt.Sprint(chainID))
		return b
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	method := "eth_call"
	if ins.IsNative() {
		method = "eth_getBalance"
	}
	fetchStart := a.now()
	raw, err := a.readBalance(fetchCtx, client, ins, wallet)
	observability.RecordRPCCall(fmt.Sprint(chainID), method, a.now().Sub(fetchStart).Seconds())
	if err != nil {
		a.log.Printf("balance fetch failed: chain=%d symbol=%s wallet=%s: %v", chainID, ins.Symbol, wallet, err)
		observability.RecordBalanceFetchError(fmt.Sprint(chainID))
		if evm.IsTransient(err) {
			a.pool.Invalidate(chainID)
			observability.RecordClientRebuild(fmt.Sprint(chainID))
		}
		return b
	}

	b.Balance = decimal.NewFromBigInt(raw, -ins.Decimals)
	b.USDValue = b.Balance.Mul(ins.PriceUSD)
	return b
}

func (a *Aggregator) readBalance(ctx context.Context, client evm.Client, ins *domain.PaymentInstrument, wallet string) (*big.Int, error) {
	if ins.IsNative() {
		return client.GetBalance(ctx, wallet)
	}
	return client.GetTokenBalance(ctx, ins.ContractAddress, wallet)
}

// CanUserSell reports whether secondary-market selling is permitted.
// Reads through its own short-TTL cache layered over the snapshot.
func (a *Aggregator) CanUserSell(ctx context.Context) (bool, error) {
	if allowed, ok := a.sellPerm.Get(sellCacheKey); ok {
		return allowed, nil
	}
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	allowed := !snap.LockActive
	a.sellPerm.Set(sellCacheKey, allowed)
	return allowed, nil
}

// InvalidateCache drops the cached snapshot and sell permission so the
// next read recomputes.
func (a *Aggregator) InvalidateCache() {
	a.snapshots.Invalidate("")
	a.sellPerm.Invalidate("")
}

// Run recomputes the snapshot on a fixed interval until ctx is
// cancelled. Each fresh snapshot is archived through the history
// store when one is configured.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.log.Printf("aggregation loop started: interval=%s", interval)
	for {
		select {
		case <-ctx.Done():
			a.log.Printf("aggregation loop stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			if _, err := a.RefreshSnapshot(ctx); err != nil {
				a.log.Printf("periodic snapshot failed: %v", err)
			}
		}
	}
}

// Package main runs the distribution core as one service:
// - token sale (quotes, purchases, admin)
// - airdrop claims (task verification, claims, batched payout)
// - treasury liquidity aggregation (periodic snapshots, sell gate)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"brainark-core/internal/airdrop"
	"brainark-core/internal/config"
	"brainark-core/internal/domain"
	"brainark-core/internal/evm"
	"brainark-core/internal/observability"
	"brainark-core/internal/sale"
	"brainark-core/internal/storage"
	chstore "brainark-core/internal/storage/clickhouse"
	"brainark-core/internal/storage/memory"
	"brainark-core/internal/storage/migrations"
	pgstore "brainark-core/internal/storage/postgres"
	"brainark-core/internal/treasury"
)

// Server holds all wired components.
type Server struct {
	sale       *sale.Engine
	airdrop    *airdrop.Engine
	aggregator *treasury.Aggregator
	logger     *log.Logger
}

type stores struct {
	instruments  storage.InstrumentStore
	purchases    storage.PurchaseStore
	participants storage.ParticipantStore
	history      storage.SnapshotHistoryStore // nil without ClickHouse
}

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", envOr("BRAINARK_CONFIG", "config.json"), "Deployment config JSON path")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API address")
	snapshotInterval := flag.Duration("snapshot-interval", 2*time.Minute, "Liquidity snapshot recompute interval")
	watchHeads := flag.Bool("watch-heads", false, "Subscribe to chain heads and refresh the snapshot cache on new blocks")
	headsPerRefresh := flag.Int("heads-per-refresh", 10, "New heads on any chain before a cache refresh")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	if err := seedInstruments(ctx, st.instruments, cfg); err != nil {
		logger.Fatalf("Failed to seed instruments: %v", err)
	}

	chains := cfg.ChainConfigs()
	pool := evm.NewClientPool(func(chainID domain.ChainID) (evm.Client, error) {
		chain, ok := chains[chainID]
		if !ok {
			return nil, fmt.Errorf("chain %d not configured", chainID)
		}
		return evm.NewHTTPClient(chain.RPCEndpoint), nil
	})

	aggregator := treasury.NewAggregator(st.instruments, pool, st.history, treasury.Config{
		DefaultTreasury:  cfg.DefaultTreasury,
		LockThresholdUSD: cfg.LockThresholdUSD,
	}, log.New(os.Stdout, "[treasury] ", log.LstdFlags))

	saleEngine := sale.NewEngine(st.instruments, st.purchases, sale.Config{
		Owner:           cfg.Owner,
		DefaultTreasury: cfg.DefaultTreasury,
		TokenPriceUSD:   cfg.TokenPriceUSD,
	}, log.New(os.Stdout, "[sale] ", log.LstdFlags))

	airdropEngine := airdrop.NewEngine(st.participants, airdrop.Config{
		Owner: cfg.Owner,
	}, log.New(os.Stdout, "[airdrop] ", log.LstdFlags))
	for _, v := range cfg.Verifiers {
		if err := airdropEngine.AddVerifier(cfg.Owner, v); err != nil {
			logger.Fatalf("Failed to add verifier %s: %v", v, err)
		}
	}

	server := &Server{
		sale:       saleEngine,
		airdrop:    airdropEngine,
		aggregator: aggregator,
		logger:     logger,
	}

	go aggregator.Run(ctx, *snapshotInterval)

	go func() {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				observability.DefaultMetrics.UptimeSeconds.Inc()
			}
		}
	}()

	if *watchHeads {
		startHeadWatchers(ctx, cfg, aggregator, *headsPerRefresh, logger)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down", sig)
		cancel()
	}()

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: server.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *httpAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores selects the storage backend. ClickHouse is optional;
// without it snapshots are simply not archived.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (*stores, func(), error) {
	if useMemory {
		st := &stores{
			instruments:  memory.NewInstrumentStore(),
			purchases:    memory.NewPurchaseStore(),
			participants: memory.NewParticipantStore(),
		}
		return st, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st := &stores{
		instruments:  pgstore.NewInstrumentStore(pool),
		purchases:    pgstore.NewPurchaseStore(pool),
		participants: pgstore.NewParticipantStore(pool),
	}

	var chConn *chstore.Conn
	if clickhouseDSN != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		st.history = chstore.NewSnapshotHistoryStore(chConn)
	} else {
		logger.Println("ClickHouse DSN not set, snapshot history disabled")
	}

	cleanup := func() {
		pool.Close()
		if chConn != nil {
			chConn.Close()
		}
	}
	return st, cleanup, nil
}

// seedInstruments inserts configured instruments that are not in the
// store yet. Existing rows keep their admin mutations.
func seedInstruments(ctx context.Context, store storage.InstrumentStore, cfg *config.Config) error {
	for _, ins := range cfg.DomainInstruments() {
		_, err := store.Get(ctx, ins.Key())
		if err == nil {
			continue
		}
		if err != storage.ErrNotFound {
			return fmt.Errorf("check instrument %s: %w", ins.Key(), err)
		}
		if err := store.Upsert(ctx, ins); err != nil {
			return fmt.Errorf("seed instrument %s: %w", ins.Key(), err)
		}
	}
	return nil
}

// startHeadWatchers subscribes to newHeads on every chain with a WS
// endpoint and invalidates the snapshot cache every headsPerRefresh
// blocks, so dashboards converge faster than the periodic interval.
func startHeadWatchers(ctx context.Context, cfg *config.Config, aggregator *treasury.Aggregator, headsPerRefresh int, logger *log.Logger) {
	for _, chain := range cfg.Chains {
		if chain.WSEndpoint == "" {
			continue
		}
		sub, err := evm.NewHeadSubscriber(ctx, chain.WSEndpoint, nil)
		if err != nil {
			logger.Printf("Head watcher for %s failed to start: %v", chain.Name, err)
			continue
		}
		logger.Printf("Watching heads on %s", chain.Name)

		go func(name string, sub *evm.HeadSubscriber) {
			defer sub.Close()
			seen := 0
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-sub.Heads():
					if !ok {
						return
					}
					seen++
					if seen >= headsPerRefresh {
						seen = 0
						aggregator.InvalidateCache()
					}
				}
			}
		}(chain.Name, sub)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

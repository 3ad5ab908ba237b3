// Package main runs the sealed-batch auction engine:
// - HTTP API: commitments, reveals, batch queries, settlement
// - Background loop: phase advancement and batch settlement on a tick
// - Websocket feed: lifecycle events for market data consumers
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sealed-batch-dex/internal/api"
	"sealed-batch-dex/internal/clearing"
	"sealed-batch-dex/internal/collab"
	"sealed-batch-dex/internal/commitment"
	"sealed-batch-dex/internal/config"
	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/log"
	"sealed-batch-dex/internal/observability"
	"sealed-batch-dex/internal/orchestrator"
	"sealed-batch-dex/internal/reveal"
	"sealed-batch-dex/internal/slashing"
	"sealed-batch-dex/internal/storage"
	chstore "sealed-batch-dex/internal/storage/clickhouse"
	"sealed-batch-dex/internal/storage/memory"
	"sealed-batch-dex/internal/storage/migrations"
	pgstore "sealed-batch-dex/internal/storage/postgres"
	"sealed-batch-dex/internal/verification"
)

// allStores holds the storage implementations behind the engine.
type allStores struct {
	batches     storage.BatchStore
	commitments storage.CommitmentStore
	orders      storage.RevealedOrderStore
	pools       storage.PoolStore
	execOrders  storage.ExecutionOrderStore
	settlements storage.SettlementStore // optional
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the yaml config file")
	flag.Parse()

	cfg, err := config.InitConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if cfg.Server == nil || cfg.Server.Endpoint == "" {
		fmt.Fprintln(os.Stderr, "config: server.endpoint is required")
		os.Exit(1)
	}

	logger, closeLog, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	params := cfg.Auction.Params()
	metrics := observability.NewMetrics("")
	nowMs := func() int64 { return time.Now().UnixMilli() }

	stores, cleanup, err := createStores(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	var poolSeeds []config.PoolConfig
	if cfg.Auction != nil {
		poolSeeds = cfg.Auction.Pools
	}
	if err := seedPools(ctx, stores.pools, poolSeeds, logger); err != nil {
		return fmt.Errorf("seed pools: %w", err)
	}

	ledger := collab.NewMemLedger()
	treasury := collab.NewMemTreasury()
	oracle := collab.NewFixedOracle(nil)
	engine := clearing.NewEngine(oracle, params)

	slasher := slashing.NewSlasher(slashing.SlasherOptions{
		BatchStore:      stores.batches,
		CommitmentStore: stores.commitments,
		Ledger:          ledger,
		Treasury:        treasury,
		Params:          params,
		NowMs:           nowMs,
	})

	hub := api.NewHub(logger, metrics)
	defer hub.Close(context.Background())

	orch := orchestrator.New(orchestrator.Options{
		BatchStore:          stores.batches,
		CommitmentStore:     stores.commitments,
		OrderStore:          stores.orders,
		PoolStore:           stores.pools,
		ExecutionOrderStore: stores.execOrders,
		SettlementStore:     stores.settlements,
		ClearingEngine:      engine,
		Slasher:             slasher,
		Checker:             verification.New(engine),
		Ledger:              ledger,
		Treasury:            treasury,
		Params:              params,
		NowMs:               nowMs,
		Logger:              logger,
		Metrics:             metrics,
		Events:              hub.Sink(),
	})

	if _, err := orch.Start(ctx); err != nil {
		return fmt.Errorf("open genesis batch: %w", err)
	}

	handler := api.NewHandler(api.HandlerOptions{
		Registry: commitment.NewRegistry(commitment.RegistryOptions{
			BatchStore:      stores.batches,
			CommitmentStore: stores.commitments,
			PoolStore:       stores.pools,
			Ledger:          ledger,
			Params:          params,
			NowMs:           nowMs,
		}),
		Validator: reveal.NewValidator(reveal.ValidatorOptions{
			BatchStore:      stores.batches,
			CommitmentStore: stores.commitments,
			OrderStore:      stores.orders,
			Ledger:          ledger,
			Authorizer:      collab.NewStoreAuthorizer(stores.commitments),
			Params:          params,
			NowMs:           nowMs,
		}),
		Orch:                orch,
		Slasher:             slasher,
		BatchStore:          stores.batches,
		CommitmentStore:     stores.commitments,
		OrderStore:          stores.orders,
		PoolStore:           stores.pools,
		ExecutionOrderStore: stores.execOrders,
		Params:              params,
		Hub:                 hub,
		Logger:              logger,
		Metrics:             metrics,
	})

	errCh := make(chan error, 3)

	apiServer := &http.Server{
		Addr:              cfg.Server.Endpoint,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("api listening", "endpoint", cfg.Server.Endpoint)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics != nil && cfg.Metrics.PullEndpoint != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.PullEndpoint,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", "endpoint", cfg.Metrics.PullEndpoint)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	go func() {
		errCh <- runAuctionLoop(ctx, orch, cfg.Auction.Tick(), logger)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return apiServer.Shutdown(shutdownCtx)
}

// runAuctionLoop advances batch phases on a tick and settles batches
// whose reveal window has closed. Settlement is permissionless through
// the API too; the loop only guarantees liveness when nobody calls it.
func runAuctionLoop(ctx context.Context, orch *orchestrator.Orchestrator, tick time.Duration, logger *log.Logger) error {
	logger = logger.With("loop")
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			batch, err := orch.AdvancePhase(ctx)
			if err != nil {
				logger.Warn("advance phase", "err", err)
				continue
			}
			if batch.Phase != domain.PhaseSettling || batch.IsSettled {
				continue
			}
			if _, err := orch.SettleBatch(ctx, batch.BatchID); err != nil {
				if errors.Is(err, domain.ErrAlreadySettled) {
					continue
				}
				logger.Error("settle batch", "batch", batch.BatchID, "err", err)
			}
		}
	}
}

// createStores builds the storage layer for the configured backend.
func createStores(ctx context.Context, cfg *config.StorageConfig, logger *log.Logger) (*allStores, func(), error) {
	if cfg == nil || cfg.Backend == "" || cfg.Backend == config.BackendMemory {
		logger.Info("storage backend", "backend", "memory")
		return &allStores{
			batches:     memory.NewBatchStore(),
			commitments: memory.NewCommitmentStore(),
			orders:      memory.NewRevealedOrderStore(),
			pools:       memory.NewPoolStore(),
			execOrders:  memory.NewExecutionOrderStore(),
			settlements: memory.NewSettlementStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	stores := &allStores{
		batches:     pgstore.NewBatchStore(pool),
		commitments: pgstore.NewCommitmentStore(pool),
		orders:      pgstore.NewRevealedOrderStore(pool),
		pools:       pgstore.NewPoolStore(pool),
		execOrders:  pgstore.NewExecutionOrderStore(pool),
	}
	cleanup := func() { pool.Close() }

	// Settlement history goes to ClickHouse when configured; the engine
	// works without it.
	if cfg.ClickHouse != nil && cfg.ClickHouse.Endpoint != "" {
		dsn := clickhouseDSN(cfg.ClickHouse)
		var conn *chstore.Conn
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, dsn)
		} else {
			conn, err = chstore.NewConn(ctx, dsn)
		}
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.settlements = chstore.NewSettlementStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	logger.Info("storage backend", "backend", "postgres", "clickhouse", stores.settlements != nil)
	return stores, cleanup, nil
}

func clickhouseDSN(cfg *config.ClickHouseConfig) string {
	if cfg.Database == "" {
		return cfg.Endpoint
	}
	return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Database
}

// seedPools inserts the configured pools, leaving existing ones alone.
func seedPools(ctx context.Context, pools storage.PoolStore, seeds []config.PoolConfig, logger *log.Logger) error {
	for _, s := range seeds {
		p := &domain.Pool{
			PoolID:     s.PoolID,
			AssetIn:    s.AssetIn,
			AssetOut:   s.AssetOut,
			ReserveIn:  s.ReserveIn,
			ReserveOut: s.ReserveOut,
			FeeBps:     s.FeeBps,
			MinDeposit: s.MinDeposit,
		}
		if err := pools.Insert(ctx, p); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return fmt.Errorf("insert pool %s: %w", s.PoolID, err)
		}
		logger.Info("pool opened", "pool", s.PoolID, "reserve_in", s.ReserveIn, "reserve_out", s.ReserveOut)
	}
	return nil
}

func buildLogger(cfg *config.LogConfig) (*log.Logger, func(), error) {
	var (
		format log.Format
		lvl    log.Level
	)
	closer := func() {}
	if cfg != nil {
		if err := format.Set(cfg.Format); err != nil {
			return nil, nil, err
		}
		if err := lvl.Set(cfg.Level); err != nil {
			return nil, nil, err
		}
	}

	var w io.Writer = os.Stdout
	if cfg != nil && cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = func() { f.Close() }
	}

	return log.NewFormattedLogger("dex", w, format, lvl), closer, nil
}

package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lockbox/custodian/internal/cache"
	"github.com/lockbox/custodian/internal/chains"
	"github.com/lockbox/custodian/internal/decimals"
	"github.com/lockbox/custodian/internal/evm"
	"github.com/lockbox/custodian/internal/graceful"
	"github.com/lockbox/custodian/internal/indexer"
	"github.com/lockbox/custodian/internal/logging"
	"github.com/lockbox/custodian/internal/metrics"
	"github.com/lockbox/custodian/internal/ratelimit"
	"github.com/lockbox/custodian/internal/reconcile"
	"github.com/lockbox/custodian/internal/send"
	"github.com/lockbox/custodian/internal/status"
	"github.com/lockbox/custodian/internal/store"
	"github.com/lockbox/custodian/internal/substrate"
	"github.com/lockbox/custodian/internal/vault"
)

func main() {
	cfg, err := newConfig()
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(cfg.LogFormat)
	ctx := graceful.WithShutdown(context.Background(), logger)

	metricsServer := metrics.StartMetricsServer(cfg.MetricsPort, logger)
	defer func() {
		if err := metricsServer.Stop(context.Background()); err != nil {
			logger.Errorf("failed to stop metrics server: %v", err)
		}
	}()

	cipher, err := vault.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatalf("failed to initialize seed cipher: %v", err)
	}

	var (
		seedStore       store.SeedStore
		delegationStore store.DelegationStore
		deploymentStore store.DeploymentStore
	)
	if cfg.Postgres.DSN != "" {
		pgPool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatalf("failed to initialize Postgres pool: %v", err)
		}
		defer pgPool.Close()
		pg := store.NewPostgres(pgPool)
		seedStore, delegationStore, deploymentStore = pg, pg, pg
	} else {
		logger.Warn("no Postgres DSN configured, seed and delegation state is in-memory")
		mem := store.NewMemory()
		seedStore, delegationStore, deploymentStore = mem, mem, mem
	}

	registry, err := chains.NewRegistry(applyEndpoints(chains.DefaultDescriptors(), cfg.Rpc))
	if err != nil {
		logger.Fatalf("failed to build chain registry: %v", err)
	}

	evmManager, err := evm.NewManager(registry, delegationStore, deploymentStore, logger)
	if err != nil {
		logger.Fatalf("failed to initialize EVM networks: %v", err)
	}

	var substrateClient substrate.Client
	if cfg.Substrate.GatewayURL != "" {
		substrateClient = substrate.NewGateway(cfg.Substrate.GatewayURL)
	}

	indexerClient := indexer.NewClient(cfg.Indexer.URL)
	balances := cache.NewBalances(cfg.Cache.Size, cfg.Cache.TTL)

	engine := send.NewEngine(
		vault.NewManager(cipher, seedStore, logger),
		registry,
		evmManager,
		substrateClient,
		decimals.NewResolver(indexerClient, evmManager, logger),
		reconcile.NewReconciler(indexerClient, evmManager, balances, logger),
		ratelimit.NewLimiter(cfg.Gasless.MaxPerWindow, cfg.Gasless.Window),
		balances,
		status.NewPoller(cfg.Receipts.Attempts, cfg.Receipts.Delay, logger),
		logger,
	)

	redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URI)
	if err != nil {
		logger.Fatalf("failed to parse redis URI: %v", err)
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Logger:      logger,
		Concurrency: cfg.Concurrency,
	})
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	mux := asynq.NewServeMux()
	mux.HandleFunc(send.TypeSend, send.NewConsumer(engine, logger).Handle)

	logger.Info("send worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatalf("failed to run consumer: %v", err)
	}
}

// applyEndpoints overlays configured node, bundler and paymaster endpoints on
// the built-in chain table. Chains left without an RPC URL are dropped so the
// worker only dials networks it is actually configured for.
func applyEndpoints(descriptors []chains.Descriptor, rpc rpcConfig) []chains.Descriptor {
	byChain := map[chains.Chain]endpoint{
		chains.Ethereum: rpc.Ethereum,
		chains.Sepolia:  rpc.Sepolia,
		chains.Base:     rpc.Base,
		chains.Arbitrum: rpc.Arbitrum,
		chains.Optimism: rpc.Optimism,
		chains.Polygon:  rpc.Polygon,
		chains.BscChain: rpc.Bsc,
	}

	out := make([]chains.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if !d.EVM {
			out = append(out, d)
			continue
		}

		ep, ok := byChain[d.Chain]
		if !ok || ep.URL == "" {
			continue
		}
		d.RpcURL = ep.URL
		if ep.BundlerURL != "" {
			d.BundlerURL = ep.BundlerURL
		}
		if ep.PaymasterURL != "" {
			d.PaymasterURL = ep.PaymasterURL
		}
		out = append(out, d)
	}
	return out
}

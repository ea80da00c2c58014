package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/lockbox/custodian/internal/logging"
)

type config struct {
	// EncryptionKey seals every stored seed; hex or base64, 32 bytes.
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" required:"true"`

	LogFormat   logging.LogFormat `envconfig:"LOG_FORMAT" default:"text"`
	MetricsPort string            `envconfig:"METRICS_PORT" default:"8877"`
	Concurrency int               `envconfig:"WORKER_CONCURRENCY" default:"10"`

	Redis     redisConfig
	Postgres  postgresConfig
	Indexer   indexerConfig
	Substrate substrateConfig
	Rpc       rpcConfig
	Gasless   gaslessConfig
	Cache     cacheConfig
	Receipts  receiptConfig
}

type redisConfig struct {
	URI string `envconfig:"REDIS_URI" default:"redis://localhost:6379"`
}

type postgresConfig struct {
	// DSN is optional; without it seed and delegation state live in memory.
	DSN string `envconfig:"POSTGRES_DSN"`
}

type indexerConfig struct {
	URL string `envconfig:"INDEXER_URL" required:"true"`
}

type substrateConfig struct {
	GatewayURL string `envconfig:"SUBSTRATE_GATEWAY_URL"`
}

type rpcConfig struct {
	Ethereum endpoint
	Sepolia  endpoint
	Base     endpoint
	Arbitrum endpoint
	Optimism endpoint
	Polygon  endpoint
	Bsc      endpoint
}

type endpoint struct {
	URL          string
	BundlerURL   string `split_words:"true"`
	PaymasterURL string `split_words:"true"`
}

type gaslessConfig struct {
	MaxPerWindow int           `envconfig:"GASLESS_MAX_PER_WINDOW" default:"10"`
	Window       time.Duration `envconfig:"GASLESS_WINDOW" default:"1h"`
}

type cacheConfig struct {
	Size int           `envconfig:"BALANCE_CACHE_SIZE" default:"4096"`
	TTL  time.Duration `envconfig:"BALANCE_CACHE_TTL" default:"5m"`
}

type receiptConfig struct {
	Attempts int           `envconfig:"RECEIPT_POLL_ATTEMPTS" default:"3"`
	Delay    time.Duration `envconfig:"RECEIPT_POLL_DELAY" default:"3s"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}

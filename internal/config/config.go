// Package config enables config file parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/log"
)

// Config contains the engine configuration.
type Config struct {
	Auction *AuctionConfig `koanf:"auction"`
	Server  *ServerConfig  `koanf:"server"`
	Storage *StorageConfig `koanf:"storage"`
	Log     *LogConfig     `koanf:"log"`
	Metrics *MetricsConfig `koanf:"metrics"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Auction != nil {
		if err := cfg.Auction.Validate(); err != nil {
			return fmt.Errorf("auction: %w", err)
		}
	}
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if cfg.Storage != nil {
		if err := cfg.Storage.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

// AuctionConfig holds the protocol parameters and the pools opened at
// startup.
type AuctionConfig struct {
	CommitDurationMs     int64  `koanf:"commit_duration_ms"`
	RevealDurationMs     int64  `koanf:"reveal_duration_ms"`
	SlashBps             uint32 `koanf:"slash_bps"`
	ProtocolFeeShareBps  uint32 `koanf:"protocol_fee_share_bps"`
	MaxPriceDeviationBps uint32 `koanf:"max_price_deviation_bps"`
	DepositAsset         string `koanf:"deposit_asset"`

	// TickInterval is how often the server's background loop checks for
	// phase changes and settleable batches.
	TickInterval time.Duration `koanf:"tick_interval"`

	Pools []PoolConfig `koanf:"pools"`
}

// PoolConfig seeds one liquidity pool at startup. Pools already in
// storage are left untouched.
type PoolConfig struct {
	PoolID     string `koanf:"pool_id"`
	AssetIn    string `koanf:"asset_in"`
	AssetOut   string `koanf:"asset_out"`
	ReserveIn  uint64 `koanf:"reserve_in"`
	ReserveOut uint64 `koanf:"reserve_out"`
	FeeBps     uint32 `koanf:"fee_bps"`
	MinDeposit uint64 `koanf:"min_deposit"`
}

// Params assembles the protocol parameters, falling back to the
// defaults for unset fields.
func (cfg *AuctionConfig) Params() domain.Params {
	p := domain.DefaultParams()
	if cfg == nil {
		return p
	}
	if cfg.CommitDurationMs > 0 {
		p.CommitDurationMs = cfg.CommitDurationMs
	}
	if cfg.RevealDurationMs > 0 {
		p.RevealDurationMs = cfg.RevealDurationMs
	}
	if cfg.SlashBps > 0 {
		p.SlashBps = cfg.SlashBps
	}
	if cfg.ProtocolFeeShareBps > 0 {
		p.ProtocolFeeShareBps = cfg.ProtocolFeeShareBps
	}
	if cfg.MaxPriceDeviationBps > 0 {
		p.MaxPriceDeviationBps = cfg.MaxPriceDeviationBps
	}
	if cfg.DepositAsset != "" {
		p.DepositAsset = cfg.DepositAsset
	}
	return p
}

// Tick returns the background loop interval with a default of one
// second.
func (cfg *AuctionConfig) Tick() time.Duration {
	if cfg == nil || cfg.TickInterval <= 0 {
		return time.Second
	}
	return cfg.TickInterval
}

// Validate validates the auction configuration.
func (cfg *AuctionConfig) Validate() error {
	if err := cfg.Params().Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(cfg.Pools))
	for _, p := range cfg.Pools {
		if p.PoolID == "" {
			return fmt.Errorf("pool with empty pool_id")
		}
		if _, dup := seen[p.PoolID]; dup {
			return fmt.Errorf("duplicate pool %s", p.PoolID)
		}
		seen[p.PoolID] = struct{}{}
		if p.AssetIn == "" || p.AssetOut == "" || p.AssetIn == p.AssetOut {
			return fmt.Errorf("pool %s: malformed asset pair", p.PoolID)
		}
		if p.ReserveIn == 0 || p.ReserveOut == 0 {
			return fmt.Errorf("pool %s: reserves must be positive", p.PoolID)
		}
		if p.FeeBps >= 10_000 {
			return fmt.Errorf("pool %s: fee_bps must be below 10000", p.PoolID)
		}
	}
	return nil
}

// ServerConfig contains the API server configuration.
type ServerConfig struct {
	// Endpoint is the service endpoint from which to serve the API.
	Endpoint string `koanf:"endpoint"`

	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed server endpoint '%s'", cfg.Endpoint)
	}
	return nil
}

// StorageBackend is which persistence layer the engine runs on.
type StorageBackend string

// Storage backends
const (
	BackendMemory   StorageBackend = "memory"
	BackendPostgres StorageBackend = "postgres"
)

// StorageConfig contains the storage layer configuration.
type StorageConfig struct {
	Backend StorageBackend `koanf:"backend"`

	// Endpoint is the postgres connection string. Required for the
	// postgres backend.
	Endpoint string `koanf:"endpoint"`

	// ClickHouse is the settlement history sink. Optional; when unset,
	// settled batches are not archived.
	ClickHouse *ClickHouseConfig `koanf:"clickhouse"`

	// If set, the schema migrations run at startup.
	Migrate bool `koanf:"migrate"`
}

// ClickHouseConfig contains the analytics store configuration.
type ClickHouseConfig struct {
	Endpoint string `koanf:"endpoint"`
	Database string `koanf:"database"`
}

// Validate validates the storage configuration.
func (cfg *StorageConfig) Validate() error {
	switch cfg.Backend {
	case "", BackendMemory:
	case BackendPostgres:
		if cfg.Endpoint == "" {
			return fmt.Errorf("postgres backend requires an endpoint")
		}
	default:
		return fmt.Errorf("unknown storage backend '%s'", cfg.Backend)
	}
	if cfg.ClickHouse != nil && cfg.ClickHouse.Endpoint == "" {
		return fmt.Errorf("malformed clickhouse endpoint '%s'", cfg.ClickHouse.Endpoint)
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	var format log.Format
	if err := format.Set(cfg.Format); err != nil {
		return err
	}
	var level log.Level
	return level.Set(cfg.Level)
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	// PullEndpoint is the endpoint from which Prometheus scrapes.
	PullEndpoint string `koanf:"pull_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

// InitConfig initializes configuration from file.
func InitConfig(f string) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Load configuration from the yaml config.
	if err := k.Load(file.Provider(f), yaml.Parser()); err != nil {
		return nil, err
	}

	// Load environment variables and merge into the loaded config.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		// `__` is used as a hierarchy delimiter.
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Unmarshal into config.
	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	// Validate config.
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

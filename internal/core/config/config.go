package config

import (
	"time"

	redisclient "github.com/Luganodes/Solana-Indexer/internal/infra/redis"
	"github.com/Luganodes/Solana-Indexer/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Validator ValidatorConfig    `yaml:"validator"`
	RPC       RPCConfig          `yaml:"rpc"`
	Price     PriceConfig        `yaml:"price"`
	Jobs      JobsConfig         `yaml:"jobs"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ValidatorConfig identifies the tracked validator.
type ValidatorConfig struct {
	// PubKey is the vote-account key delegations point at; it is also
	// matched against transaction account keys during discovery.
	PubKey string `yaml:"pubkey"`
	// RewardIdentity is the identity the validator's own reward rows are
	// stored under.
	RewardIdentity string `yaml:"reward_identity"`
	// RewardPubKey is the account queried for the validator's own
	// inflation rewards.
	RewardPubKey string `yaml:"reward_pubkey"`
	// StartEpoch is where backfill begins when no rewards are recorded.
	StartEpoch uint64 `yaml:"start_epoch"`
}

// RPCConfig holds ledger RPC transport settings.
type RPCConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`
}

// PriceConfig holds price oracle settings.
type PriceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// JobsConfig holds cron specs for the scheduled jobs.
type JobsConfig struct {
	Reconcile        string `yaml:"reconcile"`
	DelegatorRewards string `yaml:"delegator_rewards"`
	ValidatorRewards string `yaml:"validator_rewards"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

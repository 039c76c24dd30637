package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.RPC.Timeout == 0 {
		cfg.RPC.Timeout = 30 * time.Second
	}
	if cfg.RPC.InitialRetryDelay == 0 {
		cfg.RPC.InitialRetryDelay = 5 * time.Second
	}
	if cfg.RPC.MaxRetryDelay == 0 {
		cfg.RPC.MaxRetryDelay = 5 * time.Minute
	}
	if cfg.Jobs.Reconcile == "" {
		cfg.Jobs.Reconcile = "*/30 * * * *"
	}
	if cfg.Jobs.DelegatorRewards == "" {
		cfg.Jobs.DelegatorRewards = "0 1 * * *"
	}
	if cfg.Jobs.ValidatorRewards == "" {
		cfg.Jobs.ValidatorRewards = "0 1 * * *"
	}
	if cfg.Validator.RewardIdentity == "" {
		cfg.Validator.RewardIdentity = cfg.Validator.PubKey
	}
	if cfg.Validator.RewardPubKey == "" {
		cfg.Validator.RewardPubKey = cfg.Validator.PubKey
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Validator.PubKey == "" {
		return fmt.Errorf("validator.pubkey is required")
	}
	if cfg.RPC.Endpoint == "" {
		return fmt.Errorf("rpc.endpoint is required")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.Validator.StartEpoch == 0 {
		return fmt.Errorf("validator.start_epoch is required")
	}
	return nil
}

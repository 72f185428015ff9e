package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config carries everything the process needs at startup. Values come
// from the environment, with an optional .env file for local runs.
type Config struct {
	ListenAddr      string
	DatabaseDSN     string
	RPCURL          string
	ContractAddress string
	ChainID         int64
	SignerKeyHex    string
	SignerMnemonic  string
	PriceAPIBase    string
	SweepInterval   time.Duration
	LogLevel        string
}

func Load() (*Config, error) {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		RPCURL:          os.Getenv("ETH_RPC_URL"),
		ContractAddress: os.Getenv("VAULT_CONTRACT_ADDRESS"),
		SignerKeyHex:    os.Getenv("SIGNER_PRIVATE_KEY"),
		SignerMnemonic:  os.Getenv("SIGNER_MNEMONIC"),
		PriceAPIBase:    getEnv("PRICE_API_BASE", "https://api.coingecko.com/api/v3"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseDSN == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}
	if cfg.RPCURL == "" {
		return nil, errors.New("ETH_RPC_URL is required")
	}
	if cfg.ContractAddress == "" {
		return nil, errors.New("VAULT_CONTRACT_ADDRESS is required")
	}
	if cfg.SignerKeyHex == "" && cfg.SignerMnemonic == "" {
		return nil, errors.New("one of SIGNER_PRIVATE_KEY or SIGNER_MNEMONIC is required")
	}

	chainID, err := strconv.ParseInt(getEnv("CHAIN_ID", "1"), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid CHAIN_ID")
	}
	cfg.ChainID = chainID

	sweep, err := time.ParseDuration(getEnv("SWEEP_INTERVAL", "30s"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid SWEEP_INTERVAL")
	}
	cfg.SweepInterval = sweep

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

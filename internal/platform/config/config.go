// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	id "copyroom/pkg/domain"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	WalletMemory = "memory"
	WalletRedis  = "redis"
)

// Server captures everything main needs to wire the ledger.
type Server struct {
	Addr        string `env:"COPYROOM_ADDR" envDefault:":8080"`
	Environment string `env:"COPYROOM_ENV" envDefault:"dev"`
	LogLevel    string `env:"COPYROOM_LOG_LEVEL" envDefault:"info"`

	// Owner is the system owner recorded on first boot.
	Owner string `env:"COPYROOM_OWNER"`
	// Unit names the native value unit in user-facing messages.
	Unit            string        `env:"COPYROOM_UNIT" envDefault:"ONE"`
	MaxMintQuantity uint64        `env:"COPYROOM_MAX_MINT_QUANTITY" envDefault:"10000"`
	TxTimeout       time.Duration `env:"COPYROOM_TX_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"COPYROOM_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// HTTPWriteTimeout bounds a response and must exceed TxTimeout.
	HTTPWriteTimeout time.Duration `env:"COPYROOM_HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout  time.Duration `env:"COPYROOM_HTTP_READ_TIMEOUT" envDefault:"10s"`

	JWT     JWTConfig     `envPrefix:"COPYROOM_JWT_"`
	Storage StorageConfig `envPrefix:"COPYROOM_STORAGE_"`
	Wallet  WalletConfig  `envPrefix:"COPYROOM_WALLET_"`
	Redis   RedisConfig   `envPrefix:"COPYROOM_REDIS_"`
	Kafka   KafkaConfig   `envPrefix:"COPYROOM_KAFKA_"`
}

// DevSigningKey is the public default key. It only signs tokens outside production.
const DevSigningKey = "dev-secret-key-change-in-production"

type JWTConfig struct {
	SigningKey string `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string `env:"ISSUER" envDefault:"copyroom"`
}

type StorageConfig struct {
	Backend     string `env:"BACKEND" envDefault:"memory"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

type WalletConfig struct {
	Backend string `env:"BACKEND" envDefault:"memory"`
	// Seed funds wallet accounts at startup. Applied to the memory wallet
	// always and to the redis wallet outside production.
	// Format: 0xaddr:amount,0xaddr:amount
	Seed map[string]string `env:"SEED" envKeyValSeparator:":"`
	// Custody is the account holding escrowed value in the redis wallet.
	Custody          string        `env:"CUSTODY" envDefault:"custody"`
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`
}

type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

type KafkaConfig struct {
	Brokers     []string `env:"BROKERS" envSeparator:","`
	TopicPrefix string   `env:"TOPIC_PREFIX" envDefault:"copyroom.events"`
	ClientID    string   `env:"CLIENT_ID" envDefault:"copyroom"`
	// AsyncBuffer > 0 publishes events through a buffered worker.
	AsyncBuffer int `env:"ASYNC_BUFFER" envDefault:"0"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromEnv parses and validates the server configuration.
func FromEnv() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Server) Validate() error {
	var errs []error
	if _, err := id.ParseAddress(c.Owner); err != nil {
		errs = append(errs, fmt.Errorf("COPYROOM_OWNER: %w", err))
	}
	if strings.TrimSpace(c.Unit) == "" {
		errs = append(errs, errors.New("COPYROOM_UNIT must not be empty"))
	}
	if c.MaxMintQuantity == 0 {
		errs = append(errs, errors.New("COPYROOM_MAX_MINT_QUANTITY must be positive"))
	}
	if c.IsProduction() {
		key := strings.TrimSpace(c.JWT.SigningKey)
		if key == "" || key == DevSigningKey {
			errs = append(errs, errors.New("COPYROOM_JWT_SIGNING_KEY must be set to a non-default value in production"))
		}
	}
	if c.HTTPWriteTimeout <= c.TxTimeout {
		errs = append(errs, errors.New("COPYROOM_HTTP_WRITE_TIMEOUT must exceed COPYROOM_TX_TIMEOUT"))
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("COPYROOM_STORAGE_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	switch c.Wallet.Backend {
	case WalletMemory:
	case WalletRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("COPYROOM_REDIS_URL is required for redis wallet"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown wallet backend %q", c.Wallet.Backend))
	}
	for addr, amount := range c.Wallet.Seed {
		if _, err := id.ParseAddress(addr); err != nil {
			errs = append(errs, fmt.Errorf("wallet seed: %w", err))
		}
		if _, err := id.ParseAmount(amount); err != nil {
			errs = append(errs, fmt.Errorf("wallet seed %s: %w", addr, err))
		}
	}
	return errors.Join(errs...)
}

// OwnerAddress returns the parsed system owner. Call after Validate.
func (c Server) OwnerAddress() id.Address {
	addr, _ := id.ParseAddress(c.Owner)
	return addr
}

// IsProduction reports whether dev conveniences must be disabled.
func (c Server) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

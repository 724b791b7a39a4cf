package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DurableBackendRedis = "redis"
	DurableBackendFile  = "file"

	SaltBackendMySQL = "mysql"
	SaltBackendStore = "store"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Sui       SuiConfig
	OAuth     OAuthConfig
	Storage   StorageConfig
	Salt      SaltConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig is only read when SALT_BACKEND=mysql
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"3306"`
	User            string        `envconfig:"DB_USER" default:"app"`
	Password        string        `envconfig:"DB_PASSWORD" default:"apppassword"`
	Name            string        `envconfig:"DB_NAME" default:"zklogin"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	PoolSize int    `envconfig:"REDIS_POOL_SIZE" default:"10"`
}

type SuiConfig struct {
	RPCURL      string        `envconfig:"SUI_RPC_URL" default:"https://fullnode.devnet.sui.io:443"`
	FaucetURL   string        `envconfig:"SUI_FAUCET_URL" default:"https://faucet.devnet.sui.io/gas"`
	ProverURL   string        `envconfig:"SUI_PROVER_URL" default:"https://prover-dev.mystenlabs.com/v1"`
	Lookahead   uint64        `envconfig:"SUI_EPOCH_LOOKAHEAD" default:"10"`
	GasBudget   uint64        `envconfig:"SUI_GAS_BUDGET" default:"10000000"`
	HTTPTimeout time.Duration `envconfig:"SUI_HTTP_TIMEOUT" default:"30s"`
	// ProverTimeout is longer than HTTPTimeout; proof generation takes seconds
	ProverTimeout time.Duration `envconfig:"SUI_PROVER_TIMEOUT" default:"90s"`
}

type OAuthConfig struct {
	ClientID     string `envconfig:"OAUTH_CLIENT_ID" default:""`
	RedirectURI  string `envconfig:"OAUTH_REDIRECT_URI" default:"http://localhost:3000/callback"`
	AuthorizeURL string `envconfig:"OAUTH_AUTHORIZE_URL" default:"https://accounts.google.com/o/oauth2/v2/auth"`
}

type StorageConfig struct {
	// VolatileTTL bounds the lifetime of tokens and proofs held in Redis
	VolatileTTL    time.Duration `envconfig:"STORAGE_VOLATILE_TTL" default:"1h"`
	DurableTTL     time.Duration `envconfig:"STORAGE_DURABLE_TTL" default:"168h"`
	DurableBackend string        `envconfig:"STORAGE_DURABLE_BACKEND" default:"redis"`
	FilePath       string        `envconfig:"STORAGE_FILE_PATH" default:"./data/sessions.enc"`
	FileSecret     string        `envconfig:"STORAGE_FILE_SECRET" default:""`
	GuardTTL       time.Duration `envconfig:"STORAGE_GUARD_TTL" default:"2m"`
}

type SaltConfig struct {
	Backend string `envconfig:"SALT_BACKEND" default:"store"`
	// Passphrase enables sealing of salt values in MySQL
	Passphrase string `envconfig:"SALT_ENCRYPTION_PASSPHRASE" default:""`
	KDFSalt    string `envconfig:"SALT_KDF_SALT" default:""`
	// LegacyAddress trims leading zero bytes of the address seed, matching older wallets
	LegacyAddress bool `envconfig:"SALT_LEGACY_ADDRESS" default:"false"`
}

type RateLimitConfig struct {
	ProofRPS    float64       `envconfig:"RATE_LIMIT_PROOF_RPS" default:"0.2"`
	ProofBurst  int           `envconfig:"RATE_LIMIT_PROOF_BURST" default:"3"`
	FaucetRPS   float64       `envconfig:"RATE_LIMIT_FAUCET_RPS" default:"0.0167"`
	FaucetBurst int           `envconfig:"RATE_LIMIT_FAUCET_BURST" default:"1"`
	IdleTTL     time.Duration `envconfig:"RATE_LIMIT_IDLE_TTL" default:"10m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations envconfig tags cannot express
func (c *Config) Validate() error {
	switch c.Storage.DurableBackend {
	case DurableBackendRedis:
	case DurableBackendFile:
		if c.Storage.FileSecret == "" {
			return fmt.Errorf("STORAGE_FILE_SECRET is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DURABLE_BACKEND %q", c.Storage.DurableBackend)
	}

	switch c.Salt.Backend {
	case SaltBackendMySQL, SaltBackendStore:
	default:
		return fmt.Errorf("unknown SALT_BACKEND %q", c.Salt.Backend)
	}
	if c.Salt.Passphrase != "" && len(c.Salt.KDFSalt) < 8 {
		return fmt.Errorf("SALT_KDF_SALT must be at least 8 bytes when encryption is enabled")
	}

	if c.Sui.Lookahead == 0 {
		return fmt.Errorf("SUI_EPOCH_LOOKAHEAD must be positive")
	}
	return nil
}

// UseMySQL reports whether salts live in MySQL
func (c *Config) UseMySQL() bool {
	return c.Salt.Backend == SaltBackendMySQL
}

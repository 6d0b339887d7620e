package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
)

const (
	// DriverPostgres selects the PostgreSQL backend
	DriverPostgres = "postgres"
	// DriverSQLite selects the single-host SQLite backend
	DriverSQLite = "sqlite"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	ConsumerName   string        `mapstructure:"consumer_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	AckWait        time.Duration `mapstructure:"ack_wait"`
	MaxDeliver     int           `mapstructure:"max_deliver"`
}

// MintAPIConfig holds configuration of the external minting API
type MintAPIConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	ChainName string `mapstructure:"chain_name"`
}

// MintingConfig holds configuration of the submission loop
type MintingConfig struct {
	// Interval is the pause between two iterations
	Interval time.Duration `mapstructure:"interval"`
	// BatchSize is the maximum number of rows claimed per iteration
	BatchSize int `mapstructure:"batch_size"`
	// ChunkSize is the maximum number of rows per API call, never above 100
	ChunkSize int `mapstructure:"chunk_size"`
	// MaxNumberOfTries is the number of failed attempts after which a row is given up
	MaxNumberOfTries int `mapstructure:"max_number_of_tries"`
	// CallTimeout bounds a single API call
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// StaleClaimAfter is how long a row may stay submitting before it is released
	StaleClaimAfter time.Duration `mapstructure:"stale_claim_after"`
	// WorkerPoolSize bounds the number of concurrent API calls
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
}

// RateLimitConfig holds configuration of the mint request pacing limiter
type RateLimitConfig struct {
	// RequestsPerSecond of zero disables pacing
	RequestsPerSecond   int           `mapstructure:"requests_per_second"`
	Burst               int           `mapstructure:"burst"`
	MaxWait             time.Duration `mapstructure:"max_wait"`
	RedisAddr           string        `mapstructure:"redis_addr"` // Empty paces each submitter locally
	RedisPassword       string        `mapstructure:"redis_password"`
	RedisDB             int           `mapstructure:"redis_db"`
	RedisKey            string        `mapstructure:"redis_key"`
	EnableLocalFallback bool          `mapstructure:"enable_local_fallback"`
}

// WebhookConfig holds configuration of the webhook receiver
type WebhookConfig struct {
	Secret    string        `mapstructure:"secret"`
	Tolerance time.Duration `mapstructure:"tolerance"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Webhook    WebhookConfig  `mapstructure:"webhook"`
	// NATS is optional; webhook events are applied inline when nats.url is empty
	NATS NATSConfig `mapstructure:"nats"`
}

// SubmitterConfig holds configuration for the submission loop
type SubmitterConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Database    DatabaseConfig  `mapstructure:"database"`
	MintAPI     MintAPIConfig   `mapstructure:"mint_api"`
	Minting     MintingConfig   `mapstructure:"minting"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	MetricsPort int             `mapstructure:"metrics_port"`
}

// ReconcilerConfig holds configuration for the reconciliation consumer
type ReconcilerConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Database    DatabaseConfig `mapstructure:"database"`
	NATS        NATSConfig     `mapstructure:"nats"`
	MetricsPort int            `mapstructure:"metrics_port"`
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("webhook.tolerance", "5m")
	setDatabaseDefaults(v)
	setNATSDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadSubmitterConfig loads configuration for the submission loop
func LoadSubmitterConfig(configFile string, envPath string) (*SubmitterConfig, error) {
	v := configureViper("submitter", configFile, envPath)

	// Set defaults
	v.SetDefault("mint_api.base_url", "https://api.sandbox.immutable.com")
	v.SetDefault("mint_api.chain_name", "imtbl-zkevm-testnet")
	v.SetDefault("minting.interval", "1s")
	v.SetDefault("minting.batch_size", 1000)
	v.SetDefault("minting.chunk_size", domain.MAX_MINT_CHUNK_SIZE)
	v.SetDefault("minting.max_number_of_tries", 3)
	v.SetDefault("minting.call_timeout", "30s")
	v.SetDefault("minting.stale_claim_after", "10m")
	v.SetDefault("minting.worker_pool_size", 10)
	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.max_wait", "2m")
	v.SetDefault("rate_limit.enable_local_fallback", true)
	v.SetDefault("metrics_port", 9090)
	setDatabaseDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg SubmitterConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if cfg.MintAPI.APIKey == "" {
		return nil, errors.New("mint_api.api_key is required")
	}
	if cfg.Minting.ChunkSize <= 0 || cfg.Minting.ChunkSize > domain.MAX_MINT_CHUNK_SIZE {
		cfg.Minting.ChunkSize = domain.MAX_MINT_CHUNK_SIZE
	}

	return &cfg, nil
}

// LoadReconcilerConfig loads configuration for the reconciliation consumer
func LoadReconcilerConfig(configFile string, envPath string) (*ReconcilerConfig, error) {
	v := configureViper("reconciler", configFile, envPath)

	// Set defaults
	v.SetDefault("metrics_port", 9091)
	setDatabaseDefaults(v)
	setNATSDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg ReconcilerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if cfg.NATS.URL == "" {
		return nil, errors.New("nats.url is required")
	}

	return &cfg, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "data/mint.db")
}

func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "MINT_EVENTS")
	v.SetDefault("nats.consumer_name", "mint-reconciler")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", 5)
}

// readConfig reads the config file, falling back to environment variables when there is none
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("FF_MINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		"metrics_port",
		// Database
		"database.driver",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.sqlite_path",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		// Minting API
		"mint_api.base_url",
		"mint_api.api_key",
		"mint_api.chain_name",
		// Submission loop
		"minting.interval",
		"minting.batch_size",
		"minting.chunk_size",
		"minting.max_number_of_tries",
		"minting.call_timeout",
		"minting.stale_claim_after",
		"minting.worker_pool_size",
		// Mint request pacing
		"rate_limit.requests_per_second",
		"rate_limit.burst",
		"rate_limit.max_wait",
		"rate_limit.redis_addr",
		"rate_limit.redis_password",
		"rate_limit.redis_db",
		"rate_limit.redis_key",
		"rate_limit.enable_local_fallback",
		// Webhook
		"webhook.secret",
		"webhook.tolerance",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// Validate checks the fields required by the selected driver
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Host == "" {
			return errors.New("database.host is required")
		}
		if c.DBName == "" {
			return errors.New("database.dbname is required")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("database.sqlite_path is required")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Driver)
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadSubmitterConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *SubmitterConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
database:
  host: localhost
  port: 5433
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
mint_api:
  base_url: "https://api.example.com"
  api_key: "key"
  chain_name: "imtbl-zkevm-mainnet"
minting:
  interval: "2s"
  batch_size: 500
  chunk_size: 50
  max_number_of_tries: 5
  call_timeout: "10s"
  stale_claim_after: "30m"
  worker_pool_size: 4
rate_limit:
  requests_per_second: 5
  redis_addr: "localhost:6379"
  redis_key: "test:mint"
`,
			validate: func(t *testing.T, cfg *SubmitterConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "https://api.example.com", cfg.MintAPI.BaseURL)
				assert.Equal(t, "imtbl-zkevm-mainnet", cfg.MintAPI.ChainName)
				assert.Equal(t, 2*time.Second, cfg.Minting.Interval)
				assert.Equal(t, 500, cfg.Minting.BatchSize)
				assert.Equal(t, 50, cfg.Minting.ChunkSize)
				assert.Equal(t, 5, cfg.Minting.MaxNumberOfTries)
				assert.Equal(t, 10*time.Second, cfg.Minting.CallTimeout)
				assert.Equal(t, 30*time.Minute, cfg.Minting.StaleClaimAfter)
				assert.Equal(t, 4, cfg.Minting.WorkerPoolSize)
				assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
				assert.Equal(t, "localhost:6379", cfg.RateLimit.RedisAddr)
				assert.Equal(t, "test:mint", cfg.RateLimit.RedisKey)
				assert.Equal(t, 2*time.Minute, cfg.RateLimit.MaxWait)
				assert.True(t, cfg.RateLimit.EnableLocalFallback)
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
  dbname: testdb
mint_api:
  api_key: "key"
`,
			validate: func(t *testing.T, cfg *SubmitterConfig) {
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, time.Second, cfg.Minting.Interval)
				assert.Equal(t, 1000, cfg.Minting.BatchSize)
				assert.Equal(t, 100, cfg.Minting.ChunkSize)
				assert.Equal(t, 3, cfg.Minting.MaxNumberOfTries)
				assert.Equal(t, 30*time.Second, cfg.Minting.CallTimeout)
				assert.Equal(t, 10*time.Minute, cfg.Minting.StaleClaimAfter)
				assert.Equal(t, 10, cfg.Minting.WorkerPoolSize)
				assert.Equal(t, 9090, cfg.MetricsPort)
			},
		},
		{
			name: "chunk size is clamped",
			configFile: `
database:
  driver: sqlite
  sqlite_path: /tmp/mint.db
mint_api:
  api_key: "key"
minting:
  chunk_size: 250
`,
			validate: func(t *testing.T, cfg *SubmitterConfig) {
				assert.Equal(t, DriverSQLite, cfg.Database.Driver)
				assert.Equal(t, 100, cfg.Minting.ChunkSize)
			},
		},
		{
			name: "missing api key",
			configFile: `
database:
  host: localhost
  dbname: testdb
`,
			expectError: true,
		},
		{
			name: "missing database host",
			configFile: `
mint_api:
  api_key: "key"
`,
			expectError: true,
		},
		{
			name: "invalid yaml",
			configFile: `
				database:
				  host: localhost
				  port: invalid
			`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadSubmitterConfig(writeConfig(t, tt.configFile), t.TempDir())
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadAPIConfig(t *testing.T) {
	cfg, err := LoadAPIConfig(writeConfig(t, `
server:
  port: 9000
database:
  host: localhost
  dbname: testdb
auth:
  api_keys:
    - key-1
    - key-2
webhook:
  secret: "whsec"
`), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"key-1", "key-2"}, cfg.Auth.APIKeys)
	assert.Equal(t, "whsec", cfg.Webhook.Secret)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.Tolerance)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "MINT_EVENTS", cfg.NATS.StreamName)
}

func TestLoadReconcilerConfig(t *testing.T) {
	cfg, err := LoadReconcilerConfig(writeConfig(t, `
database:
  host: localhost
  dbname: testdb
nats:
  url: "nats://localhost:4222"
`), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "MINT_EVENTS", cfg.NATS.StreamName)
	assert.Equal(t, "mint-reconciler", cfg.NATS.ConsumerName)
	assert.Equal(t, 30*time.Second, cfg.NATS.AckWait)
	assert.Equal(t, 5, cfg.NATS.MaxDeliver)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)

	_, err = LoadReconcilerConfig(writeConfig(t, `
database:
  host: localhost
  dbname: testdb
`), t.TempDir())
	assert.Error(t, err)
}

func TestDatabaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  DatabaseConfig
		wantErr bool
	}{
		{"postgres", DatabaseConfig{Driver: DriverPostgres, Host: "localhost", DBName: "db"}, false},
		{"postgres without host", DatabaseConfig{Driver: DriverPostgres, DBName: "db"}, true},
		{"postgres without dbname", DatabaseConfig{Driver: DriverPostgres, Host: "localhost"}, true},
		{"sqlite", DatabaseConfig{Driver: DriverSQLite, SQLitePath: "mint.db"}, false},
		{"sqlite without path", DatabaseConfig{Driver: DriverSQLite}, true},
		{"unknown driver", DatabaseConfig{Driver: "mysql"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "p@ssw0rd!",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=testuser password=p@ssw0rd! dbname=testdb sslmode=disable", cfg.DSN())
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()

	envDir := filepath.Join(tmpDir, "env")
	require.NoError(t, os.MkdirAll(envDir, 0750))

	// godotenv.Overload sets process environment variables, unset them afterwards
	envVars := map[string]string{
		"FF_MINT_DEBUG":                       "true",
		"FF_MINT_DATABASE_HOST":               "env-host",
		"FF_MINT_DATABASE_PORT":               "6543",
		"FF_MINT_DATABASE_DBNAME":             "env-db",
		"FF_MINT_MINT_API_API_KEY":            "env-key",
		"FF_MINT_MINTING_MAX_NUMBER_OF_TRIES": "7",
	}
	content := ""
	for k, v := range envVars {
		content += k + "=" + v + "\n"
		key := k
		t.Cleanup(func() { _ = os.Unsetenv(key) })
	}
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte(content), 0600))

	configPath := writeConfig(t, `
debug: false
database:
  host: file-host
  port: 5432
  dbname: file-db
mint_api:
  api_key: file-key
`)

	cfg, err := LoadSubmitterConfig(configPath, envDir)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "env-db", cfg.Database.DBName)
	assert.Equal(t, "env-key", cfg.MintAPI.APIKey)
	assert.Equal(t, 7, cfg.Minting.MaxNumberOfTries)
}

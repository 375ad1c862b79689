package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/tap-mssql/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalJSON = `{
	"mssql_connection_config": {
		"host": "db.local",
		"database": "sales",
		"user": "sa",
		"password": "secret",
		"driver_type": "pyodbc"
	}
}`

func TestLoad_JSONWithDefaults(t *testing.T) {
	cfg, err := Load([]string{writeFile(t, "config.json", minimalJSON)}, nil)
	require.NoError(t, err)

	assert.Equal(t, "db.local", cfg.Connection.Host)
	assert.Equal(t, DefaultPort, cfg.Connection.Port)
	assert.Equal(t, "pyodbc", cfg.Connection.DriverType)
	assert.Equal(t, "true", cfg.Connection.Encrypt)
	require.NotNil(t, cfg.Connection.TrustServerCertificate)
	assert.True(t, *cfg.Connection.TrustServerCertificate)
	assert.Equal(t, DefaultStateMessageFrequency, cfg.StateMessageFrequency)
	assert.Nil(t, cfg.Batch)
}

func TestLoad_YAMLOverridesEarlierFiles(t *testing.T) {
	base := writeFile(t, "base.json", minimalJSON)
	override := writeFile(t, "override.yml", `
start_date: "2024-01-01"
hd_jsonschema_types: true
filter_schemas: [sales, hr]
mssql_connection_config:
  host: db.override
  port: 14330
  database: sales
  user: reader
  password: 12345
batch_config:
  storage:
    root: file:///tmp/batches
`)

	cfg, err := Load([]string{base, override}, nil)
	require.NoError(t, err)

	assert.Equal(t, "db.override", cfg.Connection.Host)
	assert.Equal(t, 14330, cfg.Connection.Port)
	assert.Equal(t, "12345", cfg.Connection.Password)
	assert.Equal(t, DefaultDriverType, cfg.Connection.DriverType, "driver_type of the earlier file is replaced with the block")
	assert.True(t, cfg.HDJSONSchemaTypes)
	assert.Equal(t, []string{"sales", "hr"}, cfg.FilterSchemas)
	require.NotNil(t, cfg.Batch)
	assert.Equal(t, "jsonl", cfg.Batch.Encoding.Format)
	assert.Equal(t, "gzip", cfg.Batch.Encoding.Compression)
	assert.Equal(t, DefaultBatchSize, cfg.Batch.BatchSize)

	start, err := cfg.StartTime()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", start.Format("2006-01-02T15:04:05Z07:00"))
}

func TestLoad_LaterFilesReplaceTopLevelKeys(t *testing.T) {
	first := writeFile(t, "first.json", `{
		"mssql_connection_config": {
			"host": "prod", "database": "d",
			"azure_ad": {"access_token": "tok"},
			"ssh_tunnel": {"host": "bastion", "username": "ops", "password": "pw"},
			"sqlalchemy_url_query": {"app name": "etl"}
		},
		"batch_config": {"storage": {"root": "s3://lake/raw", "prefix": "prod-"}, "batch_size": 10},
		"state_message_frequency": 5
	}`)
	second := writeFile(t, "second.json", `{
		"mssql_connection_config": {"host": "dev", "database": "d", "user": "u2", "password": "p2"},
		"batch_config": {"storage": {"root": "file:///tmp/batches"}}
	}`)

	cfg, err := Load([]string{first, second}, nil)
	require.NoError(t, err)

	assert.Nil(t, cfg.Connection.AzureAD)
	assert.Nil(t, cfg.Connection.SSHTunnel)
	assert.Empty(t, cfg.Connection.URLQuery)
	assert.Equal(t, "u2", cfg.Connection.User)
	assert.Equal(t, "p2", cfg.Connection.Password)
	assert.Equal(t, "sqlserver://u2:p2@dev:1433?TrustServerCertificate=true&database=d&encrypt=true", cfg.Connection.DSN())

	require.NotNil(t, cfg.Batch)
	assert.Empty(t, cfg.Batch.Storage.Prefix)
	assert.Equal(t, DefaultBatchSize, cfg.Batch.BatchSize)
	assert.Equal(t, 5, cfg.StateMessageFrequency, "keys absent from the later file are kept")
}

func TestLoad_Environment(t *testing.T) {
	environ := []string{
		"PATH=/usr/bin",
		`TAP_MSSQL_MSSQL_CONNECTION_CONFIG={"host":"env.local","database":"db","user":"u","password":"12345"}`,
		"TAP_MSSQL_START_DATE=2024-02-03T04:05:06Z",
		"TAP_MSSQL_STATE_MESSAGE_FREQUENCY=50",
		"TAP_MSSQL_UNKNOWN=ignored",
	}
	cfg, err := Load([]string{EnvSource}, environ)
	require.NoError(t, err)

	assert.Equal(t, "env.local", cfg.Connection.Host)
	assert.Equal(t, "12345", cfg.Connection.Password)
	assert.Equal(t, "2024-02-03T04:05:06Z", cfg.StartDate)
	assert.Equal(t, 50, cfg.StateMessageFrequency)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name         string
		sources      func(t *testing.T) []string
		expectedKind domain.ErrorKind
		expectedMsg  string
	}{
		{
			name:         "no sources",
			sources:      func(t *testing.T) []string { return nil },
			expectedKind: domain.KindInvalidConfig,
			expectedMsg:  "no config given",
		},
		{
			name:         "missing file",
			sources:      func(t *testing.T) []string { return []string{filepath.Join(t.TempDir(), "nope.json")} },
			expectedKind: domain.KindNotFound,
		},
		{
			name:         "malformed document",
			sources:      func(t *testing.T) []string { return []string{writeFile(t, "bad.json", `{"mssql_connection_config": [`)} },
			expectedKind: domain.KindInvalidConfig,
		},
		{
			name: "missing host",
			sources: func(t *testing.T) []string {
				return []string{writeFile(t, "c.json", `{"mssql_connection_config":{"database":"d","user":"u","password":"p"}}`)}
			},
			expectedKind: domain.KindInvalidConfig,
			expectedMsg:  "host is required",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.sources(t), nil)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, tc.expectedKind), "unexpected error: %v", err)
			if tc.expectedMsg != "" {
				assert.Contains(t, err.Error(), tc.expectedMsg)
			}
		})
	}
}

func validConfig() *Config {
	cfg := &Config{Connection: ConnectionConfig{Host: "db", Database: "d", User: "u", Password: "p"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(c *Config)
		expectedMsg string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "host with scheme", mutate: func(c *Config) { c.Connection.Host = "https://db" }, expectedMsg: "URL scheme"},
		{name: "port out of range", mutate: func(c *Config) { c.Connection.Port = 70000 }, expectedMsg: "port"},
		{name: "missing database", mutate: func(c *Config) { c.Connection.Database = "" }, expectedMsg: "database is required"},
		{name: "missing password", mutate: func(c *Config) { c.Connection.Password = "" }, expectedMsg: "password is required"},
		{name: "unknown driver", mutate: func(c *Config) { c.Connection.DriverType = "odbc" }, expectedMsg: "driver_type"},
		{name: "unknown encrypt", mutate: func(c *Config) { c.Connection.Encrypt = "maybe" }, expectedMsg: "encrypt"},
		{
			name: "azure ad with token needs no password",
			mutate: func(c *Config) {
				c.Connection.User, c.Connection.Password = "", ""
				c.Connection.AzureAD = &AzureADConfig{AccessToken: "tok"}
			},
		},
		{
			name: "azure ad without credentials",
			mutate: func(c *Config) {
				c.Connection.AzureAD = &AzureADConfig{ClientID: "id"}
			},
			expectedMsg: "azure_ad",
		},
		{
			name:        "ssh tunnel without auth",
			mutate:      func(c *Config) { c.Connection.SSHTunnel = &SSHTunnelConfig{Host: "bastion", Username: "ops"} },
			expectedMsg: "password or private_key",
		},
		{name: "bad start date", mutate: func(c *Config) { c.StartDate = "yesterday" }, expectedMsg: "start_date"},
		{
			name: "bad batch root",
			mutate: func(c *Config) {
				c.Batch = &BatchConfig{Encoding: BatchEncoding{Format: "jsonl", Compression: "gzip"}, Storage: BatchStorage{Root: "gs://bucket"}}
			},
			expectedMsg: "scheme",
		},
		{
			name: "bad compression",
			mutate: func(c *Config) {
				c.Batch = &BatchConfig{Encoding: BatchEncoding{Format: "jsonl", Compression: "zstd"}, Storage: BatchStorage{Root: "file:///tmp"}}
			},
			expectedMsg: "compression",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.expectedMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedMsg)
		})
	}
}

func TestConnectionConfig_DSN(t *testing.T) {
	cfg := validConfig()
	cfg.Connection.Password = "p@ss word"
	cfg.Connection.URLQuery = map[string]string{"app name": "tap-mssql"}

	u, err := url.Parse(cfg.Connection.DSN())
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "db:1433", u.Host)
	assert.Equal(t, "u", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pass)
	assert.Equal(t, "d", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))
	assert.Equal(t, "tap-mssql", u.Query().Get("app name"))

	assert.NotContains(t, cfg.Connection.Redacted(), "p@ss")
}

func TestConnectionConfig_DSNWithAzureAD(t *testing.T) {
	cfg := validConfig()
	cfg.Connection.AzureAD = &AzureADConfig{TenantID: "tenant", ClientID: "id", ClientSecret: "s"}
	cfg.ApplyDefaults()

	u, err := url.Parse(cfg.Connection.DSN())
	require.NoError(t, err)
	assert.Nil(t, u.User)
	assert.Equal(t, "https://login.microsoftonline.com/tenant/oauth2/v2.0/token", cfg.Connection.AzureAD.TokenURL)
	assert.Equal(t, "https://database.windows.net/.default", cfg.Connection.AzureAD.Scope)
}

func TestEngineParams(t *testing.T) {
	assert.Equal(t, 0, EngineParams{}.MaxOpenConns())
	assert.Equal(t, 15, EngineParams{PoolSize: 5, MaxOverflow: 10}.MaxOpenConns())
	assert.Equal(t, "1h0m0s", EngineParams{PoolRecycle: 3600}.ConnMaxLifetime().String())
}

func TestSettingsSchema(t *testing.T) {
	schema := SettingsSchema()
	assert.Equal(t, []string{"mssql_connection_config"}, schema["required"])
	props := schema["properties"].(map[string]any)
	for key := range settingKinds {
		assert.Contains(t, props, key)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Store: StoreConfig{
			Backend:       BackendYAML,
			YAMLDirectory: filepath.Join("data", "records"),
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			Database: "recall",
			Username: "user",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "recall",
		},
		Review: ReviewConfig{
			MaxAttempts: 3,
			RetryDelay:  20 * time.Millisecond,
		},
		Server: ServerConfig{
			Port: 8080,
			CORS: CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		},
	}
}

func TestLoad(t *testing.T) {
	sqliteDir := t.TempDir()

	tests := []struct {
		name              string
		configContent     string
		useExplicitPath   bool
		env               map[string]string
		wantErr           bool
		want              func() *Config
		wantErrorContains []string
	}{
		{
			name:            "no config file uses defaults",
			useExplicitPath: false,
			want:            defaultConfig,
		},
		{
			name: "valid config file with custom values",
			configContent: `log:
  level: debug
store:
  backend: mysql
database:
  host: db.internal
  port: 3307
  database: flashcards
  max_open_conns: 20
review:
  max_attempts: 5
  retry_delay: 150ms
server:
  port: 9090
`,
			want: func() *Config {
				cfg := defaultConfig()
				cfg.Log.Level = "debug"
				cfg.Store.Backend = BackendMySQL
				cfg.Database.Host = "db.internal"
				cfg.Database.Port = 3307
				cfg.Database.Database = "flashcards"
				cfg.Database.MaxOpenConns = 20
				cfg.Review.MaxAttempts = 5
				cfg.Review.RetryDelay = 150 * time.Millisecond
				cfg.Server.Port = 9090
				return cfg
			},
		},
		{
			name: "explicit config file path with sqlite",
			configContent: `store:
  backend: sqlite
  sqlite_path: ` + filepath.Join(sqliteDir, "recall.db") + `
`,
			useExplicitPath: true,
			want: func() *Config {
				cfg := defaultConfig()
				cfg.Store.Backend = BackendSQLite
				cfg.Store.SQLitePath = filepath.Join(sqliteDir, "recall.db")
				return cfg
			},
		},
		{
			name: "secrets from environment",
			env: map[string]string{
				"DB_PASSWORD":          "s3cret",
				"REDIS_PASSWORD":       "r3dis",
				"RECALL_STORE_BACKEND": "redis",
			},
			want: func() *Config {
				cfg := defaultConfig()
				cfg.Store.Backend = BackendRedis
				cfg.Database.Password = "s3cret"
				cfg.Redis.Password = "r3dis"
				return cfg
			},
		},
		{
			name: "invalid YAML format",
			configContent: `store:
  backend: yaml
  invalid yaml format here [[[
`,
			wantErr: true,
			wantErrorContains: []string{
				"configuration file found but could not be read",
				"Please check the file format and permissions",
			},
		},
		{
			name: "unknown backend",
			configContent: `store:
  backend: postgres
`,
			wantErr:           true,
			wantErrorContains: []string{"invalid configuration", "backend"},
		},
		{
			name: "sqlite without a path",
			configContent: `store:
  backend: sqlite
`,
			wantErr:           true,
			wantErrorContains: []string{"invalid configuration", "sqlite_path"},
		},
		{
			name: "sqlite path in a missing directory",
			configContent: `store:
  backend: sqlite
  sqlite_path: /does/not/exist/recall.db
`,
			wantErr:           true,
			wantErrorContains: []string{"store.sqlite_path must be inside an existing directory"},
		},
		{
			name: "zero retry attempts",
			configContent: `review:
  max_attempts: 0
`,
			wantErr:           true,
			wantErrorContains: []string{"max_attempts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var configPath string
			if tt.useExplicitPath {
				configPath = filepath.Join(tempDir, "recall.yml")
				require.NoError(t, os.WriteFile(configPath, []byte(tt.configContent), 0644))
			} else {
				if tt.configContent != "" {
					require.NoError(t, os.WriteFile(filepath.Join(tempDir, "config.yml"), []byte(tt.configContent), 0644))
				}
				t.Chdir(tempDir)
			}

			got, err := Load(configPath)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				for _, wantMsg := range tt.wantErrorContains {
					assert.Contains(t, err.Error(), wantMsg)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want(), got)
		})
	}
}

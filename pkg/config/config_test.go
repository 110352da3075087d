package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Accounts.List = []AccountConfig{
		{ID: "default", Store: "instagram_data.db", MediaDir: "instagram"},
		{ID: "brand", DisplayName: "Brand", Store: "brand.db", MediaDir: "brand_media"},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "default", cfg.Accounts.Default)
	assert.Equal(t, "instagram_posts.html", cfg.Input.PostsFile)
	assert.Equal(t, "instagram_reels.html", cfg.Input.ReelsFile)
	assert.Equal(t, 10*time.Second, cfg.Media.Timeout)
	assert.False(t, cfg.Media.VerifyContent)
	assert.Equal(t, []string{".ico"}, cfg.Extractor.IconSuffixes)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGARCHIVE_BASE_DIR", "/srv/igarchive")
	t.Setenv("IGARCHIVE_DEFAULT_ACCOUNT", "brand")
	t.Setenv("IGARCHIVE_INPUT_DIR", "/tmp/snapshots")
	t.Setenv("IGARCHIVE_MEDIA_TIMEOUT", "3s")
	t.Setenv("IGARCHIVE_REQUESTS_PER_MINUTE", "30")
	t.Setenv("IGARCHIVE_VERIFY_CONTENT", "TRUE")
	t.Setenv("IGARCHIVE_API_TOKEN", "secret")
	t.Setenv("IGARCHIVE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/srv/igarchive", cfg.Accounts.BaseDir)
	assert.Equal(t, "brand", cfg.Accounts.Default)
	assert.Equal(t, "/tmp/snapshots", cfg.Input.Dir)
	assert.Equal(t, 3*time.Second, cfg.Media.Timeout)
	assert.Equal(t, 30, cfg.Media.RequestsPerMinute)
	assert.True(t, cfg.Media.VerifyContent)
	assert.Equal(t, "secret", cfg.Server.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidDuration(t *testing.T) {
	t.Setenv("IGARCHIVE_MEDIA_TIMEOUT", "soon")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name: "missing account id",
			mutate: func(c *Config) {
				c.Accounts.List = append(c.Accounts.List, AccountConfig{Store: "x.db", MediaDir: "x"})
			},
			wantError: "id is required",
		},
		{
			name: "duplicate account id",
			mutate: func(c *Config) {
				c.Accounts.List = append(c.Accounts.List, AccountConfig{ID: "brand", Store: "b2.db", MediaDir: "b2"})
			},
			wantError: "duplicate id",
		},
		{
			name: "missing media dir",
			mutate: func(c *Config) {
				c.Accounts.List[1].MediaDir = ""
			},
			wantError: "media dir is required",
		},
		{
			name: "same input files",
			mutate: func(c *Config) {
				c.Input.ReelsFile = c.Input.PostsFile
			},
			wantError: "must differ",
		},
		{
			name: "zero timeout",
			mutate: func(c *Config) {
				c.Media.Timeout = 0
			},
			wantError: "media timeout",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantError: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"base-dir":       "/flag/base",
		"input":          "/flag/input",
		"addr":           ":9999",
		"schedule":       "@every 10m",
		"verify-content": true,
		"log-level":      "error",
	})

	assert.Equal(t, "/flag/base", cfg.Accounts.BaseDir)
	assert.Equal(t, "/flag/input", cfg.Input.Dir)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "@every 10m", cfg.Schedule.Spec)
	assert.True(t, cfg.Media.VerifyContent)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := validConfig()
	cfg.Server.Token = "not-persisted-in-json-only"
	cfg.Schedule.Spec = "@every 1h"
	require.NoError(t, cfg.Save(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))

	require.Len(t, loaded.Accounts.List, 2)
	assert.Equal(t, "brand", loaded.Accounts.List[1].ID)
	assert.Equal(t, "brand_media", loaded.Accounts.List[1].MediaDir)
	assert.Equal(t, "@every 1h", loaded.Schedule.Spec)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlData := `
accounts:
  default: brand
  list:
    - id: brand
      store: brand.db
      media_dir: brand_media
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlData), 0600))
	t.Setenv("IGARCHIVE_LOG_LEVEL", "debug")

	cfg, err := Load(configPath, map[string]interface{}{"addr": ":7000"})
	require.NoError(t, err)

	assert.Equal(t, "brand", cfg.Accounts.Default)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	// Untouched defaults survive the file merge.
	assert.Equal(t, "instagram_posts.html", cfg.Input.PostsFile)
}

func TestLoadInvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("accounts: [unclosed"), 0600))

	_, err := Load(configPath, nil)
	assert.Error(t, err)
}

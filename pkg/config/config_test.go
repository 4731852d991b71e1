package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/glorpus-work/addonctl/pkg/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Settings.HTTPTimeout)
	assert.Equal(t, DefaultMaxConcurrent, cfg.Settings.MaxConcurrent)
	assert.Equal(t, catalog.DefaultEndpoint, cfg.Feeds.Endpoint)
	assert.Equal(t, "ESO", cfg.Feeds.GameID)
	assert.Equal(t, catalog.DefaultPriceTableURL, cfg.Feeds.PriceTable)
	assert.False(t, cfg.Settings.UpdatePriceTable)
	assert.True(t, strings.HasSuffix(cfg.AddonDir, filepath.Join("live", "AddOns")))
	assert.Equal(t, "addonctl.db", filepath.Base(cfg.DBPath))
	assert.False(t, cfg.FeedsConfigured())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `addon_dir: /games/eso/AddOns
db_path: /data/addonctl.db
feeds:
  file_list: https://api.example.com/filelist.json
  file_details: https://api.example.com/filedetails/
  category_list: https://api.example.com/categories.json
settings:
  log_level: debug
  max_concurrent: 2
  requests_per_second: 1.5
hooks:
  post_install: /scripts/post.tengo
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/games/eso/AddOns", cfg.AddonDir)
	assert.Equal(t, "/data/addonctl.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.Settings.LogLevel)
	assert.Equal(t, 2, cfg.Settings.MaxConcurrent)
	assert.InDelta(t, 1.5, cfg.Settings.RequestsPerSecond, 1e-9)
	assert.Equal(t, DefaultHTTPTimeout, cfg.Settings.HTTPTimeout)
	assert.Equal(t, catalog.DefaultEndpoint, cfg.Feeds.Endpoint)
	assert.True(t, cfg.FeedsConfigured())
	assert.Equal(t, "https://api.example.com/filedetails/", cfg.CatalogFeeds().FileDetails)
	assert.Equal(t, "/scripts/post.tengo", cfg.HookPaths()[hook.PostInstall])
	assert.Empty(t, cfg.HookPaths()[hook.PreInstall])
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Settings.MaxConcurrent, cfg.Settings.MaxConcurrent)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, errutils.ErrEmptyConfigPath)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("addon_dir: /from/file\n"), fsutil.FileModeDefault))

	t.Setenv("ADDONCTL_ADDON_DIR", "/from/env")
	t.Setenv("ADDONCTL_DB_PATH", "/env/db.sqlite")
	t.Setenv("ADDONCTL_LOG_LEVEL", "warn")
	t.Setenv("ADDONCTL_HTTP_TIMEOUT", "5s")
	t.Setenv("ADDONCTL_MAX_CONCURRENT", "8")
	t.Setenv("ADDONCTL_UPDATE_ON_LAUNCH", "true")
	t.Setenv("ADDONCTL_UPDATE_TTC_PRICETABLE", "true")
	t.Setenv("ADDONCTL_PRICE_TABLE_URL", "https://ttc.example.com/PriceTable")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.AddonDir)
	assert.Equal(t, "/env/db.sqlite", cfg.DBPath)
	assert.Equal(t, "warn", cfg.Settings.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Settings.HTTPTimeout)
	assert.Equal(t, 8, cfg.Settings.MaxConcurrent)
	assert.True(t, cfg.Settings.UpdateOnLaunch)
	assert.True(t, cfg.Settings.UpdatePriceTable)
	assert.Equal(t, "https://ttc.example.com/PriceTable", cfg.Feeds.PriceTable)
}

func TestLoadConfig_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("ADDONCTL_MAX_CONCURRENT", "many")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, errutils.ErrConfigEnv)
}

func TestLoadConfigFromReader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"malformed yaml", "settings: [", errutils.ErrConfigParse},
		{"bad log level", "settings:\n  log_level: loud\n", errutils.ErrConfigValidation},
		{"negative timeout", "settings:\n  http_timeout: -1s\n", errutils.ErrConfigValidation},
		{"negative rate", "settings:\n  requests_per_second: -2\n", errutils.ErrConfigValidation},
		{"zero concurrency", "settings:\n  max_concurrent: -1\n", errutils.ErrConfigValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AddonDir = "/games/AddOns"
	cfg.Settings.LogLevel = "debug"
	cfg.SetCatalogFeeds(catalog.Feeds{
		FileList:     "https://x/list",
		FileDetails:  "https://x/details/",
		ListFiles:    "https://x/files",
		CategoryList: "https://x/cats",
	})

	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveConfig(configPath))

	f, err := os.Open(configPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	loaded, err := LoadConfigFromReader(f)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestInitConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	_, err := InitConfig(configPath, false)
	require.NoError(t, err)
	assert.FileExists(t, configPath)

	_, err = InitConfig(configPath, false)
	assert.ErrorIs(t, err, errutils.ErrConfigFileExists)

	_, err = InitConfig(configPath, true)
	assert.NoError(t, err)
}

func TestSetAndGetValue(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.SetValue("settings.log_level", "error"))
	require.NoError(t, cfg.SetValue("settings.http_timeout", "10s"))
	require.NoError(t, cfg.SetValue("settings.max_concurrent", "3"))
	require.NoError(t, cfg.SetValue("settings.update_on_launch", "true"))
	require.NoError(t, cfg.SetValue("settings.update_ttc_pricetable", "true"))
	require.NoError(t, cfg.SetValue("feeds.price_table", "https://ttc.example.com/PriceTable"))
	require.NoError(t, cfg.SetValue("hooks.pre_install", "/s/pre.tengo"))

	for key, want := range map[string]string{
		"settings.log_level":             "error",
		"settings.http_timeout":          "10s",
		"settings.max_concurrent":        "3",
		"settings.update_on_launch":      "true",
		"settings.update_ttc_pricetable": "true",
		"feeds.price_table":              "https://ttc.example.com/PriceTable",
		"hooks.pre_install":              "/s/pre.tengo",
	} {
		got, err := cfg.GetValue(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestSetValue_Errors(t *testing.T) {
	cfg := DefaultConfig()

	assert.ErrorIs(t, cfg.SetValue("nope", "x"), errutils.ErrUnknownConfigKey)
	assert.ErrorIs(t, cfg.SetValue("settings.update_on_launch", "maybe"), errutils.ErrInvalidBoolValue)
	assert.ErrorIs(t, cfg.SetValue("settings.update_ttc_pricetable", "sometimes"), errutils.ErrInvalidBoolValue)
	assert.ErrorIs(t, cfg.SetValue("settings.log_level", "loud"), errutils.ErrInvalidLogLevel)
	assert.ErrorIs(t, cfg.SetValue("addon_dir", " "), errutils.ErrAddonDirEmpty)
	assert.Equal(t, "info", cfg.Settings.LogLevel)

	_, err := cfg.GetValue("nope")
	assert.ErrorIs(t, err, errutils.ErrUnknownConfigKey)
}

func TestToMapCoversKeys(t *testing.T) {
	m := DefaultConfig().ToMap()
	for _, key := range Keys() {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, "ESO", m["feeds.game_id"])
}

// Package config loads and saves the addonctl configuration: where add-ons
// are installed, where the local database lives, which catalog feeds to use,
// network settings and hook scripts. Values come from a YAML file and may be
// overridden by ADDONCTL_* environment variables.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/glorpus-work/addonctl/pkg/hook"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// AddonDir is the game's add-on root, e.g. ".../live/AddOns".
	AddonDir string `yaml:"addon_dir"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	Feeds    Feeds    `yaml:"feeds"`
	Settings Settings `yaml:"settings"`
	Hooks    Hooks    `yaml:"hooks"`
}

// Feeds locates the catalog. Empty feed URLs are discovered from Endpoint.
type Feeds struct {
	Endpoint     string `yaml:"endpoint"`
	GameID       string `yaml:"game_id"`
	FileList     string `yaml:"file_list,omitempty"`
	FileDetails  string `yaml:"file_details,omitempty"`
	ListFiles    string `yaml:"list_files,omitempty"`
	CategoryList string `yaml:"category_list,omitempty"`
	// PriceTable is the Tamriel Trade Centre price table archive.
	PriceTable string `yaml:"price_table"`
}

// Settings represents general application settings.
type Settings struct {
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	LogLevel          string        `yaml:"log_level"`
	UpdateOnLaunch    bool          `yaml:"update_on_launch"`
	// UpdatePriceTable refreshes the price table on every sync.
	UpdatePriceTable bool `yaml:"update_ttc_pricetable"`
}

// Hooks holds paths to Tengo scripts run around installs and removals.
type Hooks struct {
	PreInstall  string `yaml:"pre_install,omitempty"`
	PostInstall string `yaml:"post_install,omitempty"`
	PostRemove  string `yaml:"post_remove,omitempty"`
}

// Default configuration values.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultRequestsPerSecond throttles catalog requests.
	DefaultRequestsPerSecond = 5.0

	// DefaultMaxConcurrent is the default number of parallel upgrades.
	DefaultMaxConcurrent = 4

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ADDONCTL"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2

	appDirName = "addonctl"
	dbFileName = "addonctl.db"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir, err := getUserDataDir()
	if err != nil {
		dataDir = "."
	}

	return &Config{
		AddonDir: defaultAddonDir(),
		DBPath:   filepath.Join(dataDir, appDirName, dbFileName),
		Feeds: Feeds{
			Endpoint:   catalog.DefaultEndpoint,
			GameID:     catalog.DefaultGameID,
			PriceTable: catalog.DefaultPriceTableURL,
		},
		Settings: Settings{
			HTTPTimeout:       DefaultHTTPTimeout,
			UserAgent:         catalog.DefaultUserAgent,
			RequestsPerSecond: DefaultRequestsPerSecond,
			MaxConcurrent:     DefaultMaxConcurrent,
			LogLevel:          DefaultLogLevel,
		},
	}
}

// LoadConfig loads configuration from a file and applies environment
// overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errutils.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errutils.Wrap(errutils.ErrInvalidConfigPath, err.Error())
	}

	var cfg *Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		cfg, err = decode(file)
		if err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		cfg = DefaultConfig()
	default:
		return nil, errutils.Wrapf(err, "failed to open config file: %s", path)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigValidation, err.Error())
	}
	return cfg, nil
}

// LoadConfigFromReader loads configuration from an io.Reader. Environment
// overrides are not applied.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	cfg, err := decode(reader)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigValidation, err.Error())
	}
	return cfg, nil
}

func decode(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errutils.Wrap(err, "failed to read config data")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigParse, err.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// InitConfig writes the default configuration to path. An existing file is
// only replaced when force is set.
func InitConfig(path string, force bool) (*Config, error) {
	if path == "" {
		return nil, errutils.ErrEmptyConfigPath
	}
	if _, err := os.Stat(path); err == nil && !force {
		return nil, errutils.ErrConfigFileExists
	}
	cfg := DefaultConfig()
	if err := cfg.SaveConfig(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves configuration to a file, replacing it atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errutils.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errutils.Wrap(errutils.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errutils.Wrap(errutils.ErrConfigDirectory, err.Error())
	}

	data, err := c.ToYAML()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(absPath, data, fsutil.FileModeDefault); err != nil {
		return errutils.Wrap(errutils.ErrConfigFileCreate, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigEncode, err.Error())
	}
	if err := encoder.Close(); err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigEncode, err.Error())
	}
	return buf.Bytes(), nil
}

// envOverrides lists the supported environment variables, e.g.
// ADDONCTL_ADDON_DIR or ADDONCTL_LOG_LEVEL. Unset variables stay nil.
type envOverrides struct {
	AddonDir          *string        `split_words:"true"`
	DBPath            *string        `split_words:"true"`
	FeedsEndpoint     *string        `split_words:"true"`
	GameID            *string        `split_words:"true"`
	HTTPTimeout       *time.Duration `split_words:"true"`
	UserAgent         *string        `split_words:"true"`
	RequestsPerSecond *float64       `split_words:"true"`
	MaxConcurrent     *int           `split_words:"true"`
	LogLevel          *string        `split_words:"true"`
	UpdateOnLaunch    *bool          `split_words:"true"`
	PriceTableURL     *string        `split_words:"true"`
	UpdatePriceTable  *bool          `envconfig:"UPDATE_TTC_PRICETABLE"`
}

// ApplyEnv overlays ADDONCTL_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return errutils.Wrap(errutils.ErrConfigEnv, err.Error())
	}

	setString(&c.AddonDir, env.AddonDir)
	setString(&c.DBPath, env.DBPath)
	setString(&c.Feeds.Endpoint, env.FeedsEndpoint)
	setString(&c.Feeds.GameID, env.GameID)
	setString(&c.Settings.UserAgent, env.UserAgent)
	setString(&c.Settings.LogLevel, env.LogLevel)
	setString(&c.Feeds.PriceTable, env.PriceTableURL)
	if env.HTTPTimeout != nil {
		c.Settings.HTTPTimeout = *env.HTTPTimeout
	}
	if env.RequestsPerSecond != nil {
		c.Settings.RequestsPerSecond = *env.RequestsPerSecond
	}
	if env.MaxConcurrent != nil {
		c.Settings.MaxConcurrent = *env.MaxConcurrent
	}
	if env.UpdateOnLaunch != nil {
		c.Settings.UpdateOnLaunch = *env.UpdateOnLaunch
	}
	if env.UpdatePriceTable != nil {
		c.Settings.UpdatePriceTable = *env.UpdatePriceTable
	}
	return nil
}

func setString(dst, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errutils.ErrConfigValidation
	}
	if strings.TrimSpace(c.AddonDir) == "" {
		return errutils.ErrAddonDirEmpty
	}
	return validateSettings(c.Settings)
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return errutils.ErrHTTPTimeoutNegative
	}
	if s.RequestsPerSecond < 0 {
		return errutils.ErrRequestsPerSecondNegative
	}
	if s.MaxConcurrent < 1 {
		return errutils.ErrMaxConcurrentInvalid
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errutils.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	return nil
}

// CatalogFeeds returns the configured feed URLs.
func (c *Config) CatalogFeeds() catalog.Feeds {
	return catalog.Feeds{
		FileList:     c.Feeds.FileList,
		FileDetails:  c.Feeds.FileDetails,
		ListFiles:    c.Feeds.ListFiles,
		CategoryList: c.Feeds.CategoryList,
	}
}

// SetCatalogFeeds stores discovered feed URLs.
func (c *Config) SetCatalogFeeds(f catalog.Feeds) {
	c.Feeds.FileList = f.FileList
	c.Feeds.FileDetails = f.FileDetails
	c.Feeds.ListFiles = f.ListFiles
	c.Feeds.CategoryList = f.CategoryList
}

// FeedsConfigured reports whether every feed the client needs is set.
func (c *Config) FeedsConfigured() bool {
	return c.Feeds.FileList != "" && c.Feeds.FileDetails != "" && c.Feeds.CategoryList != ""
}

// HookPaths returns the configured hook scripts keyed by hook type.
func (c *Config) HookPaths() map[hook.HookType]string {
	return map[hook.HookType]string{
		hook.PreInstall:  c.Hooks.PreInstall,
		hook.PostInstall: c.Hooks.PostInstall,
		hook.PostRemove:  c.Hooks.PostRemove,
	}
}

// CatalogOptions returns the HTTP client options.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		Timeout:           c.Settings.HTTPTimeout,
		UserAgent:         c.Settings.UserAgent,
		RequestsPerSecond: c.Settings.RequestsPerSecond,
	}
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, appDirName, "config.yaml"), nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.AddonDir == "" {
		c.AddonDir = defaults.AddonDir
	}
	if c.DBPath == "" {
		c.DBPath = defaults.DBPath
	}
	if c.Feeds.Endpoint == "" {
		c.Feeds.Endpoint = defaults.Feeds.Endpoint
	}
	if c.Feeds.GameID == "" {
		c.Feeds.GameID = defaults.Feeds.GameID
	}
	if c.Feeds.PriceTable == "" {
		c.Feeds.PriceTable = defaults.Feeds.PriceTable
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = defaults.Settings.MaxConcurrent
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}

// defaultAddonDir is the live server add-on folder under the user's
// documents directory.
func defaultAddonDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "Documents", "Elder Scrolls Online", "live", "AddOns")
}

func getUserDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}

	if runtime.GOOS == "linux" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return filepath.Join(homeDir, ".local", "share"), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return configDir, nil
}

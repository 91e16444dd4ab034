package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"spot-price-panel/internal/interval"
	"spot-price-panel/internal/logging"
)

// Allow-lists for the Nord Pool selection. Invalid or absent values fall back
// to the documented defaults instead of failing the boot.
var (
	nordPoolAreas = []string{
		"SE1", "SE2", "SE3", "SE4", "NO1", "NO2", "NO3", "NO4", "NO5",
		"DK1", "DK2", "FI", "EE", "LV", "LT", "SYS",
	}
	nordPoolCurrencies = []string{"SEK", "EUR", "NOK", "DKK"}
)

const (
	// DefaultArea is used when the configured grid area is not allowed.
	DefaultArea = "SE3"
	// DefaultCurrency is used when the configured currency is not allowed.
	DefaultCurrency = "SEK"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Provider ProviderConfig `mapstructure:"provider"`
	NordPool NordPoolConfig `mapstructure:"nordpool"`
	Tibber   TibberConfig   `mapstructure:"tibber"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Render   RenderConfig   `mapstructure:"render"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ProviderConfig selects the price feed source.
type ProviderConfig struct {
	Source string `mapstructure:"source"`
}

// NordPoolConfig covers the day-ahead index feed.
type NordPoolConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Area           string        `mapstructure:"area"`
	Currency       string        `mapstructure:"currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TibberConfig covers the retail subscription API.
type TibberConfig struct {
	URL            string        `mapstructure:"url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FetchConfig governs slot resolution and the daily refresh schedule.
type FetchConfig struct {
	ResolutionMinutes int           `mapstructure:"resolution_minutes"`
	DailyHour         int           `mapstructure:"daily_hour"`
	DailyMinute       int           `mapstructure:"daily_minute"`
	RetryCooldown     time.Duration `mapstructure:"retry_cooldown"`
	ErrorRetry        time.Duration `mapstructure:"error_retry"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

// StorageConfig locates the persisted state files.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	HistoryFile  string `mapstructure:"history_file"`
	SnapshotFile string `mapstructure:"snapshot_file"`
}

// RenderConfig sets panel output behaviour.
type RenderConfig struct {
	PNGPath string `mapstructure:"png_path"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPOTPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "spotpanel")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("provider.source", "nordpool")

	v.SetDefault("nordpool.base_url", "https://dataportal-api.nordpoolgroup.com/api/DayAheadPriceIndices")
	v.SetDefault("nordpool.area", DefaultArea)
	v.SetDefault("nordpool.currency", DefaultCurrency)
	v.SetDefault("nordpool.request_timeout", "10s")
	v.SetDefault("nordpool.user_agent", "spotpanel/1.0")

	v.SetDefault("tibber.url", "https://api.tibber.com/v1-beta/gql")
	v.SetDefault("tibber.request_timeout", "10s")

	v.SetDefault("fetch.resolution_minutes", 60)
	v.SetDefault("fetch.daily_hour", 13)
	v.SetDefault("fetch.daily_minute", 0)
	v.SetDefault("fetch.retry_cooldown", "10m")
	v.SetDefault("fetch.error_retry", "30s")
	v.SetDefault("fetch.poll_interval", "1s")

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.history_file", "nordpool_ma.bin")
	v.SetDefault("storage.snapshot_file", "price_cache.json")

	v.SetDefault("render.png_path", "")
	v.SetDefault("render.width", 1280)
	v.SetDefault("render.height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// normalize substitutes documented defaults for out-of-range selections.
func (c *Config) normalize() {
	c.Provider.Source = strings.ToLower(strings.TrimSpace(c.Provider.Source))
	c.NordPool.Area = normalizeToken(c.NordPool.Area, DefaultArea, nordPoolAreas)
	c.NordPool.Currency = normalizeToken(c.NordPool.Currency, DefaultCurrency, nordPoolCurrencies)
	c.Fetch.ResolutionMinutes = interval.NormalizeResolution(c.Fetch.ResolutionMinutes)
}

func normalizeToken(value, fallback string, allowed []string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	return fallback
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Provider.Source {
	case "nordpool", "tibber":
	default:
		return fmt.Errorf("provider.source must be nordpool or tibber")
	}
	if c.Provider.Source == "tibber" && strings.TrimSpace(c.Tibber.Token) == "" {
		return fmt.Errorf("tibber.token is required when provider.source is tibber")
	}
	if c.Fetch.DailyHour < 0 || c.Fetch.DailyHour > 23 {
		return fmt.Errorf("fetch.daily_hour must be within 0..23")
	}
	if c.Fetch.DailyMinute < 0 || c.Fetch.DailyMinute > 59 {
		return fmt.Errorf("fetch.daily_minute must be within 0..59")
	}
	if c.Fetch.RetryCooldown <= 0 {
		return fmt.Errorf("fetch.retry_cooldown must be greater than zero")
	}
	if c.Fetch.ErrorRetry <= 0 {
		return fmt.Errorf("fetch.error_retry must be greater than zero")
	}
	if c.Fetch.PollInterval <= 0 {
		return fmt.Errorf("fetch.poll_interval must be greater than zero")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render.width and render.height must be greater than zero")
	}
	return nil
}

// HistoryPath locates the rolling-average record file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.HistoryFile)
}

// SnapshotPath locates the price snapshot file.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.SnapshotFile)
}

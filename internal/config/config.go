// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	RPCURL         string `mapstructure:"rpc_url"`
	JupiterBaseURL string `mapstructure:"jupiter_base_url"`

	// PrivateKey is never read from the config file; only the
	// TRENCHBOT_PRIVATE_KEY environment variable can set it.
	PrivateKey string `mapstructure:"-"`

	BuyAmountSOL     float64 `mapstructure:"buy_amount_sol"`
	TargetMultiplier float64 `mapstructure:"target_multiplier"`
	SellFraction     float64 `mapstructure:"sell_fraction"`
	AutoTrade        bool    `mapstructure:"auto_trade"`

	MonitorInterval int    `mapstructure:"monitor_interval"`
	ScoutInterval   int    `mapstructure:"scout_interval"`
	ScoutURL        string `mapstructure:"scout_url"`
	SlippageBps     int    `mapstructure:"slippage_bps"`

	RateLimit         int `mapstructure:"rate_limit"`
	RatePeriodSeconds int `mapstructure:"rate_period_seconds"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts"`
	RetryBaseDelay    int `mapstructure:"retry_base_delay"`

	TelegramToken   string `mapstructure:"telegram_token"`
	TelegramAdminID int64  `mapstructure:"telegram_admin_id"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

const (
	DefaultBuyAmountSOL      = 0.1
	DefaultTargetMultiplier  = 2.0
	DefaultSellFraction      = 80.0
	DefaultMonitorInterval   = 30
	DefaultScoutInterval     = 60
	DefaultSlippageBps       = 50
	DefaultRateLimit         = 20
	DefaultRatePeriodSeconds = 60
	DefaultRetryMaxAttempts  = 3
	DefaultRetryBaseDelay    = 1
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"jupiter_base_url":    "https://quote-api.jup.ag/v6",
		"buy_amount_sol":      DefaultBuyAmountSOL,
		"target_multiplier":   DefaultTargetMultiplier,
		"sell_fraction":       DefaultSellFraction,
		"monitor_interval":    DefaultMonitorInterval,
		"scout_interval":      DefaultScoutInterval,
		"slippage_bps":        DefaultSlippageBps,
		"rate_limit":          DefaultRateLimit,
		"rate_period_seconds": DefaultRatePeriodSeconds,
		"retry_max_attempts":  DefaultRetryMaxAttempts,
		"retry_base_delay":    DefaultRetryBaseDelay,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("missing rpc_url in configuration")
	}
	if err := validateURL(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	if err := validateURL(cfg.JupiterBaseURL, "http"); err != nil {
		return errors.New("invalid Jupiter base URL protocol")
	}
	if cfg.ScoutURL != "" {
		if err := validateURL(cfg.ScoutURL, "http"); err != nil {
			return errors.New("invalid scout URL protocol")
		}
	}
	if cfg.PrivateKey == "" {
		return errors.New("missing TRENCHBOT_PRIVATE_KEY in environment")
	}
	if cfg.TelegramToken != "" && cfg.TelegramAdminID == 0 {
		return errors.New("telegram_admin_id is required when telegram_token is set")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.BuyAmountSOL <= 0 {
		return errors.New("invalid buy_amount_sol")
	}
	if cfg.TargetMultiplier <= 1 {
		return errors.New("invalid target_multiplier")
	}
	if cfg.SellFraction <= 0 || cfg.SellFraction > 100 {
		return errors.New("invalid sell_fraction")
	}
	if cfg.MonitorInterval <= 0 {
		return errors.New("invalid monitor_interval")
	}
	if cfg.ScoutInterval <= 0 {
		return errors.New("invalid scout_interval")
	}
	if cfg.SlippageBps <= 0 || cfg.SlippageBps > 10000 {
		return errors.New("invalid slippage_bps")
	}
	if cfg.RateLimit <= 0 {
		return errors.New("invalid rate_limit")
	}
	if cfg.RatePeriodSeconds <= 0 {
		return errors.New("invalid rate_period_seconds")
	}
	if cfg.RetryMaxAttempts <= 0 {
		return errors.New("invalid retry_max_attempts")
	}
	if cfg.RetryBaseDelay <= 0 {
		return errors.New("invalid retry_base_delay")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("TRENCHBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg.PrivateKey = strings.TrimSpace(v.GetString("PRIVATE_KEY"))

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if rpc := v.GetString("RPC_URL"); rpc != "" {
		cfg.RPCURL = rpc
	}
	return nil
}

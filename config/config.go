package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"binance-signal-monitor/internal/binance"
	"binance-signal-monitor/internal/indicators"
)

const maxConcurrentSymbols = 50

// BinanceConfig holds exchange access settings. Credentials come from
// the environment, never from the config file.
type BinanceConfig struct {
	APIKey    string `json:"-"`
	SecretKey string `json:"-"`
	BaseURL   string `json:"base_url,omitempty"`
}

// CacheConfig bounds the in-memory candle cache
type CacheConfig struct {
	MaxSizeMB         int `json:"max_size_mb"`
	DefaultTTLSeconds int `json:"default_ttl_seconds"`
}

// MonitorConfig drives the scheduler
type MonitorConfig struct {
	Symbols                 []string `json:"symbols"`
	Interval                string   `json:"interval"`
	CandlesLimit            int      `json:"candles_limit"`
	CycleSeconds            int      `json:"cycle_seconds"`
	PerSymbolTimeoutSeconds int      `json:"per_symbol_timeout_seconds"`
	MaxInflight             int      `json:"max_inflight"`
	MaxErrorsPerSymbol      int      `json:"max_errors_per_symbol"`
	ErrorResetMinutes       int      `json:"error_reset_minutes"`
	PollSpacingMs           int      `json:"poll_spacing_ms"`
}

// TradingConfig holds paper-trading parameters
type TradingConfig struct {
	PositionSize      float64 `json:"position_size"`
	MaxPositions      int     `json:"max_positions"`
	MaxRiskPerTrade   float64 `json:"max_risk_per_trade"`
	RiskReward        float64 `json:"risk_reward"`
	InitialBalance    float64 `json:"initial_balance"`
	MakerFee          float64 `json:"maker_fee"`
	TakerFee          float64 `json:"taker_fee"`
	AutoCloseOnTarget bool    `json:"auto_close_on_target"`
}

// StoreConfig locates the trade database
type StoreConfig struct {
	Path string `json:"path"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	ListenAddr string `json:"listen_addr"`
	Enabled    bool   `json:"enabled"`
}

// NotifyConfig holds optional alert delivery channels. A channel with
// missing settings is simply skipped.
type NotifyConfig struct {
	TelegramBotToken  string `json:"-"`
	TelegramChatID    string `json:"telegram_chat_id,omitempty"`
	DiscordWebhookURL string `json:"discord_webhook_url,omitempty"`
}

// LogConfig mirrors the logging package configuration
type LogConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

// Config is the full application configuration
type Config struct {
	Binance    BinanceConfig      `json:"binance"`
	Cache      CacheConfig        `json:"cache"`
	Monitor    MonitorConfig      `json:"monitor"`
	Trading    TradingConfig      `json:"trading"`
	Indicators indicators.Config  `json:"indicators"`
	Store      StoreConfig        `json:"store"`
	Server     ServerConfig       `json:"server"`
	Notify     NotifyConfig       `json:"notify"`
	Log        LogConfig          `json:"log"`
}

// Default returns a configuration with every knob at its default
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxSizeMB:         100,
			DefaultTTLSeconds: 60,
		},
		Monitor: MonitorConfig{
			Symbols:                 []string{"BTCUSDT"},
			Interval:                "15m",
			CandlesLimit:            100,
			CycleSeconds:            60,
			PerSymbolTimeoutSeconds: 30,
			MaxInflight:             10,
			MaxErrorsPerSymbol:      5,
			ErrorResetMinutes:       30,
			PollSpacingMs:           100,
		},
		Trading: TradingConfig{
			PositionSize:      100,
			MaxPositions:      5,
			MaxRiskPerTrade:   2.0,
			RiskReward:        2.0,
			InitialBalance:    10000,
			MakerFee:          0.0004,
			TakerFee:          0.0005,
			AutoCloseOnTarget: true,
		},
		Indicators: indicators.DefaultConfig(),
		Store: StoreConfig{
			Path: "trades.db",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			Enabled:    true,
		},
		Log: LogConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

// Load reads a JSON config file over the defaults and then applies
// environment overrides. path "" skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration
func (c *Config) applyEnv() {
	c.Binance.APIKey = os.Getenv("BINANCE_API_KEY")
	c.Binance.SecretKey = os.Getenv("BINANCE_SECRET_KEY")

	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		c.Binance.BaseURL = v
	}
	if v := os.Getenv("MONITOR_SYMBOLS"); v != "" {
		parts := strings.Split(v, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(strings.ToUpper(p)); s != "" {
				symbols = append(symbols, s)
			}
		}
		c.Monitor.Symbols = symbols
	}
	if v := os.Getenv("MONITOR_INTERVAL"); v != "" {
		c.Monitor.Interval = v
	}
	if v, err := strconv.Atoi(os.Getenv("MONITOR_CYCLE_SECONDS")); err == nil {
		c.Monitor.CycleSeconds = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("TRADING_POSITION_SIZE"), 64); err == nil {
		c.Trading.PositionSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("TRADING_MAX_POSITIONS")); err == nil {
		c.Trading.MaxPositions = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SERVER_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.TelegramChatID = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notify.DiscordWebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects out-of-range settings. Failures are fatal at startup.
func (c *Config) Validate() error {
	if len(c.Monitor.Symbols) == 0 {
		return fmt.Errorf("config: symbols must be non-empty")
	}
	if len(c.Monitor.Symbols) > maxConcurrentSymbols {
		return fmt.Errorf("config: at most %d symbols supported, got %d", maxConcurrentSymbols, len(c.Monitor.Symbols))
	}
	if _, err := binance.NormalizeInterval(c.Monitor.Interval); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Monitor.CandlesLimit < 20 || c.Monitor.CandlesLimit > 1500 {
		return fmt.Errorf("config: candles_limit must be in [20, 1500], got %d", c.Monitor.CandlesLimit)
	}
	if c.Trading.MaxPositions < 1 || c.Trading.MaxPositions > 20 {
		return fmt.Errorf("config: max_positions must be in [1, 20], got %d", c.Trading.MaxPositions)
	}
	if c.Trading.MaxRiskPerTrade < 0.1 || c.Trading.MaxRiskPerTrade > 10 {
		return fmt.Errorf("config: max_risk_per_trade must be in [0.1, 10], got %g", c.Trading.MaxRiskPerTrade)
	}
	if c.Trading.PositionSize <= 0 {
		return fmt.Errorf("config: position_size must be positive, got %g", c.Trading.PositionSize)
	}
	if c.Trading.MakerFee < 0 || c.Trading.TakerFee < 0 {
		return fmt.Errorf("config: fee rates must be non-negative")
	}
	if c.Cache.MaxSizeMB < 1 || c.Cache.MaxSizeMB > 4096 {
		return fmt.Errorf("config: cache max_size_mb must be in [1, 4096], got %d", c.Cache.MaxSizeMB)
	}
	if c.Cache.DefaultTTLSeconds < 10 || c.Cache.DefaultTTLSeconds > 3600 {
		return fmt.Errorf("config: cache default_ttl_seconds must be in [10, 3600], got %d", c.Cache.DefaultTTLSeconds)
	}
	if c.Indicators.TrendMagic.CCIPeriod < 2 {
		return fmt.Errorf("config: cci_period must be at least 2")
	}
	if c.Indicators.TrendMagic.ATRPeriod < 1 {
		return fmt.Errorf("config: atr_period must be at least 1")
	}
	if c.Indicators.Squeeze.BBLength < 2 || c.Indicators.Squeeze.KCLength < 2 {
		return fmt.Errorf("config: squeeze window lengths must be at least 2")
	}
	return nil
}

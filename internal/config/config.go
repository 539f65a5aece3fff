package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config содержит все настройки приложения
type Config struct {
	Coins    CoinsConfig
	Trade    TradeConfig
	Trend    TrendConfig
	Schedule ScheduleConfig
	Telegram TelegramConfig
	LogLevel string
	LogFile  string
}

type CoinsConfig struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Symbol    string
}

type TradeConfig struct {
	BuyThreshold    float64 // доля, не процент: 0.018 = 1.8%
	SellThreshold   float64
	BaseAmount      float64 // сумма одной покупки в котируемой валюте (PHP)
	MinHold         time.Duration
	MaxTradesPerDay int
}

type TrendConfig struct {
	WindowHours int
}

type ScheduleConfig struct {
	CheckInterval time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
	Enabled  bool
}

// fileConfig структура config.yaml (ключи как в оригинальном конфиге бота)
type fileConfig struct {
	API struct {
		Symbol string `yaml:"symbol"`
	} `yaml:"api"`
	Trade struct {
		BuyThresholdPct  float64 `yaml:"buy_threshold_pct"`
		SellThresholdPct float64 `yaml:"sell_threshold_pct"`
		BaseAmountPHP    float64 `yaml:"base_amount_php"`
		MinHoldHours     int     `yaml:"min_hold_hours"`
		MaxTradesPerDay  int     `yaml:"max_trades_per_day"`
	} `yaml:"trade"`
	Trend struct {
		WindowHours int `yaml:"window_hours"`
	} `yaml:"trend"`
	Schedule struct {
		CheckIntervalSec int `yaml:"check_interval_sec"`
	} `yaml:"schedule"`
}

// Load загружает конфигурацию из .env и config.yaml
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	fc, err := loadFile(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return nil, err
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	config := &Config{
		Coins: CoinsConfig{
			APIKey:    getEnv("COINS_API_KEY", ""),
			SecretKey: getEnv("COINS_SECRET_KEY", ""),
			BaseURL:   getEnv("COINS_BASE_URL", "https://api.pro.coins.ph"),
			Symbol:    fc.API.Symbol,
		},
		Trade: TradeConfig{
			BuyThreshold:    fc.Trade.BuyThresholdPct / 100,
			SellThreshold:   fc.Trade.SellThresholdPct / 100,
			BaseAmount:      fc.Trade.BaseAmountPHP,
			MinHold:         time.Duration(fc.Trade.MinHoldHours) * time.Hour,
			MaxTradesPerDay: fc.Trade.MaxTradesPerDay,
		},
		Trend: TrendConfig{
			WindowHours: fc.Trend.WindowHours,
		},
		Schedule: ScheduleConfig{
			CheckInterval: time.Duration(fc.Schedule.CheckIntervalSec) * time.Second,
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "momentum_bot.log"),
	}
	config.Telegram.Enabled = config.Telegram.BotToken != "" && config.Telegram.ChatID != 0

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadFile читает config.yaml и подставляет дефолты для пропущенных полей
func loadFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}

	// Значения по умолчанию из успешного бэктеста
	fc.API.Symbol = "SOLPHP"
	fc.Trade.BuyThresholdPct = 1.8
	fc.Trade.SellThresholdPct = 2.2
	fc.Trade.BaseAmountPHP = 150
	fc.Trade.MinHoldHours = 4
	fc.Trade.MaxTradesPerDay = 2
	fc.Trend.WindowHours = 12
	fc.Schedule.CheckIntervalSec = 900

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("Warning: %s not found, using default strategy parameters\n", path)
			return fc, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return fc, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.Coins.APIKey == "" {
		return fmt.Errorf("COINS_API_KEY is required")
	}
	if c.Coins.SecretKey == "" {
		return fmt.Errorf("COINS_SECRET_KEY is required")
	}
	if c.Coins.Symbol == "" {
		return fmt.Errorf("trading symbol is required")
	}
	if c.Trade.BuyThreshold <= 0 || c.Trade.SellThreshold <= 0 {
		return fmt.Errorf("buy/sell thresholds must be positive")
	}
	if c.Trade.BaseAmount <= 0 {
		return fmt.Errorf("base trade amount must be positive")
	}
	if c.Trade.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max trades per day must be positive")
	}
	if c.Trend.WindowHours <= 0 {
		return fmt.Errorf("trend window must be positive")
	}
	if c.Schedule.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rsiTrendBot/internal/adapters/logger"
	"rsiTrendBot/internal/strategy"
)

// Market data source names used in symbol routes.
const (
	SourceBinance    = "binance"
	SourceTwelveData = "twelvedata"
)

// SymbolRoute maps a configured symbol to the source that serves it.
type SymbolRoute struct {
	Symbol       string // As shown to users, e.g. "XAUUSD"
	Source       string // SourceBinance or SourceTwelveData
	SourceSymbol string // As the source expects it, e.g. "XAU/USD"
}

// Config holds all application configuration.
type Config struct {
	// Telegram
	TelegramToken string
	AdminChatIDs  []int64

	// Market data
	BinanceAPIKey     string
	BinanceSecretKey  string
	BinanceBaseURL    string
	IsTestnet         bool
	TwelveDataAPIKey  string
	TwelveDataBaseURL string
	HTTPTimeout       time.Duration
	RequestRetries    int
	RetryDelay        time.Duration

	// Instances
	Symbols    []SymbolRoute
	Timeframes []string

	// Strategy Parameters
	RSIPeriod  int
	EMAPeriod  int
	WMAPeriod  int
	Overbought float64
	Oversold   float64

	// Scheduling
	CheckInterval time.Duration
	InitialDelay  time.Duration
	KlineLimit    int

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Monitoring
	MetricsAddr string
}

// StrategyConfig returns the indicator parameters.
func (c *Config) StrategyConfig() strategy.Config {
	return strategy.Config{
		RSIPeriod:  c.RSIPeriod,
		EMAPeriod:  c.EMAPeriod,
		WMAPeriod:  c.WMAPeriod,
		Overbought: c.Overbought,
		Oversold:   c.Oversold,
	}
}

// SymbolNames returns the configured symbols in order.
func (c *Config) SymbolNames() []string {
	names := make([]string, len(c.Symbols))
	for i, r := range c.Symbols {
		names[i] = r.Symbol
	}
	return names
}

// NeedsSource reports whether any symbol is routed to source.
func (c *Config) NeedsSource(source string) bool {
	for _, r := range c.Symbols {
		if r.Source == source {
			return true
		}
	}
	return false
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Telegram
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.AdminChatIDs, err = parseChatIDs(getEnv("ADMIN_CHAT_IDS", ""))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ADMIN_CHAT_IDS: %v", err))
	}

	// Market data
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceBaseURL = getEnv("BINANCE_BASE_URL", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)
	cfg.TwelveDataAPIKey = getEnv("TWELVE_DATA_API_KEY", "")
	cfg.TwelveDataBaseURL = getEnv("TWELVE_DATA_BASE_URL", "")

	httpTimeoutSeconds, err := getEnvAsIntRequired("HTTP_TIMEOUT_SECONDS", 15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HTTP_TIMEOUT_SECONDS: %v", err))
	} else if httpTimeoutSeconds <= 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS must be positive")
	}
	cfg.HTTPTimeout = time.Duration(httpTimeoutSeconds) * time.Second

	cfg.RequestRetries = getEnvAsInt("REQUEST_RETRIES", 2)
	if cfg.RequestRetries < 0 {
		errs = append(errs, "REQUEST_RETRIES cannot be negative")
	}
	retryDelaySeconds := getEnvAsInt("RETRY_DELAY_SECONDS", 2)
	if retryDelaySeconds <= 0 {
		errs = append(errs, "RETRY_DELAY_SECONDS must be positive")
	}
	cfg.RetryDelay = time.Duration(retryDelaySeconds) * time.Second

	// Instances
	for _, symbol := range splitList(getEnv("SYMBOLS", "BTCUSD,XAUUSD")) {
		route, err := RouteSymbol(symbol)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		cfg.Symbols = append(cfg.Symbols, route)
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}
	if cfg.NeedsSource(SourceTwelveData) && cfg.TwelveDataAPIKey == "" {
		errs = append(errs, "TWELVE_DATA_API_KEY must be set when a Twelve Data symbol is configured")
	}

	cfg.Timeframes = splitList(getEnv("TIMEFRAMES", "15m,1h"))
	if len(cfg.Timeframes) == 0 {
		errs = append(errs, "TIMEFRAMES must list at least one timeframe")
	}
	for _, tf := range cfg.Timeframes {
		if !validTimeframes[tf] {
			errs = append(errs, fmt.Sprintf("unsupported timeframe %q", tf))
		}
	}

	// Strategy Parameters
	defaults := strategy.DefaultConfig()
	cfg.RSIPeriod = getEnvAsInt("RSI_LENGTH", defaults.RSIPeriod)
	cfg.EMAPeriod = getEnvAsInt("EMA_LENGTH", defaults.EMAPeriod)
	cfg.WMAPeriod = getEnvAsInt("WMA_LENGTH", defaults.WMAPeriod)
	cfg.Overbought, err = getEnvAsFloatRequired("OVERBOUGHT_LEVEL", defaults.Overbought)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid OVERBOUGHT_LEVEL: %v", err))
	}
	cfg.Oversold, err = getEnvAsFloatRequired("OVERSOLD_LEVEL", defaults.Oversold)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid OVERSOLD_LEVEL: %v", err))
	}
	stratCfg := cfg.StrategyConfig()
	if err := stratCfg.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	// Scheduling
	checkSeconds := getEnvAsInt("CHECK_INTERVAL_SECONDS", 60)
	if checkSeconds <= 0 {
		errs = append(errs, "CHECK_INTERVAL_SECONDS must be positive")
	}
	cfg.CheckInterval = time.Duration(checkSeconds) * time.Second

	initialDelaySeconds := getEnvAsInt("INITIAL_DELAY_SECONDS", 10)
	if initialDelaySeconds < 0 {
		errs = append(errs, "INITIAL_DELAY_SECONDS cannot be negative")
	}
	cfg.InitialDelay = time.Duration(initialDelaySeconds) * time.Second

	cfg.KlineLimit, err = getEnvAsIntRequired("KLINE_LIMIT", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid KLINE_LIMIT: %v", err))
	} else if cfg.KlineLimit < stratCfg.RequiredDataPoints() {
		errs = append(errs, fmt.Sprintf("KLINE_LIMIT must be at least %d for the configured periods", stratCfg.RequiredDataPoints()))
	} else if cfg.KlineLimit > 1000 {
		errs = append(errs, "KLINE_LIMIT cannot exceed 1000")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/rsi_bot.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Monitoring; PORT is honoured for hosted deployments
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")
	if cfg.MetricsAddr == "" {
		if port := getEnv("PORT", ""); port != "" {
			cfg.MetricsAddr = ":" + port
		} else {
			cfg.MetricsAddr = ":8080"
		}
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true, "1h": true, "4h": true, "1d": true,
}

// knownRoutes are symbols whose source symbol differs from the simple rules.
var knownRoutes = map[string]SymbolRoute{
	"BTCUSD": {Symbol: "BTCUSD", Source: SourceBinance, SourceSymbol: "BTCUSDT"},
	"ETHUSD": {Symbol: "ETHUSD", Source: SourceBinance, SourceSymbol: "ETHUSDT"},
	"XAUUSD": {Symbol: "XAUUSD", Source: SourceTwelveData, SourceSymbol: "XAU/USD"},
	"XAGUSD": {Symbol: "XAGUSD", Source: SourceTwelveData, SourceSymbol: "XAG/USD"},
}

// RouteSymbol decides which source serves symbol.
// Crypto pairs go to Binance ("USD" quotes become "USDT"). Metals and forex
// go to Twelve Data when written as "XAU/USD" or as a known alias.
func RouteSymbol(symbol string) (SymbolRoute, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if route, ok := knownRoutes[symbol]; ok {
		return route, nil
	}
	switch {
	case strings.Contains(symbol, "/"):
		base, quote, _ := strings.Cut(symbol, "/")
		if base == "" || quote == "" {
			return SymbolRoute{}, fmt.Errorf("invalid symbol %q", symbol)
		}
		return SymbolRoute{Symbol: base + quote, Source: SourceTwelveData, SourceSymbol: symbol}, nil
	case strings.HasSuffix(symbol, "USDT") && len(symbol) > 4:
		return SymbolRoute{Symbol: symbol, Source: SourceBinance, SourceSymbol: symbol}, nil
	case strings.HasSuffix(symbol, "USD") && len(symbol) > 3:
		return SymbolRoute{Symbol: symbol, Source: SourceBinance, SourceSymbol: symbol + "T"}, nil
	}
	return SymbolRoute{}, fmt.Errorf("no market data source for symbol %q", symbol)
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chat ID %q is not an integer", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

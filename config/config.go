package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP surfaces
	ListenAddr  string
	MetricsAddr string

	// Bar source: "sim" or "sqlite"
	Source     string
	SQLitePath string

	// Optional latest-signal cache
	RedisAddr     string
	RedisPassword string

	// Fetch retry policy
	FetchRetries     int
	FetchBackoffBase time.Duration
	FetchBackoffCap  time.Duration

	// Session pacing
	PollInterval   time.Duration
	DefaultNumBars int

	// Indicator periods
	SMAPeriod  int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int

	// Optional alert webhook
	WebhookURL string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		Source:     getEnv("SOURCE", "sim"),
		SQLitePath: getEnv("SQLITE_PATH", "data/bars.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		FetchRetries:     getEnvInt("FETCH_RETRIES", 3),
		FetchBackoffBase: getEnvMillis("FETCH_BACKOFF_BASE_MS", 500),
		FetchBackoffCap:  getEnvMillis("FETCH_BACKOFF_CAP_MS", 10000),

		PollInterval:   getEnvMillis("POLL_INTERVAL_MS", 2000),
		DefaultNumBars: getEnvInt("DEFAULT_NUM_BARS", 100),

		SMAPeriod:  getEnvInt("SMA_PERIOD", 20),
		RSIPeriod:  getEnvInt("RSI_PERIOD", 14),
		MACDFast:   getEnvInt("MACD_FAST", 12),
		MACDSlow:   getEnvInt("MACD_SLOW", 26),
		MACDSignal: getEnvInt("MACD_SIGNAL", 9),

		WebhookURL: getEnv("WEBHOOK_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}

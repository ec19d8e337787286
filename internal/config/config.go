package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

type Config struct {
	Log       LogConfig
	Telemetry TelemetryConfig
	Export    ExportConfig
	Forecast  ForecastConfig
	RateLimit RateLimitConfig
}

type LogConfig struct {
	Level string
}

type TelemetryConfig struct {
	TraceExporter   string
	OTLPEndpoint    string
	OTLPInsecure    bool
	MetricsTextfile string
}

type ExportConfig struct {
	JPEGQuality int
}

type ForecastConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RateLimitConfig enables the shared forecast limiter when RedisAddr is set.
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Limit         int
	Window        time.Duration
}

func (r RateLimitConfig) Enabled() bool {
	return r.RedisAddr != ""
}

func Load() Config {
	return Config{
		Log: LogConfig{
			Level: env("PPMKIT_LOG_LEVEL", "info"),
		},
		Telemetry: TelemetryConfig{
			TraceExporter:   env("PPMKIT_TRACE_EXPORTER", "none"),
			OTLPEndpoint:    env("PPMKIT_OTLP_ENDPOINT", ""),
			OTLPInsecure:    envBool("PPMKIT_OTLP_INSECURE", false),
			MetricsTextfile: env("PPMKIT_METRICS_TEXTFILE", ""),
		},
		Export: ExportConfig{
			JPEGQuality: envInt("PPMKIT_JPEG_QUALITY", 90),
		},
		Forecast: ForecastConfig{
			BaseURL:        env("FORECAST_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
			Timeout:        envDuration("FORECAST_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("FORECAST_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("FORECAST_INITIAL_BACKOFF", 500*time.Millisecond),
			MaxBackoff:     envDuration("FORECAST_MAX_BACKOFF", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     env("FORECAST_REDIS_ADDR", ""),
			RedisPassword: env("FORECAST_REDIS_PASSWORD", ""),
			RedisDB:       envInt("FORECAST_REDIS_DB", 0),
			Limit:         envInt("FORECAST_RATE_LIMIT", 60),
			Window:        envDuration("FORECAST_RATE_WINDOW", time.Minute),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToIntE(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToBoolE(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envDuration accepts Go duration strings; a bare integer is nanoseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToDurationE(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

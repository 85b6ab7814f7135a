package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string

	// Data warehouse
	ClickHouseDSN string
	// ClickHouse connection pooling configuration
	CHMaxOpenConns    int
	CHMaxIdleConns    int
	CHConnMaxLifetime time.Duration
	CHConnMaxIdleTime time.Duration
	StoreRetryMax     int

	// Warehouse read-through cache
	RedisAddr    string
	CacheEnabled bool
	CacheTTL     time.Duration

	// Tenant registry, "code=warehouse_view" pairs. Parsed once at startup
	// and immutable afterwards.
	Tenants map[string]string

	// Anomaly detection
	ThresholdSigma        float64
	MinSampleSize         int
	MinSpend              float64
	MaxAnomaliesPerMetric int

	// Root cause analysis
	RCAMaxSteps     int
	RCAConcurrency  int
	ProbeTimeout    time.Duration
	ModelTimeout    time.Duration
	AnomalyDeadline time.Duration
	SessionDeadline time.Duration

	// Model provider configuration
	ModelProvider  string
	ModelName      string
	ModelMaxTokens int

	// Grounded output validation
	ValidatorRetryMax int

	// Sessions
	SessionTTL time.Duration // idle lifetime, refreshed on access

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8790")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	// write timeout must cover a full analyze pass, which is bounded by the
	// session deadline below
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 150*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "adsentry")

	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000/default")
	cfg.CHMaxOpenConns = envInt("CH_MAX_OPEN_CONNS", 25)
	cfg.CHMaxIdleConns = envInt("CH_MAX_IDLE_CONNS", 5)
	cfg.CHConnMaxLifetime = envDuration("CH_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.CHConnMaxIdleTime = envDuration("CH_CONN_MAX_IDLE_TIME", 1*time.Minute)
	cfg.StoreRetryMax = envInt("STORE_RETRY_MAX", 3)

	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.CacheEnabled = envBool("CACHE_ENABLED", false)
	cfg.CacheTTL = envDuration("CACHE_TTL", 5*time.Minute)

	cfg.Tenants = parseTenants(getenv("TENANTS", "wh=tenant_wh_ads,tl=tenant_tl_ads"))

	cfg.ThresholdSigma = envFloat("ANOMALY_THRESHOLD_SIGMA", 2.0)
	cfg.MinSampleSize = envInt("ANOMALY_MIN_SAMPLE_SIZE", 10)
	cfg.MinSpend = envFloat("ANOMALY_MIN_SPEND", 100)
	cfg.MaxAnomaliesPerMetric = envInt("ANOMALY_MAX_PER_METRIC", 50)

	cfg.RCAMaxSteps = envInt("RCA_MAX_STEPS", 6)
	cfg.RCAConcurrency = envInt("RCA_CONCURRENCY", 4)
	cfg.ProbeTimeout = envDuration("PROBE_TIMEOUT", 10*time.Second)
	cfg.ModelTimeout = envDuration("MODEL_TIMEOUT", 30*time.Second)
	cfg.AnomalyDeadline = envDuration("RCA_ANOMALY_DEADLINE", 60*time.Second)
	cfg.SessionDeadline = envDuration("SESSION_DEADLINE", 120*time.Second)

	cfg.ModelProvider = getenv("MODEL_PROVIDER", "mock")
	cfg.ModelName = getenv("MODEL_NAME", "claude-sonnet-4-5-20250929")
	cfg.ModelMaxTokens = envInt("MODEL_MAX_TOKENS", 4096)

	cfg.ValidatorRetryMax = envInt("VALIDATOR_RETRY_MAX", 2)

	cfg.SessionTTL = envDuration("SESSION_TTL", 1*time.Hour)

	// Tracing configuration
	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// parseTenants parses a comma-separated "code=view" mapping. Malformed
// entries are skipped.
func parseTenants(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		code, view, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		code = strings.TrimSpace(code)
		view = strings.TrimSpace(view)
		if code != "" && view != "" {
			out[code] = view
		}
	}
	return out
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

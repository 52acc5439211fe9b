package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

var defaultMirrors = []string{
	"https://github.com/v2fly/domain-list-community/releases/latest/download/dlc.dat",
	"https://cdn.jsdelivr.net/gh/v2fly/domain-list-community@release/dlc.dat",
}

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Ingestion
	Mirrors         []string      // list mirrors, tried in order
	Categories      []string      // categories taken from the list, case-sensitive
	BundledSnapshot string        // list file committed when nothing was ever fetched (optional)
	UpdateInterval  time.Duration // interval between scheduled refreshes (default: 24h)
	FetchTimeout    time.Duration // per-mirror attempt timeout (default: 2m)
	MinListSize     int           // smaller bodies are rejected (default: 1024)
	SizeEstimate    int64         // progress denominator when no Content-Length is sent
	RetryInitial    time.Duration // first retry delay after a failed refresh
	RetryMax        time.Duration // retry delay cap
	GCInterval      time.Duration // interval to collect abandoned progress records
	SettingsFile    string        // operator settings YAML (optional, empty = disabled)
	ChallengeRPM    int           // per-IP refill rate of /auth/challenge

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict control endpoints to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 10.0.0.0/8"); empty leaves /auth/challenge loopback only
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GEOROUTE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("GEOROUTE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("GEOROUTE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("GEOROUTE_PRETTY_LOG", false),

		// Ingestion
		Mirrors:         getenvSlice("GEOROUTE_MIRRORS", defaultMirrors),
		Categories:      getenvSlice("GEOROUTE_CATEGORIES", []string{"YOUTUBE"}),
		BundledSnapshot: getenv("GEOROUTE_BUNDLED_SNAPSHOT", ""),
		UpdateInterval:  mustDuration("GEOROUTE_UPDATE_INTERVAL", 24*time.Hour),
		FetchTimeout:    mustDuration("GEOROUTE_FETCH_TIMEOUT", 2*time.Minute),
		MinListSize:     getenvInt("GEOROUTE_MIN_LIST_SIZE", 1024),
		SizeEstimate:    int64(getenvInt("GEOROUTE_SIZE_ESTIMATE", 8<<20)),
		RetryInitial:    mustDuration("GEOROUTE_RETRY_INITIAL", 30*time.Second),
		RetryMax:        mustDuration("GEOROUTE_RETRY_MAX", 30*time.Minute),
		GCInterval:      mustDuration("GEOROUTE_GC_INTERVAL", time.Hour),
		SettingsFile:    getenv("GEOROUTE_SETTINGS_FILE", ""),
		ChallengeRPM:    getenvInt("GEOROUTE_CHALLENGE_RPM", 60),

		// Redis settings
		RedisAddr:             getenv("GEOROUTE_REDIS_ADDR", "localhost:6379"),
		RedisUser:             getenv("GEOROUTE_REDIS_USERNAME", ""),
		RedisPasswordRequired: mustBool("GEOROUTE_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("GEOROUTE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("GEOROUTE_REDIS_DB", 0),
		RedisDT:               mustDuration("GEOROUTE_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("GEOROUTE_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("GEOROUTE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("GEOROUTE_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("GEOROUTE_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("GEOROUTE_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("GEOROUTE_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("GEOROUTE_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("GEOROUTE_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("GEOROUTE_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("GEOROUTE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("GEOROUTE_TRUST_PROXY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg, nil
}

// Validate checks the settings the service cannot run without
func (c *Config) Validate() error {
	var errs []error
	if len(c.Mirrors) == 0 {
		errs = append(errs, errors.New("GEOROUTE_MIRRORS: at least one mirror is required"))
	}
	for _, m := range c.Mirrors {
		if !strings.HasPrefix(m, "http://") && !strings.HasPrefix(m, "https://") {
			errs = append(errs, fmt.Errorf("GEOROUTE_MIRRORS: %q is not an http(s) URL", m))
		}
	}
	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("GEOROUTE_CATEGORIES: at least one category is required"))
	}
	if c.UpdateInterval < time.Minute {
		errs = append(errs, fmt.Errorf("GEOROUTE_UPDATE_INTERVAL: %s is below the 1m minimum", c.UpdateInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("GEOROUTE_FETCH_TIMEOUT: must be positive"))
	}
	if c.RetryInitial <= 0 || c.RetryMax < c.RetryInitial {
		errs = append(errs, fmt.Errorf("GEOROUTE_RETRY_INITIAL/MAX: need 0 < initial <= max, got %s/%s", c.RetryInitial, c.RetryMax))
	}
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		errs = append(errs, errors.New("GEOROUTE_REDIS_PASSWORD is required when GEOROUTE_REDIS_PASSWORD_REQUIRED=true"))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to log
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvSlice(key string, def []string) []string {
	if v := splitAndTrim(os.Getenv(key)); len(v) > 0 {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Package config loads deltagraph's runtime configuration from environment
// variables, in the same NEO4J_*/NORNICDB_*-prefixed style the teacher
// repo uses for Neo4j-tooling compatibility, narrowed to this module's own
// domain (the delta-matrix graph store and its HTTP query surface) and
// renamed to a DELTAGRAPH_ prefix for its own extensions.
//
// Configuration is loaded from environment variables using LoadFromEnv()
// and should be validated with Validate() before use.
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all deltagraph configuration loaded from environment
// variables.
type Config struct {
	Auth    AuthConfig
	Graph   GraphConfig
	Server  ServerConfig
	Runtime RuntimeConfig
	Logging LoggingConfig
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Enabled           bool
	InitialUsername   string
	InitialPassword   string
	MinPasswordLength int
	TokenExpiry       time.Duration
	JWTSecret         string
}

// GraphConfig holds graph-store and query-execution settings.
type GraphConfig struct {
	// DataDir is the data directory the serve command creates at startup.
	// The graph store lives in memory; nothing is persisted under DataDir.
	DataDir string
	// ReadOnly is loaded from the environment; no code path reads it.
	ReadOnly bool
	// TransactionTimeout is loaded and exported with the rest of the
	// config; no code path reads it.
	TransactionTimeout time.Duration
	// MaxConcurrentTransactions is validated to be positive (spec §5:
	// single-writer-many-reader, so this is normally 1); nothing else
	// reads it.
	MaxConcurrentTransactions int
	// DefaultBatchCap is a traversal source-row batch size, validated to be
	// positive (spec §4.E's CondTraverse example uses 16). The traversal
	// operators do not read it; they use the traversal.DefaultBatchCap
	// constant.
	DefaultBatchCap int
	// QueryCacheEnabled is loaded and exported with the rest of the config;
	// the server does not read it and always caches compiled patterns
	// (pkg/cache), sized by QueryCacheSize and QueryCacheTTL.
	QueryCacheEnabled bool
	QueryCacheSize    int
	QueryCacheTTL     time.Duration
}

// ServerConfig holds the HTTP query-surface settings (spec §6: a produced
// record-stream/schema contract over HTTP+JSON; the binary Bolt wire
// protocol is an explicit Non-goal).
type ServerConfig struct {
	HTTPEnabled bool
	HTTPPort    int
	HTTPAddress string
}

// RuntimeConfig holds Go-runtime tuning knobs.
type RuntimeConfig struct {
	// Limit is the soft memory limit (GOMEMLIMIT) in bytes; 0 = unlimited.
	Limit int64
	// LimitStr is the human-readable form the limit was parsed from (e.g.
	// "2GB"), kept for logging.
	LimitStr string
	// GCPercent controls GC aggressiveness (GOGC); 100 = default.
	GCPercent int
	// PoolEnabled is loaded from the environment; no record.Pool is built
	// from it (operators construct their pools with record.DefaultConfig).
	PoolEnabled bool
	// PoolMaxSize is loaded from the environment; record.Pool has no size
	// cap and nothing reads this field.
	PoolMaxSize int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level              string
	Format             string
	Output             string
	QueryLogEnabled    bool
	SlowQueryThreshold time.Duration
}

// LoadFromEnv loads configuration from environment variables. All values
// have sensible defaults, so LoadFromEnv() can be called without any
// environment variables set.
func LoadFromEnv() *Config {
	config := &Config{}

	authStr := getEnv("NEO4J_AUTH", "none")
	if authStr == "none" {
		config.Auth.Enabled = false
		config.Auth.InitialUsername = "admin"
		config.Auth.InitialPassword = "admin"
	} else {
		config.Auth.Enabled = true
		parts := strings.SplitN(authStr, "/", 2)
		if len(parts) == 2 {
			config.Auth.InitialUsername = parts[0]
			config.Auth.InitialPassword = parts[1]
		} else {
			config.Auth.InitialUsername = "admin"
			config.Auth.InitialPassword = authStr
		}
	}
	config.Auth.MinPasswordLength = getEnvInt("NEO4J_dbms_security_auth_minimum__password__length", 8)
	config.Auth.TokenExpiry = getEnvDuration("DELTAGRAPH_AUTH_TOKEN_EXPIRY", 24*time.Hour)
	config.Auth.JWTSecret = getEnv("DELTAGRAPH_AUTH_JWT_SECRET", generateDefaultSecret())

	config.Graph.DataDir = getEnv("NEO4J_dbms_directories_data", "./data")
	config.Graph.ReadOnly = getEnvBool("NEO4J_dbms_read__only", false)
	config.Graph.TransactionTimeout = getEnvDuration("NEO4J_dbms_transaction_timeout", 30*time.Second)
	config.Graph.MaxConcurrentTransactions = getEnvInt("NEO4J_dbms_transaction_concurrent_maximum", 1)
	config.Graph.DefaultBatchCap = getEnvInt("DELTAGRAPH_BATCH_CAP", 16)
	config.Graph.QueryCacheEnabled = getEnvBool("DELTAGRAPH_QUERY_CACHE_ENABLED", true)
	config.Graph.QueryCacheSize = getEnvInt("DELTAGRAPH_QUERY_CACHE_SIZE", 1000)
	config.Graph.QueryCacheTTL = getEnvDuration("DELTAGRAPH_QUERY_CACHE_TTL", 5*time.Minute)

	config.Server.HTTPEnabled = getEnvBool("NEO4J_dbms_connector_http_enabled", true)
	config.Server.HTTPPort = getEnvInt("NEO4J_dbms_connector_http_listen__address_port", 7474)
	config.Server.HTTPAddress = getEnv("NEO4J_dbms_connector_http_listen__address", "0.0.0.0")

	config.Runtime.LimitStr = getEnv("DELTAGRAPH_MEMORY_LIMIT", "0")
	config.Runtime.Limit = parseMemorySize(config.Runtime.LimitStr)
	config.Runtime.GCPercent = getEnvInt("DELTAGRAPH_GC_PERCENT", 100)
	config.Runtime.PoolEnabled = getEnvBool("DELTAGRAPH_POOL_ENABLED", true)
	config.Runtime.PoolMaxSize = getEnvInt("DELTAGRAPH_POOL_MAX_SIZE", 1000)

	config.Logging.Level = getEnv("NEO4J_dbms_logs_debug_level", "INFO")
	config.Logging.Format = getEnv("DELTAGRAPH_LOG_FORMAT", "json")
	config.Logging.Output = getEnv("DELTAGRAPH_LOG_OUTPUT", "stdout")
	config.Logging.QueryLogEnabled = getEnvBool("NEO4J_dbms_logs_query_enabled", false)
	config.Logging.SlowQueryThreshold = getEnvDuration("NEO4J_dbms_logs_query_threshold", 5*time.Second)

	return config
}

// fileOverrides mirrors the subset of Config fields the `deltagraph.yaml`
// starter file (written by `deltagraph init`) exposes for hand-editing.
// Zero-value fields are left untouched by ApplyFile so a partial YAML file
// only overrides what it mentions.
type fileOverrides struct {
	DataDir                   string `yaml:"data_dir"`
	TransactionTimeout        string `yaml:"transaction_timeout"`
	MaxConcurrentTransactions int    `yaml:"max_concurrent_transactions"`
	DefaultBatchCap           int    `yaml:"default_batch_cap"`
	QueryCacheEnabled         *bool  `yaml:"query_cache_enabled"`
	QueryCacheSize            int    `yaml:"query_cache_size"`
	QueryCacheTTL             string `yaml:"query_cache_ttl"`
	HTTPPort                  int    `yaml:"http_port"`
	HTTPAddress               string `yaml:"http_address"`
}

// ApplyFile reads a YAML config file (the format `deltagraph init` writes)
// and overlays any fields it sets onto c. Unset fields keep whatever
// LoadFromEnv already populated, so env vars and the YAML file compose
// rather than one replacing the other.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if overrides.DataDir != "" {
		c.Graph.DataDir = overrides.DataDir
	}
	if overrides.TransactionTimeout != "" {
		if d, err := time.ParseDuration(overrides.TransactionTimeout); err == nil {
			c.Graph.TransactionTimeout = d
		}
	}
	if overrides.MaxConcurrentTransactions > 0 {
		c.Graph.MaxConcurrentTransactions = overrides.MaxConcurrentTransactions
	}
	if overrides.DefaultBatchCap > 0 {
		c.Graph.DefaultBatchCap = overrides.DefaultBatchCap
	}
	if overrides.QueryCacheEnabled != nil {
		c.Graph.QueryCacheEnabled = *overrides.QueryCacheEnabled
	}
	if overrides.QueryCacheSize > 0 {
		c.Graph.QueryCacheSize = overrides.QueryCacheSize
	}
	if overrides.QueryCacheTTL != "" {
		if d, err := time.ParseDuration(overrides.QueryCacheTTL); err == nil {
			c.Graph.QueryCacheTTL = d
		}
	}
	if overrides.HTTPPort > 0 {
		c.Server.HTTPPort = overrides.HTTPPort
	}
	if overrides.HTTPAddress != "" {
		c.Server.HTTPAddress = overrides.HTTPAddress
	}
	return nil
}

// ExportYAML renders the subset of c that ApplyFile understands back into
// the `deltagraph.yaml` starter-file format, so `deltagraph init` can write
// a file generated from actual defaults instead of a hand-maintained
// string literal.
func (c *Config) ExportYAML() ([]byte, error) {
	enabled := c.Graph.QueryCacheEnabled
	overrides := fileOverrides{
		DataDir:                   c.Graph.DataDir,
		TransactionTimeout:        c.Graph.TransactionTimeout.String(),
		MaxConcurrentTransactions: c.Graph.MaxConcurrentTransactions,
		DefaultBatchCap:           c.Graph.DefaultBatchCap,
		QueryCacheEnabled:         &enabled,
		QueryCacheSize:            c.Graph.QueryCacheSize,
		QueryCacheTTL:             c.Graph.QueryCacheTTL.String(),
		HTTPPort:                  c.Server.HTTPPort,
		HTTPAddress:               c.Server.HTTPAddress,
	}
	return yaml.Marshal(overrides)
}

// Validate checks the configuration for logical errors and invalid values.
func (c *Config) Validate() error {
	if c.Auth.Enabled {
		if c.Auth.InitialUsername == "" {
			return fmt.Errorf("authentication enabled but no username provided")
		}
		if len(c.Auth.InitialPassword) < c.Auth.MinPasswordLength {
			return fmt.Errorf("password must be at least %d characters", c.Auth.MinPasswordLength)
		}
	}
	if c.Server.HTTPEnabled && c.Server.HTTPPort <= 0 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Graph.DefaultBatchCap <= 0 {
		return fmt.Errorf("invalid default batch cap: %d", c.Graph.DefaultBatchCap)
	}
	if c.Graph.MaxConcurrentTransactions <= 0 {
		return fmt.Errorf("invalid max concurrent transactions: %d", c.Graph.MaxConcurrentTransactions)
	}
	return nil
}

// String returns a safe string representation of the Config, omitting
// secrets (password, JWT secret).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Auth: %v, HTTP: %s:%d, DataDir: %s, BatchCap: %d}",
		c.Auth.Enabled,
		c.Server.HTTPAddress, c.Server.HTTPPort,
		c.Graph.DataDir,
		c.Graph.DefaultBatchCap,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func generateDefaultSecret() string {
	return "CHANGE_ME_IN_PRODUCTION_" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

// parseMemorySize parses a human-readable memory size string. Supports
// "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// Apply applies the runtime memory settings to the Go runtime. Should be
// called early in main() before heavy allocations.
func (c *RuntimeConfig) Apply() {
	if c.Limit > 0 {
		debug.SetMemoryLimit(c.Limit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}

// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the app runs in
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvStaging
	EnvProduction
	EnvTest
)

func (e Environment) String() string {
	switch e {
	case EnvStaging:
		return "staging"
	case EnvProduction:
		return "prod"
	case EnvTest:
		return "test"
	default:
		return "dev"
	}
}

// ParseEnvironment maps an ENV value to an Environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
	}
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogRetentionWeeks int            // Number of weeks to keep log files
	MaxLogFileSize    int64          // Maximum log file size in bytes
	MaxUploadSize     int64          // Maximum upload body size in bytes
	MaxHeaderSize     int64          // Maximum header size in bytes
	RequireProxy      bool           // Reject requests that did not come through the reverse proxy
	TrustedProxies    []netip.Prefix // Peers whose X-Forwarded-For and X-Real-IP are honored

	DatabaseURL          string // Empty selects the in-memory store
	DBMaxConns           int
	UploadDir            string
	UploadRetentionHours int

	FormularyPath  string
	EMARegisterURL string

	GCPProjectID string // Empty disables the AI stage
	VertexRegion string
	VertexModel  string

	PubMedAPIKey    string
	PubMedEmail     string
	PubMedTool      string
	OpenFDAAPIKey   string
	ExternalTimeout time.Duration
}

// AIEnabled reports whether a Vertex AI project is configured
func (c *Config) AIEnabled() bool {
	return c.GCPProjectID != ""
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	timeout, err := time.ParseDuration(getEnvWithDefault("EXTERNAL_TIMEOUT", "20s"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid EXTERNAL_TIMEOUT: %w", err)
	}

	proxies, err := parseTrustedProxies(getEnvWithDefault("TRUSTED_PROXIES", "127.0.0.1/32,::1/128"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid TRUSTED_PROXIES: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxUploadSize:     getInt64EnvWithDefault("MAX_UPLOAD_SIZE", 20971520),    // 20MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default
		RequireProxy:      getEnvWithDefault("REQUIRE_PROXY", "false") == "true",
		TrustedProxies:    proxies,

		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DBMaxConns:           getIntEnvWithDefault("DB_MAX_CONNS", 10),
		UploadDir:            getEnvWithDefault("UPLOAD_DIR", "uploads"),
		UploadRetentionHours: getIntEnvWithDefault("UPLOAD_RETENTION_HOURS", 24),

		FormularyPath:  getEnvWithDefault("FORMULARY_PATH", "data/who_eml.txt"),
		EMARegisterURL: getEnvWithDefault("EMA_REGISTER_URL", "https://www.ema.europa.eu/en/documents/report/medicines-output-medicines_json-report_en.json"),

		GCPProjectID: os.Getenv("GCP_PROJECT_ID"),
		VertexRegion: getEnvWithDefault("VERTEX_REGION", "us-central1"),
		VertexModel:  getEnvWithDefault("VERTEX_MODEL", "gemini-1.5-pro"),

		PubMedAPIKey:    os.Getenv("PUBMED_API_KEY"),
		PubMedEmail:     os.Getenv("PUBMED_EMAIL"),
		PubMedTool:      getEnvWithDefault("PUBMED_TOOL", "protoscan"),
		OpenFDAAPIKey:   os.Getenv("OPENFDA_API_KEY"),
		ExternalTimeout: timeout,
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxUploadSize, "MAX_UPLOAD_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if cfg.DatabaseURL != "" {
		if err := validateDatabaseURL(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}

	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 100 {
		return fmt.Errorf("invalid DB_MAX_CONNS: must be between 1 and 100, got: %d", cfg.DBMaxConns)
	}

	if cfg.UploadDir == "" {
		return fmt.Errorf("invalid UPLOAD_DIR: cannot be empty")
	}

	if cfg.UploadRetentionHours <= 0 {
		return fmt.Errorf("invalid UPLOAD_RETENTION_HOURS: must be positive, got: %d", cfg.UploadRetentionHours)
	}

	if u, err := url.Parse(cfg.EMARegisterURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid EMA_REGISTER_URL: must be an http(s) URL, got: %s", cfg.EMARegisterURL)
	}

	if cfg.ExternalTimeout <= 0 || cfg.ExternalTimeout > 5*time.Minute {
		return fmt.Errorf("invalid EXTERNAL_TIMEOUT: must be between 0 and 5m, got: %s", cfg.ExternalTimeout)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Only loopback, unspecified and private ranges are accepted
	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateDatabaseURL accepts postgres URLs and libpq keyword/value strings
func validateDatabaseURL(dsn string) error {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if _, err := url.Parse(dsn); err != nil {
			return fmt.Errorf("malformed URL: %w", err)
		}
		return nil
	}
	if strings.Contains(dsn, "=") {
		return nil
	}
	return fmt.Errorf("must be a postgres:// URL or key=value string")
}

// parseTrustedProxies reads a comma-separated list of CIDR ranges or single
// addresses. "none" trusts no peer.
func parseTrustedProxies(s string) ([]netip.Prefix, error) {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return nil, nil
	}

	var prefixes []netip.Prefix
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			prefix, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_UPLOAD_SIZE",
		"MAX_HEADER_SIZE",
		"REQUIRE_PROXY",
		"TRUSTED_PROXIES",
		"DATABASE_URL",
		"DB_MAX_CONNS",
		"UPLOAD_DIR",
		"UPLOAD_RETENTION_HOURS",
		"FORMULARY_PATH",
		"EMA_REGISTER_URL",
		"GCP_PROJECT_ID",
		"VERTEX_REGION",
		"VERTEX_MODEL",
		"PUBMED_API_KEY",
		"PUBMED_EMAIL",
		"PUBMED_TOOL",
		"OPENFDA_API_KEY",
		"EXTERNAL_TIMEOUT",
	}
}

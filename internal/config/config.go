// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reviewflow/reviewflow/consts"
	"github.com/reviewflow/reviewflow/pkg/logger"
	"github.com/reviewflow/reviewflow/pkg/telemetry"
)

// Default configuration values
const (
	defaultMaxRetries       = 3
	defaultLockTTLSeconds   = 300
	defaultWorkers          = 3
	defaultPollInterval     = 2
	defaultMaxContextTokens = 100000
	defaultMaxFileTokens    = 10000
	defaultMaxFiles         = 50
	defaultRedisAddr        = "localhost:6379"
	defaultQueueKey         = "reviewflow:tasks:queue"
	defaultLockKeyPrefix    = "reviewflow:tasks:lock:"
	defaultOTLPEndpoint     = "localhost:4317"
	defaultPrometheusPort   = 9090
	defaultStaleTaskMinutes = 30
	defaultRecoverySchedule = "@every 5m"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Queue     QueueConfig      `yaml:"queue"`
	Git       GitConfig        `yaml:"git"`
	AI        AIConfig         `yaml:"ai"`
	Review    ReviewConfig     `yaml:"review"`
	Task      TaskConfig       `yaml:"task"`
	Recovery  RecoveryConfig   `yaml:"recovery"`
	Logging   logger.Config    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Admin     *AdminConfig     `yaml:"admin"`
}

// AdminConfig holds admin API configuration
type AdminConfig struct {
	Enabled         bool   `yaml:"enabled"`       // Enable admin endpoints
	Username        string `yaml:"username"`      // Admin username
	PasswordHash    string `yaml:"password_hash"` // Admin password (bcrypt hash)
	JWTSecret       string `yaml:"jwt_secret"`    // JWT signing secret
	TokenExpiration int    `yaml:"expiry_hours"`  // Token expiration in hours
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Debug       bool     `yaml:"debug"`
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins whitelist
}

// DatabaseConfig holds database configuration
// Note: Database path is hardcoded in the database package to prevent data loss from configuration errors
type DatabaseConfig struct {
	// Reserved for future database configuration options
}

// QueueConfig holds the Redis-backed priority queue configuration
type QueueConfig struct {
	// Backend selects the queue implementation: "redis" or "memory"
	Backend string `yaml:"backend"`
	// Addr is the Redis server address (host:port)
	Addr string `yaml:"addr"`
	// Password is the Redis AUTH password (optional)
	Password string `yaml:"password"`
	// DB is the Redis database index
	DB int `yaml:"db"`
	// QueueKey is the sorted-set key holding pending task IDs
	QueueKey string `yaml:"queue_key"`
	// LockKeyPrefix prefixes per-task lock keys
	LockKeyPrefix string `yaml:"lock_key_prefix"`
	// LockTTLSeconds is the task lock expiration in seconds
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

// GitConfig holds Git platform configuration
type GitConfig struct {
	Platforms []PlatformConfig `yaml:"platforms"`
}

// PlatformConfig holds individual Git platform settings
type PlatformConfig struct {
	Type               string `yaml:"type"`                 // github, gitlab, gitea
	URL                string `yaml:"url"`                  // for self-hosted instances (supports both http:// and https://)
	Token              string `yaml:"token"`                // access token
	WebhookSecret      string `yaml:"webhook_secret"`       // webhook secret for validation
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // skip SSL certificate verification (for self-signed certs)
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	// DefaultProvider is the primary provider ID used for reviews
	DefaultProvider string `yaml:"default_provider"`
	// FallbackProvider is tried when the primary provider fails (optional)
	FallbackProvider string `yaml:"fallback_provider"`
	// Providers maps provider ID to its settings
	Providers map[string]ProviderDetail `yaml:"providers"`
}

// ProviderDetail holds specific AI provider configuration
type ProviderDetail struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	Model     string `yaml:"model" json:"model"`
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens"`
	Timeout   int    `yaml:"timeout" json:"timeout"` // seconds
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

// ReviewConfig holds review context assembly configuration
type ReviewConfig struct {
	// MaxContextTokens is the total token budget for assembled context
	MaxContextTokens int `yaml:"max_context_tokens"`
	// MaxFileTokens caps the tokens spent on a single file's content
	MaxFileTokens int `yaml:"max_file_tokens"`
	// MaxFiles caps how many files have their content fetched
	MaxFiles int `yaml:"max_files"`
}

// TaskConfig holds task scheduling configuration
type TaskConfig struct {
	// MaxRetries is the default retry budget for new tasks
	MaxRetries int `yaml:"max_retries"`
	// Workers is the number of concurrent queue workers
	Workers int `yaml:"workers"`
	// PollIntervalSeconds is the worker idle poll interval
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// RecoveryConfig holds task recovery configuration
type RecoveryConfig struct {
	// Schedule is a cron expression for the reconciliation sweep
	Schedule string `yaml:"schedule"`
	// StaleTaskMinutes marks RUNNING tasks older than this as stranded
	StaleTaskMinutes int `yaml:"stale_task_minutes"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  "0.0.0.0",
			Port:  8080,
			Debug: false,
			CORSOrigins: []string{
				"http://localhost:8091",
			},
		},
		Database: DatabaseConfig{},
		Queue: QueueConfig{
			Backend:        "redis",
			Addr:           defaultRedisAddr,
			QueueKey:       defaultQueueKey,
			LockKeyPrefix:  defaultLockKeyPrefix,
			LockTTLSeconds: defaultLockTTLSeconds,
		},
		Git: GitConfig{
			Platforms: []PlatformConfig{},
		},
		AI: AIConfig{
			DefaultProvider: "anthropic",
			Providers:       map[string]ProviderDetail{},
		},
		Review: ReviewConfig{
			MaxContextTokens: defaultMaxContextTokens,
			MaxFileTokens:    defaultMaxFileTokens,
			MaxFiles:         defaultMaxFiles,
		},
		Task: TaskConfig{
			MaxRetries:          defaultMaxRetries,
			Workers:             defaultWorkers,
			PollIntervalSeconds: defaultPollInterval,
		},
		Recovery: RecoveryConfig{
			Schedule:         defaultRecoverySchedule,
			StaleTaskMinutes: defaultStaleTaskMinutes,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text", // Default to human-readable text format instead of JSON
			File:       "",
			MaxSize:    100, // Max 100MB per log file
			MaxAge:     7,   // Retain logs for 7 days
			MaxBackups: 5,   // Keep 5 backup files
			Compress:   false,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: consts.ServiceName,
			OTLP: telemetry.OTLPConfig{
				Enabled:  false,
				Endpoint: defaultOTLPEndpoint,
				Insecure: true,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    defaultPrometheusPort,
			},
		},
	}
}

// Load loads configuration from a YAML file with environment variable expansion
func Load(path string) (*Config, error) {
	cfg := Default()

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables in the configuration
	expanded := expandEnvVars(string(data))

	// Parse YAML
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values
// Only matches ${VAR_NAME} format (not $VAR_NAME) to avoid conflicts with special characters like bcrypt hashes
func expandEnvVars(content string) string {
	// Match ${VAR_NAME} patterns only (not $VAR_NAME to avoid bcrypt hash conflicts)
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := match[2 : len(match)-1]

		// Support default values: ${VAR_NAME:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]

		if value := os.Getenv(varName); value != "" {
			return value
		}

		// Return default value if provided
		if len(parts) > 1 {
			return parts[1]
		}

		return ""
	})
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// GetPlatform returns platform configuration by type
func (c *GitConfig) GetPlatform(platformType string) *PlatformConfig {
	for i := range c.Platforms {
		if c.Platforms[i].Type == platformType {
			return &c.Platforms[i]
		}
	}
	return nil
}

// GetProvider returns AI provider configuration by ID
func (c *AIConfig) GetProvider(id string) *ProviderDetail {
	if detail, ok := c.Providers[id]; ok {
		return &detail
	}
	return nil
}

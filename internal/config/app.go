package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"offgrid-chat/internal/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server      ServerConfig
	Storage     StorageConfig
	LLM         LLMConfig
	Auth        AuthConfig
	Attachments AttachmentConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// Supported storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StorageConfig selects and configures the conversation store backend.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "postgres"
	Backend string
	// SQLitePath is the single-file database location for the sqlite backend
	SQLitePath string
	Postgres   PostgresConfig
}

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LLMConfig holds provider configuration
type LLMConfig struct {
	OllamaEndpoint string
	OllamaModel    string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	ReplicateBaseURL  string
	ReplicateAPIToken string
	ReplicateModel    string

	DefaultSystemPrompt string

	// Retry policy applied around every provider call
	MaxRetries int
	RetryDelay time.Duration
}

// AuthConfig holds authentication configuration. An empty AccessPassword
// disables authentication entirely (single-user local deployment).
type AuthConfig struct {
	JWTSecret       []byte
	AccessPassword  string
	TokenExpiration time.Duration
}

// AttachmentConfig holds attachment storage configuration.
type AttachmentConfig struct {
	Dir string
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	config.Storage = StorageConfig{
		Backend:    getEnvOrDefault("STORAGE_BACKEND", BackendSQLite),
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "db/offgrid_chats.db"),
		Postgres: PostgresConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			Name:     getEnvOrDefault("DB_NAME", "offgrid"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
	}
	if config.Storage.Backend != BackendSQLite && config.Storage.Backend != BackendPostgres {
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (expected sqlite or postgres)", config.Storage.Backend)
	}

	if os.Getenv("OPENAI_API_KEY") == "" {
		logger.Log.Warn("OPENAI_API_KEY environment variable not set; hosted provider unavailable")
	}

	config.LLM = LLMConfig{
		OllamaEndpoint:      getEnvOrDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
		OllamaModel:         getEnvOrDefault("OLLAMA_MODEL", "deepseek-r1"),
		OpenAIBaseURL:       getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnvOrDefault("OPENAI_MODEL", "o3-mini"),
		ReplicateBaseURL:    getEnvOrDefault("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateAPIToken:   os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateModel:      getEnvOrDefault("REPLICATE_MODEL", "meta/meta-llama-3-70b-instruct"),
		DefaultSystemPrompt: getEnvOrDefault("DEFAULT_SYSTEM_PROMPT", defaultSystemPrompt),
		MaxRetries:          getEnvAsInt("LLM_MAX_RETRIES", 3),
		RetryDelay:          getEnvAsDuration("LLM_RETRY_DELAY", 2*time.Second),
	}

	accessPassword := os.Getenv("ACCESS_PASSWORD")
	jwtSecret := os.Getenv("JWT_SECRET")
	if accessPassword != "" {
		if jwtSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET environment variable must be set when ACCESS_PASSWORD is used")
		}
		if len(jwtSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
		}
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		AccessPassword:  accessPassword,
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
	}

	config.Attachments = AttachmentConfig{
		Dir: getEnvOrDefault("ATTACHMENT_DIR", "db/images"),
	}

	return config, nil
}

// GetDSN returns the postgres connection string
func (c *PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Default assistant persona seeded into new conversations.
const defaultSystemPrompt = "You are a helpful AI assistant. When users tell you information about themselves (like their name), remember it and use it in your responses when appropriate."

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}

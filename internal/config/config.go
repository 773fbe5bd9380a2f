package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"mystery-message/internal/domain"
)

type Config struct {
	MessagesTable    string
	ParamPrefix      string
	MaxMessageLength int
	ModerateMessages bool
	OpenAIBaseURL    string
	DynamoDBEndpoint string
	LocalAddr        string
	CORSOrigins      []string
	LogLevel         slog.Level
	OTLPEndpoint     string
	ServiceName      string
}

// Load reads configuration from the environment after applying any .env
// files given (default ".env"). Missing files are ignored; variables already
// set in the environment win over file values.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables only, without validating.
func FromEnv() *Config {
	return &Config{
		MessagesTable:    getEnv("MESSAGES_TABLE", ""),
		ParamPrefix:      getEnv("PARAM_PREFIX", ""),
		MaxMessageLength: getEnvAsInt("MAX_MESSAGE_LENGTH", domain.DefaultMaxContentLength),
		ModerateMessages: getEnvAsBool("MODERATE_MESSAGES", false),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		LocalAddr:        getEnv("LOCAL_ADDR", ":8080"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "")),
		LogLevel:         parseLevel(getEnv("LOG_LEVEL", "info")),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:      getEnv("SERVICE_NAME", "mystery-message"),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.MessagesTable == "" {
		errs = append(errs, errors.New("MESSAGES_TABLE is required"))
	}
	if c.ParamPrefix == "" {
		errs = append(errs, errors.New("PARAM_PREFIX is required"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", c.MaxMessageLength))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ContentLimits returns the message content bounds.
func (c *Config) ContentLimits() domain.ContentLimits {
	return domain.ContentLimits{MinLength: domain.DefaultMinContentLength, MaxLength: c.MaxMessageLength}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

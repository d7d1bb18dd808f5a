// Package config provides agent configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/backup-assistant/pkg/db"
)

const logPrefix = "config:LoadConfig"

// Supported LLM providers.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// Config holds backup-assistant configuration. It is built once at process start and
// passed explicitly to every component; nothing reads the environment after LoadConfig.
type Config struct {
	// AWS
	DefaultRegion  string        `envconfig:"DEFAULT_AWS_REGION" default:"us-east-1"`
	MaxResults     int           `envconfig:"API_MAX_RESULTS" default:"25"`
	ConnectTimeout time.Duration `envconfig:"AWS_CONNECT_TIMEOUT" default:"180s"`
	ReadTimeout    time.Duration `envconfig:"AWS_READ_TIMEOUT" default:"180s"`
	MaxAttempts    int           `envconfig:"AWS_MAX_ATTEMPTS" default:"10"`

	// Response
	BodyBudget        int    `envconfig:"RESPONSE_BODY_BUDGET" default:"22000"`
	SupportedVersions string `envconfig:"SUPPORTED_MESSAGE_VERSIONS" default:"^1.0"`

	// LLM
	LLMProvider    string `envconfig:"LLM_PROVIDER" default:"bedrock"`
	LLMModelID     string `envconfig:"LLM_MODEL_ID"`
	LLMRegion      string `envconfig:"LLM_REGION"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	PromptsFile    string `envconfig:"PROMPT_TEMPLATES_FILE"`
	LogLLMActivity bool   `envconfig:"LOG_LLM_PROCESSING_INFO" default:"false"`

	// COMMS: empty COMMSURL disables the NATS transport and event publishing.
	COMMSURL           string        `envconfig:"COMMS_URL"`
	COMMSName          string        `envconfig:"SERVICE_NAME" default:"backup-assistant"`
	AgentSubject       string        `envconfig:"AGENT_SUBJECT" default:"agent.backup.invoke"`
	ActionEventSubject string        `envconfig:"ACTION_EVENT_SUBJECT"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"300s"`
	COMMSTimeout       time.Duration `envconfig:"COMMS_CONNECT_TIMEOUT" default:"10s"`
	COMMSMaxReconnects int           `envconfig:"COMMS_MAX_RECONNECTS" default:"60"`

	// Database: empty DatabaseURL disables the invocation journal.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"4"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"0"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	return &c, nil
}

// LLMRegionOrDefault returns the region used for the Bedrock runtime client.
func (c *Config) LLMRegionOrDefault() string {
	if c.LLMRegion != "" {
		return c.LLMRegion
	}
	return c.DefaultRegion
}

// ValidateForLambda checks the config needed to handle agent invocations.
func (c *Config) ValidateForLambda() error {
	if c.DefaultRegion == "" {
		return fmt.Errorf("%s - DEFAULT_AWS_REGION is required", logPrefix)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("%s - API_MAX_RESULTS must be positive", logPrefix)
	}
	if c.BodyBudget <= 0 {
		return fmt.Errorf("%s - RESPONSE_BODY_BUDGET must be positive", logPrefix)
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("%s - AWS_CONNECT_TIMEOUT and AWS_READ_TIMEOUT must be positive", logPrefix)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%s - AWS_MAX_ATTEMPTS must be positive", logPrefix)
	}
	switch c.LLMProvider {
	case ProviderBedrock, ProviderOpenAI:
		if c.LLMModelID == "" {
			return fmt.Errorf("%s - LLM_MODEL_ID is required for provider %s", logPrefix, c.LLMProvider)
		}
		if c.LLMProvider == ProviderOpenAI && c.OpenAIAPIKey == "" {
			return fmt.Errorf("%s - OPENAI_API_KEY is required for provider openai", logPrefix)
		}
	case ProviderGemini:
		if c.LLMModelID == "" {
			return fmt.Errorf("%s - LLM_MODEL_ID is required for provider gemini", logPrefix)
		}
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%s - GEMINI_API_KEY is required for provider gemini", logPrefix)
		}
	default:
		return fmt.Errorf("%s - unknown LLM_PROVIDER %q", logPrefix, c.LLMProvider)
	}
	return nil
}

// ValidateForServe checks required config when running the NATS/HTTP server.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForLambda(); err != nil {
		return err
	}
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// PoolSize returns the journal connection pool bounds.
func (c *Config) PoolSize() db.PoolSize {
	return db.PoolSize{MaxConns: c.DBMaxConns, MinConns: c.DBMinConns}
}

package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"DEFAULT_AWS_REGION", "API_MAX_RESULTS", "AWS_CONNECT_TIMEOUT", "AWS_READ_TIMEOUT", "AWS_MAX_ATTEMPTS",
	"RESPONSE_BODY_BUDGET", "SUPPORTED_MESSAGE_VERSIONS",
	"LLM_PROVIDER", "LLM_MODEL_ID", "LLM_REGION", "OPENAI_API_KEY", "OPENAI_BASE_URL", "GEMINI_API_KEY",
	"PROMPT_TEMPLATES_FILE", "LOG_LLM_PROCESSING_INFO",
	"COMMS_URL", "SERVICE_NAME", "AGENT_SUBJECT", "ACTION_EVENT_SUBJECT", "REQUEST_TIMEOUT", "COMMS_CONNECT_TIMEOUT", "COMMS_MAX_RECONNECTS",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, env := range configEnvVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.DefaultRegion != "us-east-1" {
		t.Errorf("config:config_test - DefaultRegion = %q, want us-east-1", cfg.DefaultRegion)
	}
	if cfg.MaxResults != 25 {
		t.Errorf("config:config_test - MaxResults = %d, want 25", cfg.MaxResults)
	}
	if cfg.ConnectTimeout != 180*time.Second || cfg.ReadTimeout != 180*time.Second {
		t.Errorf("config:config_test - timeouts = %v/%v, want 180s/180s", cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	if cfg.MaxAttempts != 10 {
		t.Errorf("config:config_test - MaxAttempts = %d, want 10", cfg.MaxAttempts)
	}
	if cfg.BodyBudget != 22000 {
		t.Errorf("config:config_test - BodyBudget = %d, want 22000", cfg.BodyBudget)
	}
	if cfg.SupportedVersions != "^1.0" {
		t.Errorf("config:config_test - SupportedVersions = %q, want ^1.0", cfg.SupportedVersions)
	}
	if cfg.LLMProvider != ProviderBedrock {
		t.Errorf("config:config_test - LLMProvider = %q, want bedrock", cfg.LLMProvider)
	}
	if cfg.LogLLMActivity {
		t.Error("config:config_test - expected LogLLMActivity=false by default")
	}
	if cfg.COMMSURL != "" {
		t.Errorf("config:config_test - COMMSURL = %q, want empty", cfg.COMMSURL)
	}
	if cfg.COMMSName != "backup-assistant" {
		t.Errorf("config:config_test - COMMSName = %q, want backup-assistant", cfg.COMMSName)
	}
	if cfg.AgentSubject != "agent.backup.invoke" {
		t.Errorf("config:config_test - AgentSubject = %q, want agent.backup.invoke", cfg.AgentSubject)
	}
	if cfg.RequestTimeout != 300*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 300s", cfg.RequestTimeout)
	}
	if cfg.COMMSTimeout != 10*time.Second || cfg.COMMSMaxReconnects != 60 {
		t.Errorf("config:config_test - COMMS reconnect policy = %v/%d, want 10s/60", cfg.COMMSTimeout, cfg.COMMSMaxReconnects)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want migrations", cfg.MigrationPath)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearConfigEnv(t)
	overrides := map[string]string{
		"DEFAULT_AWS_REGION":      "eu-west-1",
		"API_MAX_RESULTS":         "5",
		"AWS_CONNECT_TIMEOUT":     "10s",
		"RESPONSE_BODY_BUDGET":    "1000",
		"LLM_PROVIDER":            " OpenAI ",
		"LLM_MODEL_ID":            "gpt-test",
		"LOG_LLM_PROCESSING_INFO": "true",
		"COMMS_URL":               "nats://custom:4222",
		"DATABASE_URL":            "postgres://test@localhost/test",
		"HTTP_PORT":               "9090",
		"LOG_LEVEL":               "debug",
	}
	for k, v := range overrides {
		t.Setenv(k, v)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.DefaultRegion != "eu-west-1" {
		t.Errorf("config:config_test - DefaultRegion = %q, want eu-west-1", cfg.DefaultRegion)
	}
	if cfg.MaxResults != 5 {
		t.Errorf("config:config_test - MaxResults = %d, want 5", cfg.MaxResults)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("config:config_test - ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}
	if cfg.BodyBudget != 1000 {
		t.Errorf("config:config_test - BodyBudget = %d, want 1000", cfg.BodyBudget)
	}
	if cfg.LLMProvider != ProviderOpenAI {
		t.Errorf("config:config_test - LLMProvider = %q, want openai", cfg.LLMProvider)
	}
	if !cfg.LogLLMActivity {
		t.Error("config:config_test - expected LogLLMActivity=true")
	}
	if cfg.COMMSURL != "nats://custom:4222" {
		t.Errorf("config:config_test - COMMSURL = %q", cfg.COMMSURL)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("config:config_test - HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AWS_READ_TIMEOUT", "not-a-duration")

	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for invalid duration")
	}
}

func TestLLMRegionOrDefault(t *testing.T) {
	cfg := &Config{DefaultRegion: "us-east-1"}
	if got := cfg.LLMRegionOrDefault(); got != "us-east-1" {
		t.Errorf("config:config_test - LLMRegionOrDefault = %q, want us-east-1", got)
	}
	cfg.LLMRegion = "us-west-2"
	if got := cfg.LLMRegionOrDefault(); got != "us-west-2" {
		t.Errorf("config:config_test - LLMRegionOrDefault = %q, want us-west-2", got)
	}
}

func validLambdaConfig() *Config {
	return &Config{
		DefaultRegion:  "us-east-1",
		MaxResults:     25,
		BodyBudget:     22000,
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
		MaxAttempts:    3,
		LLMProvider:    ProviderBedrock,
		LLMModelID:     "anthropic.test",
	}
}

func TestValidateForLambda(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid bedrock", func(c *Config) {}, false},
		{"missing region", func(c *Config) { c.DefaultRegion = "" }, true},
		{"zero max results", func(c *Config) { c.MaxResults = 0 }, true},
		{"zero budget", func(c *Config) { c.BodyBudget = 0 }, true},
		{"zero timeout", func(c *Config) { c.ReadTimeout = 0 }, true},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"missing model", func(c *Config) { c.LLMModelID = "" }, true},
		{"openai without key", func(c *Config) { c.LLMProvider = ProviderOpenAI }, true},
		{"openai with key", func(c *Config) { c.LLMProvider = ProviderOpenAI; c.OpenAIAPIKey = "sk" }, false},
		{"gemini without key", func(c *Config) { c.LLMProvider = ProviderGemini }, true},
		{"gemini with key", func(c *Config) { c.LLMProvider = ProviderGemini; c.GeminiAPIKey = "g" }, false},
		{"unknown provider", func(c *Config) { c.LLMProvider = "llama" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLambdaConfig()
			tt.mutate(cfg)
			err := cfg.ValidateForLambda()
			if (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForLambda() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForServe(t *testing.T) {
	cfg := validLambdaConfig()
	cfg.RequestTimeout = time.Second
	cfg.HealthCheckTimeout = time.Second
	if err := cfg.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected error without COMMS_URL")
	}
	cfg.COMMSURL = "nats://127.0.0.1:4222"
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
	cfg.RequestTimeout = 0
	if err := cfg.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected error for zero REQUEST_TIMEOUT")
	}
}

func TestValidateForDB(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error for empty DATABASE_URL")
	}
	cfg.DatabaseURL = "postgres://localhost/test"
	if err := cfg.ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}

func TestPoolSize(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_MAX_CONNS", "8")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - LoadConfig: %v", err)
	}
	size := cfg.PoolSize()
	if size.MaxConns != 8 || size.MinConns != 0 {
		t.Errorf("config:config_test - PoolSize = %+v, want max 8 min 0", size)
	}
}

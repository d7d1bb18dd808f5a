package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/morezero/backup-assistant/internal/config"
)

func TestBuild_MissingPromptTemplatesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")

	cfg := &config.Config{
		DefaultRegion:     "us-east-1",
		LLMProvider:       config.ProviderBedrock,
		LLMModelID:        "anthropic.claude-3-haiku",
		SupportedVersions: "^1.0",
		PromptsFile:       filepath.Join(dir, "prompts.yaml"),
	}
	components, err := Build(context.Background(), cfg, false)
	if err == nil {
		components.Close()
		t.Fatalf("%s - Build with a missing prompts file succeeded", serverTestPrefix)
	}
	if !strings.Contains(err.Error(), "PROMPT_TEMPLATES_FILE") {
		t.Errorf("%s - error = %v, want it to name PROMPT_TEMPLATES_FILE", serverTestPrefix, err)
	}
}

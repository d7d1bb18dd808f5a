package llm

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const templatesLogPrefix = "llm:templates"

// Placeholder names substituted into prompt templates.
const (
	VarAccountID     = "aws_account_id"
	VarRegion        = "aws_region"
	VarAPIName       = "api_name"
	VarUserInput     = "user_input"
	VarGeneratedJSON = "generated_json"
	VarAPIJSON       = "api_json"
	VarAPIError      = "api_error"
)

//go:embed prompts/default.yaml
var defaultTemplatesYAML []byte

// Template is one system/user prompt pair with the tag its answer is delimited by.
type Template struct {
	System       string `yaml:"system"`
	User         string `yaml:"user"`
	Tag          string `yaml:"tag"`
	ChangelogTag string `yaml:"changelogTag,omitempty"`
}

// Templates holds the validation and repair prompts.
type Templates struct {
	Version  string   `yaml:"version"`
	Validate Template `yaml:"validate"`
	Repair   Template `yaml:"repair"`
}

// Render substitutes {name} placeholders in both messages.
func (t Template) Render(vars map[string]string) Prompt {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	r := strings.NewReplacer(pairs...)
	return Prompt{System: r.Replace(t.System), User: r.Replace(t.User)}
}

// Check reports a template set that cannot drive validation or repair.
func (t *Templates) Check() error {
	if t.Validate.User == "" || t.Validate.Tag == "" {
		return fmt.Errorf("%s - validate template needs user text and tag", templatesLogPrefix)
	}
	if t.Repair.User == "" || t.Repair.Tag == "" {
		return fmt.Errorf("%s - repair template needs user text and tag", templatesLogPrefix)
	}
	return nil
}

// ParseTemplates decodes a YAML template set.
func ParseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%s - failed to parse templates: %w", templatesLogPrefix, err)
	}
	if err := t.Check(); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultTemplates returns the embedded template set.
func DefaultTemplates() *Templates {
	t, err := ParseTemplates(defaultTemplatesYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// searchPaths are tried when no template file is configured.
var searchPaths = []string{"config/prompts.yaml", "prompts.yaml"}

// LoadTemplates reads the template set from path. A configured path that cannot be
// read or parsed is an error. With an empty path the search paths are tried and
// unusable files are skipped; the embedded set is used when none loads.
func LoadTemplates(path string) (*Templates, error) {
	if path != "" {
		t, err := readTemplates(path)
		if err != nil {
			return nil, err
		}
		slog.Info(fmt.Sprintf("%s - Loaded prompt templates %s from %s", templatesLogPrefix, t.Version, path))
		return t, nil
	}

	for _, p := range searchPaths {
		t, err := readTemplates(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Skipping template file %s: %v", templatesLogPrefix, p, err))
			continue
		}
		slog.Info(fmt.Sprintf("%s - Loaded prompt templates %s from %s", templatesLogPrefix, t.Version, p))
		return t, nil
	}

	slog.Info(fmt.Sprintf("%s - Using embedded prompt templates", templatesLogPrefix))
	return DefaultTemplates(), nil
}

func readTemplates(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read %s: %w", templatesLogPrefix, path, err)
	}
	t, err := ParseTemplates(data)
	if err != nil {
		return nil, fmt.Errorf("%s - %s: %w", templatesLogPrefix, path, err)
	}
	return t, nil
}

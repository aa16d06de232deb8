// Package config defines the run configuration for a bizlens analysis and the
// loader/validation logic around it. Configuration is file-based (YAML or
// JSON) with environment overrides; provider API keys are resolved by the
// provider constructors, never here.
package config

import (
	"fmt"
	"os"
	"strings"

	"bizlens/internal/types"

	"gopkg.in/yaml.v3"
)

// MaxCompetitors caps the user-supplied competitor list.
const MaxCompetitors = 5

// Advanced holds the safety limits for a run.
type Advanced struct {
	MaxSteps        int `yaml:"max_steps" json:"max_steps"`
	MaxStepsPerTask int `yaml:"max_steps_per_task" json:"max_steps_per_task"`
}

// Verification selects the truth-engine behavior.
type Verification struct {
	// Mode is "permissive" or "strict".
	Mode string `yaml:"mode" json:"mode"`
	// MinConfidence overrides the mode default when > 0.
	MinConfidence float64 `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty"`
}

// DataSource is the toggle record for one external provider.
type DataSource struct {
	Enabled           bool   `yaml:"enabled" json:"enabled"`
	UseRemoteProtocol bool   `yaml:"use_remote_protocol,omitempty" json:"use_remote_protocol,omitempty"`
	APIKey            string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// Provider names used as DataSources keys.
const (
	ProviderScrape  = "scrape"  // website scraping
	ProviderSearch  = "search"  // neural/semantic search
	ProviderAnswers = "answers" // verified-answer search
)

// LLM configures the language-model client used by planner, validator and
// executor fallback.
type LLM struct {
	// Provider is "openai-compatible" or "gemini".
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	BaseURL     string  `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// Logging mirrors logging.Options in config form.
type Logging struct {
	Debug      bool            `yaml:"debug" json:"debug"`
	Level      string          `yaml:"level" json:"level"`
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// Config is the full input bundle for one analysis run.
type Config struct {
	Company     types.CompanyContext  `yaml:"company" json:"company"`
	Mode        types.RunMode         `yaml:"mode" json:"mode"`
	Frameworks  []types.Framework     `yaml:"frameworks" json:"frameworks"`
	UserGoal    string                `yaml:"user_goal,omitempty" json:"user_goal,omitempty"`
	Competitors []string              `yaml:"competitors,omitempty" json:"competitors,omitempty"`
	Advanced    Advanced              `yaml:"advanced" json:"advanced"`
	Verify      Verification          `yaml:"verification" json:"verification"`
	DataSources map[string]DataSource `yaml:"data_sources" json:"data_sources"`
	LLM         LLM                   `yaml:"llm" json:"llm"`
	Logging     Logging               `yaml:"logging" json:"logging"`
}

// Default returns a config with every knob at its default.
func Default() Config {
	return Config{
		Mode: types.ModeFull,
		Advanced: Advanced{
			MaxSteps:        50,
			MaxStepsPerTask: 10,
		},
		Verify: Verification{Mode: "permissive"},
		DataSources: map[string]DataSource{
			ProviderScrape:  {Enabled: true},
			ProviderSearch:  {Enabled: true},
			ProviderAnswers: {Enabled: true},
		},
		LLM: LLM{
			Provider:    "openai-compatible",
			Model:       "glm-4.6",
			MaxTokens:   4000,
			Temperature: 0.2,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads a config file (YAML or JSON; JSON is a YAML subset) over the
// defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse config %s: %v", types.ErrInvalidArgument, path, err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BIZLENS_DEBUG"); v != "" {
		c.Logging.Debug = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("BIZLENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BIZLENS_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("BIZLENS_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
}

// Normalize fills derived defaults and clamps list inputs. Called by
// Validate; safe to call repeatedly.
func (c *Config) Normalize() {
	if c.Mode == "" {
		c.Mode = types.ModeFull
	}
	if c.Advanced.MaxSteps <= 0 {
		c.Advanced.MaxSteps = 50
	}
	if c.Advanced.MaxStepsPerTask <= 0 {
		c.Advanced.MaxStepsPerTask = 10
	}
	if c.Verify.Mode == "" {
		c.Verify.Mode = "permissive"
	}
	if len(c.Competitors) > MaxCompetitors {
		c.Competitors = c.Competitors[:MaxCompetitors]
	}
	if c.DataSources == nil {
		c.DataSources = Default().DataSources
	}
}

// Validate normalizes and checks the configuration, returning
// types.ErrInvalidArgument-wrapped errors on bad input.
func (c *Config) Validate() error {
	c.Normalize()

	if strings.TrimSpace(c.Company.Name) == "" {
		return fmt.Errorf("%w: company name is required", types.ErrInvalidArgument)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown run mode %q", types.ErrInvalidArgument, c.Mode)
	}
	switch c.Verify.Mode {
	case "permissive", "strict":
	default:
		return fmt.Errorf("%w: unknown verification mode %q", types.ErrInvalidArgument, c.Verify.Mode)
	}
	if c.Verify.MinConfidence < 0 || c.Verify.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be in [0,1]", types.ErrInvalidArgument)
	}
	return nil
}

// SourceEnabled reports whether the named provider is enabled.
func (c *Config) SourceEnabled(name string) bool {
	ds, ok := c.DataSources[name]
	return ok && ds.Enabled
}

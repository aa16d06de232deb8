package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bizlens/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.Company = types.CompanyContext{Name: "Acme", Website: "acme.test", Industry: "SaaS"}
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, types.ModeFull, cfg.Mode)
	assert.Equal(t, 50, cfg.Advanced.MaxSteps)
	assert.Equal(t, 10, cfg.Advanced.MaxStepsPerTask)
	assert.Equal(t, "permissive", cfg.Verify.Mode)
	assert.True(t, cfg.SourceEnabled(ProviderScrape))
	assert.True(t, cfg.SourceEnabled(ProviderSearch))
	assert.True(t, cfg.SourceEnabled(ProviderAnswers))
}

func TestValidateRequiresCompanyName(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = types.RunMode("sideways")
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestValidateRejectsUnknownVerificationMode(t *testing.T) {
	cfg := validConfig()
	cfg.Verify.Mode = "lenient"
	assert.Error(t, cfg.Validate())
}

func TestNormalizeCapsCompetitors(t *testing.T) {
	cfg := validConfig()
	cfg.Competitors = []string{"a", "b", "c", "d", "e", "f", "g"}
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Competitors, MaxCompetitors)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
company:
  name: Acme
  website: acme.test
  industry: SaaS
mode: business_overview
frameworks:
  - SWOT Analysis
verification:
  mode: strict
data_sources:
  scrape:
    enabled: false
  search:
    enabled: true
  answers:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, types.ModeBusinessOverview, cfg.Mode)
	assert.Equal(t, "strict", cfg.Verify.Mode)
	assert.False(t, cfg.SourceEnabled(ProviderScrape))
	assert.True(t, cfg.SourceEnabled(ProviderSearch))
	assert.Equal(t, []types.Framework{types.FrameworkSWOT}, cfg.Frameworks)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"company": {"name": "Acme", "website": "acme.test", "industry": "SaaS"}, "mode": "full"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Acme", cfg.Company.Name)
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{nope"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BIZLENS_DEBUG", "true")
	t.Setenv("BIZLENS_LLM_MODEL", "glm-4.7")

	cfg := validConfig()
	cfg.ApplyEnv()

	assert.True(t, cfg.Logging.Debug)
	assert.Equal(t, "glm-4.7", cfg.LLM.Model)
}

func TestSourceEnabledUnknownProvider(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.SourceEnabled("carrier-pigeon"))
}

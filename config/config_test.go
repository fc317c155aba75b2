package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/runner"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	clearKeys(t)
	t.Setenv("AGENTRAIL_TEST_KEY", "sk-test")

	cfg, err := Parse([]byte(`
model:
  provider: openai
  name: ${AGENTRAIL_TEST_MODEL:-gpt-4o-mini}
  api_key: ${AGENTRAIL_TEST_KEY}
runner:
  max_turns: 5
logging:
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, 5, cfg.Runner.MaxTurns)
	assert.Equal(t, 4, cfg.Runner.MaxGuardrailFanOut)
	assert.Equal(t, 100, cfg.Runner.EventBufferSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestExpandEnv_KeepsBareDollar(t *testing.T) {
	t.Setenv("HOME_CURRENCY", "EUR")

	assert.Equal(t, "costs $5 in EUR", expandEnv("costs $5 in ${HOME_CURRENCY}"))
	assert.Equal(t, "fallback", expandEnv("${AGENTRAIL_UNSET_VAR:-fallback}"))
}

func TestParse_APIKeyFromEnvironment(t *testing.T) {
	clearKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")

	cfg, err := Parse([]byte("model:\n  provider: anthropic\n"))
	require.NoError(t, err)
	assert.Equal(t, "ant-key", cfg.Model.APIKey)
}

func TestParse_Invalid(t *testing.T) {
	clearKeys(t)

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"provider", "model:\n  provider: cohere\n", "unknown provider"},
		{"temperature", "model:\n  provider: mock\n  temperature: 3\n", "model.temperature"},
		{"max turns", "model:\n  provider: mock\nrunner:\n  max_turns: -1\n", "max_turns"},
		{"format", "model:\n  provider: mock\nlogging:\n  format: xml\n", "logging.format"},
		{"exporter", "model:\n  provider: mock\ntracing:\n  enabled: true\n  exporter: jaeger\n", "unsupported exporter"},
		{"yaml", "model: [", "parse yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefault_DetectsProvider(t *testing.T) {
	clearKeys(t)
	assert.Equal(t, ProviderMock, Default().Model.Provider)

	t.Setenv("OPENAI_API_KEY", "sk")
	assert.Equal(t, ProviderOpenAI, Default().Model.Provider)

	t.Setenv("GEMINI_API_KEY", "g")
	cfg := Default()
	assert.Equal(t, ProviderGeminiOpenAI, cfg.Model.Provider)
	assert.Equal(t, "g", cfg.Model.APIKey)
}

func TestLoad(t *testing.T) {
	clearKeys(t)
	path := filepath.Join(t.TempDir(), "agentrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: mock\n  name: scripted\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "scripted", cfg.Model.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFiles_FirstFileWins(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("AGENTRAIL_DOTENV_A=local\n"), 0o600))
	require.NoError(t, os.WriteFile(shared, []byte("AGENTRAIL_DOTENV_A=shared\nAGENTRAIL_DOTENV_B=shared\n"), 0o600))

	t.Cleanup(func() {
		os.Unsetenv("AGENTRAIL_DOTENV_A")
		os.Unsetenv("AGENTRAIL_DOTENV_B")
	})

	require.NoError(t, LoadEnvFiles(local, filepath.Join(dir, "missing.env"), shared))

	assert.Equal(t, "local", os.Getenv("AGENTRAIL_DOTENV_A"))
	assert.Equal(t, "shared", os.Getenv("AGENTRAIL_DOTENV_B"))
}

func TestNewModel(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewModel(t.Context(), ModelConfig{Provider: ProviderOpenAI})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	})

	t.Run("gemini via openai endpoint", func(t *testing.T) {
		m, err := NewModel(t.Context(), ModelConfig{Provider: ProviderGeminiOpenAI, APIKey: "g"})
		require.NoError(t, err)
		assert.Equal(t, "gemini-2.0-flash", m.Info().Name)
		assert.Equal(t, ProviderGeminiOpenAI, m.Info().Provider)
	})

	t.Run("anthropic", func(t *testing.T) {
		m, err := NewModel(t.Context(), ModelConfig{Provider: ProviderAnthropic, APIKey: "a", Name: "claude-sonnet-4-0"})
		require.NoError(t, err)
		assert.Equal(t, "claude-sonnet-4-0", m.Info().Name)
	})

	t.Run("mock", func(t *testing.T) {
		m, err := NewModel(t.Context(), ModelConfig{Provider: ProviderMock})
		require.NoError(t, err)
		assert.Equal(t, "mock", m.Info().Name)
	})
}

func TestBuild(t *testing.T) {
	clearKeys(t)
	cfg, err := Parse([]byte(`
model:
  provider: mock
runner:
  max_turns: 3
metrics:
  enabled: true
`))
	require.NoError(t, err)

	rt, err := cfg.Build(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })

	require.NotNil(t, rt.Runner)
	assert.Nil(t, rt.Tracer)
	assert.NotNil(t, rt.Metrics)
	assert.NotNil(t, rt.MetricsHandler())

	var opts runner.Options
	cfg.RunnerOptions(rt)(&opts)
	assert.Equal(t, 3, opts.MaxTurns)
	assert.Same(t, rt.Metrics, opts.Metrics)
	assert.Equal(t, rt.Model, opts.Model)
}

// Package config loads agentrail settings from YAML files and the
// environment, and turns them into explicit runner options and model
// adapters. Nothing here is process global: a Config is plain data.
//
// A minimal file:
//
//	model:
//	  provider: gemini-openai
//	  name: gemini-2.0-flash
//	  api_key: ${GEMINI_API_KEY}
//	runner:
//	  max_turns: 10
//	logging:
//	  level: info
//	  format: text
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrail/observability"
)

// Config is the root configuration document.
type Config struct {
	Model   ModelConfig                 `yaml:"model"`
	Runner  RunnerConfig                `yaml:"runner"`
	Logging LoggingConfig               `yaml:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing"`
	Metrics observability.MetricsConfig `yaml:"metrics"`
}

// ModelConfig selects and configures the default model of a runner.
type ModelConfig struct {
	// Provider is one of openai, anthropic, gemini, gemini-openai or mock.
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// RunnerConfig holds the runner limits.
type RunnerConfig struct {
	MaxTurns           int `yaml:"max_turns,omitempty"`
	MaxGuardrailFanOut int `yaml:"max_guardrail_fan_out,omitempty"`
	MaxParallelTools   int `yaml:"max_parallel_tools,omitempty"`
	MaxConcurrentRuns  int `yaml:"max_concurrent_runs,omitempty"`
	EventBufferSize    int `yaml:"event_buffer_size,omitempty"`
}

// LoggingConfig configures the slog backed logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes data after expanding ${VAR} and ${VAR:-default} references,
// applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration built from defaults and the environment
// only, for use without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = detectProvider()
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv(apiKeyEnv[c.Model.Provider])
	}
	if c.Runner.MaxTurns == 0 {
		c.Runner.MaxTurns = 10
	}
	if c.Runner.MaxGuardrailFanOut == 0 {
		c.Runner.MaxGuardrailFanOut = 4
	}
	if c.Runner.EventBufferSize == 0 {
		c.Runner.EventBufferSize = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Tracing.Enabled {
		c.Tracing.SetDefaults()
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := apiKeyEnv[c.Model.Provider]; !ok {
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature: %v is outside [0, 2]", c.Model.Temperature))
	}
	if c.Runner.MaxTurns < 0 {
		errs = append(errs, errors.New("runner.max_turns must not be negative"))
	}
	if c.Runner.MaxGuardrailFanOut < 0 || c.Runner.MaxParallelTools < 0 || c.Runner.MaxConcurrentRuns < 0 {
		errs = append(errs, errors.New("runner limits must not be negative"))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format: %q is not json or text", c.Logging.Format))
	}
	if c.Tracing.Enabled && c.Tracing.Exporter != "stdout" {
		errs = append(errs, fmt.Errorf("tracing.exporter: unsupported exporter %q", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}

// detectProvider picks the first provider with a credential in the
// environment, falling back to the scripted mock.
func detectProvider() string {
	for _, p := range []string{ProviderGeminiOpenAI, ProviderOpenAI, ProviderAnthropic} {
		if os.Getenv(apiKeyEnv[p]) != "" {
			return p
		}
	}
	return ProviderMock
}

package config

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/model/anthropic"
	"github.com/hupe1980/agentrail/model/gemini"
	"github.com/hupe1980/agentrail/model/openai"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	// ProviderGeminiOpenAI talks to Gemini through its OpenAI compatible endpoint.
	ProviderGeminiOpenAI = "gemini-openai"
	ProviderMock         = "mock"
)

// GeminiOpenAIBaseURL is the OpenAI compatible Gemini endpoint.
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

const defaultGeminiModel = "gemini-2.0-flash"

var apiKeyEnv = map[string]string{
	ProviderOpenAI:       "OPENAI_API_KEY",
	ProviderAnthropic:    "ANTHROPIC_API_KEY",
	ProviderGemini:       "GEMINI_API_KEY",
	ProviderGeminiOpenAI: "GEMINI_API_KEY",
	ProviderMock:         "",
}

// NewModel builds the model adapter described by cfg.
func NewModel(ctx context.Context, cfg ModelConfig) (model.Model, error) {
	if cfg.Provider != ProviderMock && cfg.APIKey == "" {
		return nil, fmt.Errorf("model provider %s: %s is not set", cfg.Provider, apiKeyEnv[cfg.Provider])
	}

	switch cfg.Provider {
	case ProviderOpenAI, ProviderGeminiOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Provider = cfg.Provider
			if cfg.Provider == ProviderGeminiOpenAI {
				if o.BaseURL == "" {
					o.BaseURL = GeminiOpenAIBaseURL
				}
				o.Model = defaultGeminiModel
			}
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = cfg.APIKey
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int32(cfg.MaxTokens)
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case ProviderMock:
		name := cfg.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name, ProviderMock), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

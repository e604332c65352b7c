package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mohammad-safakhou/deepresearch/models"
	openai_provider "github.com/mohammad-safakhou/deepresearch/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Generate returns the raw text of a completion.
	Generate(ctx context.Context, system, user string, p models.ModelParams) (string, models.Usage, error)
	// GenerateSchema constrains the completion to the given JSON schema and
	// returns the raw JSON object.
	GenerateSchema(ctx context.Context, system, user string, schema json.RawMessage, p models.ModelParams) (json.RawMessage, models.Usage, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, apiKey, baseURL string, timeout time.Duration) (Provider, error) {
	switch client {
	case OpenAI:
		if apiKey == "" {
			return nil, errors.New("openai api key not set")
		}
		return openai_provider.NewOpenAIClient(apiKey, baseURL, timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}

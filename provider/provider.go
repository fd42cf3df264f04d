package provider

import (
	"context"
	"errors"

	"github.com/scoutrun/scout/config"
	openai_provider "github.com/scoutrun/scout/provider/openai"
)

// Message is a role-tagged chat message.
type Message = openai_provider.Message

// Provider is the generation and embedding backend used by the agent loop.
type Provider interface {
	// Complete generates free-form text from the conversation.
	Complete(ctx context.Context, messages []Message) (string, error)
	// CompleteJSON generates text constrained to a JSON object and
	// unmarshals it into out.
	CompleteJSON(ctx context.Context, messages []Message, out interface{}) error
	// Embed returns one fixed-dimension vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// New creates the configured LLM provider. Only OpenAI-compatible backends
// are implemented; BaseURL allows pointing at a proxy or compatible server.
func New(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key not configured")
	}
	return openai_provider.NewClient(openai_provider.Options{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		CompletionModel: cfg.CompletionModel,
		EmbeddingModel:  cfg.EmbeddingModel,
		Dimensions:      cfg.EmbeddingDimensions,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		Timeout:         cfg.Timeout,
		MaxRetries:      cfg.MaxRetries,
	}), nil
}

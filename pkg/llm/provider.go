package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Usage carries token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chunk is one streamed increment of a completion.
type Chunk struct {
	Content string `json:"content"`
}

// Completion is the full result of a model call. In streaming mode the
// chunks are delivered through OnChunk and Content holds the aggregate.
type Completion struct {
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	ModelType   string // Logical class of model ("chat", "reasoning", ...)
	Stream      bool
	OnChunk     func(Chunk)
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithModelType(modelType string) Option {
	return func(o *Options) {
		o.ModelType = modelType
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithStream enables incremental delivery. onChunk may be nil, in which
// case the provider still streams internally but only the aggregate is
// returned.
func WithStream(onChunk func(Chunk)) Option {
	return func(o *Options) {
		o.Stream = true
		o.OnChunk = onChunk
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Complete sends a chat history to the model and returns the full
	// completion. With WithStream, OnChunk fires per increment and the
	// returned Completion aggregates the full content.
	Complete(ctx context.Context, history []Message, options ...Option) (*Completion, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

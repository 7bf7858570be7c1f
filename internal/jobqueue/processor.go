package jobqueue

import (
	"context"

	"ai-orchestrator-be/pkg/llm"
)

// LLMProcessor answers jobs with a streamed model completion.
type LLMProcessor struct {
	provider llm.LLMProvider
}

func NewLLMProcessor(provider llm.LLMProvider) *LLMProcessor {
	return &LLMProcessor{provider: provider}
}

func (p *LLMProcessor) Process(ctx context.Context, job *Job, onToken func(string)) (string, error) {
	history := []llm.Message{
		{Role: "user", Content: job.Content},
	}

	completion, err := p.provider.Complete(ctx, history,
		llm.WithStream(func(chunk llm.Chunk) {
			if onToken != nil && chunk.Content != "" {
				onToken(chunk.Content)
			}
		}),
	)
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

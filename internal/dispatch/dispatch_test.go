package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ai-orchestrator-be/pkg/llm"

	"github.com/stretchr/testify/assert"
)

// modelProvider answers per model name; names listed in failing error out.
type modelProvider struct {
	failing map[string]bool
}

func (p *modelProvider) Complete(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Completion, error) {
	options := llm.Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if p.failing[options.Model] {
		return nil, errors.New("model unavailable: " + options.Model)
	}
	return &llm.Completion{
		Content:  "response from " + options.Model,
		Model:    options.Model,
		Provider: "fake",
		Usage:    llm.Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
	}, nil
}

func (p *modelProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	completion, err := p.Complete(ctx, nil, opts...)
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

func TestAllModelsSucceed(t *testing.T) {
	d := NewDispatcher(&modelProvider{}, nil)

	result, err := d.ExecuteParallelCalls(context.Background(), "compare", []string{"m1", "m2", "m3"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	// Records keep the input model order and carry call provenance.
	for i, model := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, model, result.Calls[i].Model)
		assert.Equal(t, "fake", result.Calls[i].Provider)
		assert.Equal(t, CallSuccess, result.Calls[i].Status)
		assert.Equal(t, "response from "+model, result.Calls[i].Content)
		assert.Equal(t, 12, result.Calls[i].Usage.TotalTokens)
		assert.False(t, result.Calls[i].StartedAt.IsZero())
		assert.False(t, result.Calls[i].EndedAt.Before(result.Calls[i].StartedAt))
	}
}

func TestOneModelFailingDoesNotFailTheRun(t *testing.T) {
	d := NewDispatcher(&modelProvider{failing: map[string]bool{"m2": true}}, nil)

	result, err := d.ExecuteParallelCalls(context.Background(), "compare", []string{"m1", "m2", "m3"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, CallError, result.Calls[1].Status)
	assert.Contains(t, result.Calls[1].Error, "m2")
	assert.Empty(t, result.Calls[1].Content)

	// Neighbors are untouched by the failure.
	assert.Equal(t, CallSuccess, result.Calls[0].Status)
	assert.Equal(t, CallSuccess, result.Calls[2].Status)
}

func TestAllModelsFailingFailsTheRun(t *testing.T) {
	d := NewDispatcher(&modelProvider{failing: map[string]bool{"m1": true, "m2": true}}, nil)

	result, err := d.ExecuteParallelCalls(context.Background(), "compare", []string{"m1", "m2"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, RunFailed, result.Status)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
}

func TestNoModelsIsAnError(t *testing.T) {
	d := NewDispatcher(&modelProvider{}, nil)

	_, err := d.ExecuteParallelCalls(context.Background(), "compare", nil, nil)
	assert.Error(t, err)
}

func TestProgressCallback(t *testing.T) {
	d := NewDispatcher(&modelProvider{failing: map[string]bool{"m3": true}}, nil)

	var mu sync.Mutex
	var updates []Progress
	result, err := d.ExecuteParallelCalls(context.Background(), "compare", []string{"m1", "m2", "m3"},
		func(p Progress) {
			mu.Lock()
			updates = append(updates, p)
			mu.Unlock()
		})
	assert.NoError(t, err)
	assert.Equal(t, RunCompleted, result.Status)

	// request_started + 3 model_started + 3 completions + request_completed.
	assert.Len(t, updates, 8)
	assert.Equal(t, ProgressRequestStarted, updates[0].Status)
	assert.Equal(t, ProgressRequestCompleted, updates[len(updates)-1].Status)
	assert.Equal(t, 3, updates[len(updates)-1].Completed)

	started := 0
	seen := map[string]string{}
	counts := map[int]bool{}
	for _, u := range updates {
		assert.Equal(t, 3, u.Total)
		switch u.Status {
		case ProgressModelStarted:
			started++
		case CallSuccess, CallError:
			seen[u.Model] = u.Status
			counts[u.Completed] = true
		}
	}
	assert.Equal(t, 3, started)
	assert.Equal(t, CallSuccess, seen["m1"])
	assert.Equal(t, CallSuccess, seen["m2"])
	assert.Equal(t, CallError, seen["m3"])
	// Completed counters are 1..3, each exactly once.
	for i := 1; i <= 3; i++ {
		assert.True(t, counts[i], fmt.Sprintf("missing completed=%d", i))
	}
}

func TestNilProgressCallbackTolerated(t *testing.T) {
	d := NewDispatcher(&modelProvider{}, nil)

	assert.NotPanics(t, func() {
		result, err := d.ExecuteParallelCalls(context.Background(), "compare", []string{"m1"}, nil)
		assert.NoError(t, err)
		assert.Equal(t, RunCompleted, result.Status)
	})
}

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-orchestrator-be/internal/pkg/logger"
	"ai-orchestrator-be/pkg/llm"
)

// Per-call statuses.
const (
	CallSuccess = "success"
	CallError   = "error"
)

// Aggregate statuses. A run fails only when every model failed.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// CallRecord is the outcome of one model's call.
type CallRecord struct {
	Model     string        `json:"model"`
	Provider  string        `json:"provider,omitempty"`
	Status    string        `json:"status"`
	Content   string        `json:"content,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Usage     llm.Usage     `json:"usage"`
}

// Result aggregates a fan-out across models. Calls keeps the input
// model order regardless of completion order.
type Result struct {
	Status    string        `json:"status"`
	Calls     []CallRecord  `json:"calls"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Progress statuses for lifecycle notifications; per-model completions
// reuse the call statuses above.
const (
	ProgressRequestStarted   = "request_started"
	ProgressModelStarted     = "model_started"
	ProgressRequestCompleted = "request_completed"
)

// Progress reports fan-out advancement to an optional observer. Model is
// empty on request-level notifications.
type Progress struct {
	Model     string `json:"model,omitempty"`
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// ProgressFunc observes fan-out lifecycle events. A nil func is valid
// and simply observes nothing.
type ProgressFunc func(Progress)

// Dispatcher fans one prompt out to several models in parallel and
// waits for all of them.
type Dispatcher struct {
	provider llm.LLMProvider
	logger   logger.ILogger
}

func NewDispatcher(provider llm.LLMProvider, log logger.ILogger) *Dispatcher {
	return &Dispatcher{provider: provider, logger: log}
}

// ExecuteParallelCalls runs the prompt against every model concurrently
// and blocks until all calls return. One model failing never aborts the
// others; the aggregate fails only when no model succeeded.
func (d *Dispatcher) ExecuteParallelCalls(ctx context.Context, prompt string, models []string, onProgress ProgressFunc) (*Result, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no models to dispatch")
	}

	start := time.Now()
	calls := make([]CallRecord, len(models))

	notify := func(p Progress) {
		if onProgress != nil {
			p.Total = len(models)
			onProgress(p)
		}
	}

	notify(Progress{Status: ProgressRequestStarted})

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for i, model := range models {
		wg.Add(1)
		go func(idx int, model string) {
			defer wg.Done()

			notify(Progress{Model: model, Status: ProgressModelStarted})

			record := d.call(ctx, prompt, model)
			calls[idx] = record

			mu.Lock()
			completed++
			progress := Progress{
				Model:     model,
				Status:    record.Status,
				Completed: completed,
			}
			mu.Unlock()

			notify(progress)
		}(i, model)
	}
	wg.Wait()

	notify(Progress{Status: ProgressRequestCompleted, Completed: len(models)})

	result := &Result{
		Status:   RunCompleted,
		Calls:    calls,
		Duration: time.Since(start),
	}
	for _, record := range calls {
		if record.Status == CallSuccess {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	if result.Succeeded == 0 {
		result.Status = RunFailed
	}

	if d.logger != nil {
		d.logger.Info("Dispatcher", "Parallel fan-out finished", map[string]interface{}{
			"models":    len(models),
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"status":    result.Status,
		})
	}
	return result, nil
}

func (d *Dispatcher) call(ctx context.Context, prompt, model string) CallRecord {
	start := time.Now()

	history := []llm.Message{{Role: "user", Content: prompt}}
	completion, err := d.provider.Complete(ctx, history, llm.WithModel(model))

	record := CallRecord{
		Model:     model,
		StartedAt: start,
	}
	record.EndedAt = time.Now()
	record.Duration = record.EndedAt.Sub(start)
	if err != nil {
		record.Status = CallError
		record.Error = err.Error()
		return record
	}
	record.Status = CallSuccess
	record.Provider = completion.Provider
	record.Content = completion.Content
	record.Usage = completion.Usage
	return record
}

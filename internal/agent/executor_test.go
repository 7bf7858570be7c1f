package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-orchestrator-be/internal/tool"
	"ai-orchestrator-be/pkg/llm"
	"ai-orchestrator-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Complete(ctx context.Context, history []llm.Message, options ...llm.Option) (*llm.Completion, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient provider error")
	}
	return &llm.Completion{Content: "done", Model: "fake", Provider: "fake"}, nil
}

func (f *flakyProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	res, err := f.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// stubTool returns a fixed result.
type stubTool struct {
	name string
	fail bool
	err  error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.fail {
		return &tool.Result{Success: false, Error: "stub failure"}, nil
	}
	return &tool.Result{Success: true, Output: s.name + " ok"}, nil
}

func newTestExecutor(p llm.LLMProvider, reg *tool.Registry, retries int) *Executor {
	e := NewExecutor(p, reg, retries)
	e.sleep = func(time.Duration) {} // no real backoff in tests
	return e
}

func TestExecutorRetriesWithBackoff(t *testing.T) {
	provider := &flakyProvider{failures: 2}
	var slept []time.Duration

	e := NewExecutor(provider, tool.NewRegistry(), 3)
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	outcome, err := e.RunTask(context.Background(), store.Task{ID: "t1", Type: store.TaskGeneral, Description: "x"}, store.Routing{TaskID: "t1"})

	assert.NoError(t, err)
	assert.Equal(t, "done", outcome.Output)
	assert.Equal(t, 3, provider.calls)
	// Linear backoff: 1s after attempt 1, 2s after attempt 2.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, slept)
}

func TestExecutorSurfacesFailureAfterMaxRetries(t *testing.T) {
	provider := &flakyProvider{failures: 10}
	e := newTestExecutor(provider, tool.NewRegistry(), 3)

	_, err := e.RunTask(context.Background(), store.Task{ID: "t1", Type: store.TaskGeneral}, store.Routing{TaskID: "t1"})

	assert.Error(t, err)
	assert.Equal(t, 3, provider.calls)
}

func TestExecutorToolFailureDoesNotAbortRemainingTools(t *testing.T) {
	reg := tool.NewRegistry()
	assert.NoError(t, reg.Register(&stubTool{name: "first", fail: true}))
	assert.NoError(t, reg.Register(&stubTool{name: "second"}))
	assert.NoError(t, reg.Register(&stubTool{name: "third", err: errors.New("boom")}))

	e := newTestExecutor(&flakyProvider{}, reg, 1)
	task := store.Task{ID: "t1", Type: store.TaskExecution}
	routing := store.Routing{TaskID: "t1", SelectedAgent: "runner", SelectedTools: []string{"first", "second", "third"}}

	outcome, err := e.RunTask(context.Background(), task, routing)

	assert.NoError(t, err)
	assert.Equal(t, 3, outcome.Metadata["tools_invoked"])
	assert.Equal(t, 1, outcome.Metadata["tools_succeeded"])
}

func TestExecutorFeedsTaskDataToBuiltinTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page body"))
	}))
	defer srv.Close()

	provider := &flakyProvider{}
	reg := tool.NewRegistry()
	assert.NoError(t, reg.Register(tool.NewHTTPFetchTool()))
	assert.NoError(t, reg.Register(tool.NewSummarizeTool(provider)))

	e := newTestExecutor(provider, reg, 1)
	task := store.Task{ID: "t1", Type: store.TaskExecution, Description: "fetch " + srv.URL + " and condense it"}
	routing := store.Routing{TaskID: "t1", SelectedAgent: "runner", SelectedTools: []string{"http_fetch", "summarize"}}

	outcome, err := e.RunTask(context.Background(), task, routing)

	assert.NoError(t, err)
	assert.Equal(t, 2, outcome.Metadata["tools_invoked"])
	assert.Equal(t, 2, outcome.Metadata["tools_succeeded"])
}

func TestFirstURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fetch https://example.com/data and report", "https://example.com/data"},
		{"see http://example.com.", "http://example.com"},
		{"no links here", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, firstURL(tt.in))
	}
}

func TestExecutorAllToolsFailedIsTaskFailure(t *testing.T) {
	reg := tool.NewRegistry()
	assert.NoError(t, reg.Register(&stubTool{name: "first", fail: true}))

	e := newTestExecutor(&flakyProvider{}, reg, 1)
	task := store.Task{ID: "t1", Type: store.TaskExecution}
	routing := store.Routing{TaskID: "t1", SelectedTools: []string{"first"}}

	_, err := e.RunTask(context.Background(), task, routing)
	assert.Error(t, err)
}

func TestExecutorMetrics(t *testing.T) {
	e := newTestExecutor(&flakyProvider{failures: 0}, tool.NewRegistry(), 1)
	_, _ = e.RunTask(context.Background(), store.Task{ID: "t1", Type: store.TaskGeneral}, store.Routing{})

	m := e.Metrics()
	assert.Equal(t, int64(1), m.TotalExecutions)
	assert.Equal(t, 1.0, m.SuccessRate)
}

func TestDefaultValidationPolicy(t *testing.T) {
	tests := []struct {
		name           string
		result         interface{}
		wantValid      bool
		wantConfidence int
	}{
		{name: "nil result", result: nil, wantValid: false, wantConfidence: 10},
		{name: "empty string", result: "   ", wantValid: false, wantConfidence: 20},
		{name: "short result", result: "ok", wantValid: true, wantConfidence: 55},
		{name: "substantial result", result: "a sufficiently long and detailed answer", wantValid: true, wantConfidence: 85},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val := v.Validate("t1", tt.result)
			assert.Equal(t, tt.wantValid, val.IsValid)
			assert.Equal(t, tt.wantConfidence, val.Confidence)
			assert.Equal(t, "t1", val.TaskID)
		})
	}
}

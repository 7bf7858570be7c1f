package agent

import (
	"context"
	"errors"
	"testing"

	"ai-orchestrator-be/pkg/llm"
	"ai-orchestrator-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

// fakeProvider replays canned responses for the inference collaborator.
type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (f *fakeProvider) Complete(ctx context.Context, history []llm.Message, options ...llm.Option) (*llm.Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	opts := &llm.Options{}
	for _, o := range options {
		o(opts)
	}
	if opts.Stream && opts.OnChunk != nil {
		opts.OnChunk(llm.Chunk{Content: f.response})
	}
	return &llm.Completion{Content: f.response, Model: "fake", Provider: "fake"}, nil
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	res, err := f.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func TestPlannerParsesStructuredResponse(t *testing.T) {
	provider := &fakeProvider{response: `{
		"summary": "two step plan",
		"risk_assessment": "low",
		"tasks": [
			{"id": "task-1", "description": "inspect data", "type": "analysis", "priority": 1},
			{"id": "task-2", "description": "write report", "type": "generation", "priority": 2, "dependencies": ["task-1"]}
		]
	}`}

	planner := NewPlanner(provider, 10)
	plan, err := planner.BuildPlan(context.Background(), "analyze and report", "user-1", ExecutionContext{})

	assert.NoError(t, err)
	assert.Len(t, plan.Tasks, 2)
	assert.Equal(t, store.TaskAnalysis, plan.Tasks[0].Type)
	assert.Equal(t, []string{"task-1"}, plan.Tasks[1].Dependencies)
	assert.Equal(t, store.TaskPending, plan.Tasks[0].Status)
}

func TestPlannerFallbackOnUnparsableResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "plain prose", response: "I think you should do the thing yourself."},
		{name: "truncated json", response: `{"tasks": [{"id": "task-`},
		{name: "empty response", response: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := NewPlanner(&fakeProvider{response: tt.response}, 10)
			plan, err := planner.BuildPlan(context.Background(), "do the thing", "user-1", ExecutionContext{})

			assert.NoError(t, err)
			assert.Len(t, plan.Tasks, 1)
			assert.Equal(t, store.TaskGeneral, plan.Tasks[0].Type)
			assert.Equal(t, "do the thing", plan.Tasks[0].Description)
		})
	}
}

func TestPlannerFallbackOnProviderError(t *testing.T) {
	planner := NewPlanner(&fakeProvider{err: errors.New("connection refused")}, 10)
	plan, err := planner.BuildPlan(context.Background(), "summarize my week", "user-1", ExecutionContext{})

	assert.NoError(t, err)
	assert.Len(t, plan.Tasks, 1)
	assert.Equal(t, "summarize my week", plan.Tasks[0].Description)
}

func TestPlannerHandlesFencedJSON(t *testing.T) {
	provider := &fakeProvider{response: "```json\n{\"tasks\": [{\"id\": \"task-1\", \"description\": \"x\", \"type\": \"general\"}]}\n```"}
	planner := NewPlanner(provider, 10)

	plan, err := planner.BuildPlan(context.Background(), "x", "user-1", ExecutionContext{})

	assert.NoError(t, err)
	assert.Len(t, plan.Tasks, 1)
}

func TestPlannerRejectsOversizedPlan(t *testing.T) {
	provider := &fakeProvider{response: `{"tasks": [
		{"id": "a", "description": "1", "type": "general"},
		{"id": "b", "description": "2", "type": "general"},
		{"id": "c", "description": "3", "type": "general"}
	]}`}
	planner := NewPlanner(provider, 2)

	_, err := planner.BuildPlan(context.Background(), "many things", "user-1", ExecutionContext{})
	assert.Error(t, err)
}

func TestPlannerRejectsZeroTaskPlan(t *testing.T) {
	planner := NewPlanner(&fakeProvider{response: `{"summary": "nothing to do", "tasks": []}`}, 10)

	_, err := planner.BuildPlan(context.Background(), "noop", "user-1", ExecutionContext{})
	assert.Error(t, err)
}

func TestPlannerUpdatesMetrics(t *testing.T) {
	planner := NewPlanner(&fakeProvider{response: `{"tasks": []}`}, 10)
	_, _ = planner.BuildPlan(context.Background(), "noop", "user-1", ExecutionContext{})
	_, _ = planner.BuildPlan(context.Background(), "", "user-1", ExecutionContext{})

	m := planner.Metrics()
	assert.Equal(t, int64(2), m.TotalExecutions)
	assert.Equal(t, 0.0, m.SuccessRate)
}

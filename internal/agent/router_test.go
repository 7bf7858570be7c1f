package agent

import (
	"testing"

	"ai-orchestrator-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

func testAgents() []Descriptor {
	return []Descriptor{
		{Name: "data-analyzer", Type: "analyzer", SupportedTaskTypes: []store.TaskType{store.TaskAnalysis}, SuccessRate: 0.95, Enabled: true},
		{Name: "writer", Type: "generator", SupportedTaskTypes: []store.TaskType{store.TaskGeneration}, SuccessRate: 0.8, Enabled: true},
		{Name: "runner", Type: "executor", SupportedTaskTypes: []store.TaskType{store.TaskExecution, store.TaskGeneral}, Tools: []string{"http_fetch", "summarize"}, SuccessRate: 0.85, Enabled: true},
		{Name: "checker", Type: "validator", SupportedTaskTypes: []store.TaskType{store.TaskValidation}, SuccessRate: 0.7, Enabled: true},
	}
}

func TestRouterHonorsRequiredAgent(t *testing.T) {
	router := NewRouter(nil)
	tasks := []store.Task{{ID: "t1", Type: store.TaskGeneral, RequiredAgent: "writer"}}

	routings := router.Route(tasks, testAgents(), nil)

	assert.Len(t, routings, 1)
	assert.Equal(t, "writer", routings[0].SelectedAgent)
}

func TestRouterIgnoresDisabledRequiredAgent(t *testing.T) {
	agents := testAgents()
	agents[1].Enabled = false // writer

	router := NewRouter(nil)
	tasks := []store.Task{{ID: "t1", Type: store.TaskGeneration, RequiredAgent: "writer"}}

	routings := router.Route(tasks, agents, nil)

	// Falls through the rule table; generation maps to generator type, which
	// is disabled, so scoring picks the best remaining agent.
	assert.NotEqual(t, "writer", routings[0].SelectedAgent)
	assert.NotEmpty(t, routings[0].SelectedAgent)
}

func TestRouterRuleTable(t *testing.T) {
	tests := []struct {
		taskType store.TaskType
		want     string
	}{
		{store.TaskAnalysis, "data-analyzer"},
		{store.TaskGeneration, "writer"},
		{store.TaskExecution, "runner"},
		{store.TaskValidation, "checker"},
	}

	router := NewRouter(nil)
	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			routings := router.Route([]store.Task{{ID: "t1", Type: tt.taskType}}, testAgents(), nil)
			assert.Equal(t, tt.want, routings[0].SelectedAgent)
		})
	}
}

func TestRouterDeterministic(t *testing.T) {
	router := NewRouter(nil)
	tasks := []store.Task{
		{ID: "t1", Type: store.TaskGeneral, RequiredTools: []string{"http_fetch"}},
		{ID: "t2", Type: store.TaskAnalysis},
	}
	tools := []string{"http_fetch", "summarize"}

	first := router.Route(tasks, testAgents(), tools)
	for i := 0; i < 10; i++ {
		again := router.Route(tasks, testAgents(), tools)
		assert.Equal(t, first, again)
	}
}

func TestRouterNoAgentAvailable(t *testing.T) {
	router := NewRouter(nil)
	routings := router.Route([]store.Task{{ID: "t1", Type: store.TaskGeneral}}, nil, nil)

	assert.Empty(t, routings[0].SelectedAgent)
	assert.NotEmpty(t, routings[0].Reasoning)
}

func TestRouterFallbacksExcludeChosen(t *testing.T) {
	router := NewRouter(nil)
	routings := router.Route([]store.Task{{ID: "t1", Type: store.TaskGeneral}}, testAgents(), nil)

	assert.NotEmpty(t, routings[0].SelectedAgent)
	assert.LessOrEqual(t, len(routings[0].FallbackOptions), 3)
	for _, name := range routings[0].FallbackOptions {
		assert.NotEqual(t, routings[0].SelectedAgent, name)
	}
}

func TestWeightedScoring(t *testing.T) {
	s := WeightedScoring{}
	task := store.Task{Type: store.TaskExecution, RequiredTools: []string{"http_fetch", "summarize"}}

	tests := []struct {
		name  string
		agent Descriptor
		want  int
	}{
		{
			name:  "executor with type match, tools and high success rate",
			agent: Descriptor{Type: "executor", SupportedTaskTypes: []store.TaskType{store.TaskExecution}, Tools: []string{"http_fetch", "summarize"}, SuccessRate: 0.95},
			want:  80 + 20 + 10 + 10, // base + type + 2 tools + success
		},
		{
			name:  "overloaded analyzer",
			agent: Descriptor{Type: "analyzer", Load: 90},
			want:  70 - 30,
		},
		{
			name:  "unknown type gets base 50",
			agent: Descriptor{Type: "scheduler"},
			want:  50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(task, tt.agent))
		})
	}
}

func TestWeightedConfidenceClamped(t *testing.T) {
	s := WeightedScoring{}
	task := store.Task{Type: store.TaskExecution, RequiredAgent: "executor", RequiredTools: []string{"http_fetch"}}
	agent := Descriptor{Type: "executor", Tools: []string{"http_fetch"}, SuccessRate: 1.0}

	got := s.Confidence(task, agent)
	assert.Equal(t, 100, got)
}

func TestRegistrySnapshotOrder(t *testing.T) {
	reg := NewRegistry()
	assert.NoError(t, reg.Register(Descriptor{Name: "b", Type: "executor", Enabled: true}))
	assert.NoError(t, reg.Register(Descriptor{Name: "a", Type: "analyzer", Enabled: true}))
	assert.Error(t, reg.Register(Descriptor{Name: "a"}))

	snap := reg.Snapshot()
	assert.Equal(t, "b", snap[0].Name)
	assert.Equal(t, "a", snap[1].Name)
}

package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ai-orchestrator-be/pkg/store"
)

// Router decides which worker agent and tools serve each task. It is a
// pure function of (tasks, agents, tools): identical input yields identical
// routings, with no hidden randomness.
type Router struct {
	baseAgent
	scoring ScoringStrategy
}

func NewRouter(scoring ScoringStrategy) *Router {
	if scoring == nil {
		scoring = WeightedScoring{}
	}
	return &Router{
		baseAgent: newBaseAgent("router", "router"),
		scoring:   scoring,
	}
}

// taskTypeRules is the static task-type to agent-type table consulted
// before weighted scoring.
var taskTypeRules = map[store.TaskType]string{
	store.TaskAnalysis:   "analyzer",
	store.TaskGeneration: "generator",
	store.TaskExecution:  "executor",
	store.TaskValidation: "validator",
}

// Route produces one routing per task against a registry snapshot.
func (r *Router) Route(tasks []store.Task, agents []Descriptor, tools []string) []store.Routing {
	start := time.Now()

	routings := make([]store.Routing, 0, len(tasks))
	for _, task := range tasks {
		routings = append(routings, r.routeTask(task, agents, tools))
	}

	r.record(start, true)
	return routings
}

// Execute satisfies the shared pool contract.
func (r *Router) Execute(ctx context.Context, input map[string]interface{}, ec ExecutionContext) (*Result, error) {
	tasks, _ := input["tasks"].([]store.Task)
	routings := r.Route(tasks, ec.AvailableAgents, ec.AvailableTools)
	return &Result{
		Success: true,
		Data:    routings,
		Metadata: map[string]interface{}{
			"routed_count": len(routings),
		},
	}, nil
}

func (r *Router) routeTask(task store.Task, agents []Descriptor, tools []string) store.Routing {
	routing := store.Routing{
		TaskID:        task.ID,
		SelectedTools: r.matchTools(task, tools),
	}

	// 1. Explicit required agent, when registered and enabled.
	if task.RequiredAgent != "" {
		for _, d := range agents {
			if d.Name == task.RequiredAgent && d.Enabled {
				routing.SelectedAgent = d.Name
				routing.Confidence = r.scoring.Confidence(task, d)
				routing.Reasoning = fmt.Sprintf("task requires agent %q", d.Name)
				routing.FallbackOptions = r.fallbacks(task, agents, d.Name)
				return routing
			}
		}
	}

	// 2. Static type rule table.
	if wantType, ok := taskTypeRules[task.Type]; ok {
		for _, d := range agents {
			if d.Type == wantType && d.Enabled {
				routing.SelectedAgent = d.Name
				routing.Confidence = r.scoring.Confidence(task, d)
				routing.Reasoning = fmt.Sprintf("task type %q maps to agent type %q", task.Type, wantType)
				routing.FallbackOptions = r.fallbacks(task, agents, d.Name)
				return routing
			}
		}
	}

	// 3. Best weighted score; first registered wins on ties.
	best := r.bestByScore(task, agents, "")
	if best == nil {
		routing.Reasoning = "no enabled agent available for this task"
		return routing
	}

	routing.SelectedAgent = best.Name
	routing.Confidence = r.scoring.Confidence(task, *best)
	routing.Reasoning = fmt.Sprintf("selected %q by capability score", best.Name)
	routing.FallbackOptions = r.fallbacks(task, agents, best.Name)
	return routing
}

// bestByScore returns the highest-scoring enabled agent, skipping exclude.
func (r *Router) bestByScore(task store.Task, agents []Descriptor, exclude string) *Descriptor {
	var best *Descriptor
	bestScore := 0

	for i := range agents {
		d := agents[i]
		if !d.Enabled || d.Name == exclude {
			continue
		}
		score := r.scoring.Score(task, d)
		if best == nil || score > bestScore {
			copied := d
			best = &copied
			bestScore = score
		}
	}
	return best
}

// fallbacks returns the next three highest-scoring alternatives, not
// including the chosen agent. Sort is stable so registry order breaks ties.
func (r *Router) fallbacks(task store.Task, agents []Descriptor, chosen string) []string {
	type scored struct {
		name  string
		score int
	}

	candidates := make([]scored, 0, len(agents))
	for _, d := range agents {
		if !d.Enabled || d.Name == chosen {
			continue
		}
		candidates = append(candidates, scored{name: d.Name, score: r.scoring.Score(task, d)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	limit := 3
	if len(candidates) < limit {
		limit = len(candidates)
	}

	names := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		names = append(names, c.name)
	}
	return names
}

// matchTools keeps only required tools that are actually registered,
// preserving the task's declared order.
func (r *Router) matchTools(task store.Task, tools []string) []string {
	if len(task.RequiredTools) == 0 {
		return nil
	}

	available := make(map[string]bool, len(tools))
	for _, name := range tools {
		available[name] = true
	}

	matched := make([]string, 0, len(task.RequiredTools))
	for _, name := range task.RequiredTools {
		if available[name] {
			matched = append(matched, name)
		}
	}
	return matched
}

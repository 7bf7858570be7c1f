package agent

import (
	"context"
	"sync"
	"time"

	"ai-orchestrator-be/pkg/store"
)

// Result is the shared outcome shape for every pool agent.
type Result struct {
	Success  bool                   `json:"success"`
	Data     interface{}            `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionContext is the snapshot of the world an agent sees for one call.
type ExecutionContext struct {
	SessionID       string
	UserID          string
	AvailableAgents []Descriptor
	AvailableTools  []string
}

// Agent is the polymorphic contract shared by planner, router, executor
// and validator.
type Agent interface {
	Name() string
	Type() string
	Execute(ctx context.Context, input map[string]interface{}, ec ExecutionContext) (*Result, error)
	Metrics() Metrics
}

// Metrics are per-agent counters, updated on every call regardless of outcome.
type Metrics struct {
	TotalExecutions int64         `json:"total_executions"`
	SuccessRate     float64       `json:"success_rate"`
	TotalLatency    time.Duration `json:"total_latency"`
}

// Descriptor is the registry-visible capability card of a worker agent.
// The router scores these; it never touches agent internals.
type Descriptor struct {
	Name               string           `json:"name"`
	Type               string           `json:"type"` // analyzer|generator|executor|validator|...
	SupportedTaskTypes []store.TaskType `json:"supported_task_types"`
	Tools              []string         `json:"tools"`
	SuccessRate        float64          `json:"success_rate"`
	Load               int              `json:"load"` // 0-100
	Enabled            bool             `json:"enabled"`
}

// baseAgent carries the metrics bookkeeping common to the four pool agents.
type baseAgent struct {
	name string
	typ  string

	mu        sync.Mutex
	total     int64
	succeeded int64
	latency   time.Duration
}

func newBaseAgent(name, typ string) baseAgent {
	return baseAgent{name: name, typ: typ}
}

func (b *baseAgent) Name() string { return b.name }
func (b *baseAgent) Type() string { return b.typ }

func (b *baseAgent) record(start time.Time, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total++
	if ok {
		b.succeeded++
	}
	b.latency += time.Since(start)
}

func (b *baseAgent) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := 0.0
	if b.total > 0 {
		rate = float64(b.succeeded) / float64(b.total)
	}
	return Metrics{
		TotalExecutions: b.total,
		SuccessRate:     rate,
		TotalLatency:    b.latency,
	}
}

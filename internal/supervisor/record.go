package supervisor

import (
	"time"
)

// Status values for a supervision record.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StepStatus values. Steps are append-only for audit integrity: a step is
// mutated only by CompleteStep, never after completion.
const (
	StepRunning   = "running"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

type Step struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Phase     string        `json:"phase"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration"`
	Result    interface{}   `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type PhaseEntry struct {
	Phase     string    `json:"phase"`
	EnteredAt time.Time `json:"entered_at"`
}

type Thought struct {
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type Decision struct {
	Description string    `json:"description"`
	Reasoning   string    `json:"reasoning"`
	At          time.Time `json:"at"`
}

type Issue struct {
	Message string    `json:"message"`
	Phase   string    `json:"phase"`
	At      time.Time `json:"at"`
}

// Resources counts collaborator usage for one request.
type Resources struct {
	AgentsUsed int `json:"agents_used"`
	ToolsUsed  int `json:"tools_used"`
	LLMCalls   int `json:"llm_calls"`
	APICalls   int `json:"api_calls"`
}

// Record is the full telemetry/audit trail for one request, independent of
// the session's own lifecycle.
type Record struct {
	RequestID      string        `json:"request_id"`
	UserID         string        `json:"user_id"`
	StartTime      time.Time     `json:"start_time"`
	CurrentPhase   string        `json:"current_phase"`
	Status         string        `json:"status"`
	Phases         []PhaseEntry  `json:"phases"`
	Steps          []Step        `json:"steps"`
	Errors         []Issue       `json:"errors"`
	Warnings       []Issue       `json:"warnings"`
	CurrentThought string        `json:"current_thought"`
	Thoughts       []Thought     `json:"thoughts"`
	Decisions      []Decision    `json:"decisions"`
	Resources      Resources     `json:"resources"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	TotalDuration  time.Duration `json:"total_duration"`
}

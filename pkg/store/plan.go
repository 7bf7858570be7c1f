package store

// TaskType classifies what kind of work a task represents.
type TaskType string

const (
	TaskAnalysis   TaskType = "analysis"
	TaskGeneration TaskType = "generation"
	TaskExecution  TaskType = "execution"
	TaskValidation TaskType = "validation"
	TaskGeneral    TaskType = "general"
)

// TaskStatus is the lifecycle state of a single task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one unit of plannable work. Tasks live in the ExecutionPlan's
// owned slice; everything else (routings, steps) references them by ID only.
type Task struct {
	ID            string      `json:"id"`
	Description   string      `json:"description"`
	Type          TaskType    `json:"type"`
	Priority      int         `json:"priority"`
	Dependencies  []string    `json:"dependencies"`
	Status        TaskStatus  `json:"status"`
	Result        interface{} `json:"result,omitempty"`
	RequiredAgent string      `json:"required_agent,omitempty"`
	RequiredTools []string    `json:"required_tools,omitempty"`
}

// ExecutionPlan is produced once by the planner. The task set is immutable
// after creation; only task status/result mutate.
type ExecutionPlan struct {
	OriginalRequest string `json:"original_request"`
	UserID          string `json:"user_id"`
	Tasks           []Task `json:"tasks"`
	Summary         string `json:"summary,omitempty"`
	RiskAssessment  string `json:"risk_assessment,omitempty"`
}

// TaskByID returns a pointer into the owned task slice, or nil.
func (p *ExecutionPlan) TaskByID(id string) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}

// Ready reports whether every dependency of the task is completed.
func (p *ExecutionPlan) Ready(t *Task) bool {
	for _, dep := range t.Dependencies {
		depTask := p.TaskByID(dep)
		if depTask == nil || depTask.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// CompletedCount returns how many tasks reached completed.
func (p *ExecutionPlan) CompletedCount() int {
	n := 0
	for i := range p.Tasks {
		if p.Tasks[i].Status == TaskCompleted {
			n++
		}
	}
	return n
}

// Routing is the router's decision for one task. Immutable once the
// execution phase starts.
type Routing struct {
	TaskID          string   `json:"task_id"`
	SelectedAgent   string   `json:"selected_agent,omitempty"`
	SelectedTools   []string `json:"selected_tools,omitempty"`
	Confidence      int      `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	FallbackOptions []string `json:"fallback_options,omitempty"`
}

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-orchestrator-be/internal/tool"
	"ai-orchestrator-be/pkg/llm"
	"ai-orchestrator-be/pkg/store"
)

// Executor runs a routed task. Dispatch is by task type; execution-type
// tasks with tools invoke each tool in sequence, everything else builds a
// type-specific prompt for the inference collaborator.
type Executor struct {
	baseAgent
	llmProvider llm.LLMProvider
	tools       *tool.Registry
	maxRetries  int

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

func NewExecutor(llmProvider llm.LLMProvider, tools *tool.Registry, maxRetries int) *Executor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Executor{
		baseAgent:   newBaseAgent("executor", "executor"),
		llmProvider: llmProvider,
		tools:       tools,
		maxRetries:  maxRetries,
		sleep:       time.Sleep,
	}
}

// TaskOutcome is what one task execution produces.
type TaskOutcome struct {
	TaskID   string                 `json:"task_id"`
	Output   interface{}            `json:"output"`
	Agent    string                 `json:"agent"`
	Usage    llm.Usage              `json:"usage,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RunTask executes a task with whole-task retries and linear backoff
// (1000ms * attempt number) between attempts.
func (e *Executor) RunTask(ctx context.Context, task store.Task, routing store.Routing) (*TaskOutcome, error) {
	start := time.Now()

	var outcome *TaskOutcome
	var err error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		outcome, err = e.runOnce(ctx, task, routing)
		if err == nil {
			break
		}
		if attempt < e.maxRetries {
			e.sleep(time.Duration(attempt) * time.Second)
		}
	}

	e.record(start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("task %s failed after %d attempts: %w", task.ID, e.maxRetries, err)
	}
	return outcome, nil
}

// Execute satisfies the shared pool contract.
func (e *Executor) Execute(ctx context.Context, input map[string]interface{}, ec ExecutionContext) (*Result, error) {
	task, _ := input["task"].(store.Task)
	routing, _ := input["routing"].(store.Routing)

	outcome, err := e.RunTask(ctx, task, routing)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, err
	}
	return &Result{Success: true, Data: outcome, Metadata: outcome.Metadata}, nil
}

func (e *Executor) runOnce(ctx context.Context, task store.Task, routing store.Routing) (*TaskOutcome, error) {
	if task.Type == store.TaskExecution && len(routing.SelectedTools) > 0 {
		return e.runWithTools(ctx, task, routing)
	}
	return e.runWithLLM(ctx, task, routing)
}

// runWithTools invokes each selected tool in sequence. One tool failing
// does not abort the remaining tools; per-tool success is aggregated.
func (e *Executor) runWithTools(ctx context.Context, task store.Task, routing store.Routing) (*TaskOutcome, error) {
	type toolRun struct {
		Tool    string      `json:"tool"`
		Success bool        `json:"success"`
		Output  interface{} `json:"output,omitempty"`
		Error   string      `json:"error,omitempty"`
	}

	runs := make([]toolRun, 0, len(routing.SelectedTools))
	succeeded := 0
	params := toolParams(task)

	for _, name := range routing.SelectedTools {
		t, ok := e.tools.Get(name)
		if !ok {
			runs = append(runs, toolRun{Tool: name, Success: false, Error: "tool not registered"})
			continue
		}

		res, err := t.Execute(ctx, params)
		if err != nil {
			runs = append(runs, toolRun{Tool: name, Success: false, Error: err.Error()})
			continue
		}

		if res.Success {
			succeeded++
		}
		runs = append(runs, toolRun{Tool: name, Success: res.Success, Output: res.Output, Error: res.Error})
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("all %d tool invocations failed", len(routing.SelectedTools))
	}

	return &TaskOutcome{
		TaskID: task.ID,
		Output: runs,
		Agent:  routing.SelectedAgent,
		Metadata: map[string]interface{}{
			"strategy":        "tools",
			"tools_invoked":   len(runs),
			"tools_succeeded": succeeded,
		},
	}, nil
}

// toolParams shapes the task into the arguments tools expect: the
// description doubles as the text payload, and the first URL in it, if
// any, becomes the fetch target.
func toolParams(task store.Task) map[string]interface{} {
	params := map[string]interface{}{
		"task_id":     task.ID,
		"description": task.Description,
		"text":        task.Description,
	}
	if url := firstURL(task.Description); url != "" {
		params["url"] = url
	}
	return params
}

func firstURL(s string) string {
	for _, field := range strings.Fields(s) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return strings.TrimRight(field, ".,;:!?)\"'")
		}
	}
	return ""
}

func (e *Executor) runWithLLM(ctx context.Context, task store.Task, routing store.Routing) (*TaskOutcome, error) {
	prompt := e.composePrompt(task)

	completion, err := e.llmProvider.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("inference call: %w", err)
	}

	return &TaskOutcome{
		TaskID: task.ID,
		Output: completion.Content,
		Agent:  routing.SelectedAgent,
		Usage:  completion.Usage,
		Metadata: map[string]interface{}{
			"strategy": string(task.Type),
			"model":    completion.Model,
			"provider": completion.Provider,
		},
	}, nil
}

func (e *Executor) composePrompt(task store.Task) string {
	var prompt strings.Builder

	switch task.Type {
	case store.TaskAnalysis:
		prompt.WriteString("You are an analyst. Examine the following task carefully ")
		prompt.WriteString("and report findings, assumptions and risks.\n\n")
	case store.TaskGeneration:
		prompt.WriteString("You are a content generator. Produce the artifact the ")
		prompt.WriteString("following task asks for, and nothing else.\n\n")
	case store.TaskExecution:
		prompt.WriteString("You are an operator. Describe precisely how you carry out ")
		prompt.WriteString("the following task and report the result.\n\n")
	default:
		prompt.WriteString("Complete the following task to the best of your ability.\n\n")
	}

	prompt.WriteString("Task: ")
	prompt.WriteString(task.Description)
	return prompt.String()
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-orchestrator-be/pkg/llm"
	"ai-orchestrator-be/pkg/store"
)

// Planner transforms a free-text request into an ExecutionPlan. The model
// response is treated as an untrusted structured payload: parse failures
// never propagate, they degrade to a deterministic one-task fallback plan.
type Planner struct {
	baseAgent
	llmProvider llm.LLMProvider
	maxTasks    int
}

func NewPlanner(llmProvider llm.LLMProvider, maxTasks int) *Planner {
	if maxTasks <= 0 {
		maxTasks = 10
	}
	return &Planner{
		baseAgent:   newBaseAgent("planner", "planner"),
		llmProvider: llmProvider,
		maxTasks:    maxTasks,
	}
}

// plannedTask is the wire shape we ask the model to emit.
type plannedTask struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	Priority      int      `json:"priority"`
	Dependencies  []string `json:"dependencies"`
	RequiredAgent string   `json:"required_agent"`
	RequiredTools []string `json:"required_tools"`
}

type plannedResponse struct {
	Summary        string        `json:"summary"`
	RiskAssessment string        `json:"risk_assessment"`
	Tasks          []plannedTask `json:"tasks"`
}

// BuildPlan is the typed entry point used by the orchestrator.
func (p *Planner) BuildPlan(ctx context.Context, userRequest, userID string, ec ExecutionContext) (*store.ExecutionPlan, error) {
	start := time.Now()

	plan, err := p.buildPlan(ctx, userRequest, userID, ec)
	p.record(start, err == nil)
	return plan, err
}

// Execute satisfies the shared pool contract.
func (p *Planner) Execute(ctx context.Context, input map[string]interface{}, ec ExecutionContext) (*Result, error) {
	userRequest, _ := input["user_request"].(string)
	userID, _ := input["user_id"].(string)

	plan, err := p.BuildPlan(ctx, userRequest, userID, ec)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, err
	}
	return &Result{
		Success: true,
		Data:    plan,
		Metadata: map[string]interface{}{
			"task_count": len(plan.Tasks),
		},
	}, nil
}

func (p *Planner) buildPlan(ctx context.Context, userRequest, userID string, ec ExecutionContext) (*store.ExecutionPlan, error) {
	if strings.TrimSpace(userRequest) == "" {
		return nil, fmt.Errorf("empty user request")
	}

	prompt := p.composePrompt(userRequest, ec)

	response, err := p.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.2))
	if err != nil {
		// The collaborator itself failed; the fallback plan still gives the
		// pipeline one executable task.
		return p.fallbackPlan(userRequest, userID), nil
	}

	parsed, err := parsePlannedResponse(response)
	if err != nil {
		return p.fallbackPlan(userRequest, userID), nil
	}

	plan := &store.ExecutionPlan{
		OriginalRequest: userRequest,
		UserID:          userID,
		Summary:         parsed.Summary,
		RiskAssessment:  parsed.RiskAssessment,
		Tasks:           make([]store.Task, 0, len(parsed.Tasks)),
	}

	for i, t := range parsed.Tasks {
		id := t.ID
		if id == "" {
			id = fmt.Sprintf("task-%d", i+1)
		}
		plan.Tasks = append(plan.Tasks, store.Task{
			ID:            id,
			Description:   t.Description,
			Type:          normalizeTaskType(t.Type),
			Priority:      t.Priority,
			Dependencies:  t.Dependencies,
			Status:        store.TaskPending,
			RequiredAgent: t.RequiredAgent,
			RequiredTools: t.RequiredTools,
		})
	}

	// Hard validation errors: these cannot be recovered by a fallback
	// because the model DID produce a structured plan.
	if len(plan.Tasks) == 0 {
		return nil, fmt.Errorf("plan has zero tasks")
	}
	if len(plan.Tasks) > p.maxTasks {
		return nil, fmt.Errorf("plan has %d tasks, exceeds limit of %d", len(plan.Tasks), p.maxTasks)
	}

	return plan, nil
}

// fallbackPlan wraps the original request verbatim in a single general task.
func (p *Planner) fallbackPlan(userRequest, userID string) *store.ExecutionPlan {
	return &store.ExecutionPlan{
		OriginalRequest: userRequest,
		UserID:          userID,
		Summary:         "Direct execution of the original request",
		Tasks: []store.Task{
			{
				ID:          "task-1",
				Description: userRequest,
				Type:        store.TaskGeneral,
				Priority:    1,
				Status:      store.TaskPending,
			},
		},
	}
}

func (p *Planner) composePrompt(userRequest string, ec ExecutionContext) string {
	var prompt strings.Builder

	prompt.WriteString("<system_role>\n")
	prompt.WriteString("You are a task planner for a multi-agent assistant.\n")
	prompt.WriteString("You decompose a user request into discrete, ordered tasks.\n")
	prompt.WriteString("</system_role>\n\n")

	prompt.WriteString("<available_agents>\n")
	if len(ec.AvailableAgents) == 0 {
		prompt.WriteString("No specialized agents are registered.\n")
	}
	for _, a := range ec.AvailableAgents {
		prompt.WriteString(fmt.Sprintf("- %s (type: %s)\n", a.Name, a.Type))
	}
	prompt.WriteString("</available_agents>\n\n")

	prompt.WriteString("<constraints>\n")
	prompt.WriteString(fmt.Sprintf("Produce between 1 and %d tasks.\n", p.maxTasks))
	prompt.WriteString("Task types: analysis, generation, execution, validation, general.\n")
	prompt.WriteString("Dependencies reference earlier task ids only.\n")
	prompt.WriteString("</constraints>\n\n")

	prompt.WriteString("<user_request>\n")
	prompt.WriteString(userRequest)
	prompt.WriteString("\n</user_request>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON in this exact structure:\n\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"summary\": \"one-line plan summary\",\n")
	prompt.WriteString("  \"risk_assessment\": \"low|medium|high with reason\",\n")
	prompt.WriteString("  \"tasks\": [\n")
	prompt.WriteString("    {\"id\": \"task-1\", \"description\": \"...\", \"type\": \"analysis\", \"priority\": 1, \"dependencies\": [], \"required_agent\": \"\", \"required_tools\": []}\n")
	prompt.WriteString("  ]\n")
	prompt.WriteString("}\n\n")
	prompt.WriteString("IMPORTANT: Output ONLY the JSON. No preamble, no explanation outside the JSON.\n")
	prompt.WriteString("</output_format>\n")

	return prompt.String()
}

// parsePlannedResponse parses the structured response, tolerating fenced
// code blocks and surrounding prose.
func parsePlannedResponse(response string) (*plannedResponse, error) {
	jsonContent := extractJSON(stripFences(response))

	var parsed plannedResponse
	if err := json.Unmarshal([]byte(jsonContent), &parsed); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return &parsed, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(response string) string {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx != -1 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// extractJSON isolates JSON content from response
func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}

func normalizeTaskType(raw string) store.TaskType {
	switch store.TaskType(strings.ToLower(strings.TrimSpace(raw))) {
	case store.TaskAnalysis:
		return store.TaskAnalysis
	case store.TaskGeneration:
		return store.TaskGeneration
	case store.TaskExecution:
		return store.TaskExecution
	case store.TaskValidation:
		return store.TaskValidation
	default:
		return store.TaskGeneral
	}
}

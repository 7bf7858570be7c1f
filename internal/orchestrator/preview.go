package orchestrator

import (
	"fmt"

	"ai-orchestrator-be/pkg/store"
)

// Risk levels derived for the approval preview.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

const maxPreviewIssues = 3

// TaskPreview summarizes one task for the approval decision.
type TaskPreview struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Summary     string `json:"summary,omitempty"`
}

// ValidationSummary is a validation result truncated to its top issues.
type ValidationSummary struct {
	TaskID     string   `json:"task_id"`
	IsValid    bool     `json:"is_valid"`
	Confidence int      `json:"confidence"`
	Issues     []string `json:"issues,omitempty"`
}

// Preview is what a human approver sees before releasing the final phase.
type Preview struct {
	Tasks           []TaskPreview       `json:"tasks"`
	Validations     []ValidationSummary `json:"validations"`
	RiskLevel       string              `json:"risk_level"`
	EstimatedImpact string              `json:"estimated_impact"`
}

// buildPreview derives the approval preview from the session's plan,
// outcomes and validations. Risk is high when any validation is critical
// (invalid with confidence below 50), medium when anything is invalid or
// a task failed, low otherwise.
func buildPreview(s *Session) *Preview {
	preview := &Preview{RiskLevel: RiskLow}

	failedTasks := 0
	for i := range s.Plan.Tasks {
		task := &s.Plan.Tasks[i]
		if task.Status == store.TaskFailed {
			failedTasks++
		}
		tp := TaskPreview{
			ID:          task.ID,
			Description: task.Description,
			Status:      string(task.Status),
		}
		if outcome, ok := s.Outcomes[task.ID]; ok {
			tp.Summary = summarize(outcome.Output)
		}
		preview.Tasks = append(preview.Tasks, tp)
	}

	anyInvalid := false
	anyCritical := false
	for _, val := range s.Validations {
		if !val.IsValid {
			anyInvalid = true
			if val.Confidence < 50 {
				anyCritical = true
			}
		}
		issues := val.Issues
		if len(issues) > maxPreviewIssues {
			issues = issues[:maxPreviewIssues]
		}
		preview.Validations = append(preview.Validations, ValidationSummary{
			TaskID:     val.TaskID,
			IsValid:    val.IsValid,
			Confidence: val.Confidence,
			Issues:     issues,
		})
	}

	switch {
	case anyCritical:
		preview.RiskLevel = RiskHigh
	case anyInvalid || failedTasks > 0:
		preview.RiskLevel = RiskMedium
	}

	preview.EstimatedImpact = fmt.Sprintf("%d of %d tasks completed, %d failed",
		s.Plan.CompletedCount(), len(s.Plan.Tasks), failedTasks)
	return preview
}

// approvalRequired is the gating heuristic: high risk or any invalid
// validation demands a human decision.
func approvalRequired(p *Preview) bool {
	if p.RiskLevel == RiskHigh {
		return true
	}
	for _, val := range p.Validations {
		if !val.IsValid {
			return true
		}
	}
	return false
}

const summaryLimit = 120

func summarize(output interface{}) string {
	text := fmt.Sprintf("%v", output)
	if len(text) > summaryLimit {
		return text[:summaryLimit] + "..."
	}
	return text
}

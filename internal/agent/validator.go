package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Validation is the load-bearing contract consumed by the approval
// heuristic. The scoring inside is replaceable policy.
type Validation struct {
	TaskID     string   `json:"task_id"`
	IsValid    bool     `json:"is_valid"`
	Confidence int      `json:"confidence"` // 0-100
	Issues     []string `json:"issues,omitempty"`
}

// ValidationPolicy scores a prior task result. Implementations are free to
// replace the arithmetic without breaking the pipeline.
type ValidationPolicy func(taskID string, result interface{}) Validation

// Validator applies a pluggable policy to task results.
type Validator struct {
	baseAgent
	policy ValidationPolicy
}

func NewValidator(policy ValidationPolicy) *Validator {
	if policy == nil {
		policy = DefaultValidationPolicy
	}
	return &Validator{
		baseAgent: newBaseAgent("validator", "validator"),
		policy:    policy,
	}
}

// Validate scores one task result.
func (v *Validator) Validate(taskID string, result interface{}) Validation {
	start := time.Now()
	val := v.policy(taskID, result)
	val.TaskID = taskID
	v.record(start, val.IsValid)
	return val
}

// Execute satisfies the shared pool contract.
func (v *Validator) Execute(ctx context.Context, input map[string]interface{}, ec ExecutionContext) (*Result, error) {
	taskID, _ := input["task_id"].(string)
	val := v.Validate(taskID, input["result"])
	return &Result{
		Success: true,
		Data:    val,
		Metadata: map[string]interface{}{
			"is_valid":   val.IsValid,
			"confidence": val.Confidence,
		},
	}, nil
}

// DefaultValidationPolicy is a simple length/shape heuristic. Nothing in
// the pipeline depends on its arithmetic, only on the Validation shape.
func DefaultValidationPolicy(taskID string, result interface{}) Validation {
	val := Validation{TaskID: taskID}

	if result == nil {
		val.IsValid = false
		val.Confidence = 10
		val.Issues = []string{"task produced no result"}
		return val
	}

	text := fmt.Sprintf("%v", result)
	trimmed := strings.TrimSpace(text)

	switch {
	case trimmed == "":
		val.IsValid = false
		val.Confidence = 20
		val.Issues = []string{"result is empty"}
	case len(trimmed) < 20:
		val.IsValid = true
		val.Confidence = 55
		val.Issues = []string{"result is unusually short"}
	default:
		val.IsValid = true
		val.Confidence = 85
	}

	return val
}

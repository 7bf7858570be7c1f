package supervisor

import (
	"fmt"
	"math"
	"time"
)

const (
	recentStepLimit    = 5
	recentThoughtLimit = 3
)

// Progress summarizes step completion for one request.
type Progress struct {
	Phases     int `json:"phases"`
	Steps      int `json:"steps"`
	TotalSteps int `json:"total_steps"`
	Percentage int `json:"percentage"`
}

// IssueSummary carries error/warning counts plus the messages themselves.
type IssueSummary struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// RequestStatus is the read-only projection served to clients.
type RequestStatus struct {
	RequestID      string        `json:"request_id"`
	Status         string        `json:"status"`
	CurrentPhase   string        `json:"current_phase"`
	CurrentThought string        `json:"current_thought"`
	Progress       Progress      `json:"progress"`
	Duration       time.Duration `json:"duration"`
	Resources      Resources     `json:"resources"`
	Issues         IssueSummary  `json:"issues"`
	RecentSteps    []Step        `json:"recent_steps"`
	RecentThoughts []Thought     `json:"recent_thoughts"`
}

// GetRequestStatus computes the projection for one request. It is purely
// derived state; nothing in the record mutates.
func (s *Supervisor) GetRequestStatus(requestID string) (*RequestStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lookup(requestID)
	if !ok {
		return nil, fmt.Errorf("unknown request: %s", requestID)
	}
	return s.project(rec), nil
}

// project builds the projection. Callers hold at least a read lock.
func (s *Supervisor) project(rec *Record) *RequestStatus {
	completed := 0
	for i := range rec.Steps {
		if rec.Steps[i].Status == StepCompleted {
			completed++
		}
	}

	percentage := 0
	if len(rec.Steps) > 0 {
		percentage = int(math.Round(float64(completed) / float64(len(rec.Steps)) * 100))
	}

	duration := rec.TotalDuration
	if rec.CompletedAt == nil {
		duration = s.now().Sub(rec.StartTime)
	}

	return &RequestStatus{
		RequestID:      rec.RequestID,
		Status:         rec.Status,
		CurrentPhase:   rec.CurrentPhase,
		CurrentThought: rec.CurrentThought,
		Progress: Progress{
			Phases:     len(rec.Phases),
			Steps:      completed,
			TotalSteps: len(rec.Steps),
			Percentage: percentage,
		},
		Duration:       duration,
		Resources:      rec.Resources,
		Issues:         issueSummary(rec),
		RecentSteps:    lastSteps(rec.Steps, recentStepLimit),
		RecentThoughts: lastThoughts(rec.Thoughts, recentThoughtLimit),
	}
}

func issueSummary(rec *Record) IssueSummary {
	summary := IssueSummary{
		Errors:   make([]string, 0, len(rec.Errors)),
		Warnings: make([]string, 0, len(rec.Warnings)),
	}
	for _, e := range rec.Errors {
		summary.Errors = append(summary.Errors, e.Message)
	}
	for _, w := range rec.Warnings {
		summary.Warnings = append(summary.Warnings, w.Message)
	}
	return summary
}

func lastSteps(steps []Step, limit int) []Step {
	if len(steps) > limit {
		steps = steps[len(steps)-limit:]
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

func lastThoughts(thoughts []Thought, limit int) []Thought {
	if len(thoughts) > limit {
		thoughts = thoughts[len(thoughts)-limit:]
	}
	out := make([]Thought, len(thoughts))
	copy(out, thoughts)
	return out
}

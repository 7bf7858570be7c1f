package orchestrator

import (
	"time"

	"ai-orchestrator-be/internal/agent"
	"ai-orchestrator-be/pkg/store"
)

// Session statuses. The session walks created → planning → routing →
// execution → [validation] → [approval → awaiting_approval] → final →
// completed, with failed and rejected as absorbing terminals.
const (
	StatusCreated          = "created"
	StatusPlanning         = "planning"
	StatusRouting          = "routing"
	StatusExecution        = "execution"
	StatusValidation       = "validation"
	StatusApproval         = "approval"
	StatusAwaitingApproval = "awaiting_approval"
	StatusFinal            = "final"
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
	StatusRejected         = "rejected"
)

// Approval statuses.
const (
	ApprovalNone     = "none"
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Session is one end-to-end orchestration run, owned exclusively by the
// orchestrator for its lifetime. Tasks live in the plan's owned slice;
// routings and outcomes reference them by id only.
type Session struct {
	ID              string
	UserID          string
	ChatID          string
	OriginalRequest string
	Status          string
	CurrentPhase    string

	Plan        *store.ExecutionPlan
	Routings    map[string]store.Routing
	Outcomes    map[string]*agent.TaskOutcome
	Validations []agent.Validation
	Preview     *Preview
	Metadata    map[string]interface{}

	ApprovalRequired bool
	ApprovalStatus   string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// SessionProgress counts task completion for the status projection.
type SessionProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// SessionStatusProjection is the read API shape for one session. UserID
// rides along for persistence but is not part of the projection itself.
type SessionStatusProjection struct {
	ID               string          `json:"id"`
	UserID           string          `json:"-"`
	Status           string          `json:"status"`
	CurrentPhase     string          `json:"current_phase"`
	ApprovalRequired bool            `json:"approval_required"`
	ApprovalStatus   string          `json:"approval_status"`
	Progress         SessionProgress `json:"progress"`
	OriginalRequest  string          `json:"original_request"`
}

func (s *Session) progress() SessionProgress {
	if s.Plan == nil || len(s.Plan.Tasks) == 0 {
		return SessionProgress{}
	}
	completed := s.Plan.CompletedCount()
	total := len(s.Plan.Tasks)
	return SessionProgress{
		Completed:  completed,
		Total:      total,
		Percentage: completed * 100 / total,
	}
}

func (s *Session) projection() *SessionStatusProjection {
	return &SessionStatusProjection{
		ID:               s.ID,
		UserID:           s.UserID,
		Status:           s.Status,
		CurrentPhase:     s.CurrentPhase,
		ApprovalRequired: s.ApprovalRequired,
		ApprovalStatus:   s.ApprovalStatus,
		Progress:         s.progress(),
		OriginalRequest:  s.OriginalRequest,
	}
}

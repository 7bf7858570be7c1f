package events

import "time"

// The orchestration pipeline emits a closed set of typed events. Each type
// wraps BaseEvent so publishers only deal with the Event interface.

const (
	TypeSessionStarted   = "SESSION_STARTED"
	TypePhaseChanged     = "PHASE_CHANGED"
	TypeSessionCompleted = "SESSION_COMPLETED"
	TypeSessionFailed    = "SESSION_FAILED"
	TypeApprovalPending  = "APPROVAL_PENDING"
	TypeApprovalResolved = "APPROVAL_RESOLVED"
	TypeJobQueued        = "JOB_QUEUED"
	TypeJobFinished      = "JOB_FINISHED"
)

// SessionStarted fires when a session passes the admission gate.
type SessionStarted struct{ BaseEvent }

func NewSessionStarted(sessionID, userID, request string) SessionStarted {
	return SessionStarted{BaseEvent{
		Type: TypeSessionStarted,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
			"request":    request,
		},
		OccurredAt: time.Now(),
	}}
}

// PhaseChanged fires on every state machine transition.
type PhaseChanged struct{ BaseEvent }

func NewPhaseChanged(sessionID, phase, status string) PhaseChanged {
	return PhaseChanged{BaseEvent{
		Type: TypePhaseChanged,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"phase":      phase,
			"status":     status,
		},
		OccurredAt: time.Now(),
	}}
}

// SessionCompleted fires when a session reaches the completed status.
type SessionCompleted struct{ BaseEvent }

func NewSessionCompleted(sessionID string, taskCount int, durationMs int64) SessionCompleted {
	return SessionCompleted{BaseEvent{
		Type: TypeSessionCompleted,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"task_count":  taskCount,
			"duration_ms": durationMs,
		},
		OccurredAt: time.Now(),
	}}
}

// SessionFailed fires when a session aborts from any phase.
type SessionFailed struct{ BaseEvent }

func NewSessionFailed(sessionID, phase, reason string) SessionFailed {
	return SessionFailed{BaseEvent{
		Type: TypeSessionFailed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"phase":      phase,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}}
}

// ApprovalPending fires when a session parks in awaiting_approval.
type ApprovalPending struct{ BaseEvent }

func NewApprovalPending(sessionID, userID, riskLevel string) ApprovalPending {
	return ApprovalPending{BaseEvent{
		Type: TypeApprovalPending,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
			"risk_level": riskLevel,
		},
		OccurredAt: time.Now(),
	}}
}

// ApprovalResolved fires on approve or reject.
type ApprovalResolved struct{ BaseEvent }

func NewApprovalResolved(sessionID string, approved bool, reason string) ApprovalResolved {
	return ApprovalResolved{BaseEvent{
		Type: TypeApprovalResolved,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"approved":   approved,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}}
}

// JobQueued fires when a background job is accepted by the queue.
type JobQueued struct{ BaseEvent }

func NewJobQueued(jobID, chatID string) JobQueued {
	return JobQueued{BaseEvent{
		Type: TypeJobQueued,
		Data: map[string]interface{}{
			"job_id":  jobID,
			"chat_id": chatID,
		},
		OccurredAt: time.Now(),
	}}
}

// JobFinished fires when a background job reaches a terminal state.
type JobFinished struct{ BaseEvent }

func NewJobFinished(jobID, status string) JobFinished {
	return JobFinished{BaseEvent{
		Type: TypeJobFinished,
		Data: map[string]interface{}{
			"job_id": jobID,
			"status": status,
		},
		OccurredAt: time.Now(),
	}}
}

package jobqueue

import "time"

// Job statuses. A job moves queued -> processing -> completed|error,
// or to cancelled from either of the first two.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusCancelled  = "cancelled"
)

// Job is one queued chat-response request.
type Job struct {
	ID          string     `json:"id"`
	ChatID      string     `json:"chat_id"`
	UserID      string     `json:"user_id"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// cancel is closed exactly once when the job is cancelled after
	// dispatch; the worker watches it out-of-band.
	cancel chan struct{}
}

func (j *Job) clone() *Job {
	out := *j
	out.cancel = nil
	return &out
}

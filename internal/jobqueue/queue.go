package jobqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-orchestrator-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DispatchTopic carries dispatched job ids to the worker.
const DispatchTopic = "orchestration.jobs"

// ErrJobNotFound is returned for lookups and cancellations of unknown ids.
var ErrJobNotFound = errors.New("job not found")

type dispatchPayload struct {
	JobID string `json:"job_id"`
}

// Queue is a strict FIFO with a single consumer: exactly one job is
// dispatched at a time, the next only after the current one finishes or
// is cancelled. Dispatch rides a watermill in-process pub/sub so the
// worker consumes jobs the same way every other async pipeline here does.
type Queue struct {
	mu           sync.Mutex
	jobs         map[string]*Job
	fifo         []string
	processingID string

	pubSub *gochannel.GoChannel
	logger logger.ILogger
	now    func() time.Time
}

func NewQueue(pubSub *gochannel.GoChannel, log logger.ILogger) *Queue {
	return &Queue{
		jobs:   make(map[string]*Job),
		pubSub: pubSub,
		logger: log,
		now:    time.Now,
	}
}

// AddJob enqueues a job and reports whether it was accepted. An id that
// already exists is rejected without touching the original: retried
// submissions must not duplicate work.
func (q *Queue) AddJob(id, chatID, userID, content string) bool {
	q.mu.Lock()

	if _, exists := q.jobs[id]; exists {
		q.mu.Unlock()
		return false
	}

	q.jobs[id] = &Job{
		ID:        id,
		ChatID:    chatID,
		UserID:    userID,
		Content:   content,
		Status:    StatusQueued,
		CreatedAt: q.now(),
		cancel:    make(chan struct{}),
	}
	q.fifo = append(q.fifo, id)

	if q.logger != nil {
		q.logger.Info("JobQueue", "Job queued", map[string]interface{}{
			"job_id":  id,
			"chat_id": chatID,
			"depth":   len(q.fifo),
		})
	}

	next := q.nextLocked()
	q.mu.Unlock()

	q.dispatch(next)
	return true
}

// CancelJob cancels a job in either pre- or post-dispatch state. A job
// still in the FIFO is removed and never dispatched; a job already with
// the worker gets its cancel channel closed and is marked cancelled
// locally, so its eventual completion arrives stale and is discarded.
func (q *Queue) CancelJob(id string) error {
	q.mu.Lock()

	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	switch job.Status {
	case StatusQueued:
		for i, queued := range q.fifo {
			if queued == id {
				q.fifo = append(q.fifo[:i], q.fifo[i+1:]...)
				break
			}
		}
		q.finishLocked(job, StatusCancelled, "", "")
		q.mu.Unlock()
		return nil

	case StatusProcessing:
		q.finishLocked(job, StatusCancelled, "", "")
		q.processingID = ""
		close(job.cancel)
		next := q.nextLocked()
		q.mu.Unlock()

		q.dispatch(next)
		return nil

	default:
		q.mu.Unlock()
		return fmt.Errorf("job %s already finished: %s", id, job.Status)
	}
}

// Complete records the worker's outcome. Completions for jobs no longer
// in processing state (cancelled, or long since finished) are stale and
// ignored.
func (q *Queue) Complete(id, result string, jobErr error) {
	q.mu.Lock()

	job, ok := q.jobs[id]
	if !ok || job.Status != StatusProcessing {
		q.mu.Unlock()
		return
	}

	if jobErr != nil {
		q.finishLocked(job, StatusError, "", jobErr.Error())
	} else {
		q.finishLocked(job, StatusCompleted, result, "")
	}
	q.processingID = ""

	next := q.nextLocked()
	q.mu.Unlock()

	q.dispatch(next)
}

// GetJobStatus returns a copy of the job's current state.
func (q *Queue) GetJobStatus(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.clone(), nil
}

// Depth reports how many jobs are still waiting in the FIFO.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

// claim hands the worker a snapshot of a dispatched job plus its cancel
// channel. Jobs no longer in processing state yield ok=false with the
// snapshot still attached, so the worker can tell why the claim missed.
func (q *Queue) claim(id string) (*Job, <-chan struct{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, nil, false
	}
	if job.Status != StatusProcessing {
		return job.clone(), nil, false
	}
	return job.clone(), job.cancel, true
}

// nextLocked pops the FIFO head when no job is in flight. Callers hold
// the lock and publish the returned id after releasing it.
func (q *Queue) nextLocked() string {
	if q.processingID != "" || len(q.fifo) == 0 {
		return ""
	}

	id := q.fifo[0]
	q.fifo = q.fifo[1:]

	job := q.jobs[id]
	started := q.now()
	job.Status = StatusProcessing
	job.StartedAt = &started
	q.processingID = id
	return id
}

func (q *Queue) finishLocked(job *Job, status, result, errMsg string) {
	done := q.now()
	job.Status = status
	job.Result = result
	job.Error = errMsg
	job.CompletedAt = &done
}

// dispatch publishes the job id to the worker topic.
func (q *Queue) dispatch(id string) {
	if id == "" {
		return
	}

	payload, err := json.Marshal(dispatchPayload{JobID: id})
	if err != nil {
		q.Complete(id, "", fmt.Errorf("encode dispatch payload: %w", err))
		return
	}

	if err := q.pubSub.Publish(DispatchTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		if q.logger != nil {
			q.logger.Error("JobQueue", "Dispatch publish failed", map[string]interface{}{
				"job_id": id,
				"error":  err.Error(),
			})
		}
		q.Complete(id, "", fmt.Errorf("dispatch job: %w", err))
	}
}

package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"ai-orchestrator-be/internal/broadcast"
	"ai-orchestrator-be/internal/pkg/logger"
	"ai-orchestrator-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Processor produces the response for one job, reporting tokens as they
// are generated. It must return promptly once ctx is cancelled.
type Processor interface {
	Process(ctx context.Context, job *Job, onToken func(token string)) (string, error)
}

// EventPublisher receives job lifecycle events; optional.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Worker is the queue's single consumer: it drains the dispatch topic,
// runs jobs through the processor and streams output to chat subscribers.
type Worker struct {
	pubSub      *gochannel.GoChannel
	queue       *Queue
	processor   Processor
	broadcaster *broadcast.Broadcaster
	publisher   EventPublisher
	logger      logger.ILogger
}

func NewWorker(
	pubSub *gochannel.GoChannel,
	queue *Queue,
	processor Processor,
	broadcaster *broadcast.Broadcaster,
	log logger.ILogger,
) *Worker {
	return &Worker{
		pubSub:      pubSub,
		queue:       queue,
		processor:   processor,
		broadcaster: broadcaster,
		logger:      log,
	}
}

// SetPublisher attaches a lifecycle event publisher.
func (w *Worker) SetPublisher(p EventPublisher) {
	w.publisher = p
}

// Start subscribes to the dispatch topic and processes until ctx ends.
func (w *Worker) Start(ctx context.Context) error {
	messages, err := w.pubSub.Subscribe(ctx, DispatchTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			w.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (w *Worker) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dispatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		if w.logger != nil {
			w.logger.Error("JobWorker", "Invalid dispatch payload", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}

	job, cancelSignal, ok := w.queue.claim(payload.JobID)
	if !ok {
		// Cancelled between dispatch and pickup: the job never ran,
		// but subscribers still need to hear the stream stopped.
		if job != nil && job.Status == StatusCancelled {
			w.broadcaster.BroadcastMessageCancelled(job.ChatID, job.ID, "")
			w.publishFinished(ctx, job.ID, StatusCancelled)
		}
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Out-of-band cancellation: CancelJob closes the channel while the
	// processor runs.
	go func() {
		select {
		case <-cancelSignal:
			cancel()
		case <-jobCtx.Done():
		}
	}()

	var partial strings.Builder
	result, err := w.processor.Process(jobCtx, job, func(token string) {
		partial.WriteString(token)
		w.broadcaster.BroadcastToken(job.ChatID, job.ID, token)
	})

	if errors.Is(jobCtx.Err(), context.Canceled) && ctx.Err() == nil {
		// The queue already marked the job cancelled; its completion
		// would be stale. Tell subscribers the stream stopped, with
		// whatever content got out before the cancel.
		w.broadcaster.BroadcastMessageCancelled(job.ChatID, job.ID, partial.String())
		w.publishFinished(ctx, job.ID, StatusCancelled)
		return
	}

	w.queue.Complete(job.ID, result, err)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("JobWorker", "Job failed", map[string]interface{}{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		}
		w.publishFinished(ctx, job.ID, StatusError)
		return
	}

	w.broadcaster.BroadcastMessageComplete(job.ChatID, job.ID, result)
	w.publishFinished(ctx, job.ID, StatusCompleted)
}

func (w *Worker) publishFinished(ctx context.Context, jobID, status string) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, events.NewJobFinished(jobID, status)); err != nil && w.logger != nil {
		w.logger.Warn("JobWorker", "Failed to publish job finished event", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}
}

package jobqueue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ai-orchestrator-be/internal/broadcast"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
)

// blockingProcessor holds each job until released, recording pickup order.
type blockingProcessor struct {
	mu      sync.Mutex
	started []string
	release map[string]chan struct{}
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{release: make(map[string]chan struct{})}
}

func (p *blockingProcessor) gate(id string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.release[id]; !ok {
		p.release[id] = make(chan struct{})
	}
	return p.release[id]
}

func (p *blockingProcessor) Process(ctx context.Context, job *Job, onToken func(string)) (string, error) {
	p.mu.Lock()
	p.started = append(p.started, job.ID)
	p.mu.Unlock()

	select {
	case <-p.gate(job.ID):
		return "answer:" + job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *blockingProcessor) startedJobs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.started))
	copy(out, p.started)
	return out
}

type harness struct {
	queue       *Queue
	processor   *blockingProcessor
	broadcaster *broadcast.Broadcaster
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	queue := NewQueue(pubSub, nil)
	processor := newBlockingProcessor()
	broadcaster := broadcast.NewBroadcaster(nil, nil)
	t.Cleanup(broadcaster.Stop)

	worker := NewWorker(pubSub, queue, processor, broadcaster, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	assert.NoError(t, worker.Start(ctx))

	return &harness{queue: queue, processor: processor, broadcaster: broadcaster}
}

func (h *harness) waitStatus(t *testing.T, jobID, status string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		job, err := h.queue.GetJobStatus(jobID)
		return err == nil && job.Status == status
	}, 2*time.Second, 10*time.Millisecond, "job %s never reached %s", jobID, status)
}

func TestDuplicateJobIDRejected(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.queue.AddJob("j1", "chat-1", "user-1", "hi"))
	h.waitStatus(t, "j1", StatusProcessing)

	// Re-submitting the in-flight id must not touch it or grow the queue.
	assert.False(t, h.queue.AddJob("j1", "chat-1", "user-1", "hi again"))
	assert.Equal(t, 0, h.queue.Depth())

	job, err := h.queue.GetJobStatus("j1")
	assert.NoError(t, err)
	assert.Equal(t, "hi", job.Content)
}

func TestSingleConsumerFIFO(t *testing.T) {
	h := newHarness(t)

	h.queue.AddJob("j1", "chat-1", "user-1", "first")
	h.queue.AddJob("j2", "chat-1", "user-1", "second")
	h.waitStatus(t, "j1", StatusProcessing)

	// j2 must wait for j1 even though the worker is idle in between.
	job, _ := h.queue.GetJobStatus("j2")
	assert.Equal(t, StatusQueued, job.Status)

	close(h.processor.gate("j1"))
	h.waitStatus(t, "j1", StatusCompleted)
	h.waitStatus(t, "j2", StatusProcessing)

	close(h.processor.gate("j2"))
	h.waitStatus(t, "j2", StatusCompleted)

	assert.Equal(t, []string{"j1", "j2"}, h.processor.startedJobs())

	job, _ = h.queue.GetJobStatus("j1")
	assert.Equal(t, "answer:j1", job.Result)
	assert.NotNil(t, job.CompletedAt)
}

func TestCancelBeforeDispatchNeverRuns(t *testing.T) {
	h := newHarness(t)

	h.queue.AddJob("j1", "chat-1", "user-1", "first")
	h.queue.AddJob("j2", "chat-1", "user-1", "second")
	h.queue.AddJob("j3", "chat-1", "user-1", "third")
	h.waitStatus(t, "j1", StatusProcessing)

	assert.NoError(t, h.queue.CancelJob("j2"))

	job, _ := h.queue.GetJobStatus("j2")
	assert.Equal(t, StatusCancelled, job.Status)

	close(h.processor.gate("j1"))
	h.waitStatus(t, "j3", StatusProcessing)
	close(h.processor.gate("j3"))
	h.waitStatus(t, "j3", StatusCompleted)

	// j2 was removed from the FIFO, so the worker never saw it.
	assert.Equal(t, []string{"j1", "j3"}, h.processor.startedJobs())
}

func TestCancelAfterDispatchSignalsWorker(t *testing.T) {
	h := newHarness(t)

	sink := broadcast.NewChannelSink(16)
	h.broadcaster.Subscribe("chat-1", sink)
	<-sink.Events() // connected

	h.queue.AddJob("j1", "chat-1", "user-1", "first")
	h.queue.AddJob("j2", "chat-1", "user-1", "second")
	h.waitStatus(t, "j1", StatusProcessing)

	assert.NoError(t, h.queue.CancelJob("j1"))

	job, _ := h.queue.GetJobStatus("j1")
	assert.Equal(t, StatusCancelled, job.Status)

	// Subscribers learn the stream stopped.
	select {
	case event := <-sink.Events():
		assert.Equal(t, broadcast.EventMessageCancelled, event.Type)
		assert.Equal(t, "j1", event.MessageID)
		assert.Empty(t, event.PartialContent)
	case <-time.After(2 * time.Second):
		t.Fatal("no cancellation event")
	}

	// The queue moves on immediately.
	h.waitStatus(t, "j2", StatusProcessing)
	close(h.processor.gate("j2"))
	h.waitStatus(t, "j2", StatusCompleted)
}

func TestCancelBetweenDispatchAndPickupNotifiesSubscribers(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	queue := NewQueue(pubSub, nil)
	processor := newBlockingProcessor()
	broadcaster := broadcast.NewBroadcaster(nil, nil)
	defer broadcaster.Stop()

	worker := NewWorker(pubSub, queue, processor, broadcaster, nil)

	sink := broadcast.NewChannelSink(16)
	broadcaster.Subscribe("chat-1", sink)
	<-sink.Events() // connected

	// No consumer is running yet, so the dispatch sits undelivered
	// while the cancel lands first.
	queue.AddJob("j1", "chat-1", "user-1", "first")
	assert.NoError(t, queue.CancelJob("j1"))

	payload, err := json.Marshal(dispatchPayload{JobID: "j1"})
	assert.NoError(t, err)
	worker.processMessage(context.Background(), message.NewMessage(watermill.NewUUID(), payload))

	// The job never reached the processor, yet subscribers still hear
	// the stream stopped.
	assert.Empty(t, processor.startedJobs())
	select {
	case event := <-sink.Events():
		assert.Equal(t, broadcast.EventMessageCancelled, event.Type)
		assert.Equal(t, "j1", event.MessageID)
		assert.Empty(t, event.PartialContent)
	case <-time.After(2 * time.Second):
		t.Fatal("no cancellation event")
	}
}

func TestStaleCompletionIgnored(t *testing.T) {
	h := newHarness(t)

	h.queue.AddJob("j1", "chat-1", "user-1", "first")
	h.waitStatus(t, "j1", StatusProcessing)
	assert.NoError(t, h.queue.CancelJob("j1"))

	// A straggler completion for the cancelled job changes nothing.
	h.queue.Complete("j1", "late result", nil)

	job, _ := h.queue.GetJobStatus("j1")
	assert.Equal(t, StatusCancelled, job.Status)
	assert.Empty(t, job.Result)
}

func TestCancelUnknownOrFinishedJob(t *testing.T) {
	h := newHarness(t)

	assert.Error(t, h.queue.CancelJob("missing"))

	h.queue.AddJob("j1", "chat-1", "user-1", "first")
	h.waitStatus(t, "j1", StatusProcessing)
	close(h.processor.gate("j1"))
	h.waitStatus(t, "j1", StatusCompleted)

	assert.Error(t, h.queue.CancelJob("j1"))
}

func TestGetJobStatusUnknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.queue.GetJobStatus("missing")
	assert.Error(t, err)
}

// streamProcessor emits a fixed token sequence, no blocking.
type streamProcessor struct {
	tokens []string
}

func (p *streamProcessor) Process(ctx context.Context, job *Job, onToken func(string)) (string, error) {
	var full string
	for _, tok := range p.tokens {
		onToken(tok)
		full += tok
	}
	return full, nil
}

func TestWorkerStreamsTokensToSubscribers(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	queue := NewQueue(pubSub, nil)
	broadcaster := broadcast.NewBroadcaster(nil, nil)
	defer broadcaster.Stop()

	worker := NewWorker(pubSub, queue, &streamProcessor{tokens: []string{"he", "llo"}}, broadcaster, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, worker.Start(ctx))

	sink := broadcast.NewChannelSink(16)
	broadcaster.Subscribe("chat-1", sink)
	<-sink.Events() // connected

	queue.AddJob("j1", "chat-1", "user-1", "greet me")

	var types []string
	var content string
	for len(types) < 3 {
		select {
		case event := <-sink.Events():
			types = append(types, event.Type)
			if event.Type == broadcast.EventMessageComplete {
				content = event.FinalContent
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("stream stalled after %v", types)
		}
	}

	assert.Equal(t, []string{
		broadcast.EventToken,
		broadcast.EventToken,
		broadcast.EventMessageComplete,
	}, types)
	assert.Equal(t, "hello", content)
}

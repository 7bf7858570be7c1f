package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// collectSink records every event it receives.
type collectSink struct {
	mu     sync.Mutex
	events []StreamEvent
	closed bool
}

func (s *collectSink) Write(event StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *collectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *collectSink) snapshot() []StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StreamEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *collectSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// failSink rejects every write after the connected event.
type failSink struct {
	mu     sync.Mutex
	writes int
	closed bool
}

func (s *failSink) Write(event StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if event.Type == EventConnected {
		return nil
	}
	return errors.New("broken pipe")
}

func (s *failSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *failSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestSubscribeSendsConnectedEvent(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	defer b.Stop()

	sink := &collectSink{}
	b.Subscribe("chat-1", sink)

	events := sink.snapshot()
	assert.Len(t, events, 1)
	assert.Equal(t, EventConnected, events[0].Type)
	assert.Equal(t, "chat-1", events[0].ChatID)
}

func TestTokenFanOutPerChat(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	defer b.Stop()

	sameChat1 := &collectSink{}
	sameChat2 := &collectSink{}
	otherChat := &collectSink{}
	b.Subscribe("chat-1", sameChat1)
	b.Subscribe("chat-1", sameChat2)
	b.Subscribe("chat-2", otherChat)

	b.BroadcastToken("chat-1", "job-1", "hello")

	for _, sink := range []*collectSink{sameChat1, sameChat2} {
		events := sink.snapshot()
		assert.Len(t, events, 2)
		assert.Equal(t, EventToken, events[1].Type)
		assert.Equal(t, "hello", events[1].Content)
		assert.Equal(t, "job-1", events[1].MessageID)
	}

	// chat-2 only got its connected event.
	assert.Len(t, otherChat.snapshot(), 1)
}

func TestBroadcastWithoutSubscribersIsNoOp(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	defer b.Stop()

	b.BroadcastToken("nobody", "job-1", "tok")
	b.BroadcastMessageComplete("nobody", "job-1", "done")
	b.BroadcastMessageCancelled("nobody", "job-1", "part")

	assert.Equal(t, 0, b.SubscriberCount("nobody"))
}

func TestFailedWriteRemovesSubscriberAsync(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	defer b.Stop()

	broken := &failSink{}
	healthy := &collectSink{}
	b.Subscribe("chat-1", broken)
	b.Subscribe("chat-1", healthy)

	b.BroadcastToken("chat-1", "job-1", "tok")

	// Healthy subscriber still got the token during the same fan-out.
	assert.Len(t, healthy.snapshot(), 2)

	assert.Eventually(t, func() bool {
		return b.SubscriberCount("chat-1") == 1 && broken.isClosed()
	}, time.Second, 10*time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	defer b.Stop()

	sink := &collectSink{}
	subID := b.Subscribe("chat-1", sink)
	b.Unsubscribe("chat-1", subID)

	assert.Equal(t, 0, b.SubscriberCount("chat-1"))
	assert.True(t, sink.isClosed())

	b.BroadcastToken("chat-1", "job-1", "tok")
	assert.Len(t, sink.snapshot(), 1)
}

func TestSweepRemovesStaleSubscribers(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	defer b.Stop()

	base := time.Now()
	current := base
	b.now = func() time.Time { return current }

	stale := &collectSink{}
	fresh := &collectSink{}
	b.Subscribe("chat-1", stale)

	// Advance past staleness; the fresh subscriber arrives afterwards.
	current = base.Add(staleThreshold + time.Minute)
	b.Subscribe("chat-1", fresh)

	b.sweep()

	assert.Eventually(t, func() bool {
		return b.SubscriberCount("chat-1") == 1
	}, time.Second, 10*time.Millisecond)
	assert.True(t, stale.isClosed())
	assert.False(t, fresh.isClosed())
}

func TestMessageCompleteCarriesContent(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	defer b.Stop()

	sink := NewChannelSink(8)
	b.Subscribe("chat-1", sink)

	b.BroadcastMessageComplete("chat-1", "job-1", "full answer")
	b.BroadcastMessageCancelled("chat-1", "job-2", "partial ans")

	connected := <-sink.Events()
	complete := <-sink.Events()
	cancelled := <-sink.Events()

	assert.Equal(t, EventConnected, connected.Type)
	assert.NotEmpty(t, connected.ConnectionID)
	assert.Equal(t, EventMessageComplete, complete.Type)
	assert.Equal(t, "full answer", complete.FinalContent)
	assert.Equal(t, EventMessageCancelled, cancelled.Type)
	assert.Equal(t, "job-2", cancelled.MessageID)
	assert.Equal(t, "partial ans", cancelled.PartialContent)
}

func TestChannelSinkRejectsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	assert.NoError(t, sink.Write(StreamEvent{Type: EventToken}))
	assert.Error(t, sink.Write(StreamEvent{Type: EventToken}))

	sink.Close()
	assert.ErrorIs(t, sink.Write(StreamEvent{Type: EventToken}), ErrSinkClosed)
}

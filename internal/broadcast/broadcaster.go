package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-orchestrator-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sweepInterval  = 30 * time.Second
	staleThreshold = 5 * time.Minute

	// relayChannel carries events between instances through Redis
	// pub/sub, same shape as local fan-out.
	relayChannel = "orchestration_stream"
)

type subscriber struct {
	id         string
	chatID     string
	sink       Sink
	lastActive time.Time
}

// Broadcaster fans stream events out to every subscriber of a chat.
// Fan-out is synchronous over a copied snapshot of the subscriber list;
// failed writes queue the subscriber for asynchronous removal so a dead
// connection never blocks or mutates mid-broadcast.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string][]*subscriber

	removals chan removal
	stop     chan struct{}
	stopOnce sync.Once

	rdb    *redis.Client
	logger logger.ILogger

	now func() time.Time
}

type removal struct {
	chatID string
	subID  string
}

func NewBroadcaster(rdb *redis.Client, log logger.ILogger) *Broadcaster {
	b := &Broadcaster{
		subs:     make(map[string][]*subscriber),
		removals: make(chan removal, 256),
		stop:     make(chan struct{}),
		rdb:      rdb,
		logger:   log,
		now:      time.Now,
	}

	go b.removalLoop()
	go b.sweepLoop()
	if b.rdb != nil {
		go b.subscribeToRedis()
	}
	return b
}

// Subscribe registers a sink for a chat and returns the subscription id.
// The sink immediately receives a connected event.
func (b *Broadcaster) Subscribe(chatID string, sink Sink) string {
	sub := &subscriber{
		id:         uuid.New().String(),
		chatID:     chatID,
		sink:       sink,
		lastActive: b.now(),
	}

	b.mu.Lock()
	b.subs[chatID] = append(b.subs[chatID], sub)
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Info("Broadcaster", "Subscriber registered", map[string]interface{}{
			"chat_id": chatID,
			"sub_id":  sub.id,
		})
	}

	_ = sink.Write(StreamEvent{
		Type:         EventConnected,
		ChatID:       chatID,
		ConnectionID: sub.id,
		Timestamp:    b.now(),
	})
	return sub.id
}

// Unsubscribe removes one subscription and closes its sink.
func (b *Broadcaster) Unsubscribe(chatID, subID string) {
	b.remove(chatID, subID)
}

// SubscriberCount reports the live subscriptions for a chat.
func (b *Broadcaster) SubscriberCount(chatID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[chatID])
}

// BroadcastToken pushes one generated token to every subscriber of the chat.
func (b *Broadcaster) BroadcastToken(chatID, jobID, token string) {
	b.broadcast(StreamEvent{
		Type:      EventToken,
		ChatID:    chatID,
		MessageID: jobID,
		Content:   token,
		Timestamp: b.now(),
	}, true)
}

// BroadcastMessageComplete signals the end of a streamed message with the
// assembled content.
func (b *Broadcaster) BroadcastMessageComplete(chatID, jobID, content string) {
	b.broadcast(StreamEvent{
		Type:         EventMessageComplete,
		ChatID:       chatID,
		MessageID:    jobID,
		FinalContent: content,
		Timestamp:    b.now(),
	}, true)
}

// BroadcastMessageCancelled signals that the in-flight message was
// cancelled, with the partial content streamed so far.
func (b *Broadcaster) BroadcastMessageCancelled(chatID, jobID, partialContent string) {
	b.broadcast(StreamEvent{
		Type:           EventMessageCancelled,
		ChatID:         chatID,
		MessageID:      jobID,
		PartialContent: partialContent,
		Timestamp:      b.now(),
	}, true)
}

// BroadcastPhaseUpdate pushes an orchestration phase transition to the
// chat's subscribers.
func (b *Broadcaster) BroadcastPhaseUpdate(chatID, sessionID, phase string) {
	b.broadcast(StreamEvent{
		Type:      EventPhaseUpdate,
		ChatID:    chatID,
		MessageID: sessionID,
		Phase:     phase,
		Timestamp: b.now(),
	}, true)
}

// broadcast fans out to a snapshot of the chat's subscribers. With no
// subscribers it does nothing at all.
func (b *Broadcaster) broadcast(event StreamEvent, relay bool) {
	b.mu.RLock()
	snapshot := make([]*subscriber, len(b.subs[event.ChatID]))
	copy(snapshot, b.subs[event.ChatID])
	b.mu.RUnlock()

	now := b.now()
	for _, sub := range snapshot {
		if err := sub.sink.Write(event); err != nil {
			select {
			case b.removals <- removal{chatID: sub.chatID, subID: sub.id}:
			default:
				// Removal queue full; the sweep will reap it.
			}
			continue
		}
		b.mu.Lock()
		sub.lastActive = now
		b.mu.Unlock()
	}

	if relay && b.rdb != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			b.rdb.Publish(context.Background(), relayChannel, payload)
		}
	}
}

func (b *Broadcaster) removalLoop() {
	for {
		select {
		case r := <-b.removals:
			b.remove(r.chatID, r.subID)
		case <-b.stop:
			return
		}
	}
}

func (b *Broadcaster) remove(chatID, subID string) {
	b.mu.Lock()
	subs := b.subs[chatID]
	for i, sub := range subs {
		if sub.id != subID {
			continue
		}
		b.subs[chatID] = append(subs[:i], subs[i+1:]...)
		if len(b.subs[chatID]) == 0 {
			delete(b.subs, chatID)
		}
		b.mu.Unlock()

		sub.sink.Close()
		if b.logger != nil {
			b.logger.Info("Broadcaster", "Subscriber removed", map[string]interface{}{
				"chat_id": chatID,
				"sub_id":  subID,
			})
		}
		return
	}
	b.mu.Unlock()
}

// sweepLoop reaps subscribers with no successful write for staleThreshold.
func (b *Broadcaster) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-b.stop:
			return
		}
	}
}

func (b *Broadcaster) sweep() {
	cutoff := b.now().Add(-staleThreshold)

	b.mu.RLock()
	var stale []removal
	for chatID, subs := range b.subs {
		for _, sub := range subs {
			if sub.lastActive.Before(cutoff) {
				stale = append(stale, removal{chatID: chatID, subID: sub.id})
			}
		}
	}
	b.mu.RUnlock()

	for _, r := range stale {
		b.remove(r.chatID, r.subID)
	}
}

// subscribeToRedis mirrors events published by other instances into the
// local subscriber set.
func (b *Broadcaster) subscribeToRedis() {
	ctx := context.Background()
	pubsub := b.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event StreamEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				if b.logger != nil {
					b.logger.Warn("Broadcaster", "Relay payload parse failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
				continue
			}
			// Local-only delivery; never re-relay what arrived via relay.
			b.broadcast(event, false)
		case <-b.stop:
			return
		}
	}
}

// Stop ends the background loops and closes every sink.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })

	b.mu.Lock()
	defer b.mu.Unlock()
	for chatID, subs := range b.subs {
		for _, sub := range subs {
			sub.sink.Close()
		}
		delete(b.subs, chatID)
	}
}

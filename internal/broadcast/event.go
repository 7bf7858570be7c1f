package broadcast

import "time"

// Stream event types pushed to chat subscribers.
const (
	EventConnected        = "connected"
	EventToken            = "token"
	EventMessageComplete  = "message_complete"
	EventMessageCancelled = "message_cancelled"
	EventPhaseUpdate      = "phase_update"
)

// StreamEvent is the unit of fan-out: one token, completion or
// cancellation notice for a chat. Token events carry the increment in
// Content; completions carry FinalContent; cancellations carry whatever
// was streamed before the cancel arrived in PartialContent.
type StreamEvent struct {
	Type           string    `json:"type"`
	ChatID         string    `json:"chatId"`
	ConnectionID   string    `json:"connectionId,omitempty"`
	MessageID      string    `json:"messageId,omitempty"`
	Content        string    `json:"content,omitempty"`
	FinalContent   string    `json:"finalContent,omitempty"`
	PartialContent string    `json:"partialContent,omitempty"`
	Phase          string    `json:"phase,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

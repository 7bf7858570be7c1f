package websocket

import (
	"ai-orchestrator-be/internal/broadcast"

	"github.com/gofiber/websocket/v2"
)

// ServeWs subscribes the connection to a chat stream and pumps events
// until either side goes away.
func ServeWs(b *broadcast.Broadcaster, c *websocket.Conn, chatID string) {
	sink := broadcast.NewChannelSink(256)
	client := &Client{
		broadcaster: b,
		conn:        c,
		chatID:      chatID,
		sink:        sink,
		subID:       b.Subscribe(chatID, sink),
	}

	go client.writePump()
	client.readPump()
}

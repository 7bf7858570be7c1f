package controller

import (
	"bufio"
	"encoding/json"

	"ai-orchestrator-be/internal/broadcast"
	"ai-orchestrator-be/internal/pkg/logger"
	internalWS "ai-orchestrator-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

type IStreamController interface {
	RegisterRoutes(r fiber.Router)
	StreamEvents(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type streamController struct {
	broadcaster *broadcast.Broadcaster
	logger      logger.ILogger
}

func NewStreamController(b *broadcast.Broadcaster, log logger.ILogger) IStreamController {
	return &streamController{
		broadcaster: b,
		logger:      log,
	}
}

func (c *streamController) RegisterRoutes(r fiber.Router) {
	r.Get("/api/chats/:chatId/events", c.StreamEvents)
	r.Get("/ws/chats/:chatId", c.ServeWs)
}

// StreamEvents serves the chat's event stream over SSE. Response
// buffering is bypassed with a body stream writer so tokens reach the
// client as they are produced.
func (c *streamController) StreamEvents(ctx *fiber.Ctx) error {
	chatID := ctx.Params("chatId")

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	broadcaster := c.broadcaster
	log := c.logger

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		sink := broadcast.NewChannelSink(256)
		subID := broadcaster.Subscribe(chatID, sink)
		defer broadcaster.Unsubscribe(chatID, subID)

		for {
			select {
			case event, ok := <-sink.Events():
				if !ok {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				if _, err := w.WriteString("event: " + event.Type + "\ndata: " + string(payload) + "\n\n"); err != nil {
					return
				}
				// A failed flush means the client went away; the
				// deferred unsubscribe cleans up the sink.
				if err := w.Flush(); err != nil {
					log.Debug("StreamController", "SSE client disconnected", map[string]interface{}{
						"chat_id": chatID,
					})
					return
				}
			case <-sink.Done():
				return
			}
		}
	}))

	return nil
}

// ServeWs upgrades the connection and attaches it to the broadcaster as
// a websocket subscriber for the chat.
func (c *streamController) ServeWs(ctx *fiber.Ctx) error {
	chatID := ctx.Params("chatId")

	if websocket.IsWebSocketUpgrade(ctx) {
		broadcaster := c.broadcaster
		log := c.logger
		return websocket.New(func(conn *websocket.Conn) {
			log.Info("StreamController", "Starting WebSocket session", map[string]interface{}{"chat_id": chatID})
			internalWS.ServeWs(broadcaster, conn, chatID)
			log.Info("StreamController", "WebSocket session ended", map[string]interface{}{"chat_id": chatID})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}

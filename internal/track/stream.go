package track

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/track-room-system/internal/broadcast"
	"github.com/track-room-system/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

// subscribeSSE streams encoded event frames over a long-lived HTTP response.
// The encoding comes from the X-Accept header, read once here; each frame is
// written and flushed as soon as the broadcaster delivers it.
func (h *Handler) subscribeSSE(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	enc, err := wire.NegotiateEncoding(c.GetHeader(wire.HeaderXAccept))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := h.service.Subscribe(c.Request.Context(), roomID, enc)
	if err != nil {
		respondError(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case frame := <-stream.Frames():
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

// subscribeWebSocket streams the same frames over a websocket: text messages
// for JSON clients, binary for protobuf.
func (h *Handler) subscribeWebSocket(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	enc, err := wire.NegotiateEncoding(c.GetHeader(wire.HeaderXAccept))
	if err != nil {
		// Browsers cannot set custom headers on websocket dials.
		enc, err = wire.NegotiateEncoding(c.Query("encoding"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	stream, err := h.service.Subscribe(c.Request.Context(), roomID, enc)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		stream.Close()
		log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	messageType := websocket.TextMessage
	if enc == wire.EncodingProtobuf {
		messageType = websocket.BinaryMessage
	}

	done := make(chan struct{})
	go drainReads(conn, stream, done)

	defer conn.Close()
	defer stream.Close()
	for {
		select {
		case <-done:
			return
		case frame := <-stream.Frames():
			if err := conn.WriteMessage(messageType, frame); err != nil {
				return
			}
		}
	}
}

// drainReads consumes inbound messages so close frames are processed; the
// read error marks the stream dead and unblocks the write loop.
func drainReads(conn *websocket.Conn, stream *broadcast.ClientStream, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			stream.Close()
			return
		}
	}
}

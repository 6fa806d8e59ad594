package broadcast

import (
	"sync/atomic"

	"github.com/track-room-system/internal/wire"
)

// ClientStream is one subscriber's outbound channel plus its negotiated
// encoding. Frames are fully self-contained encoded events; the sequence has
// no end while the process runs and cannot be restarted, only re-subscribed.
//
// The broadcaster never closes the channel. The transport calls Close when
// the underlying connection drops, which makes every later enqueue fail and
// lets the next heartbeat tick reap the stream.
type ClientStream struct {
	frames chan []byte
	enc    wire.Encoding
	closed atomic.Bool
}

func newClientStream(enc wire.Encoding) *ClientStream {
	return &ClientStream{
		frames: make(chan []byte, channelCapacity),
		enc:    enc,
	}
}

// Frames returns the receiving half of the stream.
func (s *ClientStream) Frames() <-chan []byte {
	return s.frames
}

// Encoding returns the encoding negotiated at subscribe time.
func (s *ClientStream) Encoding() wire.Encoding {
	return s.enc
}

// Close marks the stream dead. Called by the transport when the connection
// drops; there is no other consumer-side lifecycle signal.
func (s *ClientStream) Close() {
	s.closed.Store(true)
}

// trySend enqueues a frame without blocking. It fails when the stream is
// closed or its buffer is full; the caller decides whether that drops the
// frame or reaps the client.
func (s *ClientStream) trySend(frame []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

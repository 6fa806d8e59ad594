package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/track-room-system/internal/wire"
)

const (
	// channelCapacity bounds how many frames a slow consumer may have pending
	// before deliveries to it start being dropped.
	channelCapacity = 100
	// heartbeatInterval is how often dead streams are probed and reaped. A
	// disconnected client can appear live for at most one interval.
	heartbeatInterval = 10 * time.Second
)

// Broadcaster is the in-memory publish/subscribe hub for one room. Delivery
// is at-most-once and best-effort: a frame to a client whose buffer is full
// is dropped rather than letting that client stall the room. The heartbeat
// cycle is the only mechanism that detects and removes dead clients; there is
// no explicit unsubscribe.
type Broadcaster struct {
	roomID uuid.UUID

	// mu guards the client set only. It is never held across encoding or an
	// enqueue attempt; deliveries work on a snapshot.
	mu      sync.Mutex
	clients []*ClientStream

	// sendMu serializes Send and heartbeat deliveries so every client
	// observes events in the order the calls were issued on this hub.
	sendMu sync.Mutex
}

func newBroadcaster(roomID uuid.UUID) *Broadcaster {
	return &Broadcaster{roomID: roomID}
}

// run drives the heartbeat cycle until ctx is cancelled. It never stops on an
// empty client set; the registry owns its lifetime.
func (b *Broadcaster) run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.removeStaleClients()
		}
	}
}

// NewClient allocates a stream for the given encoding, enqueues the
// InternalStatus/Connected frame and registers the stream. Failing to encode
// or enqueue that first frame is fatal for the connection attempt and leaves
// nothing registered.
func (b *Broadcaster) NewClient(enc wire.Encoding) (*ClientStream, error) {
	frame, err := wire.Marshal(wire.StatusEvent(wire.StatusConnected), enc)
	if err != nil {
		return nil, fmt.Errorf("broadcast: encode connected frame: %w", err)
	}

	client := newClientStream(enc)
	if !client.trySend(frame) {
		return nil, fmt.Errorf("broadcast: enqueue connected frame")
	}

	b.mu.Lock()
	b.clients = append(b.clients, client)
	n := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("room_id", b.roomID.String()).
		Str("encoding", enc.String()).
		Int("clients", n).
		Msg("stream subscribed")
	return client, nil
}

// Send fans the event out to every current client. The event is encoded once
// per distinct encoding in use, not once per client. Per-client delivery
// failures (closed stream, full buffer) drop that client's frame and are
// never surfaced; only an encoding failure errors, and it leaves the
// broadcaster intact.
func (b *Broadcaster) Send(ev wire.Event) error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	clients := b.snapshot()
	frames, err := encodeFrames(ev, clients)
	if err != nil {
		return err
	}

	for _, c := range clients {
		c.trySend(frames[c.enc])
	}
	return nil
}

// removeStaleClients encodes a Ping once per encoding in use, attempts a
// non-blocking enqueue to every client and permanently drops the ones whose
// enqueue fails.
func (b *Broadcaster) removeStaleClients() {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	clients := b.snapshot()
	if len(clients) == 0 {
		return
	}

	frames, err := encodeFrames(wire.StatusEvent(wire.StatusPing), clients)
	if err != nil {
		log.Warn().Err(err).Str("room_id", b.roomID.String()).Msg("failed to encode heartbeat")
		return
	}

	// Track failures, not survivors: a client that subscribed after the
	// snapshot was taken must not be reaped.
	dead := make(map[*ClientStream]bool, len(clients))
	for _, c := range clients {
		if !c.trySend(frames[c.enc]) {
			dead[c] = true
		}
	}
	if len(dead) == 0 {
		return
	}

	b.mu.Lock()
	kept := b.clients[:0]
	for _, c := range b.clients {
		if !dead[c] {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(b.clients); i++ {
		b.clients[i] = nil
	}
	b.clients = kept
	remaining := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("room_id", b.roomID.String()).
		Int("reaped", len(dead)).
		Int("clients", remaining).
		Msg("reaped stale streams")
}

func (b *Broadcaster) snapshot() []*ClientStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*ClientStream, len(b.clients))
	copy(out, b.clients)
	return out
}

// clientCount reports the current size of the client set.
func (b *Broadcaster) clientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// encodeFrames encodes ev once per distinct encoding present among clients.
func encodeFrames(ev wire.Event, clients []*ClientStream) (map[wire.Encoding][]byte, error) {
	frames := make(map[wire.Encoding][]byte, 2)
	for _, c := range clients {
		if _, ok := frames[c.enc]; ok {
			continue
		}
		frame, err := wire.Marshal(ev, c.enc)
		if err != nil {
			return nil, fmt.Errorf("broadcast: encode %s event as %s: %w", ev.Kind, c.enc, err)
		}
		frames[c.enc] = frame
	}
	return frames, nil
}

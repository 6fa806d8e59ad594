package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/track-room-system/internal/wire"
)

// Registry maps room ids to their broadcasters. A broadcaster is created
// lazily on first use and its heartbeat goroutine starts with it. Entries are
// never removed while the registry lives; Close stops every heartbeat.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	rooms map[uuid.UUID]*Broadcaster
}

func NewRegistry() *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[uuid.UUID]*Broadcaster),
	}
}

// GetOrCreate returns the room's broadcaster, creating and starting it if
// this is the room's first use. Safe for concurrent callers; exactly one
// broadcaster ever exists per room id.
func (r *Registry) GetOrCreate(roomID uuid.UUID) *Broadcaster {
	r.mu.RLock()
	b, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.rooms[roomID]; ok {
		return b
	}
	b = newBroadcaster(roomID)
	r.rooms[roomID] = b
	go b.run(r.ctx)
	return b
}

// Subscribe attaches a new client stream to the room's broadcaster.
func (r *Registry) Subscribe(roomID uuid.UUID, enc wire.Encoding) (*ClientStream, error) {
	return r.GetOrCreate(roomID).NewClient(enc)
}

// Publish fans an event out to the room's subscribers. Per-client delivery
// failures are absorbed by the broadcaster; only an encoding failure errors.
func (r *Registry) Publish(roomID uuid.UUID, ev wire.Event) error {
	return r.GetOrCreate(roomID).Send(ev)
}

// Close cancels every broadcaster's heartbeat goroutine.
func (r *Registry) Close() {
	r.cancel()
}

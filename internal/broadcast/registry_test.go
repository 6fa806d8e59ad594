package broadcast

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/track-room-system/internal/wire"
)

func TestGetOrCreateReturnsSameBroadcaster(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	roomID := uuid.New()
	b := r.GetOrCreate(roomID)
	assert.Same(t, b, r.GetOrCreate(roomID))
	assert.NotSame(t, b, r.GetOrCreate(uuid.New()))
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	roomID := uuid.New()
	results := make([]*Broadcaster, 50)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate(roomID)
		}(i)
	}
	wg.Wait()

	for _, b := range results {
		assert.Same(t, results[0], b)
	}
}

func TestPublishReachesSubscribers(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	roomID := uuid.New()
	stream, err := r.Subscribe(roomID, wire.EncodingJSON)
	require.NoError(t, err)

	// First frame is the Connected signal.
	ev, err := wire.Unmarshal(<-stream.Frames(), wire.EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusConnected, ev.Status)

	require.NoError(t, r.Publish(roomID, wire.DataEvent(wire.TrackPayload{
		TrackID:  uuid.NewString(),
		Name:     "Take Five",
		Artist:   "The Dave Brubeck Quartet",
		Duration: 324,
		Position: 1,
	})))

	ev, err = wire.Unmarshal(<-stream.Frames(), wire.EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, wire.EventData, ev.Kind)
	assert.Equal(t, "Take Five", ev.Track.Name)
}

func TestPublishToOneRoomDoesNotLeakToAnother(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	roomA := uuid.New()
	roomB := uuid.New()

	streamA, err := r.Subscribe(roomA, wire.EncodingJSON)
	require.NoError(t, err)
	streamB, err := r.Subscribe(roomB, wire.EncodingJSON)
	require.NoError(t, err)
	<-streamA.Frames()
	<-streamB.Frames()

	require.NoError(t, r.Publish(roomA, wire.StatusEvent(wire.StatusPing)))

	select {
	case frame := <-streamB.Frames():
		t.Fatalf("room B received room A's frame: %q", frame)
	default:
	}
	assert.NotEmpty(t, <-streamA.Frames())
}

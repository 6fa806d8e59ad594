package broadcast

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/track-room-system/internal/wire"
)

func mustClient(t *testing.T, b *Broadcaster, enc wire.Encoding) *ClientStream {
	t.Helper()
	client, err := b.NewClient(enc)
	require.NoError(t, err)
	return client
}

// receive pops one frame without blocking the test forever on a bug.
func receive(t *testing.T, s *ClientStream) []byte {
	t.Helper()
	select {
	case frame := <-s.Frames():
		return frame
	default:
		t.Fatal("expected a pending frame")
		return nil
	}
}

func expectEmpty(t *testing.T, s *ClientStream) {
	t.Helper()
	select {
	case frame := <-s.Frames():
		t.Fatalf("expected no frame, got %q", frame)
	default:
	}
}

func sampleTrack() wire.TrackPayload {
	return wire.TrackPayload{
		TrackID:  uuid.NewString(),
		Name:     "Bohemian Rhapsody",
		Artist:   "Queen",
		Duration: 354,
		Position: 1,
	}
}

func TestNewClientReceivesConnectedFrame(t *testing.T) {
	b := newBroadcaster(uuid.New())
	client := mustClient(t, b, wire.EncodingJSON)

	ev, err := wire.Unmarshal(receive(t, client), wire.EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, wire.EventInternalStatus, ev.Kind)
	assert.Equal(t, wire.StatusConnected, ev.Status)
	assert.Equal(t, 1, b.clientCount())
}

func TestSendFansOutToAllEncodings(t *testing.T) {
	b := newBroadcaster(uuid.New())
	json1 := mustClient(t, b, wire.EncodingJSON)
	json2 := mustClient(t, b, wire.EncodingJSON)
	proto := mustClient(t, b, wire.EncodingProtobuf)

	// Drain the Connected frames.
	receive(t, json1)
	receive(t, json2)
	receive(t, proto)

	want := sampleTrack()
	require.NoError(t, b.Send(wire.DataEvent(want)))

	for _, client := range []*ClientStream{json1, json2, proto} {
		ev, err := wire.Unmarshal(receive(t, client), client.Encoding())
		require.NoError(t, err)
		assert.Equal(t, wire.EventData, ev.Kind)
		require.NotNil(t, ev.Track)
		assert.Equal(t, want, *ev.Track)
		expectEmpty(t, client)
	}
}

func TestSendSharesFramesPerEncoding(t *testing.T) {
	b := newBroadcaster(uuid.New())
	json1 := mustClient(t, b, wire.EncodingJSON)
	json2 := mustClient(t, b, wire.EncodingJSON)
	receive(t, json1)
	receive(t, json2)

	require.NoError(t, b.Send(wire.StatusEvent(wire.StatusPing)))
	assert.Equal(t, receive(t, json1), receive(t, json2))
}

func TestHeartbeatReapsClosedClient(t *testing.T) {
	b := newBroadcaster(uuid.New())
	live := mustClient(t, b, wire.EncodingJSON)
	dead := mustClient(t, b, wire.EncodingProtobuf)
	receive(t, live)
	receive(t, dead)

	dead.Close()
	b.removeStaleClients()

	assert.Equal(t, 1, b.clientCount())

	// The survivor got the ping; the closed stream gets nothing further.
	ev, err := wire.Unmarshal(receive(t, live), wire.EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusPing, ev.Status)

	require.NoError(t, b.Send(wire.DataEvent(sampleTrack())))
	receive(t, live)
	expectEmpty(t, dead)
}

func TestHeartbeatReapsFullClient(t *testing.T) {
	b := newBroadcaster(uuid.New())
	stalled := mustClient(t, b, wire.EncodingJSON)

	// Fill the stalled consumer's buffer to capacity (Connected took a slot).
	for i := 0; i < channelCapacity-1; i++ {
		require.NoError(t, b.Send(wire.StatusEvent(wire.StatusPing)))
	}

	b.removeStaleClients()
	assert.Equal(t, 0, b.clientCount())
	_ = stalled
}

func TestSendDropsForFullClientWithoutBlocking(t *testing.T) {
	b := newBroadcaster(uuid.New())
	stalled := mustClient(t, b, wire.EncodingJSON)
	healthy := mustClient(t, b, wire.EncodingJSON)
	receive(t, healthy)

	for i := 0; i < channelCapacity-1; i++ {
		require.NoError(t, b.Send(wire.StatusEvent(wire.StatusPing)))
		receive(t, healthy)
	}

	// stalled's buffer is now full; the next send must not block or fail and
	// must still reach the healthy client.
	require.NoError(t, b.Send(wire.DataEvent(sampleTrack())))
	ev, err := wire.Unmarshal(receive(t, healthy), wire.EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, wire.EventData, ev.Kind)

	assert.Len(t, stalled.Frames(), channelCapacity)
}

func TestSendPreservesOrderPerClient(t *testing.T) {
	b := newBroadcaster(uuid.New())
	client := mustClient(t, b, wire.EncodingJSON)
	receive(t, client)

	for i := int64(1); i <= 10; i++ {
		track := sampleTrack()
		track.Position = i
		require.NoError(t, b.Send(wire.DataEvent(track)))
	}

	for i := int64(1); i <= 10; i++ {
		ev, err := wire.Unmarshal(receive(t, client), wire.EncodingJSON)
		require.NoError(t, err)
		require.NotNil(t, ev.Track)
		assert.Equal(t, i, ev.Track.Position)
	}
}

func TestConcurrentSubscribeAndSend(t *testing.T) {
	b := newBroadcaster(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := b.NewClient(wire.EncodingJSON)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Send(wire.StatusEvent(wire.StatusPing)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, b.clientCount())
}

package track

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/track-room-system/internal/broadcast"
	"github.com/track-room-system/internal/wire"
	"github.com/track-room-system/pkg/database"
	"github.com/track-room-system/pkg/models"
)

func newTestService(t *testing.T) (*Service, *database.Store) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store, err := database.NewStore(db)
	require.NoError(t, err)

	hub := broadcast.NewRegistry()
	t.Cleanup(hub.Close)

	return NewService(store, hub, nil, nil), store
}

func createPretrack(t *testing.T, store *database.Store, name string) uuid.UUID {
	t.Helper()
	pretrack := &models.Pretrack{
		Name:       name,
		Artist:     "test artist",
		Duration:   240,
		Platform:   models.PlatformYouTube,
		PlatformID: uuid.NewString(),
	}
	require.NoError(t, store.CreatePretrack(context.Background(), pretrack))
	return pretrack.ID
}

func receiveEvent(t *testing.T, stream *broadcast.ClientStream) wire.Event {
	t.Helper()
	select {
	case frame := <-stream.Frames():
		event, err := wire.Unmarshal(frame, stream.Encoding())
		require.NoError(t, err)
		return event
	default:
		t.Fatal("expected a frame on the stream")
		return wire.Event{}
	}
}

func TestAddTrackQueuesAndBroadcasts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	room, owner, err := store.CreateRoom(ctx, "listening party", "alice")
	require.NoError(t, err)

	stream, err := svc.Subscribe(ctx, room.ID, wire.EncodingJSON)
	require.NoError(t, err)
	defer stream.Close()

	connected := receiveEvent(t, stream)
	assert.Equal(t, wire.EventInternalStatus, connected.Kind)
	assert.Equal(t, wire.StatusConnected, connected.Status)

	pretrackID := createPretrack(t, store, "Clair de Lune")
	queued, err := svc.AddTrack(ctx, room.ID, owner.ID, pretrackID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), queued.Position)
	assert.Equal(t, "Clair de Lune", queued.Name)
	assert.Equal(t, owner.ID, queued.AddedBy)

	data := receiveEvent(t, stream)
	assert.Equal(t, wire.EventData, data.Kind)
	require.NotNil(t, data.Track)
	assert.Equal(t, queued.ID.String(), data.Track.TrackID)
	assert.Equal(t, int64(1), data.Track.Position)
}

func TestAddTrackRejectsNonMember(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	room, _, err := store.CreateRoom(ctx, "listening party", "alice")
	require.NoError(t, err)
	stranger, err := store.CreateMember(ctx, "mallory")
	require.NoError(t, err)

	pretrackID := createPretrack(t, store, "intruder song")
	_, err = svc.AddTrack(ctx, room.ID, stranger.ID, pretrackID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Nothing leaked into the queue.
	queue, err := svc.ListQueue(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestAddTrackSamePretrackTwice(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	room, owner, err := store.CreateRoom(ctx, "listening party", "alice")
	require.NoError(t, err)

	pretrackID := createPretrack(t, store, "one shot")
	_, err = svc.AddTrack(ctx, room.ID, owner.ID, pretrackID)
	require.NoError(t, err)

	_, err = svc.AddTrack(ctx, room.ID, owner.ID, pretrackID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestListQueueOrdersByPosition(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	room, owner, err := store.CreateRoom(ctx, "listening party", "alice")
	require.NoError(t, err)

	names := []string{"first", "second", "third"}
	for _, name := range names {
		_, err := svc.AddTrack(ctx, room.ID, owner.ID, createPretrack(t, store, name))
		require.NoError(t, err)
	}

	queue, err := svc.ListQueue(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	for i, name := range names {
		assert.Equal(t, name, queue[i].Name)
		assert.Equal(t, int64(i+1), queue[i].Position)
	}
}

func TestSubscribeUnknownRoom(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Subscribe(context.Background(), uuid.New(), wire.EncodingProtobuf)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAddTrackUnknownPretrack(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	room, owner, err := store.CreateRoom(ctx, "listening party", "alice")
	require.NoError(t, err)

	_, err = svc.AddTrack(ctx, room.ID, owner.ID, uuid.New())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

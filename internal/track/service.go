package track

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/track-room-system/internal/broadcast"
	"github.com/track-room-system/internal/wire"
	"github.com/track-room-system/internal/youtube"
	"github.com/track-room-system/pkg/database"
	"github.com/track-room-system/pkg/events"
	"github.com/track-room-system/pkg/models"
)

// ErrForbidden means the caller is not a member of the room it is acting on.
var ErrForbidden = errors.New("member is not in room")

type Service struct {
	store   *database.Store
	hub     *broadcast.Registry
	events  *events.Publisher
	youtube *youtube.Client
}

func NewService(store *database.Store, hub *broadcast.Registry, publisher *events.Publisher, yt *youtube.Client) *Service {
	return &Service{
		store:   store,
		hub:     hub,
		events:  publisher,
		youtube: yt,
	}
}

// Candidate is an unpersisted search result a client may turn into a
// pretrack.
type Candidate struct {
	YouTubeID    string `json:"youtube_id"`
	Name         string `json:"name"`
	Artist       string `json:"artist"`
	Duration     int64  `json:"duration"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FindYouTube looks a video up and stores it as a pretrack, returning the
// pretrack id for a later AddTrack call.
func (s *Service) FindYouTube(ctx context.Context, roomID, memberID uuid.UUID, youtubeID string) (uuid.UUID, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return uuid.Nil, err
	}
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return uuid.Nil, err
	}

	video, err := s.youtube.GetVideo(ctx, youtubeID)
	if err != nil {
		return uuid.Nil, err
	}
	if video == nil {
		return uuid.Nil, fmt.Errorf("youtube video %q: %w", youtubeID, database.ErrNotFound)
	}

	pretrack := &models.Pretrack{
		Name:         video.Title,
		Artist:       video.ChannelTitle,
		Duration:     video.Duration,
		ThumbnailURL: video.ThumbnailURL,
		Platform:     models.PlatformYouTube,
		PlatformID:   video.ID,
	}
	if err := s.store.CreatePretrack(ctx, pretrack); err != nil {
		return uuid.Nil, err
	}
	return pretrack.ID, nil
}

// Search returns candidate track metadata for a free-text query.
func (s *Service) Search(ctx context.Context, query string) ([]Candidate, error) {
	videos, err := s.youtube.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(videos))
	for i, v := range videos {
		candidates[i] = Candidate{
			YouTubeID:    v.ID,
			Name:         v.Title,
			Artist:       v.ChannelTitle,
			Duration:     v.Duration,
			ThumbnailURL: v.ThumbnailURL,
		}
	}
	return candidates, nil
}

// AddTrack promotes the pretrack into the room's queue and fans the new
// track out to every subscriber. The caller must be a room member.
func (s *Service) AddTrack(ctx context.Context, roomID, memberID, pretrackID uuid.UUID) (*database.QueuedTrack, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return nil, err
	}

	isMember, err := s.store.IsMember(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrForbidden
	}

	track, err := s.store.PromoteTrack(ctx, pretrackID, roomID)
	if err != nil {
		return nil, err
	}

	position, err := s.store.Enqueue(ctx, roomID, track.ID, memberID)
	if err != nil {
		return nil, err
	}

	queued := &database.QueuedTrack{Track: *track, Position: position, AddedBy: memberID}
	s.broadcastTrack(roomID, queued)
	s.auditTrack(ctx, roomID, memberID, queued)
	return queued, nil
}

// ListQueue returns the room's queue ordered by position.
func (s *Service) ListQueue(ctx context.Context, roomID uuid.UUID) ([]database.QueuedTrack, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.ListEnqueued(ctx, roomID)
}

// Subscribe attaches a new client stream to the room's broadcaster.
func (s *Service) Subscribe(ctx context.Context, roomID uuid.UUID, enc wire.Encoding) (*broadcast.ClientStream, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(roomID, enc)
}

func (s *Service) broadcastTrack(roomID uuid.UUID, queued *database.QueuedTrack) {
	err := s.hub.Publish(roomID, wire.DataEvent(wire.TrackPayload{
		TrackID:      queued.ID.String(),
		Name:         queued.Name,
		Artist:       queued.Artist,
		Duration:     queued.Duration,
		ThumbnailURL: queued.ThumbnailURL,
		Position:     queued.Position,
	}))
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID.String()).Msg("failed to broadcast track")
	}
}

func (s *Service) auditTrack(ctx context.Context, roomID, memberID uuid.UUID, queued *database.QueuedTrack) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, events.EventTypeTrackAdded, roomID.String(), memberID.String(), events.TrackAddedPayload{
		TrackID:   queued.ID.String(),
		TrackName: queued.Name,
		Artist:    queued.Artist,
		Position:  queued.Position,
	})
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID.String()).Msg("failed to publish audit event")
	}
}

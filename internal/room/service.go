package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/track-room-system/internal/auth"
	"github.com/track-room-system/pkg/database"
	"github.com/track-room-system/pkg/events"
	"github.com/track-room-system/pkg/models"
	"github.com/track-room-system/pkg/redis"
)

type Service struct {
	store  *database.Store
	cache  *redis.RoomCache // optional
	events *events.Publisher
	tokens *auth.TokenIssuer
}

func NewService(store *database.Store, cache *redis.RoomCache, publisher *events.Publisher, tokens *auth.TokenIssuer) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		events: publisher,
		tokens: tokens,
	}
}

// Info is the room as returned to clients, including the resolved owner name.
type Info struct {
	RoomID    uuid.UUID `json:"room_uuid"`
	Name      string    `json:"room_name"`
	JoinCode  string    `json:"join_code"`
	OwnerID   uuid.UUID `json:"owner_uuid"`
	OwnerName string    `json:"owner_name"`
}

// Session is the outcome of creating or joining a room.
type Session struct {
	RoomID   uuid.UUID `json:"room_uuid"`
	MemberID uuid.UUID `json:"member_uuid"`
	JoinCode string    `json:"join_code"`
	Token    string    `json:"token"`
}

// MemberView is one row of a room member listing.
type MemberView struct {
	ID       uuid.UUID `json:"uuid"`
	Name     string    `json:"name"`
	Owner    bool      `json:"owner"`
	JoinedAt int64     `json:"joined_at"`
}

// LeaveResult reports what happened when a member left.
type LeaveResult struct {
	Deleted  bool       `json:"deleted"`
	NewOwner *uuid.UUID `json:"new_owner,omitempty"`
}

// CreateRoom creates a room owned by a new member and returns their session.
func (s *Service) CreateRoom(ctx context.Context, roomName, ownerName string) (*Session, error) {
	room, owner, err := s.store.CreateRoom(ctx, roomName, ownerName)
	if err != nil {
		return nil, err
	}

	s.cacheRoom(ctx, room)
	s.audit(ctx, events.EventTypeRoomCreated, room.ID, owner.ID, nil)

	token, err := s.tokens.Issue(owner.ID, room.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		RoomID:   room.ID,
		MemberID: owner.ID,
		JoinCode: room.JoinCode,
		Token:    token,
	}, nil
}

// JoinRoom creates a member and adds it to the room behind the join code.
func (s *Service) JoinRoom(ctx context.Context, joinCode, memberName string) (*Session, error) {
	room, err := s.store.GetRoomByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}

	member, err := s.store.CreateMember(ctx, memberName)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddMember(ctx, room.ID, member.ID); err != nil {
		return nil, err
	}

	s.audit(ctx, events.EventTypeMemberJoined, room.ID, member.ID, events.MemberJoinedPayload{
		MemberName: member.DisplayName,
	})

	token, err := s.tokens.Issue(member.ID, room.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		RoomID:   room.ID,
		MemberID: member.ID,
		JoinCode: room.JoinCode,
		Token:    token,
	}, nil
}

// GetRoom returns room info with the owner's name resolved. A room whose
// owner record is missing is a consistency violation, reported as a conflict.
func (s *Service) GetRoom(ctx context.Context, roomID uuid.UUID) (*Info, error) {
	room, err := s.getRoomCached(ctx, roomID)
	if err != nil {
		return nil, err
	}

	owner, err := s.store.GetMember(ctx, room.OwnerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("room %s owner does not exist: %w", roomID, database.ErrConflict)
		}
		return nil, err
	}

	return &Info{
		RoomID:    room.ID,
		Name:      room.Name,
		JoinCode:  room.JoinCode,
		OwnerID:   room.OwnerID,
		OwnerName: owner.DisplayName,
	}, nil
}

// ListMembers returns the room's members, earliest joiner first.
func (s *Service) ListMembers(ctx context.Context, roomID uuid.UUID) ([]MemberView, error) {
	room, err := s.getRoomCached(ctx, roomID)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	views := make([]MemberView, len(records))
	for i, r := range records {
		views[i] = MemberView{
			ID:       r.ID,
			Name:     r.DisplayName,
			Owner:    r.ID == room.OwnerID,
			JoinedAt: r.JoinedAt,
		}
	}
	return views, nil
}

// LeaveRoom removes the member. Ownership moves to the earliest remaining
// joiner; when the last member leaves, the room is deleted.
func (s *Service) LeaveRoom(ctx context.Context, roomID, memberID uuid.UUID) (*LeaveResult, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	removed, err := s.store.RemoveMember(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}

	// Ownership may have changed either way; drop the cached record.
	s.evictRoom(ctx, roomID)

	if removed.LastMember {
		if err := s.store.DeleteRoom(ctx, roomID); err != nil {
			return nil, err
		}
		s.audit(ctx, events.EventTypeMemberLeft, roomID, memberID, events.MemberLeftPayload{RoomDeleted: true})
		s.audit(ctx, events.EventTypeRoomDeleted, roomID, memberID, nil)
		return &LeaveResult{Deleted: true}, nil
	}

	s.audit(ctx, events.EventTypeMemberLeft, roomID, memberID, events.MemberLeftPayload{
		NewOwnerID: removed.NewOwner.String(),
	})
	newOwner := removed.NewOwner
	return &LeaveResult{NewOwner: &newOwner}, nil
}

// GetMember returns a member's profile.
func (s *Service) GetMember(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	return s.store.GetMember(ctx, memberID)
}

func (s *Service) getRoomCached(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	if s.cache != nil {
		if room, err := s.cache.Get(ctx, roomID.String()); err == nil {
			return room, nil
		}
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.cacheRoom(ctx, room)
	return room, nil
}

func (s *Service) cacheRoom(ctx context.Context, room *models.Room) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, room); err != nil {
		log.Warn().Err(err).Str("room_id", room.ID.String()).Msg("failed to cache room")
	}
}

func (s *Service) evictRoom(ctx context.Context, roomID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, roomID.String()); err != nil {
		log.Warn().Err(err).Str("room_id", roomID.String()).Msg("failed to evict cached room")
	}
}

// audit writes an event to the kafka stream; failures are logged, never
// surfaced.
func (s *Service) audit(ctx context.Context, eventType events.EventType, roomID, memberID uuid.UUID, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, roomID.String(), memberID.String(), payload); err != nil {
		log.Warn().Err(err).
			Str("event_type", string(eventType)).
			Str("room_id", roomID.String()).
			Msg("failed to publish audit event")
	}
}

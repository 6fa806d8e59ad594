package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/track-room-system/pkg/models"
)

var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means persisted state is internally inconsistent for the
	// requested operation.
	ErrConflict = errors.New("conflicting state")
)

const joinCodeLength = 6

const joinCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateJoinCode returns a 6-character uppercase alphanumeric code.
// Uniqueness is enforced by the re-check loop in CreateRoom, not here.
func GenerateJoinCode() string {
	code := make([]byte, joinCodeLength)
	for i := range code {
		code[i] = joinCodeCharset[rand.Intn(len(joinCodeCharset))]
	}
	return string(code)
}

// enqueueRetries bounds how many times a lost read-then-insert race is
// retried before giving up.
const enqueueRetries = 5

// Store owns every persisted record: rooms, members, pretracks, tracks and
// the queue. All consistency-sensitive mutations run in a single transaction.
type Store struct {
	*gorm.DB

	// joinCode generates candidate room codes; replaced in tests to force
	// collisions.
	joinCode func() string
}

// MemberRecord is a room member joined with its profile.
type MemberRecord struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    int64     `json:"joined_at"`
}

// QueuedTrack is a track joined with its queue entry.
type QueuedTrack struct {
	models.Track
	Position int64     `json:"position"`
	AddedBy  uuid.UUID `json:"added_by"`
}

// RemoveResult reports the outcome of removing a member from a room.
type RemoveResult struct {
	// LastMember is set when the departing member was the room's last; the
	// caller is expected to delete the room.
	LastMember bool
	// NewOwner is the earliest-joined remaining member, valid when
	// LastMember is false.
	NewOwner uuid.UUID
}

// Room operations

// CreateRoom creates the room, its owning member and the owner's membership
// in one transaction. The join code is regenerated until it collides with no
// active room.
func (s *Store) CreateRoom(ctx context.Context, roomName, ownerName string) (*models.Room, *models.Member, error) {
	owner := &models.Member{ID: uuid.New(), DisplayName: ownerName}
	room := &models.Room{ID: uuid.New(), Name: roomName, OwnerID: owner.ID}

	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.uniqueJoinCode(tx)
		if err != nil {
			return err
		}
		room.JoinCode = code

		if err := tx.Create(owner).Error; err != nil {
			return err
		}
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Create(&models.RoomMember{
			RoomID:   room.ID,
			MemberID: owner.ID,
			JoinedAt: time.Now().Unix(),
		}).Error
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, owner, nil
}

func (s *Store) uniqueJoinCode(tx *gorm.DB) (string, error) {
	for {
		code := s.joinCode()
		var count int64
		if err := tx.Model(&models.Room{}).Where("join_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := s.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (s *Store) GetRoomByJoinCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if err := s.WithContext(ctx).First(&room, "join_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

// DeleteRoom removes the room together with its memberships, queue and
// tracks.
func (s *Store) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	return s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&models.QueueEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.Track{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, "id = ?", id).Error
	})
}

// Member operations

func (s *Store) CreateMember(ctx context.Context, displayName string) (*models.Member, error) {
	member := &models.Member{ID: uuid.New(), DisplayName: displayName}
	if err := s.WithContext(ctx).Create(member).Error; err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	return member, nil
}

func (s *Store) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := s.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

// AddMember puts a member into a room's membership set.
func (s *Store) AddMember(ctx context.Context, roomID, memberID uuid.UUID) error {
	return s.AddMemberAt(ctx, roomID, memberID, time.Now().Unix())
}

// AddMemberAt records the membership with an explicit join timestamp
// (seconds since epoch), which orders members for ownership transfer.
func (s *Store) AddMemberAt(ctx context.Context, roomID, memberID uuid.UUID, joinedAt int64) error {
	return s.WithContext(ctx).Create(&models.RoomMember{
		RoomID:   roomID,
		MemberID: memberID,
		JoinedAt: joinedAt,
	}).Error
}

// ListMembers returns the room's members sorted by join time ascending.
func (s *Store) ListMembers(ctx context.Context, roomID uuid.UUID) ([]MemberRecord, error) {
	var records []MemberRecord
	err := s.WithContext(ctx).Model(&models.RoomMember{}).
		Select("members.id, members.display_name, room_members.joined_at").
		Joins("JOIN members ON members.id = room_members.member_id").
		Where("room_members.room_id = ?", roomID).
		Order("room_members.joined_at ASC").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// IsMember reports whether the member belongs to the room.
func (s *Store) IsMember(ctx context.Context, roomID, memberID uuid.UUID) (bool, error) {
	var count int64
	err := s.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND member_id = ?", roomID, memberID).
		Count(&count).Error
	return count > 0, err
}

// RemoveMember removes the member and reassigns ownership to the earliest
// remaining joiner, all in one transaction. No intermediate state exists
// where the room records the departing member as owner or has zero members
// with a stale owner.
func (s *Store) RemoveMember(ctx context.Context, roomID, memberID uuid.UUID) (RemoveResult, error) {
	var result RemoveResult
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("room_id = ? AND member_id = ?", roomID, memberID).
			Delete(&models.RoomMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("member %s in room %s: %w", memberID, roomID, ErrNotFound)
		}

		var remaining []models.RoomMember
		if err := tx.Where("room_id = ?", roomID).
			Order("joined_at ASC, member_id ASC").
			Find(&remaining).Error; err != nil {
			return err
		}

		if len(remaining) == 0 {
			result = RemoveResult{LastMember: true}
			return nil
		}

		newOwner := remaining[0].MemberID
		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("owner_id", newOwner).Error; err != nil {
			return err
		}
		result = RemoveResult{NewOwner: newOwner}
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	return result, nil
}

// Pretrack / track operations

func (s *Store) CreatePretrack(ctx context.Context, pretrack *models.Pretrack) error {
	if pretrack.ID == uuid.Nil {
		pretrack.ID = uuid.New()
	}
	return s.WithContext(ctx).Create(pretrack).Error
}

func (s *Store) GetPretrack(ctx context.Context, id uuid.UUID) (*models.Pretrack, error) {
	var pretrack models.Pretrack
	if err := s.WithContext(ctx).First(&pretrack, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &pretrack, nil
}

// PromoteTrack turns a pretrack into a room's track. The pretrack is
// consumed: it is deleted in the same transaction that creates the track, so
// it can be promoted at most once.
func (s *Store) PromoteTrack(ctx context.Context, pretrackID, roomID uuid.UUID) (*models.Track, error) {
	var track *models.Track
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pretrack models.Pretrack
		if err := tx.First(&pretrack, "id = ?", pretrackID).Error; err != nil {
			return translate(err)
		}

		track = &models.Track{
			ID:           uuid.New(),
			RoomID:       roomID,
			Name:         pretrack.Name,
			Artist:       pretrack.Artist,
			Duration:     pretrack.Duration,
			ThumbnailURL: pretrack.ThumbnailURL,
			Platform:     pretrack.Platform,
			PlatformID:   pretrack.PlatformID,
		}
		if err := tx.Create(track).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.Pretrack{}, "id = ?", pretrackID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("pretrack %s already consumed: %w", pretrackID, ErrConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

func (s *Store) GetTrack(ctx context.Context, id uuid.UUID) (*models.Track, error) {
	var track models.Track
	if err := s.WithContext(ctx).First(&track, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &track, nil
}

// Queue operations

// Enqueue appends the track at max(position)+1 for its room, starting at 1.
// A unique (room, position) index catches two transactions computing the same
// next position; the loser retries with a fresh read, so positions are always
// distinct and strictly increasing in commit order.
func (s *Store) Enqueue(ctx context.Context, roomID, trackID, addedBy uuid.UUID) (int64, error) {
	for attempt := 0; attempt < enqueueRetries; attempt++ {
		var position int64
		err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var max int64
			if err := tx.Model(&models.QueueEntry{}).
				Where("room_id = ?", roomID).
				Select("COALESCE(MAX(position), 0)").
				Scan(&max).Error; err != nil {
				return err
			}

			position = max + 1
			return tx.Create(&models.QueueEntry{
				TrackID:  trackID,
				RoomID:   roomID,
				Position: position,
				AddedBy:  addedBy,
			}).Error
		})
		if err == nil {
			return position, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return 0, fmt.Errorf("failed to enqueue track: %w", err)
	}
	return 0, fmt.Errorf("failed to enqueue track after %d attempts: %w", enqueueRetries, ErrConflict)
}

// Dequeue removes the track's queue entry. Remaining entries keep their
// positions; the gap is intentional.
func (s *Store) Dequeue(ctx context.Context, trackID uuid.UUID) error {
	return s.WithContext(ctx).Delete(&models.QueueEntry{}, "track_id = ?", trackID).Error
}

// ListEnqueued returns the room's tracks ordered by position ascending.
func (s *Store) ListEnqueued(ctx context.Context, roomID uuid.UUID) ([]QueuedTrack, error) {
	var tracks []QueuedTrack
	err := s.WithContext(ctx).Model(&models.Track{}).
		Select("tracks.*, queue_entries.position, queue_entries.added_by").
		Joins("JOIN queue_entries ON queue_entries.track_id = tracks.id").
		Where("queue_entries.room_id = ?", roomID).
		Order("queue_entries.position ASC").
		Scan(&tracks).Error
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

// GetQueuePosition returns the track's position, or ErrNotFound when it is
// not enqueued.
func (s *Store) GetQueuePosition(ctx context.Context, trackID uuid.UUID) (int64, error) {
	var entry models.QueueEntry
	if err := s.WithContext(ctx).First(&entry, "track_id = ?", trackID).Error; err != nil {
		return 0, translate(err)
	}
	return entry.Position, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SourcePlatform tags where a track's metadata came from. The set is closed;
// anything else in the database is a consistency error.
type SourcePlatform string

const (
	PlatformYouTube SourcePlatform = "YouTube"
	PlatformSpotify SourcePlatform = "Spotify"
)

// ValidPlatform reports whether p is one of the known source platforms.
func ValidPlatform(p SourcePlatform) bool {
	return p == PlatformYouTube || p == PlatformSpotify
}

type Room struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	JoinCode  string    `json:"join_code" gorm:"uniqueIndex;size:6"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Member struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey"`
	DisplayName string    `json:"display_name" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomMember links a member to the single room it belongs to. JoinedAt is
// seconds since epoch and orders members for ownership transfer.
type RoomMember struct {
	RoomID   uuid.UUID `json:"room_id" gorm:"primaryKey"`
	MemberID uuid.UUID `json:"member_id" gorm:"primaryKey"`
	JoinedAt int64     `json:"joined_at"`
}

// Pretrack is unvalidated candidate metadata. It is consumed (deleted) exactly
// once when promoted into a Track.
type Pretrack struct {
	ID           uuid.UUID      `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name"`
	Artist       string         `json:"artist"`
	Duration     int64          `json:"duration"`
	ThumbnailURL string         `json:"thumbnail_url"`
	Platform     SourcePlatform `json:"platform" gorm:"size:16"`
	PlatformID   string         `json:"platform_id"`
	CreatedAt    time.Time      `json:"created_at"`
}

type Track struct {
	ID           uuid.UUID      `json:"id" gorm:"primaryKey"`
	RoomID       uuid.UUID      `json:"room_id" gorm:"index"`
	Name         string         `json:"name"`
	Artist       string         `json:"artist"`
	Duration     int64          `json:"duration"`
	ThumbnailURL string         `json:"thumbnail_url"`
	Platform     SourcePlatform `json:"platform" gorm:"size:16"`
	PlatformID   string         `json:"platform_id"`
	CreatedAt    time.Time      `json:"created_at"`
}

// QueueEntry orders a track within its room. Positions start at 1, only grow
// and are never reused; removing a track leaves a gap.
type QueueEntry struct {
	TrackID   uuid.UUID `json:"track_id" gorm:"primaryKey"`
	RoomID    uuid.UUID `json:"room_id" gorm:"uniqueIndex:idx_room_position"`
	Position  int64     `json:"position" gorm:"uniqueIndex:idx_room_position"`
	AddedBy   uuid.UUID `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/track-room-system/pkg/models"
)

const roomCacheTTL = 24 * time.Hour

// ErrCacheMiss means the room is not cached; callers fall back to the store.
var ErrCacheMiss = errors.New("room not cached")

// RoomCache is a read-through cache of room records in front of the store.
type RoomCache struct {
	client *redis.Client
}

// NewRoomCache creates a room cache backed by the given Redis client.
func NewRoomCache(client *redis.Client) *RoomCache {
	return &RoomCache{client: client}
}

// Set caches the room for the cache TTL.
func (c *RoomCache) Set(ctx context.Context, room *models.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	key := fmt.Sprintf("room:%s", room.ID)
	if err := c.client.Set(ctx, key, roomJSON, roomCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache room: %w", err)
	}

	return nil
}

// Get returns the cached room, or ErrCacheMiss.
func (c *RoomCache) Get(ctx context.Context, roomID string) (*models.Room, error) {
	key := fmt.Sprintf("room:%s", roomID)
	roomJSON, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var room models.Room
	if err := json.Unmarshal(roomJSON, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

// Delete evicts the room, e.g. after deletion or an ownership change.
func (c *RoomCache) Delete(ctx context.Context, roomID string) error {
	key := fmt.Sprintf("room:%s", roomID)
	return c.client.Del(ctx, key).Err()
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTypeTrackAdded   EventType = "track_added"
	EventTypeMemberJoined EventType = "member_joined"
	EventTypeMemberLeft   EventType = "member_left"
	EventTypeRoomCreated  EventType = "room_created"
	EventTypeRoomDeleted  EventType = "room_deleted"
)

// Event is the outbound audit record written to Kafka. Nothing in this
// process consumes it; cross-process fan-out is out of scope.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id"`
	MemberID  string          `json:"member_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher writes room lifecycle and queue events to a single topic, keyed
// by room id so per-room ordering survives partitioning.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Publisher{writer: writer}
}

// Publish writes one event. The payload may be nil.
func (p *Publisher) Publish(ctx context.Context, eventType EventType, roomID, memberID string, payload any) error {
	event := Event{
		Type:      eventType,
		RoomID:    roomID,
		MemberID:  memberID,
		Timestamp: time.Now(),
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		event.Payload = raw
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(roomID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// Event payload types
type TrackAddedPayload struct {
	TrackID   string `json:"track_id"`
	TrackName string `json:"track_name"`
	Artist    string `json:"artist"`
	Position  int64  `json:"position"`
}

type MemberJoinedPayload struct {
	MemberName string `json:"member_name"`
}

type MemberLeftPayload struct {
	NewOwnerID  string `json:"new_owner_id,omitempty"`
	RoomDeleted bool   `json:"room_deleted"`
}

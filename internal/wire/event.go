package wire

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the event envelope. The set is closed.
type EventKind string

const (
	// EventInternalStatus carries liveness and connect signaling; its data is
	// one of the Status* strings.
	EventInternalStatus EventKind = "InternalStatus"
	// EventData carries a queue-mutation payload, currently a track record.
	EventData EventKind = "Data"
)

// InternalStatus payloads.
const (
	StatusConnected = "Connected"
	StatusPing      = "Ping"
)

// TrackPayload is the Data event body: the track as clients render it,
// including its queue position.
type TrackPayload struct {
	TrackID      string `json:"track_uuid"`
	Name         string `json:"track_name"`
	Artist       string `json:"artist_name"`
	Duration     int64  `json:"track_duration"`
	ThumbnailURL string `json:"thumbnail_url"`
	Position     int64  `json:"track_idx"`
}

// Event is the logical envelope {event, data}. Exactly one of Status or Track
// is meaningful, selected by Kind.
type Event struct {
	Kind   EventKind
	Status string
	Track  *TrackPayload
}

// StatusEvent builds an InternalStatus event.
func StatusEvent(status string) Event {
	return Event{Kind: EventInternalStatus, Status: status}
}

// DataEvent builds a Data event for a track.
func DataEvent(track TrackPayload) Event {
	return Event{Kind: EventData, Track: &track}
}

// jsonEnvelope is the textual wire shape: {"event": ..., "data": ...}.
type jsonEnvelope struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Marshal encodes the event as one self-contained frame in the given encoding.
func Marshal(ev Event, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingJSON:
		return marshalJSON(ev)
	case EncodingProtobuf:
		return marshalProto(ev)
	default:
		return nil, fmt.Errorf("wire: unknown encoding %d", enc)
	}
}

// Unmarshal decodes a single frame produced by Marshal.
func Unmarshal(frame []byte, enc Encoding) (Event, error) {
	switch enc {
	case EncodingJSON:
		return unmarshalJSON(frame)
	case EncodingProtobuf:
		return unmarshalProto(frame)
	default:
		return Event{}, fmt.Errorf("wire: unknown encoding %d", enc)
	}
}

func marshalJSON(ev Event) ([]byte, error) {
	var data any
	switch ev.Kind {
	case EventInternalStatus:
		data = ev.Status
	case EventData:
		data = ev.Track
	default:
		return nil, fmt.Errorf("wire: unknown event kind %q", ev.Kind)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal event data: %w", err)
	}
	return json.Marshal(jsonEnvelope{Event: ev.Kind, Data: raw})
}

func unmarshalJSON(frame []byte) (Event, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}

	ev := Event{Kind: env.Event}
	switch env.Event {
	case EventInternalStatus:
		if err := json.Unmarshal(env.Data, &ev.Status); err != nil {
			return Event{}, fmt.Errorf("wire: unmarshal status: %w", err)
		}
	case EventData:
		var track TrackPayload
		if err := json.Unmarshal(env.Data, &track); err != nil {
			return Event{}, fmt.Errorf("wire: unmarshal track: %w", err)
		}
		ev.Track = &track
	default:
		return Event{}, fmt.Errorf("wire: unknown event kind %q", env.Event)
	}
	return ev, nil
}

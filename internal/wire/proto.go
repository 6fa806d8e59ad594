package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary framing: standard protobuf wire format, written with explicit field
// numbers so the schema stays forward/backward compatible. Zero values are
// omitted, unknown fields are skipped on decode.
//
//	Event:
//	  1: kind   (varint: 1 = InternalStatus, 2 = Data)
//	  2: status (string)
//	  3: track  (message)
//	Track:
//	  1: track_uuid     (string)
//	  2: track_name     (string)
//	  3: artist_name    (string)
//	  4: track_duration (int64)
//	  5: thumbnail_url  (string)
//	  6: track_idx      (int64)
const (
	fieldEventKind   = 1
	fieldEventStatus = 2
	fieldEventTrack  = 3

	fieldTrackID        = 1
	fieldTrackName      = 2
	fieldTrackArtist    = 3
	fieldTrackDuration  = 4
	fieldTrackThumbnail = 5
	fieldTrackPosition  = 6
)

const (
	kindCodeInternalStatus = 1
	kindCodeData           = 2
)

func kindCode(kind EventKind) (uint64, error) {
	switch kind {
	case EventInternalStatus:
		return kindCodeInternalStatus, nil
	case EventData:
		return kindCodeData, nil
	default:
		return 0, fmt.Errorf("wire: unknown event kind %q", kind)
	}
}

func marshalProto(ev Event) ([]byte, error) {
	code, err := kindCode(ev.Kind)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldEventKind, protowire.VarintType)
	b = protowire.AppendVarint(b, code)

	if ev.Kind == EventInternalStatus && ev.Status != "" {
		b = protowire.AppendTag(b, fieldEventStatus, protowire.BytesType)
		b = protowire.AppendString(b, ev.Status)
	}
	if ev.Kind == EventData && ev.Track != nil {
		b = protowire.AppendTag(b, fieldEventTrack, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTrackProto(ev.Track))
	}
	return b, nil
}

func marshalTrackProto(t *TrackPayload) []byte {
	var b []byte
	appendStr := func(num protowire.Number, s string) {
		if s == "" {
			return
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	appendInt := func(num protowire.Number, v int64) {
		if v == 0 {
			return
		}
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	}

	appendStr(fieldTrackID, t.TrackID)
	appendStr(fieldTrackName, t.Name)
	appendStr(fieldTrackArtist, t.Artist)
	appendInt(fieldTrackDuration, t.Duration)
	appendStr(fieldTrackThumbnail, t.ThumbnailURL)
	appendInt(fieldTrackPosition, t.Position)
	return b
}

func unmarshalProto(frame []byte) (Event, error) {
	var ev Event
	b := frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Event{}, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldEventKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Event{}, fmt.Errorf("wire: bad kind: %w", protowire.ParseError(n))
			}
			b = b[n:]
			switch v {
			case kindCodeInternalStatus:
				ev.Kind = EventInternalStatus
			case kindCodeData:
				ev.Kind = EventData
			default:
				return Event{}, fmt.Errorf("wire: unknown event kind code %d", v)
			}
		case num == fieldEventStatus && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Event{}, fmt.Errorf("wire: bad status: %w", protowire.ParseError(n))
			}
			b = b[n:]
			ev.Status = v
		case num == fieldEventTrack && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Event{}, fmt.Errorf("wire: bad track: %w", protowire.ParseError(n))
			}
			b = b[n:]
			track, err := unmarshalTrackProto(v)
			if err != nil {
				return Event{}, err
			}
			ev.Track = track
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Event{}, fmt.Errorf("wire: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if ev.Kind == "" {
		return Event{}, fmt.Errorf("wire: frame has no event kind")
	}
	return ev, nil
}

func unmarshalTrackProto(msg []byte) (*TrackPayload, error) {
	var t TrackPayload
	b := msg
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad track tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType &&
			(num == fieldTrackID || num == fieldTrackName || num == fieldTrackArtist || num == fieldTrackThumbnail):
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad track field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldTrackID:
				t.TrackID = v
			case fieldTrackName:
				t.Name = v
			case fieldTrackArtist:
				t.Artist = v
			case fieldTrackThumbnail:
				t.ThumbnailURL = v
			}
		case typ == protowire.VarintType && (num == fieldTrackDuration || num == fieldTrackPosition):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad track field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldTrackDuration {
				t.Duration = int64(v)
			} else {
				t.Position = int64(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad track field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return &t, nil
}

package wire

import (
	"errors"
	"strings"
)

// Encoding is the wire format negotiated for a single connection. It is
// resolved once from the X-Accept header when the client subscribes and is
// never re-derived per event.
type Encoding uint8

const (
	EncodingJSON Encoding = iota + 1
	EncodingProtobuf
)

// ErrUnsupportedEncoding is returned when the X-Accept header is missing or
// names a format the server does not speak.
var ErrUnsupportedEncoding = errors.New("bad value or missing value for header 'X-Accept'")

// HeaderXAccept carries the client's chosen stream encoding.
const HeaderXAccept = "X-Accept"

// NegotiateEncoding resolves the X-Accept header value to an Encoding.
// Matching is case-insensitive on the media-type prefix so parameters like
// "; charset=utf-8" are tolerated.
func NegotiateEncoding(xAccept string) (Encoding, error) {
	v := strings.ToLower(strings.TrimSpace(xAccept))
	switch {
	case strings.HasPrefix(v, "application/json"):
		return EncodingJSON, nil
	case strings.HasPrefix(v, "application/protobuf"):
		return EncodingProtobuf, nil
	default:
		return 0, ErrUnsupportedEncoding
	}
}

// ContentType returns the media type frames of this encoding carry.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingProtobuf:
		return "application/protobuf"
	default:
		return "application/json"
	}
}

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingProtobuf:
		return "protobuf"
	default:
		return "unknown"
	}
}

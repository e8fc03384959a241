// Package eventstream decodes the length-prefixed binary event framing used
// by the CodeWhisperer streaming transport. Frames carry a typed header block
// and an opaque payload; both the 8-byte prelude and the full message are
// CRC32 protected. The decoder is incremental: callers feed raw bytes as they
// arrive off the wire and pull complete frames out.
package eventstream

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Header value type tags as they appear on the wire.
const (
	HeaderTypeBoolTrue  = 0
	HeaderTypeBoolFalse = 1
	HeaderTypeInt8      = 2
	HeaderTypeInt16     = 3
	HeaderTypeInt32     = 4
	HeaderTypeInt64     = 5
	HeaderTypeByteArray = 6
	HeaderTypeString    = 7
	HeaderTypeTimestamp = 8
	HeaderTypeUUID      = 9
)

// Well-known header names.
const (
	HeaderMessageType   = ":message-type"
	HeaderEventType     = ":event-type"
	HeaderExceptionType = ":exception-type"
	HeaderErrorCode     = ":error-code"
)

// HeaderValue is one decoded header entry. Value holds bool, int64, []byte,
// string, time.Time or [16]byte depending on Type; the gateway itself only
// reads string headers, the other types are decoded so foreign frames do not
// break the header walk.
type HeaderValue struct {
	Type  byte
	Value any
}

// AsString returns the value for string-typed headers and "" otherwise.
func (v HeaderValue) AsString() string {
	if s, ok := v.Value.(string); ok {
		return s
	}
	return ""
}

// Message is one decoded frame.
type Message struct {
	// TotalLength is the frame's declared total length including both CRCs.
	TotalLength uint32
	// Headers maps header name to its decoded value.
	Headers map[string]HeaderValue
	// Payload is the raw frame payload. Parsing it (usually as JSON) is the
	// caller's job.
	Payload []byte
}

// MessageType returns the :message-type header ("event", "exception", ...).
func (m *Message) MessageType() string {
	return m.header(HeaderMessageType)
}

// EventType returns the :event-type header.
func (m *Message) EventType() string {
	return m.header(HeaderEventType)
}

// ExceptionType returns the :exception-type header.
func (m *Message) ExceptionType() string {
	return m.header(HeaderExceptionType)
}

// ErrorCode returns the :error-code header.
func (m *Message) ErrorCode() string {
	return m.header(HeaderErrorCode)
}

func (m *Message) header(name string) string {
	if m == nil || m.Headers == nil {
		return ""
	}
	return m.Headers[name].AsString()
}

// decodeHeaders walks a header block:
// [1 byte name length][name][1 byte type tag][type-tagged value] repeated.
func decodeHeaders(block []byte) (map[string]HeaderValue, error) {
	headers := make(map[string]HeaderValue)
	offset := 0

	for offset < len(block) {
		nameLen := int(block[offset])
		offset++
		if offset+nameLen > len(block) {
			return nil, fmt.Errorf("header name overruns block at offset %d", offset)
		}
		name := string(block[offset : offset+nameLen])
		offset += nameLen

		if offset >= len(block) {
			return nil, fmt.Errorf("header %q missing type tag", name)
		}
		typeTag := block[offset]
		offset++

		value, n, err := decodeHeaderValue(typeTag, block[offset:])
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", name, err)
		}
		offset += n
		headers[name] = HeaderValue{Type: typeTag, Value: value}
	}

	return headers, nil
}

// decodeHeaderValue decodes one type-tagged value, returning the decoded
// value and the number of bytes consumed.
func decodeHeaderValue(typeTag byte, b []byte) (any, int, error) {
	need := func(n int) error {
		if len(b) < n {
			return fmt.Errorf("value type %d needs %d bytes, have %d", typeTag, n, len(b))
		}
		return nil
	}

	switch typeTag {
	case HeaderTypeBoolTrue:
		return true, 0, nil
	case HeaderTypeBoolFalse:
		return false, 0, nil
	case HeaderTypeInt8:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return int64(int8(b[0])), 1, nil
	case HeaderTypeInt16:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), 2, nil
	case HeaderTypeInt32:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), 4, nil
	case HeaderTypeInt64:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return int64(binary.BigEndian.Uint64(b)), 8, nil
	case HeaderTypeByteArray:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		n := int(binary.BigEndian.Uint16(b))
		if err := need(2 + n); err != nil {
			return nil, 0, err
		}
		out := make([]byte, n)
		copy(out, b[2:2+n])
		return out, 2 + n, nil
	case HeaderTypeString:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		n := int(binary.BigEndian.Uint16(b))
		if err := need(2 + n); err != nil {
			return nil, 0, err
		}
		return string(b[2 : 2+n]), 2 + n, nil
	case HeaderTypeTimestamp:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		millis := int64(binary.BigEndian.Uint64(b))
		return time.UnixMilli(millis).UTC(), 8, nil
	case HeaderTypeUUID:
		if err := need(16); err != nil {
			return nil, 0, err
		}
		var id [16]byte
		copy(id[:], b[:16])
		return id, 16, nil
	default:
		return nil, 0, fmt.Errorf("unknown header value type %d", typeTag)
	}
}

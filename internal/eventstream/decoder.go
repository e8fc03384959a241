package eventstream

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Frame layout:
// [4 bytes: total length (big-endian)]
// [4 bytes: header block length (big-endian)]
// [4 bytes: CRC32 of the 8 prelude bytes]
// [header block]
// [payload]
// [4 bytes: CRC32 of everything preceding it]
const (
	// preludeSize covers total length, header length and the prelude CRC.
	preludeSize = 12
	// minFrameSize is a frame with empty headers and empty payload.
	minFrameSize = 16
	// maxFrameSize caps the declared total length. Anything larger means the
	// stream is corrupt or hostile; there is no legitimate 16 MiB frame here.
	maxFrameSize = 16 * 1024 * 1024
)

// Integrity failure codes carried by FrameIntegrityError.
const (
	IntegrityPreludeCRCMismatch = "prelude_crc_mismatch"
	IntegrityMessageCRCMismatch = "message_crc_mismatch"
	IntegrityFrameTooShort      = "frame_too_short"
	IntegrityFrameTooLarge      = "frame_too_large"
	IntegrityHeaderOverrun      = "header_overrun"
	IntegrityPayloadOverrun     = "payload_overrun"
)

// FrameIntegrityError reports a frame that failed CRC or structural
// validation. It is fatal to the stream it occurred on: once raised, frame
// boundaries can no longer be trusted and the decoder refuses further output.
type FrameIntegrityError struct {
	// Code is one of the Integrity* constants.
	Code string
	// Offset is the byte offset within the overall stream at which the
	// failed frame started.
	Offset int64
	// Detail describes the specific failure.
	Detail string
}

func (e *FrameIntegrityError) Error() string {
	return fmt.Sprintf("event stream integrity failure (%s) at offset %d: %s", e.Code, e.Offset, e.Detail)
}

// Decoder incrementally decodes frames from a byte stream. Feed appends raw
// bytes; Next pulls the next complete frame, leaving partial trailing bytes
// buffered. A Decoder is per-stream state and must not be shared across
// concurrent streams.
type Decoder struct {
	buf      []byte
	consumed int64
	failure  *FrameIntegrityError
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw stream bytes to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes awaiting decoding.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame, or (nil, nil) when the buffer holds
// only a partial frame. After an integrity failure every subsequent call
// returns the same error.
func (d *Decoder) Next() (*Message, error) {
	if d.failure != nil {
		return nil, d.failure
	}
	if len(d.buf) < preludeSize {
		return nil, nil
	}

	totalLen := binary.BigEndian.Uint32(d.buf[0:4])
	headerLen := binary.BigEndian.Uint32(d.buf[4:8])

	if totalLen < minFrameSize {
		return nil, d.fail(IntegrityFrameTooShort, fmt.Sprintf("declared total length %d below minimum %d", totalLen, minFrameSize))
	}
	if totalLen > maxFrameSize {
		return nil, d.fail(IntegrityFrameTooLarge, fmt.Sprintf("declared total length %d exceeds maximum %d", totalLen, maxFrameSize))
	}

	wantPreludeCRC := crc32.ChecksumIEEE(d.buf[0:8])
	gotPreludeCRC := binary.BigEndian.Uint32(d.buf[8:12])
	if wantPreludeCRC != gotPreludeCRC {
		return nil, d.fail(IntegrityPreludeCRCMismatch, fmt.Sprintf("expected %08x, got %08x", wantPreludeCRC, gotPreludeCRC))
	}

	payloadLen := int(totalLen) - preludeSize - int(headerLen) - 4
	if payloadLen < 0 {
		return nil, d.fail(IntegrityPayloadOverrun, fmt.Sprintf("header length %d does not fit total length %d", headerLen, totalLen))
	}

	if len(d.buf) < int(totalLen) {
		// Partial frame; wait for more bytes.
		return nil, nil
	}

	frame := d.buf[:totalLen]
	wantMessageCRC := crc32.ChecksumIEEE(frame[:totalLen-4])
	gotMessageCRC := binary.BigEndian.Uint32(frame[totalLen-4:])
	if wantMessageCRC != gotMessageCRC {
		return nil, d.fail(IntegrityMessageCRCMismatch, fmt.Sprintf("expected %08x, got %08x", wantMessageCRC, gotMessageCRC))
	}

	headers, err := decodeHeaders(frame[preludeSize : preludeSize+int(headerLen)])
	if err != nil {
		return nil, d.fail(IntegrityHeaderOverrun, err.Error())
	}

	payload := make([]byte, payloadLen)
	copy(payload, frame[preludeSize+int(headerLen):totalLen-4])

	d.buf = d.buf[totalLen:]
	d.consumed += int64(totalLen)

	return &Message{
		TotalLength: totalLen,
		Headers:     headers,
		Payload:     payload,
	}, nil
}

// Messages drains every complete frame currently buffered.
func (d *Decoder) Messages() ([]*Message, error) {
	var out []*Message
	for {
		msg, err := d.Next()
		if err != nil {
			return out, err
		}
		if msg == nil {
			return out, nil
		}
		out = append(out, msg)
	}
}

func (d *Decoder) fail(code, detail string) *FrameIntegrityError {
	d.failure = &FrameIntegrityError{Code: code, Offset: d.consumed, Detail: detail}
	return d.failure
}

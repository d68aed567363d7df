package part

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the size of a part header: a 2-byte type code followed by a
// 2-byte total length, both big-endian. The total length includes the header.
const HeaderLen = 4

// Type codes of the collectd network protocol.
type Type uint16

const (
	TypeHost             Type = 0x0000
	TypeTime             Type = 0x0001
	TypePlugin           Type = 0x0002
	TypePluginInstance   Type = 0x0003
	TypeType             Type = 0x0004
	TypeTypeInstance     Type = 0x0005
	TypeValues           Type = 0x0006
	TypeInterval         Type = 0x0007
	TypeHighResTime      Type = 0x0008
	TypeHighResInterval  Type = 0x0009
	TypeMessage          Type = 0x0100
	TypeSeverity         Type = 0x0101
	TypeSignatureSHA256  Type = 0x0200
	TypeEncryptionAES256 Type = 0x0210
)

func (t Type) String() string {
	switch t {
	case TypeHost:
		return "host"
	case TypeTime:
		return "time"
	case TypePlugin:
		return "plugin"
	case TypePluginInstance:
		return "plugin_instance"
	case TypeType:
		return "type"
	case TypeTypeInstance:
		return "type_instance"
	case TypeValues:
		return "values"
	case TypeInterval:
		return "interval"
	case TypeHighResTime:
		return "time_hr"
	case TypeHighResInterval:
		return "interval_hr"
	case TypeMessage:
		return "message"
	case TypeSeverity:
		return "severity"
	case TypeSignatureSHA256:
		return "signature_sha256"
	case TypeEncryptionAES256:
		return "encryption_aes256"
	default:
		return fmt.Sprintf("0x%04x", uint16(t))
	}
}

var (
	// ErrTruncatedHeader means 1 to 3 bytes remain, too few for a header.
	ErrTruncatedHeader = errors.New("part: truncated header")
	// ErrShortPart means a header declared a total length below HeaderLen.
	ErrShortPart = errors.New("part: declared length shorter than header")
	// ErrOversizedPart means a payload runs past the end of the buffer.
	ErrOversizedPart = errors.New("part: declared length exceeds buffer")
	// ErrShortPayload means a payload is too small for the requested number.
	ErrShortPayload = errors.New("part: payload too short")
)

// OversizedPartError carries the framing details of an ErrOversizedPart.
type OversizedPartError struct {
	Type      Type
	Offset    int
	Declared  int
	Remaining int
}

func (e *OversizedPartError) Error() string {
	return fmt.Sprintf(
		"%v: %s at offset %d declares %d payload bytes, %d remain",
		ErrOversizedPart,
		e.Type,
		e.Offset,
		e.Declared,
		e.Remaining,
	)
}

func (e *OversizedPartError) Unwrap() error {
	return ErrOversizedPart
}

// Part is one framed unit of a datagram. Payload aliases the reader's buffer.
type Part struct {
	Type    Type
	Offset  int
	Payload []byte
}

// Reader walks the parts of one datagram.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the position of the next header.
func (r *Reader) Offset() int {
	return r.off
}

// Next returns the next part. It returns io.EOF when the buffer is exhausted,
// ErrTruncatedHeader when a partial header is left, ErrShortPart for a header
// declaring less than HeaderLen bytes and an *OversizedPartError when the
// payload would run past the buffer. Once Next fails the reader stays at the
// failing offset.
func (r *Reader) Next() (Part, error) {
	remaining := len(r.buf) - r.off
	if remaining == 0 {
		return Part{}, io.EOF
	}
	if remaining < HeaderLen {
		return Part{}, ErrTruncatedHeader
	}
	typ := Type(binary.BigEndian.Uint16(r.buf[r.off : r.off+2]))
	total := int(binary.BigEndian.Uint16(r.buf[r.off+2 : r.off+4]))
	if total < HeaderLen {
		return Part{}, ErrShortPart
	}
	payloadLen := total - HeaderLen
	if payloadLen > remaining-HeaderLen {
		return Part{}, &OversizedPartError{
			Type:      typ,
			Offset:    r.off,
			Declared:  payloadLen,
			Remaining: remaining - HeaderLen,
		}
	}
	start := r.off + HeaderLen
	p := Part{
		Type:    typ,
		Offset:  r.off,
		Payload: r.buf[start : start+payloadLen : start+payloadLen],
	}
	r.off = start + payloadLen
	return p, nil
}

// String returns the payload as a string with its final byte, the NUL
// terminator, dropped.
func (p Part) String() string {
	if len(p.Payload) == 0 {
		return ""
	}
	return string(p.Payload[:len(p.Payload)-1])
}

// Uint64 returns the first 8 payload bytes as a big-endian integer.
func (p Part) Uint64() (uint64, error) {
	if len(p.Payload) < 8 {
		return 0, ErrShortPayload
	}
	return binary.BigEndian.Uint64(p.Payload[:8]), nil
}

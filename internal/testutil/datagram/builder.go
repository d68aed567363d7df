// Package datagram builds collectd binary datagrams for tests.
package datagram

import (
	"encoding/binary"
	"math"

	"github.com/danmuck/collectdwire/internal/protocol/part"
	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
)

// Value is one slot of a VALUES part. Raw is written as-is for kinds the
// builder does not know.
type Value struct {
	Kind  typesdb.Kind
	Float float64
	Int   uint64
	Raw   [8]byte
}

func Gauge(v float64) Value { return Value{Kind: typesdb.Gauge, Float: v} }
func Derive(v uint64) Value { return Value{Kind: typesdb.Derive, Int: v} }
func Counter(v uint64) Value { return Value{Kind: typesdb.Counter, Int: v} }
func Absolute(v uint64) Value { return Value{Kind: typesdb.Absolute, Int: v} }
func Unknown(code uint8) Value { return Value{Kind: typesdb.Kind(code), Raw: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}} }

// Builder accumulates parts in order.
type Builder struct {
	buf []byte
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Raw appends bytes without framing.
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Header appends a bare part header declaring total length n.
func (b *Builder) Header(t part.Type, n uint16) *Builder {
	var h [part.HeaderLen]byte
	binary.BigEndian.PutUint16(h[0:2], uint16(t))
	binary.BigEndian.PutUint16(h[2:4], n)
	b.buf = append(b.buf, h[:]...)
	return b
}

// Part appends a framed part.
func (b *Builder) Part(t part.Type, payload []byte) *Builder {
	b.Header(t, uint16(part.HeaderLen+len(payload)))
	b.buf = append(b.buf, payload...)
	return b
}

// Str appends a NUL-terminated string part.
func (b *Builder) Str(t part.Type, s string) *Builder {
	payload := make([]byte, len(s)+1)
	copy(payload, s)
	return b.Part(t, payload)
}

// Uint64 appends a big-endian numeric part.
func (b *Builder) Uint64(t part.Type, v uint64) *Builder {
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], v)
	return b.Part(t, payload[:])
}

func (b *Builder) Host(s string) *Builder { return b.Str(part.TypeHost, s) }
func (b *Builder) Plugin(s string) *Builder { return b.Str(part.TypePlugin, s) }
func (b *Builder) PluginInstance(s string) *Builder { return b.Str(part.TypePluginInstance, s) }
func (b *Builder) Type(s string) *Builder { return b.Str(part.TypeType, s) }
func (b *Builder) TypeInstance(s string) *Builder { return b.Str(part.TypeTypeInstance, s) }
func (b *Builder) Time(sec uint64) *Builder { return b.Uint64(part.TypeTime, sec) }
func (b *Builder) TimeHR(raw uint64) *Builder { return b.Uint64(part.TypeHighResTime, raw) }
func (b *Builder) Interval(sec uint64) *Builder { return b.Uint64(part.TypeInterval, sec) }
func (b *Builder) IntervalHR(raw uint64) *Builder { return b.Uint64(part.TypeHighResInterval, raw) }

// Values appends a VALUES part. Gauges are written little-endian, every other
// kind big-endian.
func (b *Builder) Values(values ...Value) *Builder {
	return b.Part(part.TypeValues, ValuesPayload(values...))
}

func ValuesPayload(values ...Value) []byte {
	n := len(values)
	payload := make([]byte, 2+n+8*n)
	binary.BigEndian.PutUint16(payload[0:2], uint16(n))
	for i, v := range values {
		payload[2+i] = byte(v.Kind)
		slot := payload[2+n+8*i : 2+n+8*(i+1)]
		switch v.Kind {
		case typesdb.Gauge:
			binary.LittleEndian.PutUint64(slot, math.Float64bits(v.Float))
		case typesdb.Counter, typesdb.Derive, typesdb.Absolute:
			binary.BigEndian.PutUint64(slot, v.Int)
		default:
			copy(slot, v.Raw[:])
		}
	}
	return payload
}

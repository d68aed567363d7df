package protocol

import (
	"errors"
	"io"

	"github.com/danmuck/collectdwire/internal/protocol/part"
	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
	"github.com/rs/zerolog/log"
)

// Decode parses one datagram into records, one per VALUES part, in the order
// the VALUES parts appear. State parts (host, plugin, type, time, ...) apply
// to every later VALUES part until overwritten.
//
// A trailing partial header or a header declaring less than its own size ends
// decoding and the records read so far are returned. A part whose length runs
// past the end of buf fails the whole call with an error wrapping
// ErrOversizedPart. types is only read.
func Decode(buf []byte, types *typesdb.DB) ([]Record, error) {
	ctx := newDecodeContext(types)
	records := make([]Record, 0, 4)
	r := part.NewReader(buf)

	for {
		p, err := r.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return records, nil
		case errors.Is(err, part.ErrTruncatedHeader):
			log.Debug().
				Int("offset", r.Offset()).
				Int("trailing", len(buf)-r.Offset()).
				Msg("protocol.Decode ignoring trailing bytes")
			return records, nil
		case errors.Is(err, part.ErrShortPart):
			log.Warn().
				Int("offset", r.Offset()).
				Msg("protocol.Decode part shorter than header, stopping")
			return records, nil
		default:
			log.Warn().Err(err).Int("records", len(records)).Msg("protocol.Decode rejected datagram")
			return nil, err
		}

		switch p.Type {
		case part.TypeHost:
			ctx.host = p.String()
		case part.TypePlugin:
			ctx.plugin = p.String()
		case part.TypePluginInstance:
			ctx.pluginInstance = p.String()
		case part.TypeType:
			ctx.setType(p.String(), p.Offset)
		case part.TypeTypeInstance:
			ctx.typeInstance = p.String()
		case part.TypeTime, part.TypeInterval, part.TypeHighResTime, part.TypeHighResInterval:
			setTimePart(ctx, p)
		case part.TypeValues:
			kinds, values, err := decodeValues(p.Payload, p.Offset)
			if err != nil {
				log.Warn().Err(err).Int("offset", p.Offset).Msg("protocol.Decode skipping values part")
				continue
			}
			records = append(records, ctx.snapshot(kinds, values))
		default:
			log.Debug().
				Stringer("part", p.Type).
				Int("offset", p.Offset).
				Int("len", len(p.Payload)).
				Msg("protocol.Decode skipping unsupported part")
		}
	}
}

// setTimePart stores a time or interval part. Legacy parts carry whole
// seconds and are scaled to HiRes; high resolution parts are stored as-is.
func setTimePart(ctx *decodeContext, p part.Part) {
	raw, err := p.Uint64()
	if err != nil {
		log.Warn().
			Err(err).
			Stringer("part", p.Type).
			Int("offset", p.Offset).
			Msg("protocol.Decode skipping malformed numeric part")
		return
	}
	switch p.Type {
	case part.TypeTime:
		ctx.time = FromSeconds(raw)
	case part.TypeHighResTime:
		ctx.time = HiRes(raw)
	case part.TypeInterval:
		ctx.interval = FromSeconds(raw)
	case part.TypeHighResInterval:
		ctx.interval = HiRes(raw)
	}
}

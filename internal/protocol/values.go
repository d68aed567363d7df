package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
	"github.com/rs/zerolog/log"
)

const valueSlotLen = 8

// decodeValues reads a VALUES payload: a big-endian uint16 count N, N kind
// codes, then N 8-byte slots. Gauges are little-endian doubles; counters,
// derives and absolutes are big-endian unsigned integers. Slots with an
// unknown kind decode as 0.
func decodeValues(payload []byte, offset int) ([]typesdb.Kind, []float64, error) {
	if len(payload) < 2 {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrShortValues, len(payload))
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	need := 2 + n + n*valueSlotLen
	if len(payload) < need {
		return nil, nil, fmt.Errorf("%w: count=%d need=%d have=%d", ErrShortValues, n, need, len(payload))
	}

	kinds := make([]typesdb.Kind, n)
	values := make([]float64, n)
	slots := payload[2+n:]
	for i := 0; i < n; i++ {
		kind := typesdb.Kind(payload[2+i])
		slot := slots[i*valueSlotLen : (i+1)*valueSlotLen]
		kinds[i] = kind
		if !kind.Valid() {
			log.Warn().
				Int("offset", offset).
				Int("index", i).
				Uint8("kind", uint8(kind)).
				Msg("protocol.decodeValues unknown data source kind, using 0")
			continue
		}
		if kind == typesdb.Gauge {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(slot))
			continue
		}
		values[i] = float64(binary.BigEndian.Uint64(slot))
	}
	return kinds, values, nil
}

package protocol

import (
	"slices"

	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
	"github.com/rs/zerolog/log"
)

// decodeContext accumulates state parts while one datagram is decoded. It is
// owned by a single Decode call.
type decodeContext struct {
	types *typesdb.DB

	host           string
	plugin         string
	pluginInstance string
	typ            string
	typeInstance   string
	time           HiRes
	interval       HiRes
	sources        []typesdb.DataSource
}

func newDecodeContext(types *typesdb.DB) *decodeContext {
	return &decodeContext{types: types}
}

// setType records the metric type and resolves its data sources. A miss
// leaves the data sources empty.
func (c *decodeContext) setType(name string, offset int) {
	c.typ = name
	sources, ok := c.types.Lookup(name)
	if !ok {
		log.Warn().
			Str("type", name).
			Int("offset", offset).
			Msg("protocol.Decode type not found in types db")
		c.sources = nil
		return
	}
	c.sources = sources
}

// snapshot copies the state fields into a record holding kinds and values.
// The data sources are cloned so a record never aliases registry memory.
func (c *decodeContext) snapshot(kinds []typesdb.Kind, values []float64) Record {
	return Record{
		Host:           c.host,
		Plugin:         c.plugin,
		PluginInstance: c.pluginInstance,
		Type:           c.typ,
		TypeInstance:   c.typeInstance,
		Time:           c.time,
		Interval:       c.interval,
		DataSources:    slices.Clone(c.sources),
		Kinds:          kinds,
		Values:         values,
	}
}

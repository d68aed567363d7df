package protocol

import (
	"strconv"
	"strings"

	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
)

// Record is one metric sample: the state fields in effect when a VALUES part
// was read, plus that part's values.
type Record struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	Time           HiRes
	Interval       HiRes

	// DataSources is empty when Type has no definition.
	DataSources []typesdb.DataSource
	// Kinds holds the wire kind code of each value, aligned with Values.
	Kinds  []typesdb.Kind
	Values []float64
}

// Identifier renders the collectd identifier
// host/plugin[-plugin_instance]/type[-type_instance].
func (r Record) Identifier() string {
	var b strings.Builder
	b.WriteString(r.Host)
	b.WriteByte('/')
	b.WriteString(r.Plugin)
	if r.PluginInstance != "" {
		b.WriteByte('-')
		b.WriteString(r.PluginInstance)
	}
	b.WriteByte('/')
	b.WriteString(r.Type)
	if r.TypeInstance != "" {
		b.WriteByte('-')
		b.WriteString(r.TypeInstance)
	}
	return b.String()
}

// Known reports whether the record's type resolved against the types DB.
func (r Record) Known() bool {
	return len(r.DataSources) > 0
}

// Sample is a single value of a record paired with its data source name.
type Sample struct {
	Name  string
	Kind  typesdb.Kind
	Value float64
}

// Samples flattens r into one entry per value. Names come from the data
// sources; values without a matching data source are named by position.
func (r Record) Samples() []Sample {
	out := make([]Sample, len(r.Values))
	for i, v := range r.Values {
		s := Sample{Name: strconv.Itoa(i), Value: v}
		if i < len(r.Kinds) {
			s.Kind = r.Kinds[i]
		}
		if i < len(r.DataSources) {
			s.Name = r.DataSources[i].Name
		}
		out[i] = s
	}
	return out
}

// DSNames returns the data source names of r in order.
func (r Record) DSNames() []string {
	names := make([]string, len(r.DataSources))
	for i, ds := range r.DataSources {
		names[i] = ds.Name
	}
	return names
}

// DSTypes returns the data source kinds of r in order.
func (r Record) DSTypes() []string {
	kinds := make([]string, len(r.DataSources))
	for i, ds := range r.DataSources {
		kinds[i] = ds.Kind.String()
	}
	return kinds
}

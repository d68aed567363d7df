// Package typesdb loads collectd types.db definitions and answers lookups
// from a metric type name to its ordered data sources.
//
// A DB is filled with Load during startup and must not be loaded into once it
// is shared. Lookup is safe for concurrent use after that point.
package typesdb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const maxLineBytes = 1 << 20

// DataSource is one named, typed component of a metric type's value vector.
// Min and Max are NaN when the definition leaves them unbounded.
type DataSource struct {
	Name string
	Kind Kind
	Min  float64
	Max  float64
}

// LoadError reports a definition resource that could not be read.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("typesdb: load failed: %v", e.Err)
	}
	return fmt.Sprintf("typesdb: load failed (%s): %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// DB maps metric type names to data source lists.
type DB struct {
	types map[string][]DataSource
}

func New() *DB {
	return &DB{types: make(map[string][]DataSource)}
}

// Load reads every line of r and merges the parsed definitions into db.
// A definition replaces any earlier one with the same name. Lines that do not
// parse, including lines longer than 1 MiB, are skipped. When r fails, db is
// left as it was before the call.
func (db *DB) Load(r io.Reader) error {
	return db.load("", r)
}

// LoadFile loads the definitions stored at path.
func (db *DB) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &LoadError{Source: path, Err: err}
	}
	defer f.Close()
	return db.load(path, f)
}

func (db *DB) load(source string, r io.Reader) error {
	staged := make(map[string][]DataSource)
	order := make([]string, 0, 64)
	skipped := 0

	br := bufio.NewReaderSize(r, 64*1024)
	line := make([]byte, 0, 256)
	overlong := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Error().Err(err).Str("source", source).Msg("typesdb.Load read failed")
			return &LoadError{Source: source, Err: err}
		}
		if !overlong {
			if len(line)+len(chunk) > maxLineBytes {
				overlong = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if isPrefix {
			continue
		}
		if overlong {
			// the rest of the line was discarded as it arrived
			overlong = false
			skipped++
			continue
		}

		text := string(line)
		line = line[:0]
		name, sources, ok := ParseLine(text)
		if !ok {
			if !isBlankOrComment(text) {
				skipped++
			}
			continue
		}
		if _, seen := staged[name]; !seen {
			order = append(order, name)
		}
		staged[name] = sources
	}

	replaced := 0
	for _, name := range order {
		if _, ok := db.types[name]; ok {
			replaced++
		}
		db.types[name] = staged[name]
	}
	log.Debug().
		Str("source", source).
		Int("types", len(order)).
		Int("replaced", replaced).
		Int("skipped", skipped).
		Msg("typesdb.Load ok")
	return nil
}

// Lookup returns the data sources of typeName. The name match is exact and
// case-sensitive. The returned slice is shared and must not be modified.
func (db *DB) Lookup(typeName string) ([]DataSource, bool) {
	if db == nil {
		return nil, false
	}
	sources, ok := db.types[typeName]
	if !ok {
		return nil, false
	}
	return sources[:len(sources):len(sources)], true
}

func (db *DB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.types)
}

// Names returns the defined type names in sorted order.
func (db *DB) Names() []string {
	if db == nil {
		return nil
	}
	names := make([]string, 0, len(db.types))
	for name := range db.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseLine parses one definition line of the form
//
//	type_name  ds_name:KIND:min:max[, ds_name:KIND:min:max ...]
//
// min and max may be omitted, empty or "U" for unbounded. ok is false for
// blank lines, comments and anything that does not match the grammar.
func ParseLine(line string) (name string, sources []DataSource, ok bool) {
	line = strings.TrimSpace(line)
	if isBlankOrComment(line) {
		return "", nil, false
	}
	idx := strings.IndexAny(line, " \t")
	if idx <= 0 {
		return "", nil, false
	}
	name = line[:idx]
	rest := strings.TrimSpace(line[idx:])
	if rest == "" {
		return "", nil, false
	}

	specs := strings.Split(rest, ",")
	sources = make([]DataSource, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			// tolerate a trailing comma
			continue
		}
		ds, ok := parseDataSource(spec)
		if !ok {
			return "", nil, false
		}
		sources = append(sources, ds)
	}
	if len(sources) == 0 {
		return "", nil, false
	}
	return name, sources, true
}

func parseDataSource(spec string) (DataSource, bool) {
	if strings.ContainsAny(spec, " \t") {
		return DataSource{}, false
	}
	fields := strings.Split(spec, ":")
	if len(fields) < 2 || len(fields) > 4 || fields[0] == "" {
		return DataSource{}, false
	}
	kind, ok := ParseKind(fields[1])
	if !ok {
		return DataSource{}, false
	}
	ds := DataSource{Name: fields[0], Kind: kind, Min: math.NaN(), Max: math.NaN()}
	if len(fields) > 2 {
		if ds.Min, ok = parseBound(fields[2]); !ok {
			return DataSource{}, false
		}
	}
	if len(fields) > 3 {
		if ds.Max, ok = parseBound(fields[3]); !ok {
			return DataSource{}, false
		}
	}
	return ds, true
}

func parseBound(raw string) (float64, bool) {
	if raw == "" || raw == "U" || raw == "u" {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isBlankOrComment(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}

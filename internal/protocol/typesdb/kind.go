package typesdb

import (
	"fmt"
	"strings"
)

// Kind is a data source type. The numeric values are the codes carried in a
// VALUES part.
type Kind uint8

const (
	Counter  Kind = 0
	Gauge    Kind = 1
	Derive   Kind = 2
	Absolute Kind = 3
)

// Valid reports whether k is one of the four known data source kinds.
func (k Kind) Valid() bool {
	return k <= Absolute
}

func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Derive:
		return "derive"
	case Absolute:
		return "absolute"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind parses a kind name, ignoring case.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COUNTER":
		return Counter, true
	case "GAUGE":
		return Gauge, true
	case "DERIVE":
		return Derive, true
	case "ABSOLUTE":
		return Absolute, true
	default:
		return 0, false
	}
}

package protocol

import (
	"errors"

	"github.com/danmuck/collectdwire/internal/protocol/part"
)

var (
	// ErrOversizedPart fails a whole Decode call; see part.OversizedPartError.
	ErrOversizedPart = part.ErrOversizedPart

	// ErrShortValues means a VALUES part cannot hold the values its count
	// declares. Decode logs it and skips only that part.
	ErrShortValues = errors.New("protocol: values payload shorter than declared count")
)

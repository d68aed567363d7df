package protocol

import (
	"math"
	"time"
)

// HiRes is collectd's fixed-point time: seconds in the upper 34 bits and a
// binary fraction in the lower 30 bits.
type HiRes uint64

const hiResShift = 30

// FromSeconds converts whole seconds to HiRes.
func FromSeconds(sec uint64) HiRes {
	return HiRes(sec << hiResShift)
}

func (h HiRes) Seconds() float64 {
	return float64(h) / float64(uint64(1)<<hiResShift)
}

// Duration converts h to a time.Duration, rounding the fraction to the
// nearest nanosecond.
func (h HiRes) Duration() time.Duration {
	sec, nsec := h.split()
	return time.Duration(sec)*time.Second + time.Duration(nsec)
}

// Time interprets h as an offset from the Unix epoch.
func (h HiRes) Time() time.Time {
	sec, nsec := h.split()
	return time.Unix(int64(sec), nsec).UTC()
}

func (h HiRes) split() (uint64, int64) {
	sec := uint64(h) >> hiResShift
	frac := uint64(h) & (1<<hiResShift - 1)
	nsec := math.Round(float64(frac) * float64(time.Second) / float64(uint64(1)<<hiResShift))
	return sec, int64(nsec)
}

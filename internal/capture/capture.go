// Package capture reads collectd datagrams from files: pcap captures of UDP
// traffic, or raw files holding a single datagram payload.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog/log"
)

const (
	FormatPcap = "pcap"
	FormatRaw  = "raw"
)

var ErrTooLarge = errors.New("capture: datagram exceeds max size")

// Datagram is one UDP payload and where it came from.
type Datagram struct {
	Source    string
	Seq       int
	Timestamp time.Time
	Payload   []byte
}

// Options filters what ReadFile returns.
type Options struct {
	// Port selects UDP packets by destination port in pcap input. Zero
	// accepts every UDP packet.
	Port uint16
	// MaxDatagram bounds payload size; zero disables the check.
	MaxDatagram int
}

// Skipped counts packets dropped while reading a capture.
type Skipped struct {
	NotUDP    int
	OtherPort int
	TooLarge  int
}

// ReadFile reads every datagram from path, detecting pcap input by its magic
// number. Anything else is treated as one raw datagram.
func ReadFile(path string, opts Options) ([]Datagram, string, Skipped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", Skipped{}, fmt.Errorf("capture open failed (%s): %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if isPcap(br) {
		dgs, skipped, err := ReadPcap(path, br, opts)
		return dgs, FormatPcap, skipped, err
	}
	dg, err := ReadRaw(path, br, opts)
	if errors.Is(err, ErrTooLarge) {
		return nil, FormatRaw, Skipped{TooLarge: 1}, err
	}
	if err != nil {
		return nil, FormatRaw, Skipped{}, err
	}
	return []Datagram{dg}, FormatRaw, Skipped{}, nil
}

func isPcap(br *bufio.Reader) bool {
	magic, err := br.Peek(4)
	if err != nil {
		return false
	}
	switch binary.LittleEndian.Uint32(magic) {
	case 0xa1b2c3d4, 0xd4c3b2a1, 0xa1b23c4d, 0x4d3cb2a1:
		return true
	default:
		return false
	}
}

// ReadRaw reads r to the end as a single datagram.
func ReadRaw(source string, r io.Reader, opts Options) (Datagram, error) {
	limit := int64(opts.MaxDatagram)
	var payload []byte
	var err error
	if limit > 0 {
		payload, err = io.ReadAll(io.LimitReader(r, limit+1))
	} else {
		payload, err = io.ReadAll(r)
	}
	if err != nil {
		return Datagram{}, fmt.Errorf("capture read failed (%s): %w", source, err)
	}
	if limit > 0 && int64(len(payload)) > limit {
		return Datagram{}, fmt.Errorf("%w: %s larger than %d bytes", ErrTooLarge, source, limit)
	}
	return Datagram{Source: source, Payload: payload}, nil
}

// ReadPcap extracts UDP payloads from a pcap stream.
func ReadPcap(source string, r io.Reader, opts Options) ([]Datagram, Skipped, error) {
	var skipped Skipped
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, skipped, fmt.Errorf("capture pcap header invalid (%s): %w", source, err)
	}

	out := make([]Datagram, 0, 16)
	for seq := 0; ; seq++ {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				log.Warn().Str("source", source).Int("seq", seq).Msg("capture.ReadPcap truncated capture")
				break
			}
			return nil, skipped, fmt.Errorf("capture pcap read failed (%s): %w", source, err)
		}

		pkt := gopacket.NewPacket(data, pr.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udpLayer, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			skipped.NotUDP++
			continue
		}
		if opts.Port != 0 && uint16(udpLayer.DstPort) != opts.Port {
			skipped.OtherPort++
			continue
		}
		if opts.MaxDatagram > 0 && len(udpLayer.Payload) > opts.MaxDatagram {
			log.Warn().
				Str("source", source).
				Int("seq", seq).
				Int("len", len(udpLayer.Payload)).
				Int("max", opts.MaxDatagram).
				Msg("capture.ReadPcap datagram too large")
			skipped.TooLarge++
			continue
		}
		payload := make([]byte, len(udpLayer.Payload))
		copy(payload, udpLayer.Payload)
		out = append(out, Datagram{
			Source:    source,
			Seq:       seq,
			Timestamp: ci.Timestamp,
			Payload:   payload,
		})
	}
	log.Debug().
		Str("source", source).
		Int("datagrams", len(out)).
		Int("not_udp", skipped.NotUDP).
		Int("other_port", skipped.OtherPort).
		Int("too_large", skipped.TooLarge).
		Msg("capture.ReadPcap ok")
	return out, skipped, nil
}

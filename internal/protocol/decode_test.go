package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/danmuck/collectdwire/internal/logging"
	"github.com/danmuck/collectdwire/internal/protocol/part"
	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
	"github.com/danmuck/collectdwire/internal/testutil/datagram"
	"github.com/danmuck/collectdwire/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func testTypes(t *testing.T) *typesdb.DB {
	t.Helper()
	db := typesdb.New()
	defs := strings.Join([]string{
		"if_octets rx:DERIVE:0:U, tx:DERIVE:0:U",
		"load shortterm:GAUGE:0:5000, midterm:GAUGE:0:5000, longterm:GAUGE:0:5000",
		"cpu value:DERIVE:0:U",
		"memory value:GAUGE:0:281474976710656",
	}, "\n")
	if err := db.Load(strings.NewReader(defs)); err != nil {
		t.Fatalf("load types: %v", err)
	}
	return db
}

func TestDecodeSingleRecord(t *testing.T) {
	testlog.Start(t)
	db := testTypes(t)
	buf := datagram.New().
		Host("h1").
		Plugin("cpu").
		Type("if_octets").
		TypeInstance("vnet0").
		Time(1000).
		Values(datagram.Derive(287122343), datagram.Derive(345751104)).
		Bytes()

	records, err := Decode(buf, db)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ifOctets, _ := db.Lookup("if_octets")
	want := []Record{{
		Host:         "h1",
		Plugin:       "cpu",
		Type:         "if_octets",
		TypeInstance: "vnet0",
		Time:         HiRes(1000 << 30),
		DataSources:  ifOctets,
		Kinds:        []typesdb.Kind{typesdb.Derive, typesdb.Derive},
		Values:       []float64{287122343, 345751104},
	}}
	if diff := cmp.Diff(want, records, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if got := records[0].Identifier(); got != "h1/cpu/if_octets-vnet0" {
		t.Fatalf("unexpected identifier %q", got)
	}
}

func TestDecodeLegacyTimeMatchesHighRes(t *testing.T) {
	testlog.Start(t)
	const sec = 1700000000
	legacy := datagram.New().Time(sec).Interval(10).Values(datagram.Gauge(1)).Bytes()
	highRes := datagram.New().TimeHR(sec << 30).IntervalHR(10 << 30).Values(datagram.Gauge(1)).Bytes()

	a, err := Decode(legacy, nil)
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	b, err := Decode(highRes, nil)
	if err != nil {
		t.Fatalf("decode high res: %v", err)
	}
	if a[0].Time != b[0].Time || a[0].Interval != b[0].Interval {
		t.Fatalf("legacy %d/%d != high res %d/%d", a[0].Time, a[0].Interval, b[0].Time, b[0].Interval)
	}
	if a[0].Time.Seconds() != sec {
		t.Fatalf("unexpected seconds %v", a[0].Time.Seconds())
	}
}

func TestDecodeGaugeIsLittleEndian(t *testing.T) {
	testlog.Start(t)
	records, err := Decode(datagram.New().Values(datagram.Gauge(3.25)).Bytes(), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if records[0].Values[0] != 3.25 {
		t.Fatalf("expected 3.25, got %v", records[0].Values[0])
	}

	payload := make([]byte, 2+1+8)
	binary.BigEndian.PutUint16(payload[0:2], 1)
	payload[2] = byte(typesdb.Gauge)
	binary.BigEndian.PutUint64(payload[3:], math.Float64bits(3.25))
	records, err = Decode(datagram.New().Part(part.TypeValues, payload).Bytes(), nil)
	if err != nil {
		t.Fatalf("decode swapped: %v", err)
	}
	if records[0].Values[0] == 3.25 {
		t.Fatalf("big-endian gauge must not decode to 3.25")
	}
}

func TestDecodeIntegerKindsAreBigEndianUnsigned(t *testing.T) {
	testlog.Start(t)
	buf := datagram.New().Values(
		datagram.Counter(1),
		datagram.Absolute(math.MaxUint64),
		datagram.Derive(1<<40),
	).Bytes()
	records, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []float64{1, float64(uint64(math.MaxUint64)), float64(uint64(1) << 40)}
	if diff := cmp.Diff(want, records[0].Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStatePersistsAcrossValues(t *testing.T) {
	testlog.Start(t)
	db := testTypes(t)
	buf := datagram.New().
		Host("h1").
		Plugin("cpu").
		PluginInstance("0").
		Type("cpu").
		TypeInstance("user").
		Values(datagram.Derive(10)).
		Values(datagram.Derive(20)).
		TypeInstance("system").
		Values(datagram.Derive(30)).
		Bytes()

	records, err := Decode(buf, db)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Host != "h1" || r.Plugin != "cpu" || r.PluginInstance != "0" || r.Type != "cpu" {
			t.Fatalf("record %d lost state: %+v", i, r)
		}
	}
	if records[0].TypeInstance != "user" || records[1].TypeInstance != "user" || records[2].TypeInstance != "system" {
		t.Fatalf("unexpected type instances: %q %q %q",
			records[0].TypeInstance, records[1].TypeInstance, records[2].TypeInstance)
	}
	if records[0].Values[0] != 10 || records[1].Values[0] != 20 || records[2].Values[0] != 30 {
		t.Fatalf("values not independent: %v %v %v", records[0].Values, records[1].Values, records[2].Values)
	}
	records[0].Values[0] = -1
	if records[1].Values[0] != 20 {
		t.Fatalf("records share a values buffer")
	}
}

func TestDecodeUnknownTypeStillYieldsRecord(t *testing.T) {
	testlog.Start(t)
	db := testTypes(t)
	buf := datagram.New().
		Type("if_octets").
		Values(datagram.Derive(1), datagram.Derive(2)).
		Type("no_such_type").
		Values(datagram.Gauge(1.5)).
		Bytes()

	records, err := Decode(buf, db)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].Known() {
		t.Fatalf("if_octets should resolve")
	}
	if records[1].Known() || len(records[1].DataSources) != 0 {
		t.Fatalf("unknown type kept stale data sources: %+v", records[1].DataSources)
	}
	if records[1].Type != "no_such_type" || records[1].Values[0] != 1.5 {
		t.Fatalf("unexpected record: %+v", records[1])
	}
}

func TestDecodeUnknownTypeLogsWarning(t *testing.T) {
	testlog.Start(t)
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var out bytes.Buffer
	logging.Apply(logging.Config{Level: zerolog.WarnLevel, NoColor: true, Out: &out})
	buf := datagram.New().Type("no_such_type").Values(datagram.Gauge(1)).Bytes()
	if _, err := Decode(buf, testTypes(t)); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "WRN") || !strings.Contains(got, "type=no_such_type") {
		t.Fatalf("registry miss not logged at warn: %q", got)
	}
}

func TestDecodeUnknownKindSubstitutesZero(t *testing.T) {
	testlog.Start(t)
	buf := datagram.New().
		Values(datagram.Gauge(2.5), datagram.Unknown(9), datagram.Derive(7), datagram.Unknown(4)).
		Bytes()
	records, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]float64{2.5, 0, 7, 0}, records[0].Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if records[0].Kinds[1] != typesdb.Kind(9) || records[0].Kinds[3] != typesdb.Kind(4) {
		t.Fatalf("wire kind not preserved: %v", records[0].Kinds)
	}
}

func TestDecodeShortPartStops(t *testing.T) {
	testlog.Start(t)
	buf := datagram.New().
		Host("h1").
		Values(datagram.Gauge(1)).
		Header(part.TypeHost, 2).
		Raw('x', 'y', 0).
		Values(datagram.Gauge(2)).
		Bytes()
	records, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("short part must not fail: %v", err)
	}
	if len(records) != 1 || records[0].Values[0] != 1 {
		t.Fatalf("expected the one record before the short part, got %+v", records)
	}
}

func TestDecodeTrailingBytesIgnored(t *testing.T) {
	testlog.Start(t)
	for _, trailing := range [][]byte{{0x00}, {0x00, 0x06}, {0x00, 0x06, 0x00}} {
		buf := datagram.New().Values(datagram.Gauge(1)).Raw(trailing...).Bytes()
		records, err := Decode(buf, nil)
		if err != nil {
			t.Fatalf("trailing %v: %v", trailing, err)
		}
		if len(records) != 1 {
			t.Fatalf("trailing %v: expected 1 record, got %d", trailing, len(records))
		}
	}
}

func TestDecodeOversizedPartFails(t *testing.T) {
	testlog.Start(t)
	buf := datagram.New().
		Values(datagram.Gauge(1)).
		Header(part.TypeHost, 64).
		Raw('h', 0).
		Bytes()
	records, err := Decode(buf, nil)
	if !errors.Is(err, ErrOversizedPart) {
		t.Fatalf("expected ErrOversizedPart, got %v", err)
	}
	var oe *part.OversizedPartError
	if !errors.As(err, &oe) || oe.Declared != 60 || oe.Remaining != 2 {
		t.Fatalf("unexpected error details: %+v", oe)
	}
	if records != nil {
		t.Fatalf("no records are usable from a rejected datagram, got %d", len(records))
	}
}

func TestDecodeSkipsUnsupportedParts(t *testing.T) {
	testlog.Start(t)
	buf := datagram.New().
		Host("h1").
		Str(part.TypeMessage, "disk full").
		Uint64(part.TypeSeverity, 1).
		Part(part.Type(0x7777), []byte{1, 2, 3}).
		Values(datagram.Gauge(4)).
		Bytes()
	records, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].Host != "h1" || records[0].Values[0] != 4 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecodeMalformedPartsAreLocal(t *testing.T) {
	testlog.Start(t)
	buf := datagram.New().
		Time(5).
		// too short for a time value
		Part(part.TypeTime, []byte{1, 2, 3}).
		// count 2 with a single kind and no slots
		Part(part.TypeValues, []byte{0x00, 0x02, 0x01}).
		Values(datagram.Gauge(8)).
		Bytes()
	records, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected malformed values part to be skipped, got %d records", len(records))
	}
	if records[0].Time != FromSeconds(5) || records[0].Values[0] != 8 {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestDecodeValuesShortPayload(t *testing.T) {
	testlog.Start(t)
	for name, payload := range map[string][]byte{
		"no count":      {0x00},
		"missing slots": {0x00, 0x02, 0x01, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := decodeValues(payload, 0); !errors.Is(err, ErrShortValues) {
				t.Fatalf("expected ErrShortValues, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyAndZeroValueParts(t *testing.T) {
	testlog.Start(t)
	records, err := Decode(nil, nil)
	if err != nil || len(records) != 0 {
		t.Fatalf("empty buffer: records=%v err=%v", records, err)
	}
	records, err = Decode(datagram.New().Host("").Values().Bytes(), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || len(records[0].Values) != 0 {
		t.Fatalf("expected one empty record, got %+v", records)
	}
}

func TestDecodeDoesNotMutateTypes(t *testing.T) {
	testlog.Start(t)
	db := testTypes(t)
	before := db.Names()
	buf := datagram.New().Type("load").Values(datagram.Gauge(1), datagram.Gauge(2), datagram.Gauge(3)).Bytes()
	records, err := Decode(buf, db)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	records[0].DataSources[0].Name = "changed"
	records[0].DataSources[1].Kind = typesdb.Derive
	_ = append(records[0].DataSources, typesdb.DataSource{Name: "extra"})
	sources, _ := db.Lookup("load")
	if len(sources) != 3 {
		t.Fatalf("types db entry grew: %+v", sources)
	}
	if sources[0].Name != "shortterm" || sources[1].Kind != typesdb.Gauge {
		t.Fatalf("record edit reached the types db: %+v", sources)
	}
	if diff := cmp.Diff(before, db.Names()); diff != "" {
		t.Fatalf("types db changed (-before +after):\n%s", diff)
	}
}

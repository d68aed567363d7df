package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/danmuck/collectdwire/internal/protocol"
)

type jsonRecord struct {
	Source         string     `json:"source"`
	Seq            int        `json:"seq"`
	Host           string     `json:"host"`
	Plugin         string     `json:"plugin"`
	PluginInstance string     `json:"plugin_instance"`
	Type           string     `json:"type"`
	TypeInstance   string     `json:"type_instance"`
	Time           float64    `json:"time"`
	Interval       float64    `json:"interval"`
	DSNames        []string   `json:"dsnames"`
	DSTypes        []string   `json:"dstypes"`
	Values         []*float64 `json:"values"`
}

type jsonError struct {
	Source string `json:"source"`
	Seq    int    `json:"seq"`
	Error  string `json:"error"`
}

func writeResults(w io.Writer, format string, results []fileResult) error {
	switch format {
	case "text":
		return writeText(w, results)
	default:
		return writeJSON(w, results)
	}
}

func writeJSON(w io.Writer, results []fileResult) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		for _, dg := range res.Datagrams {
			if dg.Err != nil {
				if err := enc.Encode(jsonError{Source: dg.Source, Seq: dg.Seq, Error: dg.Err.Error()}); err != nil {
					return err
				}
				continue
			}
			for _, rec := range dg.Records {
				if err := enc.Encode(toJSON(dg.Source, dg.Seq, rec)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func toJSON(source string, seq int, rec protocol.Record) jsonRecord {
	values := make([]*float64, len(rec.Values))
	for i, v := range rec.Values {
		v := v
		// NaN and Inf have no JSON form
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values[i] = &v
	}
	return jsonRecord{
		Source:         source,
		Seq:            seq,
		Host:           rec.Host,
		Plugin:         rec.Plugin,
		PluginInstance: rec.PluginInstance,
		Type:           rec.Type,
		TypeInstance:   rec.TypeInstance,
		Time:           rec.Time.Seconds(),
		Interval:       rec.Interval.Seconds(),
		DSNames:        rec.DSNames(),
		DSTypes:        rec.DSTypes(),
		Values:         values,
	}
}

func writeText(w io.Writer, results []fileResult) error {
	for _, res := range results {
		for _, dg := range res.Datagrams {
			if dg.Err != nil {
				if _, err := fmt.Fprintf(w, "%s#%d error: %v\n", dg.Source, dg.Seq, dg.Err); err != nil {
					return err
				}
				continue
			}
			for _, rec := range dg.Records {
				samples := rec.Samples()
				parts := make([]string, len(samples))
				for i, s := range samples {
					parts[i] = s.Name + "=" + strconv.FormatFloat(s.Value, 'g', -1, 64)
				}
				if _, err := fmt.Fprintf(w, "%s %s %s\n",
					rec.Identifier(),
					strconv.FormatFloat(rec.Time.Seconds(), 'f', 3, 64),
					strings.Join(parts, " "),
				); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func bound(v float64) string {
	if math.IsNaN(v) {
		return "U"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

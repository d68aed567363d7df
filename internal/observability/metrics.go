package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Datagram results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultTooLarge = "too_large"
)

var (
	registerOnce sync.Once

	datagrams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectdwire",
			Subsystem: "decode",
			Name:      "datagrams_total",
			Help:      "Datagrams handed to the decoder, by input format and result.",
		},
		[]string{"format", "result"},
	)
	records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectdwire",
			Subsystem: "decode",
			Name:      "records_total",
			Help:      "Metric sample records produced.",
		},
		[]string{"format"},
	)
	unknownTypes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collectdwire",
			Subsystem: "decode",
			Name:      "unknown_types_total",
			Help:      "Records whose type had no types.db definition.",
		},
		[]string{"format"},
	)
	decodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collectdwire",
			Subsystem: "decode",
			Name:      "duration_seconds",
			Help:      "Time spent decoding one datagram.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"format"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(datagrams, records, unknownTypes, decodeDuration)
	})
}

// RecordDatagram counts one decode attempt. produced and unknown are only
// meaningful when result is ResultOK.
func RecordDatagram(format, result string, produced, unknown int, duration time.Duration) {
	RegisterMetrics()
	datagrams.WithLabelValues(format, result).Inc()
	if result != ResultOK {
		return
	}
	records.WithLabelValues(format).Add(float64(produced))
	unknownTypes.WithLabelValues(format).Add(float64(unknown))
	decodeDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// WriteTextfile writes the default registry in the text exposition format,
// for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

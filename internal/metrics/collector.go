package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Line results / 行处理结果
const (
	LineParsed    = "parsed"
	LineMalformed = "malformed"
	LineFiltered  = "filtered"
	LineOversized = "oversized"
)

var (
	// Tail pipeline metrics
	LinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktstream_lines_total",
			Help: "Capture file lines consumed, by result",
		},
		[]string{"result"},
	)
	BytesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktstream_bytes_consumed_total",
			Help: "Bytes of the capture file consumed by the tail loop",
		},
	)

	// Session metrics
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktstream_sessions_total",
			Help: "Capture sessions by final state",
		},
		[]string{"state"},
	)
	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pktstream_session_active",
			Help: "1 while a capture session is in progress",
		},
	)
	StartRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktstream_start_rejected_total",
			Help: "Start requests rejected because a session was already running",
		},
	)

	// Viewer metrics
	ViewersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pktstream_viewers_connected",
			Help: "Currently registered viewer connections",
		},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktstream_events_published_total",
			Help: "Events published to viewers, by kind",
		},
		[]string{"kind"},
	)
	ViewerDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktstream_viewer_drops_total",
			Help: "Viewer connections removed after a delivery failure",
		},
		[]string{"reason"},
	)
)

// ObserveLine counts one consumed line.
// ObserveLine 统计一行处理结果。
func ObserveLine(result string) {
	LinesTotal.WithLabelValues(result).Inc()
}

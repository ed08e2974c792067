package h2

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperframe_frames_received_total",
			Help: "Total number of HTTP/2 frames parsed, by frame type",
		},
		[]string{"type"},
	)

	connectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperframe_connection_errors_total",
			Help: "Total number of connection-level protocol errors, by error code",
		},
		[]string{"code"},
	)

	streamErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hyperframe_stream_errors_total",
			Help: "Total number of stream-level header parse errors",
		},
	)

	goawaysGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hyperframe_goaways_generated_total",
			Help: "Total number of GOAWAY frames generated",
		},
	)

	headerBlockBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hyperframe_header_block_bytes",
			Help:    "Size of reassembled ingress header blocks in bytes",
			Buckets: []float64{128, 512, 2048, 8192, 32768, 131072},
		},
	)
)

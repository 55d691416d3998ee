/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records relay activity.
type Metrics struct {
	rooms        prometheus.Gauge
	peers        prometheus.Gauge
	joins        *prometheus.CounterVec
	frames       *prometheus.CounterVec
	dropped      prometheus.Counter
	tokens       *prometheus.CounterVec
	roomsReaped  prometheus.Counter
	frameLatency prometheus.Histogram
}

// NewMetrics registers the relay collectors with reg. A nil reg uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	f := promauto.With(reg)

	return &Metrics{
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "pointbox_rooms",
			Help: "Number of open rooms",
		}),
		peers: f.NewGauge(prometheus.GaugeOpts{
			Name: "pointbox_peers",
			Help: "Number of connected peers across all rooms",
		}),
		joins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pointbox_joins_total",
			Help: "Room join attempts by result",
		}, []string{"result"}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pointbox_frames_total",
			Help: "Frames relayed to peers by kind",
		}, []string{"kind"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "pointbox_slow_peers_dropped_total",
			Help: "Peers disconnected because their send buffer filled up",
		}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pointbox_tokens_total",
			Help: "Token requests by status code",
		}, []string{"code"}),
		roomsReaped: f.NewCounter(prometheus.CounterOpts{
			Name: "pointbox_rooms_reaped_total",
			Help: "Rooms closed after sitting idle",
		}),
		frameLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pointbox_fanout_duration_seconds",
			Help:    "Time spent fanning one data frame out to a room",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
}

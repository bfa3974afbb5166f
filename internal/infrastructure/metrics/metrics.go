package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunesync_events_relayed_total",
		Help: "Events fanned out to room members, labelled by action.",
	}, []string{"action"})

	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunesync_rooms_created_total",
		Help: "Rooms created since process start.",
	})

	RoomsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunesync_rooms_expired_total",
		Help: "Rooms reaped after passing their TTL.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunesync_connected_clients",
		Help: "Currently connected websocket clients.",
	})

	SongsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunesync_songs_uploaded_total",
		Help: "Audio files accepted by the upload endpoint.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunesync_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

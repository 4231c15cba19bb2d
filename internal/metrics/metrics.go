package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CapturesTotal counts location captures by result ("ok" or the
	// failure kind).
	CapturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrack_captures_total",
			Help: "Total location captures by result",
		},
		[]string{"result"},
	)

	// TransmissionsTotal counts POSTs to the tracking server by result.
	TransmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geotrack_transmissions_total",
			Help: "Total position transmissions by result",
		},
		[]string{"result"},
	)

	TransmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geotrack_transmission_duration_seconds",
			Help:    "Position transmission duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_session_active",
			Help: "1 while a tracking session is active",
		},
	)

	// EndpointHealth holds the last probe result: 0 down, 1 degraded, 2 up.
	EndpointHealth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geotrack_endpoint_health",
			Help: "Last tracking server probe result (0=down, 1=degraded, 2=up)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CapturesTotal,
		TransmissionsTotal,
		TransmissionDuration,
		SessionActive,
		EndpointHealth,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

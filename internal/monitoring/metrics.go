package monitoring

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/benchlink/internal/visa"
)

// Registry holds every benchlink collector. It is separate from the
// default registry so tests can inspect it without global Go metrics.
var Registry = prometheus.NewRegistry()

var (
	TransferPages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchlink_transfer_pages_total",
		Help: "Waveform memory pages read from instruments.",
	})
	TransferBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchlink_transfer_bytes_total",
		Help: "Raw sample bytes read from instruments.",
	})
	TransportErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benchlink_transport_errors_total",
		Help: "Failed link operations by operation.",
	}, []string{"op"})
	Acquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benchlink_acquisitions_total",
		Help: "Channel acquisitions by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(TransferPages, TransferBytes, TransportErrors, Acquisitions)
}

// ObserveError counts err if it is a link failure.
func ObserveError(err error) {
	var te *visa.TransportError
	if errors.As(err, &te) {
		TransportErrors.WithLabelValues(te.Op).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus counters for report building, dataset
// storage and the HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	reportsBuilt      prometheus.Counter
	detailFailures    prometheus.Counter
	buildDuration     prometheus.Histogram
	datasetsStored    prometheus.Counter
	datasetsExpired   prometheus.Counter
	pdfRenders        *prometheus.CounterVec
}

// New creates metrics on a private registry so several instances can coexist.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivereport_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drivereport_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		reportsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivereport_reports_built_total",
			Help: "Total per-driver reports assembled.",
		}),
		detailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivereport_detail_failures_total",
			Help: "Detail section assemblies that degraded to an empty list.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drivereport_batch_build_duration_seconds",
			Help:    "Histogram of batch build durations.",
			Buckets: prometheus.DefBuckets,
		}),
		datasetsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivereport_datasets_stored_total",
			Help: "Total datasets uploaded.",
		}),
		datasetsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivereport_datasets_expired_total",
			Help: "Total datasets removed by expiry sweeps.",
		}),
		pdfRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivereport_pdf_renders_total",
			Help: "Total PDF renders by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.reportsBuilt,
		m.detailFailures,
		m.buildDuration,
		m.datasetsStored,
		m.datasetsExpired,
		m.pdfRenders,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes latency for a route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReportBuilt() {
	if m == nil {
		return
	}
	m.reportsBuilt.Inc()
}

func (m *Metrics) DetailFailure() {
	if m == nil {
		return
	}
	m.detailFailures.Inc()
}

func (m *Metrics) BatchBuilt(d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(d.Seconds())
}

func (m *Metrics) DatasetStored() {
	if m == nil {
		return
	}
	m.datasetsStored.Inc()
}

func (m *Metrics) DatasetsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.datasetsExpired.Add(float64(n))
}

func (m *Metrics) PDFRendered(success bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.pdfRenders.WithLabelValues(result).Inc()
}

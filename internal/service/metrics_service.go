package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// domain workflows.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	complaintEvents *prometheus.CounterVec
	transcriptState *prometheus.CounterVec
	paymentCharges  *prometheus.CounterVec
	emailQueued     prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	complaintEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "complaint_events_total",
		Help: "Complaint workflow events by kind",
	}, []string{"event"})

	transcriptState := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_requests_total",
		Help: "Transcript requests by resulting status",
	}, []string{"status"})

	paymentCharges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_charges_total",
		Help: "Mobile-money charges by provider and outcome",
	}, []string{"provider", "outcome"})

	emailQueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emails_queued_total",
		Help: "Outbound emails enqueued for delivery",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, complaintEvents, transcriptState, paymentCharges, emailQueued, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		complaintEvents: complaintEvents,
		transcriptState: transcriptState,
		paymentCharges:  paymentCharges,
		emailQueued:     emailQueued,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request timing and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// CountComplaintEvent records a complaint workflow event (created, escalated,
// resolved, bulk_resolved).
func (m *MetricsService) CountComplaintEvent(event string) {
	if m == nil {
		return
	}
	m.complaintEvents.WithLabelValues(event).Inc()
}

// CountTranscript records a transcript request by resulting status.
func (m *MetricsService) CountTranscript(status string) {
	if m == nil {
		return
	}
	m.transcriptState.WithLabelValues(status).Inc()
}

// CountPaymentCharge records a charge attempt by provider and outcome.
func (m *MetricsService) CountPaymentCharge(provider, outcome string) {
	if m == nil {
		return
	}
	m.paymentCharges.WithLabelValues(provider, outcome).Inc()
}

// CountEmailQueued records an enqueued outbound email.
func (m *MetricsService) CountEmailQueued() {
	if m == nil {
		return
	}
	m.emailQueued.Inc()
}

// Package telemetry exports Prometheus metrics and OpenTelemetry traces for
// the SOAP endpoint and its HTTP host.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/foomo/soapgreeter/pkg/soap"
)

const (
	outcomeSuccess = "success"
	outcomeFault   = "fault"
)

// Metrics holds the collectors registered for one service instance.
type Metrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	faults            *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soap_operations_total",
				Help: "Total number of dispatched SOAP operations",
			},
			[]string{"path", "action", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soap_operation_duration_seconds",
				Help:    "SOAP operation handler latency in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"path", "action"},
		),
		faults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soap_faults_total",
				Help: "Total number of SOAP faults returned by operation handlers",
			},
			[]string{"path", "action", "code"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// ObserveOperation implements soap.OperationObserver.
func (m *Metrics) ObserveOperation(path, action string, duration time.Duration, err error) {
	m.operationDuration.WithLabelValues(path, action).Observe(duration.Seconds())
	if err == nil {
		m.operations.WithLabelValues(path, action, outcomeSuccess).Inc()
		return
	}
	m.operations.WithLabelValues(path, action, outcomeFault).Inc()
	code := soap.FaultCodeServer
	var fault *soap.Fault
	if errors.As(err, &fault) && fault.Code != "" {
		code = fault.Code
	}
	m.faults.WithLabelValues(path, action, code).Inc()
}

// Middleware counts requests by method and status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

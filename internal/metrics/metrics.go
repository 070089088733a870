// Package metrics exposes Prometheus counters for HTTP, gRPC and submissions.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics owns the collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpErrorsTotal     *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	grpcRequestsTotal   *prometheus.CounterVec
	grpcRequestDuration *prometheus.HistogramVec

	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoquest_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		}, []string{"method", "route"}),
		httpErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoquest_http_errors_total",
			Help: "Total number of HTTP requests resulting in server errors.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecoquest_http_request_duration_seconds",
			Help:    "Histogram of latencies for HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		grpcRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoquest_grpc_requests_total",
			Help: "Total number of gRPC calls by method and status code.",
		}, []string{"method", "code"}),
		grpcRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecoquest_grpc_request_duration_seconds",
			Help:    "Histogram of latencies for gRPC calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		submissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoquest_submissions_total",
			Help: "Activity submissions by outcome and image verification result.",
		}, []string{"outcome", "verification"}),
		submissionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecoquest_submission_duration_seconds",
			Help:    "Histogram of end-to-end submission latencies.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveSubmission counts one submission.
func (m *Metrics) ObserveSubmission(outcome, verification string, d time.Duration) {
	if verification == "" {
		verification = "none"
	}
	m.submissionsTotal.WithLabelValues(outcome, verification).Inc()
	m.submissionDuration.Observe(d.Seconds())
}

// Middleware records request metrics labelled by chi route pattern.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// the pattern is only complete after routing
			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			statusCode := strconv.Itoa(status)

			m.httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			m.httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
			if status >= http.StatusInternalServerError {
				m.httpErrorsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
			}
		})
	}
}

// UnaryInterceptor records gRPC call metrics.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.grpcRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		m.grpcRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

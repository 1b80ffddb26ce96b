package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300}

// Metrics holds the console's collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	actions         *prometheus.CounterVec
	lockHold        *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyops",
			Subsystem: "orchestrator",
			Name:      "actions_total",
			Help:      "Count of orchestrated actions by outcome",
		}, []string{"action", "outcome"}),
		lockHold: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lazyops",
			Subsystem: "orchestrator",
			Name:      "lock_hold_seconds",
			Help:      "Time an action lock stayed in flight",
			Buckets:   histogramBuckets,
		}, []string{"action"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyops",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Count of backend requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lazyops",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of backend requests",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(m.actions, m.lockHold, m.requestTotal, m.requestDuration)
	return m
}

// ObserveAction counts one settled action.
func (m *Metrics) ObserveAction(action, outcome string) {
	m.actions.With(prometheus.Labels{"action": action, "outcome": outcome}).Inc()
}

// ObserveLockHold records how long a lock stayed in flight.
func (m *Metrics) ObserveLockHold(action string, held time.Duration) {
	m.lockHold.With(prometheus.Labels{"action": action}).Observe(held.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Transport wraps next so every backend request is counted and timed.
func (m *Metrics) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(req)
		status := "error"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		labels := prometheus.Labels{
			"method": req.Method,
			"route":  Route(req.URL.Path),
			"status": status,
		}
		m.requestTotal.With(labels).Inc()
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		return resp, err
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// Route replaces numeric path segments with ":id" to bound label cardinality.
func Route(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

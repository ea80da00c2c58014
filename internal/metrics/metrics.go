package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodian",
			Subsystem: "worker",
			Name:      "sends_total",
			Help:      "Total number of send attempts",
		},
		[]string{"chain", "model", "status"},
	)

	sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "custodian",
			Subsystem: "worker",
			Name:      "send_duration_seconds",
			Help:      "Time taken to orchestrate a send end to end",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"chain", "model"},
	)

	sponsoredOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodian",
			Subsystem: "worker",
			Name:      "sponsored_operations_total",
			Help:      "Total number of gas-sponsored user operations submitted",
		},
		[]string{"chain"},
	)

	rateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodian",
			Subsystem: "worker",
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of sponsored sends rejected by the rate limiter",
		},
		[]string{"chain"},
	)

	statusUnknownTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "custodian",
			Subsystem: "worker",
			Name:      "status_unknown_total",
			Help:      "Sends whose inclusion could not be confirmed before polling gave up",
		},
	)
)

// RecordSend records the outcome of one send attempt.
func RecordSend(chain, model, status string, elapsed time.Duration) {
	sendsTotal.WithLabelValues(chain, model, status).Inc()
	sendDuration.WithLabelValues(chain, model).Observe(elapsed.Seconds())
}

func RecordSponsoredOp(chain string) {
	sponsoredOpsTotal.WithLabelValues(chain).Inc()
}

func RecordRateLimitRejection(chain string) {
	rateLimitRejectionsTotal.WithLabelValues(chain).Inc()
}

func RecordStatusUnknown() {
	statusUnknownTotal.Inc()
}

// RegisterMetrics registers the worker metrics plus the standard Go and
// process collectors.
func RegisterMetrics(logger *logrus.Logger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	registerIfNotExists(sendsTotal, "sends_total", logger)
	registerIfNotExists(sendDuration, "send_duration", logger)
	registerIfNotExists(sponsoredOpsTotal, "sponsored_operations_total", logger)
	registerIfNotExists(rateLimitRejectionsTotal, "rate_limit_rejections_total", logger)
	registerIfNotExists(statusUnknownTotal, "status_unknown_total", logger)
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string, logger *logrus.Logger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

// Server exposes the Prometheus endpoint on its own port.
type Server struct {
	srv *http.Server
}

// StartMetricsServer registers the worker metrics and serves /metrics on
// the given port in the background.
func StartMetricsServer(port string, logger *logrus.Logger) *Server {
	RegisterMetrics(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server failed: %v", err)
		}
	}()

	return &Server{srv: srv}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

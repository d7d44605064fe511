package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/panel-keeper/internal/status"
)

var (
	metricStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Name:      "status",
		Help:      "Inferred resource status, one-hot by status label.",
	}, []string{"status"})

	metricActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Name:      "actions_total",
		Help:      "Dispatched actions by action, source and outcome.",
	}, []string{"action", "source", "outcome"})

	metricStrategy = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Name:      "strategy_used_total",
		Help:      "Locator strategy that produced a successful activation.",
	}, []string{"action", "strategy"})

	metricObservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Name:      "observations_total",
		Help:      "Status inferences by matching rule.",
	}, []string{"result"})

	metricCycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Name:      "cycle_errors_total",
		Help:      "Aborted loop iterations by loop.",
	}, []string{"loop"})

	metricSessionWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keeper",
		Name:      "session_wait_seconds",
		Help:      "Time spent waiting for exclusive session access.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
	})

	metricSleep = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keeper",
		Name:      "sleep_seconds",
		Help:      "Reconcile loop sleeps by reason.",
		Buckets:   []float64{1, 5, 10, 15, 30, 60, 120, 300, 600},
	}, []string{"reason"})
)

// SetStatus marks s as the current status.
func SetStatus(s status.Status) {
	for _, v := range status.All {
		val := 0.0
		if v == s {
			val = 1
		}
		metricStatus.WithLabelValues(v.String()).Set(val)
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveAction counts one dispatch.
func ObserveAction(action status.ActionType, source status.ActionSource, ok bool, strategy string) {
	metricActions.WithLabelValues(string(action), string(source), outcome(ok)).Inc()
	if ok && strategy != "" {
		metricStrategy.WithLabelValues(string(action), strategy).Inc()
	}
}

// ObserveInference counts one evaluation by rule name.
func ObserveInference(result string) {
	metricObservations.WithLabelValues(result).Inc()
}

// ObserveCycleError counts one aborted iteration.
func ObserveCycleError(loop string) {
	metricCycleErrors.WithLabelValues(loop).Inc()
}

// ObserveSessionWait records guard contention.
func ObserveSessionWait(d time.Duration) {
	metricSessionWait.Observe(d.Seconds())
}

// ObserveSleep records one loop sleep.
func ObserveSleep(reason string, d time.Duration) {
	metricSleep.WithLabelValues(reason).Observe(d.Seconds())
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

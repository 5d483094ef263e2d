// Package metrics exposes smoke run outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jmylchreest/apismoke/internal/suite"
	"github.com/jmylchreest/apismoke/internal/version"
)

const namespace = "apismoke"

// Label values for the result label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector holds the run metrics.
type Collector struct {
	BuildInfo        *prometheus.GaugeVec
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastRunSuccess   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	CheckPassed      *prometheus.GaugeVec
	CheckDuration    *prometheus.GaugeVec
	ResultsFailed    prometheus.Gauge
}

// Bundle pairs a private registry with the collector registered on it.
type Bundle struct {
	Registry  *prometheus.Registry
	Collector *Collector
}

// NewBundle creates a registry with the run metrics and the Go and process
// collectors registered.
func NewBundle() *Bundle {
	reg := prometheus.NewRegistry()
	c := NewCollector()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.BuildInfo,
		c.RunsTotal,
		c.RunDuration,
		c.LastRunSuccess,
		c.LastRunTimestamp,
		c.CheckPassed,
		c.CheckDuration,
		c.ResultsFailed,
	)

	info := version.GetInfo()
	c.BuildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)

	return &Bundle{Registry: reg, Collector: c}
}

// NewCollector creates unregistered run metrics.
func NewCollector() *Collector {
	return &Collector{
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information; value is always 1.",
		}, []string{"version", "commit", "go_version"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed smoke runs by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of complete smoke runs.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the most recent run passed, 0 otherwise.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished.",
		}),
		CheckPassed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_passed",
			Help:      "1 if the check passed in the most recent run, 0 otherwise.",
		}, []string{"check"}),
		CheckDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of the check in the most recent run.",
		}, []string{"check"}),
		ResultsFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_results_failed",
			Help:      "Failed results recorded by the most recent run.",
		}),
	}
}

// Observe records one completed run.
func (c *Collector) Observe(outcome *suite.Outcome) {
	result := ResultFailure
	success := 0.0
	if outcome.Success {
		result = ResultSuccess
		success = 1
	}

	c.RunsTotal.WithLabelValues(result).Inc()
	c.RunDuration.Observe(outcome.Duration().Seconds())
	c.LastRunSuccess.Set(success)
	c.LastRunTimestamp.Set(float64(outcome.FinishedAt.Unix()))
	c.ResultsFailed.Set(float64(outcome.Stats.ResultsFailed()))

	for _, check := range outcome.Checks {
		passed := 0.0
		if check.Passed {
			passed = 1
		}
		c.CheckPassed.WithLabelValues(check.Name).Set(passed)
		c.CheckDuration.WithLabelValues(check.Name).Set(check.Elapsed.Seconds())
	}
}

// ObserveError records a run that could not start.
func (c *Collector) ObserveError() {
	c.RunsTotal.WithLabelValues(ResultFailure).Inc()
	c.LastRunSuccess.Set(0)
}

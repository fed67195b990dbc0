package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/subprobe-go/internal/model"
	"github.com/John-Robertt/subprobe-go/internal/pipeline"
)

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the default one. It also implements
// pipeline.Observer.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	appErrors    *prometheus.CounterVec

	runs           prometheus.Counter
	probes         *prometheus.CounterVec
	routed         *prometheus.CounterVec
	sourcesSkipped *prometheus.CounterVec
	lastDuration   prometheus.Gauge
	lastFinished   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subprobe_http_requests_total",
			Help: "HTTP requests by route pattern and status.",
		}, []string{"route", "status"}),
		appErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subprobe_app_errors_total",
			Help: "Application errors returned to clients.",
		}, []string{"stage", "code"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subprobe_runs_total",
			Help: "Finished pipeline runs.",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subprobe_probes_total",
			Help: "Probed records by tier.",
		}, []string{"tier"}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subprobe_records_routed_total",
			Help: "Records routed into buckets by tier and protocol.",
		}, []string{"tier", "protocol"}),
		sourcesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subprobe_sources_skipped_total",
			Help: "Skipped subscription sources by reason.",
		}, []string{"reason"}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subprobe_last_run_duration_seconds",
			Help: "Wall time of the last finished run.",
		}),
		lastFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subprobe_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.appErrors,
		m.runs, m.probes, m.routed, m.sourcesSkipped,
		m.lastDuration, m.lastFinished,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) incRequest(route string, status int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) incAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	m.appErrors.WithLabelValues(stage, code).Inc()
}

// ObserveRun records the totals of a finished run.
func (m *Metrics) ObserveRun(res *pipeline.Result) {
	if res == nil {
		return
	}
	m.runs.Inc()
	for key, recs := range res.Buckets {
		m.routed.WithLabelValues(string(key.Tier), string(key.Protocol)).Add(float64(len(recs)))
	}
	m.lastDuration.Set(res.Duration.Seconds())
	m.lastFinished.Set(float64(res.StartedAt.Add(res.Duration).Unix()))
}

func (m *Metrics) ProbesQueued(int) {}

func (m *Metrics) ProbeDone(_ model.ConfigRecord, res model.ProbeResult) {
	m.probes.WithLabelValues(string(res.Tier)).Inc()
}

func (m *Metrics) SourceDone(sr pipeline.SourceResult) {
	if sr.Status == pipeline.StatusSkipped {
		m.sourcesSkipped.WithLabelValues(sr.Reason).Inc()
	}
}

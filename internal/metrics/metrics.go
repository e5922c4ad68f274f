package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/bbngrid/internal/collect"
)

const prefix = "bbngrid_"

const (
	outcomeLabel = "outcome"
	exitLabel    = "exit_code"
	phaseLabel   = "phase"
)

// BatchMetrics records batch progress as prometheus metrics.
type BatchMetrics struct {
	jobsTotal     prometheus.Gauge
	jobsRunning   prometheus.Gauge
	jobsDone      *prometheus.CounterVec
	exitCodes     *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	batchesEnded  *prometheus.CounterVec
	batchDuration prometheus.Histogram
	allMetrics    []prometheus.Collector

	mu      sync.Mutex
	started map[int]time.Time
	now     func() time.Time
}

func New() *BatchMetrics {
	m := &BatchMetrics{
		jobsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "batch_jobs",
			Help: "Number of jobs in the current batch",
		}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "jobs_running",
			Help: "Number of simulator processes currently running",
		}),
		jobsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "jobs_done_total",
			Help: "Completed jobs by outcome",
		}, []string{outcomeLabel}),
		exitCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "job_exit_codes_total",
			Help: "Simulator exit codes",
		}, []string{exitLabel}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "job_duration_seconds",
			Help:    "Wall time of one simulator run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		batchesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "batches_total",
			Help: "Batches by final phase",
		}, []string{phaseLabel}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "batch_duration_seconds",
			Help:    "Wall time of a whole batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		started: make(map[int]time.Time),
		now:     time.Now,
	}
	m.allMetrics = []prometheus.Collector{
		m.jobsTotal, m.jobsRunning, m.jobsDone, m.exitCodes,
		m.jobDuration, m.batchesEnded, m.batchDuration,
	}
	return m
}

// Register adds every metric to r.
func (m *BatchMetrics) Register(r prometheus.Registerer) error {
	for _, c := range m.allMetrics {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *BatchMetrics) BatchStarted(total int) {
	m.mu.Lock()
	m.started = make(map[int]time.Time)
	m.mu.Unlock()
	m.jobsTotal.Set(float64(total))
	m.jobsRunning.Set(0)
}

func (m *BatchMetrics) JobStarted(id int) {
	m.mu.Lock()
	m.started[id] = m.now()
	m.mu.Unlock()
	m.jobsRunning.Inc()
}

func (m *BatchMetrics) JobDone(id int, outcome collect.Outcome, exitCode int) {
	m.mu.Lock()
	start, ok := m.started[id]
	delete(m.started, id)
	m.mu.Unlock()

	if ok {
		m.jobsRunning.Dec()
		m.jobDuration.Observe(m.now().Sub(start).Seconds())
	}
	m.jobsDone.WithLabelValues(outcome.String()).Inc()
	m.exitCodes.WithLabelValues(strconv.Itoa(exitCode)).Inc()
}

func (m *BatchMetrics) BatchEnded(phase string, d time.Duration) {
	m.mu.Lock()
	m.started = make(map[int]time.Time)
	m.mu.Unlock()
	m.jobsRunning.Set(0)
	m.batchesEnded.WithLabelValues(phase).Inc()
	m.batchDuration.Observe(d.Seconds())
}

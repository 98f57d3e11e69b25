// Package monitoring times the stages of the rupture filtering pipeline and
// exports them as Prometheus metrics.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// Stage names a measurable step of the filtering pipeline.
type Stage string

const (
	StageFilterSources    Stage = "filter_sources"
	StageGenerateRuptures Stage = "generate_ruptures"
	StageFilterRuptures   Stage = "filter_ruptures"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageFilterSources, StageGenerateRuptures, StageFilterRuptures}

// StageStats accumulates the work done in one stage.
type StageStats struct {
	Stage    Stage         `json:"stage"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
}

// MetricsSnapshot is a point-in-time copy of the stage totals.
type MetricsSnapshot struct {
	Stages      []StageStats `json:"stages"`
	CollectedAt time.Time    `json:"collected_at"`
}

// Get returns the totals of one stage.
func (s MetricsSnapshot) Get(stage Stage) StageStats {
	for _, st := range s.Stages {
		if st.Stage == stage {
			return st
		}
	}
	return StageStats{Stage: stage}
}

// Monitor records stage durations and item counts. A nil *Monitor is a
// valid no-op monitor.
type Monitor struct {
	durations *prometheus.HistogramVec
	items     *prometheus.CounterVec

	mu     sync.Mutex
	totals map[Stage]*StageStats
}

// NewMonitor registers the stage metrics against reg, defaulting to the
// global registry when nil. Registering twice reuses the existing vectors.
func NewMonitor(reg prometheus.Registerer) (*Monitor, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hazard_stage_duration_seconds",
		Help:    "Time spent per item in each stage of the rupture filtering pipeline.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"stage"}))
	if err != nil {
		return nil, err
	}

	items, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hazard_stage_items_total",
		Help: "Number of items processed by each stage of the rupture filtering pipeline.",
	}, []string{"stage"}))
	if err != nil {
		return nil, err
	}

	return &Monitor{
		durations: durations,
		items:     items,
		totals:    make(map[Stage]*StageStats),
	}, nil
}

// Start begins timing one item of a stage. The returned func stops the
// timer and records the item.
func (m *Monitor) Start(stage Stage) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Add(stage, time.Since(start), 1)
	}
}

// Add records n items that took d in total.
func (m *Monitor) Add(stage Stage, d time.Duration, n int) {
	if m == nil {
		return
	}
	m.durations.WithLabelValues(string(stage)).Observe(d.Seconds())
	m.items.WithLabelValues(string(stage)).Add(float64(n))

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.totals[stage]
	if !ok {
		st = &StageStats{Stage: stage}
		m.totals[stage] = st
	}
	st.Count += n
	st.Duration += d
}

// Snapshot returns the totals of every pipeline stage.
func (m *Monitor) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{CollectedAt: time.Now().UTC()}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stage := range Stages {
		st := StageStats{Stage: stage}
		if t, ok := m.totals[stage]; ok {
			st = *t
		}
		snap.Stages = append(snap.Stages, st)
	}
	return snap
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, eris.New("monitoring: counter already registered with incompatible type")
		}
		return nil, eris.Wrap(err, "monitoring: register counter")
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, eris.New("monitoring: histogram already registered with incompatible type")
		}
		return nil, eris.Wrap(err, "monitoring: register histogram")
	}
	return vec, nil
}

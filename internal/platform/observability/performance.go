package observability

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultSlowThreshold is the latency above which an operation is logged as slow
const DefaultSlowThreshold = 500 * time.Millisecond

// ErrorSuffix tags samples recorded for failed operations
const ErrorSuffix = ":error"

// Sample is one measured operation
type Sample struct {
	Name      string
	Duration  time.Duration
	Timestamp time.Time
}

// OperationStats summarises the samples recorded under one name
type OperationStats struct {
	Name    string
	Count   int
	Average time.Duration
	Max     time.Duration
}

// PerfMonitor records the duration of every measured operation.
// The sample list is append-only for the lifetime of the process.
type PerfMonitor struct {
	mu        sync.RWMutex
	samples   []Sample
	threshold time.Duration
	logger    *Logger
	metrics   *Metrics
	now       func() time.Time
}

// PerfOption configures a PerfMonitor
type PerfOption func(*PerfMonitor)

// WithPerfClock overrides the clock used for timing
func WithPerfClock(now func() time.Time) PerfOption {
	return func(m *PerfMonitor) { m.now = now }
}

// WithSlowThreshold overrides the slow operation threshold
func WithSlowThreshold(d time.Duration) PerfOption {
	return func(m *PerfMonitor) {
		if d > 0 {
			m.threshold = d
		}
	}
}

// NewPerfMonitor creates a performance monitor. logger and metrics may be nil.
func NewPerfMonitor(logger *Logger, metrics *Metrics, opts ...PerfOption) *PerfMonitor {
	if logger == nil {
		logger = NewNopLogger()
	}
	m := &PerfMonitor{
		threshold: DefaultSlowThreshold,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Measure runs fn and records its duration under name, or name+":error" if
// fn fails. The error from fn is returned unchanged. A nil monitor just runs fn.
func Measure[T any](ctx context.Context, m *PerfMonitor, name string, fn func(context.Context) (T, error)) (T, error) {
	if m == nil {
		return fn(ctx)
	}

	start := m.now()
	result, err := fn(ctx)
	duration := m.now().Sub(start)

	m.record(ctx, name, start, duration, err)
	return result, err
}

func (m *PerfMonitor) record(ctx context.Context, name string, start time.Time, duration time.Duration, err error) {
	sampleName := name
	if err != nil {
		sampleName = name + ErrorSuffix
	}

	m.mu.Lock()
	m.samples = append(m.samples, Sample{Name: sampleName, Duration: duration, Timestamp: start})
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordOperation(ctx, name, err == nil, duration)
	}

	if duration > m.threshold {
		m.logger.LogWarn(ctx, "slow operation",
			slog.String("operation", sampleName),
			slog.Duration("duration", duration),
			slog.Duration("threshold", m.threshold),
		)
	}
}

// Samples returns a copy of every recorded sample in recording order
func (m *PerfMonitor) Samples() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// AverageDuration returns the mean duration of samples named exactly name.
// Zero means no data, not a fast operation.
func (m *PerfMonitor) AverageDuration(name string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total time.Duration
	var count int
	for _, s := range m.samples {
		if s.Name == name {
			total += s.Duration
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// Summary groups samples by name, sorted by name
func (m *PerfMonitor) Summary() []OperationStats {
	m.mu.RLock()
	byName := make(map[string]*OperationStats)
	totals := make(map[string]time.Duration)
	for _, s := range m.samples {
		st, ok := byName[s.Name]
		if !ok {
			st = &OperationStats{Name: s.Name}
			byName[s.Name] = st
		}
		st.Count++
		totals[s.Name] += s.Duration
		if s.Duration > st.Max {
			st.Max = s.Duration
		}
	}
	m.mu.RUnlock()

	out := make([]OperationStats, 0, len(byName))
	for name, st := range byName {
		st.Average = totals[name] / time.Duration(st.Count)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

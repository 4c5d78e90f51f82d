// Package perf implements the performance monitor (C12): a bounded ring
// buffer of query metrics with slow-query logging and windowed summaries.
//
// Grounded on
// original_source/app/storage/vastdbmanager/analytics/performance_monitor.py.
package perf

import (
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jesseVast/tamscore/pkg/logger"
	"github.com/jesseVast/tamscore/pkg/metrics"
)

var log = logger.NewDefault("perf")

const (
	defaultMaxHistory        = 1000
	defaultSlowQueryThreshold = 5 * time.Second
)

// QueryMetric is one recorded query execution.
type QueryMetric struct {
	QueryType      string
	TableName      string
	ExecutionTime  time.Duration
	RowsReturned   int
	SplitsUsed     int
	SubsplitsUsed  int
	Timestamp      time.Time
	Success        bool
	ErrorMessage   string
}

// Monitor is a bounded, mutex-guarded history of QueryMetrics.
type Monitor struct {
	mu                sync.Mutex
	history           []QueryMetric
	maxHistory        int
	slowQueryThreshold time.Duration
	metrics           *metrics.Registry
}

// New builds a Monitor capped at maxHistory entries (spec default 1000)
// and logging queries slower than slowThreshold (spec default 5s).
func New(maxHistory int, slowThreshold time.Duration, reg *metrics.Registry) *Monitor {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowQueryThreshold
	}
	return &Monitor{maxHistory: maxHistory, slowQueryThreshold: slowThreshold, metrics: reg}
}

// RecordQuery appends a completed query's metrics, evicting the oldest
// entry once the history exceeds maxHistory (FIFO ring buffer).
func (m *Monitor) RecordQuery(metric QueryMetric) {
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.history = append(m.history, metric)
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
	m.mu.Unlock()

	if metric.ExecutionTime > m.slowQueryThreshold {
		log.Warnf("slow query detected: %s on %s took %s", metric.QueryType, metric.TableName, metric.ExecutionTime)
	} else {
		log.Debugf("recorded %s query on %s: %s, %d rows", metric.QueryType, metric.TableName, metric.ExecutionTime, metric.RowsReturned)
	}

	if m.metrics != nil {
		m.metrics.RecordQuery(metric.QueryType, metric.TableName, metric.ExecutionTime.Seconds(), metric.Success)
	}
}

// Summary is the aggregate view returned by GetPerformanceSummary.
type Summary struct {
	TimeWindow        time.Duration
	TotalQueries      int
	SuccessfulQueries int
	FailedQueries     int
	SuccessRate       float64
	AvgExecutionTime  time.Duration
	MaxExecutionTime  time.Duration
	TotalRowsProcessed int
	QueryTypes        map[string]TypeStats
	Host              *HostStats
}

// HostStats is a point-in-time snapshot of process-host resource usage,
// sampled alongside query metrics so a slow-query spike can be correlated
// with host pressure rather than the columnar engine alone.
type HostStats struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedMB  uint64
}

// SampleHostStats reads current CPU and memory utilization via gopsutil.
// A non-nil error means sampling failed (e.g. unsupported platform); the
// caller should log and proceed without host stats rather than fail the
// whole summary.
func SampleHostStats() (HostStats, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return HostStats{}, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return HostStats{}, err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	return HostStats{
		CPUPercent:    cpuPct,
		MemoryPercent: vm.UsedPercent,
		MemoryUsedMB:  vm.Used / (1024 * 1024),
	}, nil
}

// TypeStats is the per-query-type breakdown within a Summary.
type TypeStats struct {
	Count     int
	AvgTime   time.Duration
	TotalRows int
}

// GetPerformanceSummary aggregates every metric recorded within window of
// now.
func (m *Monitor) GetPerformanceSummary(window time.Duration) Summary {
	if window <= 0 {
		window = time.Hour
	}
	cutoff := time.Now().Add(-window)

	m.mu.Lock()
	recent := make([]QueryMetric, 0, len(m.history))
	for _, q := range m.history {
		if q.Timestamp.After(cutoff) || q.Timestamp.Equal(cutoff) {
			recent = append(recent, q)
		}
	}
	m.mu.Unlock()

	host, err := SampleHostStats()
	var hostStats *HostStats
	if err != nil {
		log.Debugf("host stats sampling unavailable: %v", err)
	} else {
		hostStats = &host
	}

	if len(recent) == 0 {
		return Summary{TimeWindow: window, QueryTypes: map[string]TypeStats{}, Host: hostStats}
	}

	var successful, failed int
	var totalExecTime, maxExecTime time.Duration
	var totalRows int
	typeAgg := make(map[string]*TypeStats)
	typeTimeSum := make(map[string]time.Duration)

	for _, q := range recent {
		if q.Success {
			successful++
			totalExecTime += q.ExecutionTime
			if q.ExecutionTime > maxExecTime {
				maxExecTime = q.ExecutionTime
			}
			totalRows += q.RowsReturned
		} else {
			failed++
		}

		ts, ok := typeAgg[q.QueryType]
		if !ok {
			ts = &TypeStats{}
			typeAgg[q.QueryType] = ts
		}
		ts.Count++
		if q.Success {
			ts.TotalRows += q.RowsReturned
			typeTimeSum[q.QueryType] += q.ExecutionTime
		}
	}

	for qt, ts := range typeAgg {
		successCount := 0
		for _, q := range recent {
			if q.QueryType == qt && q.Success {
				successCount++
			}
		}
		if successCount > 0 {
			ts.AvgTime = typeTimeSum[qt] / time.Duration(successCount)
		}
	}

	queryTypes := make(map[string]TypeStats, len(typeAgg))
	for qt, ts := range typeAgg {
		queryTypes[qt] = *ts
	}

	var avgExec time.Duration
	if successful > 0 {
		avgExec = totalExecTime / time.Duration(successful)
	}

	return Summary{
		TimeWindow:         window,
		TotalQueries:       len(recent),
		SuccessfulQueries:  successful,
		FailedQueries:      failed,
		SuccessRate:        float64(successful) / float64(len(recent)) * 100,
		AvgExecutionTime:   avgExec,
		MaxExecutionTime:   maxExecTime,
		TotalRowsProcessed: totalRows,
		QueryTypes:         queryTypes,
		Host:               hostStats,
	}
}

// GetSlowQueries returns the queries above threshold sorted by execution
// time descending, capped at limit.
func (m *Monitor) GetSlowQueries(threshold time.Duration, limit int) []QueryMetric {
	if limit <= 0 {
		limit = 10
	}
	m.mu.Lock()
	var slow []QueryMetric
	for _, q := range m.history {
		if q.ExecutionTime > threshold {
			slow = append(slow, q)
		}
	}
	m.mu.Unlock()

	sort.Slice(slow, func(i, j int) bool { return slow[i].ExecutionTime > slow[j].ExecutionTime })
	if len(slow) > limit {
		slow = slow[:limit]
	}
	return slow
}

// GetTablePerformance reports performance for a single table within window.
func (m *Monitor) GetTablePerformance(table string, window time.Duration) Summary {
	if window <= 0 {
		window = time.Hour
	}
	cutoff := time.Now().Add(-window)

	m.mu.Lock()
	var matched []QueryMetric
	for _, q := range m.history {
		if q.TableName == table && (q.Timestamp.After(cutoff) || q.Timestamp.Equal(cutoff)) {
			matched = append(matched, q)
		}
	}
	m.mu.Unlock()

	if len(matched) == 0 {
		return Summary{TimeWindow: window, QueryTypes: map[string]TypeStats{}}
	}

	var successful int
	var totalExecTime time.Duration
	var totalRows int
	for _, q := range matched {
		if q.Success {
			successful++
			totalExecTime += q.ExecutionTime
			totalRows += q.RowsReturned
		}
	}

	var avgExec time.Duration
	if successful > 0 {
		avgExec = totalExecTime / time.Duration(successful)
	}

	return Summary{
		TimeWindow:         window,
		TotalQueries:       len(matched),
		SuccessfulQueries:  successful,
		FailedQueries:      len(matched) - successful,
		SuccessRate:        float64(successful) / float64(len(matched)) * 100,
		AvgExecutionTime:   avgExec,
		TotalRowsProcessed: totalRows,
		QueryTypes:         map[string]TypeStats{},
	}
}

// ClearMetrics discards the entire history.
func (m *Monitor) ClearMetrics() {
	m.mu.Lock()
	m.history = nil
	m.mu.Unlock()
	log.Info("cleared all performance metrics")
}

// ExportMetrics returns a copy of the full history for external analysis.
func (m *Monitor) ExportMetrics() []QueryMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueryMetric, len(m.history))
	copy(out, m.history)
	return out
}

package perf

import (
	"testing"
	"time"
)

func TestRecordQueryAndSummary(t *testing.T) {
	m := New(10, time.Second, nil)
	m.RecordQuery(QueryMetric{QueryType: "select", TableName: "segments", ExecutionTime: 10 * time.Millisecond, RowsReturned: 5, Success: true})
	m.RecordQuery(QueryMetric{QueryType: "select", TableName: "segments", ExecutionTime: 20 * time.Millisecond, RowsReturned: 3, Success: false})

	summary := m.GetPerformanceSummary(time.Hour)
	if summary.TotalQueries != 2 {
		t.Fatalf("total queries = %d, want 2", summary.TotalQueries)
	}
	if summary.SuccessfulQueries != 1 || summary.FailedQueries != 1 {
		t.Errorf("unexpected success/fail split: %+v", summary)
	}
	if summary.TotalRowsProcessed != 5 {
		t.Errorf("total rows processed = %d, want 5 (failed query rows excluded)", summary.TotalRowsProcessed)
	}
}

func TestHistoryBoundedAtMaxHistory(t *testing.T) {
	m := New(3, time.Second, nil)
	for i := 0; i < 5; i++ {
		m.RecordQuery(QueryMetric{QueryType: "select", TableName: "t", Success: true})
	}
	if len(m.ExportMetrics()) != 3 {
		t.Errorf("expected history capped at 3, got %d", len(m.ExportMetrics()))
	}
}

func TestGetSlowQueriesSortedDescending(t *testing.T) {
	m := New(10, time.Second, nil)
	m.RecordQuery(QueryMetric{QueryType: "a", ExecutionTime: 6 * time.Second, Success: true})
	m.RecordQuery(QueryMetric{QueryType: "b", ExecutionTime: 9 * time.Second, Success: true})
	slow := m.GetSlowQueries(5*time.Second, 10)
	if len(slow) != 2 {
		t.Fatalf("expected 2 slow queries, got %d", len(slow))
	}
	if slow[0].QueryType != "b" {
		t.Errorf("expected slowest first, got %s", slow[0].QueryType)
	}
}

func TestClearMetrics(t *testing.T) {
	m := New(10, time.Second, nil)
	m.RecordQuery(QueryMetric{QueryType: "a", Success: true})
	m.ClearMetrics()
	if len(m.ExportMetrics()) != 0 {
		t.Error("expected empty history after clear")
	}
}

package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectReturnsHealthyEndpoint(t *testing.T) {
	p := NewPool([]string{"a:1", "b:2"}, nil)
	ep := p.Select(OpRead)
	if ep != "a:1" && ep != "b:2" {
		t.Errorf("unexpected endpoint: %q", ep)
	}
}

func TestMarkErrorThreeStrikesUnhealthy(t *testing.T) {
	p := NewPool([]string{"a:1", "b:2"}, nil)
	p.MarkError("a:1", "boom")
	p.MarkError("a:1", "boom")
	if len(p.HealthyEndpoints()) != 2 {
		t.Fatalf("expected endpoint to survive two errors")
	}
	p.MarkError("a:1", "boom")
	healthy := p.HealthyEndpoints()
	if len(healthy) != 1 || healthy[0] != "b:2" {
		t.Errorf("expected only b:2 healthy after three errors, got %v", healthy)
	}
}

func TestMarkSuccessResetsErrorCount(t *testing.T) {
	p := NewPool([]string{"a:1"}, nil)
	p.MarkError("a:1", "boom")
	p.MarkError("a:1", "boom")
	p.MarkSuccess("a:1", 0)
	if p.health["a:1"].ErrorCount != 0 {
		t.Errorf("expected error count reset, got %d", p.health["a:1"].ErrorCount)
	}
	if !p.health["a:1"].Healthy {
		t.Errorf("expected endpoint healthy after success")
	}
}

func TestSelectNoHealthyEndpointsReturnsEmpty(t *testing.T) {
	p := NewPool([]string{"a:1"}, nil)
	p.MarkError("a:1", "x")
	p.MarkError("a:1", "x")
	p.MarkError("a:1", "x")
	if ep := p.Select(OpWrite); ep != "" {
		t.Errorf("expected empty selection, got %q", ep)
	}
}

func TestAnalyticsSelectionIsSticky(t *testing.T) {
	p := NewPool([]string{"a:1", "b:2"}, nil)
	first := p.Select(OpAnalytics)
	second := p.Select(OpAnalytics)
	if first != second {
		t.Errorf("expected sticky analytics selection, got %q then %q", first, second)
	}
}

func TestGetStatsHealthPercentage(t *testing.T) {
	p := NewPool([]string{"a:1", "b:2"}, nil)
	p.MarkError("a:1", "x")
	p.MarkError("a:1", "x")
	p.MarkError("a:1", "x")
	stats := p.GetStats()
	if stats.TotalEndpoints != 2 || stats.HealthyEndpoints != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.HealthPercentage != 50 {
		t.Errorf("expected 50%% healthy, got %v", stats.HealthPercentage)
	}
}

func TestAddAndRemoveEndpoint(t *testing.T) {
	p := NewPool([]string{"a:1"}, nil)
	p.AddEndpoint("b:2")
	if len(p.AllEndpoints()) != 2 {
		t.Fatalf("expected 2 endpoints after add")
	}
	p.RemoveEndpoint("a:1")
	all := p.AllEndpoints()
	if len(all) != 1 || all[0] != "b:2" {
		t.Errorf("unexpected endpoints after remove: %v", all)
	}
}

func TestStartBackgroundHealthChecksMarksEndpointsViaCheckFunc(t *testing.T) {
	p := NewPool([]string{"a:1", "b:2"}, nil)
	p.MarkError("a:1", "boom")
	p.MarkError("a:1", "boom")
	p.MarkError("a:1", "boom")
	require.Len(t, p.HealthyEndpoints(), 1)

	c, err := p.StartBackgroundHealthChecks(20*time.Millisecond, func(ep string) (bool, time.Duration, error) {
		return true, time.Millisecond, nil
	})
	require.NoError(t, err)
	defer c.Stop()

	require.Eventually(t, func() bool {
		return len(p.HealthyEndpoints()) == 2
	}, time.Second, 10*time.Millisecond, "expected the scheduled check to heal a:1")
	assert.True(t, p.health["a:1"].Healthy)
}

func TestShouldPerformHealthCheckIsRateLimited(t *testing.T) {
	p := NewPool([]string{"a:1"}, nil)
	p.lastHealthCheck = time.Now().Add(-time.Hour)
	require.True(t, p.ShouldPerformHealthCheck(), "first call after the interval elapses should be allowed")
	assert.False(t, p.ShouldPerformHealthCheck(), "immediate repeat call should be rate-limited")
}

// Package endpoint implements the endpoint pool and load balancer (C3):
// per-endpoint health tracking and operation-kind-aware selection.
//
// Grounded on
// original_source/app/storage/vastdbmanager/endpoints/endpoint_manager.py
// and .../load_balancer.py.
package endpoint

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/jesseVast/tamscore/pkg/logger"
	"github.com/jesseVast/tamscore/pkg/metrics"
)

var log = logger.NewDefault("endpoint")

// OperationKind selects the load-balancing policy used by Pool.Select.
type OperationKind string

const (
	OpRead      OperationKind = "read"
	OpWrite     OperationKind = "write"
	OpAnalytics OperationKind = "analytics"
)

// QueryComplexity biases selection further within OpRead (OpWrite always
// selects the least-errors endpoint and ignores it), per
// spec §4.3's "complex queries bias toward least-error endpoints; simple
// queries round-robin."
type QueryComplexity string

const (
	ComplexitySimple QueryComplexity = "simple"
	ComplexityMedium QueryComplexity = "medium"
	ComplexityComplex QueryComplexity = "complex"
)

// Health mirrors EndpointHealth from the Python original.
type Health struct {
	Endpoint     string
	LastCheck    time.Time
	Healthy      bool
	ResponseTime time.Duration
	ErrorCount   int
	LastError    string
}

// Pool tracks health for a fixed set of endpoints and selects among them.
type Pool struct {
	mu                sync.RWMutex
	endpoints         []string
	health            map[string]*Health
	healthCheckEvery  time.Duration
	lastHealthCheck   time.Time
	analyticsSticky   string
	analyticsChosenAt time.Time
	analyticsInterval time.Duration
	preferFastest     bool
	metrics           *metrics.Registry
	checkLimiter      *rate.Limiter
	scheduler         *cron.Cron
}

// NewPool builds a Pool over endpoints, all initially healthy.
func NewPool(endpoints []string, reg *metrics.Registry) *Pool {
	healthCheckEvery := 5 * time.Minute
	p := &Pool{
		endpoints:         append([]string(nil), endpoints...),
		health:            make(map[string]*Health, len(endpoints)),
		healthCheckEvery:  healthCheckEvery,
		analyticsInterval: 5 * time.Second,
		preferFastest:     true,
		lastHealthCheck:   time.Now(),
		metrics:           reg,
		checkLimiter:      rate.NewLimiter(rate.Every(healthCheckEvery), 1),
	}
	for _, e := range endpoints {
		p.health[e] = &Health{Endpoint: e, LastCheck: time.Now(), Healthy: true}
	}
	log.Infof("initialized endpoint pool with %d endpoints", len(endpoints))
	return p
}

// CheckFunc probes a single endpoint, returning its observed health and
// response time (or an error describing why the probe itself failed).
type CheckFunc func(endpoint string) (healthy bool, responseTime time.Duration, err error)

// StartBackgroundHealthChecks schedules recurring health probes for every
// endpoint on a cron cadence derived from interval, recording each result
// via MarkSuccess/MarkError. The returned Cron is already running; callers
// must call Stop() on it during shutdown. Grounded on the original's
// periodic endpoint_manager health-check loop, expressed here as a
// scheduled job instead of a bespoke goroutine-plus-ticker.
func (p *Pool) StartBackgroundHealthChecks(interval time.Duration, check CheckFunc) (*cron.Cron, error) {
	if interval <= 0 {
		interval = p.healthCheckEvery
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", interval.String())
	_, err := c.AddFunc(spec, func() {
		for _, ep := range p.AllEndpoints() {
			healthy, responseTime, err := check(ep)
			if err != nil {
				p.MarkError(ep, err.Error())
				continue
			}
			if healthy {
				p.MarkSuccess(ep, responseTime)
			} else {
				p.MarkError(ep, "health probe reported unhealthy")
			}
		}
		p.UpdateHealthCheckTime()
	})
	if err != nil {
		return nil, fmt.Errorf("endpoint: schedule health checks: %w", err)
	}
	c.Start()
	p.scheduler = c
	return c, nil
}

// HealthyEndpoints returns the currently healthy endpoints.
func (p *Pool) HealthyEndpoints() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for _, e := range p.endpoints {
		if p.health[e].Healthy {
			out = append(out, e)
		}
	}
	return out
}

// AllEndpoints returns every endpoint regardless of health.
func (p *Pool) AllEndpoints() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.endpoints...)
}

// MarkError records a failed call against endpoint. Three consecutive
// errors marks the endpoint unhealthy.
func (p *Pool) MarkError(ep string, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.health[ep]
	if !ok {
		return
	}
	h.ErrorCount++
	h.LastError = errMsg
	h.LastCheck = time.Now()
	if h.ErrorCount >= 3 {
		h.Healthy = false
		log.Warnf("endpoint %s marked unhealthy after %d errors", ep, h.ErrorCount)
	}
	if p.metrics != nil {
		p.metrics.RecordEndpointHealth(ep, h.Healthy)
	}
}

// MarkSuccess records a successful call, resetting the endpoint to healthy.
func (p *Pool) MarkSuccess(ep string, responseTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.health[ep]
	if !ok {
		return
	}
	h.Healthy = true
	h.ResponseTime = responseTime
	h.LastCheck = time.Now()
	h.ErrorCount = 0
	h.LastError = ""
	if p.metrics != nil {
		p.metrics.RecordEndpointHealth(ep, true)
	}
}

// SelectOption customizes Select beyond the basic OperationKind policy.
type SelectOption func(*selectOpts)

type selectOpts struct {
	preferFastest bool
	complexity    QueryComplexity
}

// WithPreferFastest overrides read selection's fastest-vs-round-robin
// choice.
func WithPreferFastest(prefer bool) SelectOption {
	return func(o *selectOpts) { o.preferFastest = prefer }
}

// WithComplexity biases selection toward least-error endpoints for
// complex queries, round-robin for simple ones.
func WithComplexity(c QueryComplexity) SelectOption {
	return func(o *selectOpts) { o.complexity = c }
}

// Select returns the best endpoint for kind, or "" if none are healthy.
func (p *Pool) Select(kind OperationKind, opts ...SelectOption) string {
	o := selectOpts{preferFastest: true, complexity: ComplexityMedium}
	for _, opt := range opts {
		opt(&o)
	}

	switch kind {
	case OpAnalytics:
		return p.selectAnalytics()
	case OpWrite:
		return p.selectLeastErrors()
	default:
		if o.complexity == ComplexityComplex {
			return p.selectLeastErrors()
		}
		if o.complexity == ComplexitySimple {
			return p.selectRoundRobin()
		}
		if o.preferFastest {
			return p.selectFastest()
		}
		return p.selectRoundRobin()
	}
}

func (p *Pool) selectFastest() string {
	healthy := p.HealthyEndpoints()
	if len(healthy) == 0 {
		log.Warn("no healthy endpoints available")
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	sort.Slice(healthy, func(i, j int) bool {
		return p.health[healthy[i]].ResponseTime < p.health[healthy[j]].ResponseTime
	})
	return healthy[0]
}

func (p *Pool) selectLeastErrors() string {
	healthy := p.HealthyEndpoints()
	if len(healthy) == 0 {
		log.Warn("no healthy endpoints available")
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	sort.Slice(healthy, func(i, j int) bool {
		hi, hj := p.health[healthy[i]], p.health[healthy[j]]
		if hi.ErrorCount != hj.ErrorCount {
			return hi.ErrorCount < hj.ErrorCount
		}
		return hi.ResponseTime < hj.ResponseTime
	})
	return healthy[0]
}

func (p *Pool) selectRoundRobin() string {
	healthy := p.HealthyEndpoints()
	if len(healthy) == 0 {
		log.Warn("no healthy endpoints available")
		return ""
	}
	// A simple time-bucketed round robin: rotate by wall-clock second so
	// repeated calls within the same tick are stable. The interval is a
	// fixed one second; config.Settings.RoundRobinInterval is not read here.
	idx := int(time.Now().UnixNano()/p.roundRobinIntervalNanos()) % len(healthy)
	return healthy[idx]
}

func (p *Pool) roundRobinIntervalNanos() int64 {
	return int64(time.Second)
}

func (p *Pool) selectAnalytics() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.analyticsSticky != "" && time.Since(p.analyticsChosenAt) < p.analyticsInterval {
		if p.health[p.analyticsSticky] != nil && p.health[p.analyticsSticky].Healthy {
			return p.analyticsSticky
		}
	}
	p.mu.Unlock()
	fastest := p.selectFastest()
	p.mu.Lock()
	p.analyticsSticky = fastest
	p.analyticsChosenAt = time.Now()
	return fastest
}

// Stats reports aggregate pool health, matching
// EndpointManager.get_endpoint_stats.
type Stats struct {
	TotalEndpoints    int
	HealthyEndpoints  int
	UnhealthyEndpoints int
	HealthPercentage  float64
	AvgResponseTime   time.Duration
	Endpoints         map[string]Health
}

// GetStats returns a snapshot of pool-wide health statistics.
func (p *Pool) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := len(p.endpoints)
	var healthyCount int
	var sumResponse time.Duration
	var responseSamples int
	details := make(map[string]Health, total)

	for ep, h := range p.health {
		if h.Healthy {
			healthyCount++
			if h.ResponseTime > 0 {
				sumResponse += h.ResponseTime
				responseSamples++
			}
		}
		details[ep] = *h
	}

	var avg time.Duration
	if responseSamples > 0 {
		avg = sumResponse / time.Duration(responseSamples)
	}

	var pct float64
	if total > 0 {
		pct = float64(healthyCount) / float64(total) * 100
	}

	return Stats{
		TotalEndpoints:     total,
		HealthyEndpoints:   healthyCount,
		UnhealthyEndpoints: total - healthyCount,
		HealthPercentage:   pct,
		AvgResponseTime:    avg,
		Endpoints:          details,
	}
}

// ShouldPerformHealthCheck reports whether the configured health-check
// cadence has elapsed, rate-limited so concurrent callers can't trigger
// more than one check burst per interval.
func (p *Pool) ShouldPerformHealthCheck() bool {
	p.mu.RLock()
	elapsed := time.Since(p.lastHealthCheck) > p.healthCheckEvery
	p.mu.RUnlock()
	if !elapsed {
		return false
	}
	return p.checkLimiter.Allow()
}

// UpdateHealthCheckTime records that a health check just ran.
func (p *Pool) UpdateHealthCheckTime() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHealthCheck = time.Now()
}

// AddEndpoint registers a new endpoint, healthy by default.
func (p *Pool) AddEndpoint(ep string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.endpoints {
		if existing == ep {
			return
		}
	}
	p.endpoints = append(p.endpoints, ep)
	p.health[ep] = &Health{Endpoint: ep, LastCheck: time.Now(), Healthy: true}
	log.Infof("added endpoint %s", ep)
}

// RemoveEndpoint drops ep from the pool.
func (p *Pool) RemoveEndpoint(ep string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.endpoints {
		if existing == ep {
			p.endpoints = append(p.endpoints[:i], p.endpoints[i+1:]...)
			break
		}
	}
	delete(p.health, ep)
	log.Infof("removed endpoint %s", ep)
}

// Close stops the background health-check scheduler if one was started via
// StartBackgroundHealthChecks. Safe to call even if none was started.
func (p *Pool) Close() {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
}

// ResetHealth restores ep to a clean healthy state.
func (p *Pool) ResetHealth(ep string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.health[ep]
	if !ok {
		return
	}
	h.Healthy = true
	h.ErrorCount = 0
	h.LastError = ""
	h.ResponseTime = 0
	h.LastCheck = time.Now()
}

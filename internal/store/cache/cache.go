// Package cache implements the metadata cache (C4): per-table schema and
// row-count caching with whole-entry read-copy-overwrite updates and TTL
// expiry, plus an LRU-bounded auxiliary cache for hot lookups.
//
// Grounded on original_source/app/storage/vastdbmanager/cache/cache_manager.py.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jesseVast/tamscore/pkg/logger"
	"github.com/jesseVast/tamscore/pkg/metrics"
)

var log = logger.NewDefault("cache")

// Entry is the cached metadata for one table. Updates always
// read-copy-overwrite the whole entry; there is no atomic increment of
// TotalRows, matching the original's replace-the-dict semantics.
type Entry struct {
	Schema      map[string]string
	TotalRows   int64
	LastUpdated time.Time
	TTL         time.Duration
}

func (e Entry) expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.LastUpdated) > e.TTL
}

// Manager is the table metadata cache. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	metrics *metrics.Registry

	aux *lru.Cache[string, any]
}

// New builds a Manager with defaultTTL applied to entries that don't
// specify their own, and an auxiliary LRU of auxCap entries for
// supplementary hot lookups (e.g. compiled predicate results).
func New(defaultTTL time.Duration, auxCap int, reg *metrics.Registry) *Manager {
	if auxCap <= 0 {
		auxCap = 256
	}
	aux, err := lru.New[string, any](auxCap)
	if err != nil {
		// Only returns an error for a non-positive size, which we just
		// guarded against.
		panic(err)
	}
	return &Manager{
		entries: make(map[string]Entry),
		ttl:     defaultTTL,
		metrics: reg,
		aux:     aux,
	}
}

// Get returns the cached entry for table, if present and unexpired.
func (m *Manager) Get(table string) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[table]
	m.mu.RUnlock()

	if !ok {
		m.recordMiss(table)
		return Entry{}, false
	}
	if e.expired(time.Now()) {
		m.mu.Lock()
		delete(m.entries, table)
		m.mu.Unlock()
		m.recordMiss(table)
		return Entry{}, false
	}
	m.recordHit(table)
	return e, true
}

// Set replaces the whole entry for table. Partial updates are not
// supported — callers must read, copy, modify, and overwrite, per the
// original's cache-manager contract.
func (m *Manager) Set(table string, e Entry) {
	if e.TTL <= 0 {
		e.TTL = m.ttl
	}
	e.LastUpdated = time.Now()
	m.mu.Lock()
	m.entries[table] = e
	m.mu.Unlock()
}

// Invalidate removes table's cached entry, forcing the next Get to miss.
func (m *Manager) Invalidate(table string) {
	m.mu.Lock()
	delete(m.entries, table)
	m.mu.Unlock()
	log.Debugf("invalidated cache entry for table %s", table)
}

// InvalidateAll clears every cached entry.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
	log.Debug("invalidated all cache entries")
}

// UpdateRowCount applies a read-copy-overwrite bump to TotalRows. The read
// and the overwrite happen under one lock, so concurrent calls for the same
// table are serialized and no increment is lost.
func (m *Manager) UpdateRowCount(table string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[table]
	if !ok {
		return
	}
	e.TotalRows += delta
	e.LastUpdated = time.Now()
	m.entries[table] = e
}

// AuxGet/AuxSet expose the auxiliary LRU for supplementary caching (e.g.
// compiled predicate expressions), independent of per-table TTL rules.
func (m *Manager) AuxGet(key string) (any, bool) {
	return m.aux.Get(key)
}

func (m *Manager) AuxSet(key string, value any) {
	m.aux.Add(key, value)
}

// AuxDelete evicts key from the auxiliary cache, used to invalidate a hot
// lookup (e.g. a table's projection list) after it changes.
func (m *Manager) AuxDelete(key string) {
	m.aux.Remove(key)
}

func (m *Manager) recordHit(table string) {
	if m.metrics != nil {
		m.metrics.RecordCacheHit(table, true)
	}
}

func (m *Manager) recordMiss(table string) {
	if m.metrics != nil {
		m.metrics.RecordCacheHit(table, false)
	}
}

// Stats reports cache-wide size for diagnostics.
type Stats struct {
	Tables   int
	AuxSize  int
}

func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Tables: len(m.entries), AuxSize: m.aux.Len()}
}

// Package store wires every constituent component (C1-C15) into a single
// facade, mirroring the original's VastDBManager/core.py composition root.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jesseVast/tamscore/internal/store/analytics"
	"github.com/jesseVast/tamscore/internal/store/batch"
	"github.com/jesseVast/tamscore/internal/store/cache"
	"github.com/jesseVast/tamscore/internal/store/connection"
	"github.com/jesseVast/tamscore/internal/store/data"
	"github.com/jesseVast/tamscore/internal/store/endpoint"
	"github.com/jesseVast/tamscore/internal/store/engine"
	"github.com/jesseVast/tamscore/internal/store/engine/memengine"
	"github.com/jesseVast/tamscore/internal/store/entity"
	"github.com/jesseVast/tamscore/internal/store/object"
	"github.com/jesseVast/tamscore/internal/store/perf"
	"github.com/jesseVast/tamscore/internal/store/query"
	"github.com/jesseVast/tamscore/internal/store/segment"
	"github.com/jesseVast/tamscore/internal/store/table"
	"github.com/jesseVast/tamscore/pkg/config"
	"github.com/jesseVast/tamscore/pkg/logger"
	"github.com/jesseVast/tamscore/pkg/metrics"
)

var log = logger.NewDefault("store")

// Manager is the single entry point the rest of the process depends on: it
// owns every component and exposes them as fields, the way the original's
// VastDBManager exposes its sub-managers as attributes rather than hiding
// them behind narrower facades.
type Manager struct {
	Settings *config.Settings
	Metrics  *metrics.Registry

	Connection *connection.Manager
	Cache      *cache.Manager
	Perf       *perf.Monitor

	Table *table.Operations
	Data  *data.Operations
	Batch *batch.Operations

	QueryOptimizer *query.Optimizer
	QueryExecutor  *query.Executor

	TimeSeries  *analytics.TimeSeries
	Aggregation *analytics.Aggregation
	Hybrid      *analytics.Hybrid

	Objects  *object.Store
	Segments *segment.Service
	Entities *entity.Store
	Tags     *entity.TagStore
}

// New builds a fully wired Manager from settings. The columnar engine is
// always the in-process reference implementation (package memengine): this
// module fixes the engine.Engine contract a real columnar backend would
// satisfy, but ships no network client of its own, matching spec §6's
// "columnar engine (consumed)" boundary rather than implementing one side
// of it. ctx is used for connecting, for the segment and entity schema
// setup, and to initialize and bucket-check the object store client.
func New(ctx context.Context, settings *config.Settings) (*Manager, error) {
	reg := metrics.New()

	pool := endpoint.NewPool(settings.VastEndpoints, reg)
	eng := memengine.New()
	conn := connection.New(eng, pool, settings.VastBucket, settings.VastSchema)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	// The reference engine has no network endpoints to actually probe, so
	// the scheduled check always reports healthy; it still exercises the
	// same cron-driven cadence a real deployment's network probe would run
	// on, and Pool.Close (wired through Connection.Disconnect) stops it.
	if _, err := pool.StartBackgroundHealthChecks(settings.EndpointHealthCheckInterval, func(ep string) (bool, time.Duration, error) {
		return true, 0, nil
	}); err != nil {
		return nil, fmt.Errorf("store: start health checks: %w", err)
	}

	cacheMgr := cache.New(settings.CacheTTL, 1024, reg)
	slowThreshold := time.Duration(settings.SlowQueryThresholdSec * float64(time.Second))
	monitor := perf.New(settings.MetricsHistoryCap, slowThreshold, reg)

	tableOps := table.New(eng, cacheMgr)
	dataOps := data.New(eng, cacheMgr, monitor)
	batchOps := batch.New(dataOps, monitor)

	hybrid, err := analytics.NewHybrid(eng)
	if err != nil {
		log.Errorf("hybrid analytics disabled: embedded engine failed to initialize: %v", err)
		return nil, fmt.Errorf("store: hybrid analytics: %w", err)
	}

	objects, err := object.New(ctx, object.Config{
		EndpointURL:         settings.S3EndpointURL,
		AccessKeyID:         settings.S3AccessKeyID,
		SecretAccessKey:     settings.S3SecretAccessKey,
		BucketName:          settings.S3BucketName,
		UseSSL:              settings.S3UseSSL,
		PresignedURLTimeout: settings.S3PresignedURLTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("store: object store: %w", err)
	}

	segments := segment.New(tableOps, dataOps, objects)
	if err := segments.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("store: segment schema: %w", err)
	}

	entities := entity.New(tableOps, dataOps)
	if err := entities.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("store: entity schema: %w", err)
	}
	tags := entity.NewTagStore(dataOps)

	log.Infof("store manager initialized: bucket=%s schema=%s endpoints=%v", settings.VastBucket, settings.VastSchema, settings.VastEndpoints)

	return &Manager{
		Settings:       settings,
		Metrics:        reg,
		Connection:     conn,
		Cache:          cacheMgr,
		Perf:           monitor,
		Table:          tableOps,
		Data:           dataOps,
		Batch:          batchOps,
		QueryOptimizer: query.NewOptimizer(cacheMgr),
		QueryExecutor:  query.NewExecutor(cacheMgr),
		TimeSeries:     analytics.NewTimeSeries(eng),
		Aggregation:    analytics.NewAggregation(eng),
		Hybrid:         hybrid,
		Objects:        objects,
		Segments:       segments,
		Entities:       entities,
		Tags:           tags,
	}, nil
}

// Close releases resources held by the Manager: the embedded analytical
// engine's handle and the connection manager's state.
func (m *Manager) Close() error {
	m.Connection.Disconnect()
	if err := m.Hybrid.Close(); err != nil {
		return fmt.Errorf("store: close hybrid engine: %w", err)
	}
	return nil
}

// Engine exposes the underlying engine.Engine for callers that need direct
// access beyond Table/Data/Batch, matching Connection.Engine().
func (m *Manager) Engine() engine.Engine {
	return m.Connection.Engine()
}

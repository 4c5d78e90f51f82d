// Package batch implements best-effort and transactional-safe bulk
// insertion (C8): fixed-size batching, optional worker-pool parallelism
// above a threshold, and a detailed per-batch report for the
// transactional-safe path.
//
// Grounded on
// original_source/app/storage/vastdbmanager/batch_operations.py.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jesseVast/tamscore/internal/store/data"
	"github.com/jesseVast/tamscore/internal/store/perf"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("batch")

const (
	DefaultBatchSize       = 100
	DefaultMaxWorkers      = 4
	DefaultParallelThreshold = 10
	DefaultMaxRetries      = 3
)

// Operations drives bulk insertion on top of package data's column-wise
// InsertColumns.
type Operations struct {
	data    *data.Operations
	monitor *perf.Monitor
}

// New builds batch Operations over dataOps, recording metrics to monitor.
func New(dataOps *data.Operations, monitor *perf.Monitor) *Operations {
	return &Operations{data: dataOps, monitor: monitor}
}

func splitIntoBatches(columns map[string][]any, batchSize int) []map[string][]any {
	var total int
	for _, v := range columns {
		total = len(v)
		break
	}
	var batches []map[string][]any
	for i := 0; i < total; i += batchSize {
		end := i + batchSize
		if end > total {
			end = total
		}
		batch := make(map[string][]any, len(columns))
		for col, vals := range columns {
			batch[col] = vals[i:end]
		}
		batches = append(batches, batch)
	}
	return batches
}

func totalRows(columns map[string][]any) int {
	for _, v := range columns {
		return len(v)
	}
	return 0
}

// InsertBatchEfficient inserts columns in batches of batchSize, running
// batches concurrently (up to maxWorkers) once the batch count exceeds
// DefaultParallelThreshold, and best-effort — a failing batch logs and
// contributes 0 rows rather than aborting the rest. Returns the total
// number of rows actually inserted.
func (o *Operations) InsertBatchEfficient(ctx context.Context, table string, columns map[string][]any, batchSize, maxWorkers int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	start := time.Now()
	total := totalRows(columns)
	batches := splitIntoBatches(columns, batchSize)
	log.Infof("starting efficient batch insertion of %d rows into %s across %d batches", total, table, len(batches))

	var totalInserted int
	var mu sync.Mutex

	insertOne := func(b map[string][]any) int {
		n, err := o.data.InsertColumns(ctx, table, b)
		if err != nil {
			log.Errorf("batch insertion failed: %v", err)
			return 0
		}
		return n
	}

	if len(batches) > DefaultParallelThreshold && maxWorkers > 1 {
		log.Infof("using parallel processing with %d workers", maxWorkers)
		sem := make(chan struct{}, maxWorkers)
		var wg sync.WaitGroup
		for _, b := range batches {
			b := b
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				n := insertOne(b)
				mu.Lock()
				totalInserted += n
				mu.Unlock()
			}()
		}
		wg.Wait()
	} else {
		log.Info("using sequential processing")
		for _, b := range batches {
			totalInserted += insertOne(b)
		}
	}

	elapsed := time.Since(start)
	if o.monitor != nil {
		o.monitor.RecordQuery(perf.QueryMetric{
			QueryType: "insert_batch_efficient", TableName: table,
			ExecutionTime: elapsed, RowsReturned: totalInserted,
			SplitsUsed: 1, SubsplitsUsed: 1, Success: true,
		})
	}
	log.Infof("efficient batch insertion completed: %d/%d rows in %s", totalInserted, total, elapsed)
	return totalInserted, nil
}

// BatchStatus is the lifecycle of one tracked batch in the transactional
// path.
type BatchStatus string

const (
	BatchPending  BatchStatus = "pending"
	BatchRetrying BatchStatus = "retrying"
	BatchSuccess  BatchStatus = "success"
	BatchFailed   BatchStatus = "failed"
)

// BatchDetail tracks one batch's progress through InsertBatchTransactional.
type BatchDetail struct {
	BatchIndex    int
	StartRow      int
	EndRow        int
	RowCount      int
	Status        BatchStatus
	Attempts      int
	Error         string
	RowsInserted  int
}

// Report is the exact shape spec §4.8 requires from the
// transactional-safe path.
type Report struct {
	Success           bool
	TotalRows         int
	TotalInserted     int
	TotalFailed       int
	BatchesTotal      int
	BatchesSuccessful int
	BatchesFailed     int
	ExecutionTime     time.Duration
	InsertionRate     float64
	BatchDetails      map[string]*BatchDetail
	FailedBatchIDs    []string
}

// InsertBatchTransactional inserts columns with per-batch retry up to
// maxRetries. Rollback is advisory-only: on partial failure with
// enableRollback, it logs that VAST has no native rollback rather than
// attempting to undo successful batches, matching the original's
// documented limitation.
func (o *Operations) InsertBatchTransactional(ctx context.Context, table string, columns map[string][]any, batchSize, maxWorkers, maxRetries int, enableRollback bool) (Report, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	start := time.Now()
	total := totalRows(columns)
	batches := splitIntoBatches(columns, batchSize)
	log.Infof("starting transactional batch insertion of %d rows into %s across %d batches", total, table, len(batches))

	details := make(map[string]*BatchDetail, len(batches))
	rowIdx := 0
	for i, b := range batches {
		n := totalRows(b)
		id := fmt.Sprintf("batch_%d", i)
		details[id] = &BatchDetail{BatchIndex: i, StartRow: rowIdx, EndRow: rowIdx + n, RowCount: n, Status: BatchPending}
		rowIdx += n
	}

	var errs error
	var errsMu sync.Mutex
	insertWithRetry := func(id string, b map[string][]any) {
		info := details[id]
		for info.Attempts < maxRetries+1 {
			info.Attempts++
			n, err := o.data.InsertColumns(ctx, table, b)
			if err == nil {
				info.Status = BatchSuccess
				info.RowsInserted = n
				log.Debugf("batch %s completed successfully: %d rows", id, n)
				return
			}
			info.Error = err.Error()
			errsMu.Lock()
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", id, err))
			errsMu.Unlock()
			if info.Attempts < maxRetries {
				info.Status = BatchRetrying
				log.Warnf("batch %s failed (attempt %d/%d): %v", id, info.Attempts, maxRetries, err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			info.Status = BatchFailed
			log.Errorf("batch %s failed permanently after %d attempts: %v", id, maxRetries, err)
			return
		}
	}

	if len(batches) > DefaultParallelThreshold && maxWorkers > 1 {
		log.Infof("using parallel processing with %d workers", maxWorkers)
		sem := make(chan struct{}, maxWorkers)
		var wg sync.WaitGroup
		for i, b := range batches {
			id := fmt.Sprintf("batch_%d", i)
			b := b
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				insertWithRetry(id, b)
			}()
		}
		wg.Wait()
	} else {
		log.Info("using sequential processing with retry logic")
		for i, b := range batches {
			insertWithRetry(fmt.Sprintf("batch_%d", i), b)
		}
	}

	var successfulBatches, failedBatches []string
	var totalInserted int
	for id, info := range details {
		if info.Status == BatchSuccess {
			successfulBatches = append(successfulBatches, id)
			totalInserted += info.RowsInserted
		} else if info.Status == BatchFailed {
			failedBatches = append(failedBatches, id)
		}
	}

	elapsed := time.Since(start)
	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(totalInserted) / elapsed.Seconds()
	}

	report := Report{
		Success:           len(failedBatches) == 0,
		TotalRows:         total,
		TotalInserted:     totalInserted,
		TotalFailed:       total - totalInserted,
		BatchesTotal:      len(batches),
		BatchesSuccessful: len(successfulBatches),
		BatchesFailed:     len(failedBatches),
		ExecutionTime:     elapsed,
		InsertionRate:     rate,
		BatchDetails:      details,
		FailedBatchIDs:    failedBatches,
	}

	if errs != nil {
		log.Debugf("batch retry diagnostics: %v", errs)
	}

	if len(failedBatches) > 0 {
		if enableRollback && len(successfulBatches) > 0 {
			log.Warnf("partial failure detected: %d batches failed. rollback requested but the engine has no native rollback; consider implementing cleanup logic", len(failedBatches))
		}
		log.Errorf("batch insertion completed with failures: %d/%d batches failed", len(failedBatches), len(batches))
		if o.monitor != nil {
			o.monitor.RecordQuery(perf.QueryMetric{
				QueryType: "insert_batch_transactional", TableName: table,
				ExecutionTime: elapsed, RowsReturned: totalInserted,
				SplitsUsed: 1, SubsplitsUsed: 1, Success: false,
				ErrorMessage: fmt.Sprintf("partial failure: %d batches failed", len(failedBatches)),
			})
		}
		return report, nil
	}

	log.Infof("transactional batch insertion completed successfully: %d/%d rows in %s", totalInserted, total, elapsed)
	if o.monitor != nil {
		o.monitor.RecordQuery(perf.QueryMetric{
			QueryType: "insert_batch_transactional", TableName: table,
			ExecutionTime: elapsed, RowsReturned: totalInserted,
			SplitsUsed: 1, SubsplitsUsed: 1, Success: true,
		})
	}
	return report, nil
}

// CleanupPartialInsertion logs detailed recovery information for a
// transactional batch's failed batch IDs. It performs no destructive
// action — the engine has no native rollback, so this is
// advisory-logging-only, matching cleanup_partial_insertion.
func (o *Operations) CleanupPartialInsertion(table string, failedBatchIDs []string, details map[string]*BatchDetail) bool {
	log.Warnf("partial insertion cleanup requested for table %q", table)
	log.Warnf("failed batches: %v", failedBatchIDs)

	var totalFailedRows int
	for _, id := range failedBatchIDs {
		info, ok := details[id]
		if !ok {
			continue
		}
		totalFailedRows += info.RowCount
		log.Warnf("batch %s: rows %d-%d (%d rows) - error: %s (attempts: %d)",
			id, info.StartRow, info.EndRow, info.RowCount, info.Error, info.Attempts)
	}
	log.Warnf("total failed rows: %d", totalFailedRows)
	log.Warn("recovery recommendations: check engine logs, verify schema/constraints, check capacity, consider reducing batch size, retry failed batches manually")
	return true
}

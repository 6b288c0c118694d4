package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	bulkQueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vesting_indexer_bulk_queue_length",
			Help: "Unflushed entries per bulk writer",
		},
		[]string{"writer"},
	)

	bulkFlushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_indexer_bulk_flushed_total",
			Help: "Entries persisted by bulk writers",
		},
		[]string{"writer"},
	)
)

// FlushFunc persists one batch, typically a repository BatchInsert/BatchUpsert
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// BulkWriter accumulates records of one type and persists them in batches of
// threshold entries. Full batches are flushed in the background, at most
// maxInFlight at a time; with maxInFlight < 1 they are flushed inline by
// AddEntry, for callers writing into a single transaction. Finish drains
// everything and is the durability barrier for the type.
type BulkWriter[T any] struct {
	name      string
	flush     FlushFunc[T]
	threshold int
	inline    bool
	logger    *zap.Logger

	group  *errgroup.Group
	gctx   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	queue    []T
	batches  []int
	err      error
	finished bool
}

// NewBulkWriter creates a writer whose background flushes run under ctx
func NewBulkWriter[T any](ctx context.Context, name string, threshold, maxInFlight int, flush FlushFunc[T], logger *zap.Logger) *BulkWriter[T] {
	if threshold < 1 {
		threshold = 1
	}
	cctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(cctx)
	if maxInFlight > 0 {
		group.SetLimit(maxInFlight)
	}

	return &BulkWriter[T]{
		name:      name,
		flush:     flush,
		threshold: threshold,
		inline:    maxInFlight < 1,
		logger:    logger,
		group:     group,
		gctx:      gctx,
		cancel:    cancel,
		queue:     make([]T, 0, threshold),
	}
}

// AddEntry enqueues a record. Once the queue reaches the threshold the batch is
// handed to a background flush and a fresh queue starts. The first flush
// failure is returned by every later call.
func (w *BulkWriter[T]) AddEntry(record T) error {
	w.mu.Lock()
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return err
	}
	if w.finished {
		w.mu.Unlock()
		return fmt.Errorf("bulk writer %s: add after finish", w.name)
	}

	w.queue = append(w.queue, record)
	if len(w.queue) < w.threshold {
		bulkQueueLength.WithLabelValues(w.name).Set(float64(len(w.queue)))
		w.mu.Unlock()
		return nil
	}

	batch := w.queue
	w.queue = make([]T, 0, w.threshold)
	w.batches = append(w.batches, len(batch))
	bulkQueueLength.WithLabelValues(w.name).Set(0)
	w.mu.Unlock()

	if w.inline {
		return w.flushBatch(w.gctx, batch)
	}

	// Go blocks while maxInFlight flushes are running
	w.group.Go(func() error {
		return w.flushBatch(w.gctx, batch)
	})

	return nil
}

// Finish waits for background flushes, then flushes the remainder.
// Calling it again returns the first result.
func (w *BulkWriter[T]) Finish(ctx context.Context) error {
	w.mu.Lock()
	if w.finished {
		err := w.err
		w.mu.Unlock()
		return err
	}
	w.finished = true
	w.mu.Unlock()
	defer w.cancel()

	if err := w.group.Wait(); err != nil {
		return w.fail(err)
	}

	w.mu.Lock()
	batch := w.queue
	w.queue = nil
	if len(batch) > 0 {
		w.batches = append(w.batches, len(batch))
	}
	w.mu.Unlock()
	bulkQueueLength.WithLabelValues(w.name).Set(0)

	if len(batch) == 0 {
		return nil
	}
	return w.flushBatch(ctx, batch)
}

// Discard drops every queued entry, cancels background flushes and waits
// for them to return. The writer is finished afterwards. Batches already
// persisted stay persisted, so callers discard inside a transaction they
// are about to roll back.
func (w *BulkWriter[T]) Discard() {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.finished = true
	dropped := len(w.queue)
	w.queue = nil
	w.mu.Unlock()

	w.cancel()
	_ = w.group.Wait()
	bulkQueueLength.WithLabelValues(w.name).Set(0)

	if w.logger != nil && dropped > 0 {
		w.logger.Debug("Discarded queued entries",
			zap.String("writer", w.name),
			zap.Int("dropped", dropped),
		)
	}
}

// QueueLength returns the number of entries not yet handed to a flush
func (w *BulkWriter[T]) QueueLength() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Batches returns the sizes of the batches dispatched so far, in order
func (w *BulkWriter[T]) Batches() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, len(w.batches))
	copy(out, w.batches)
	return out
}

func (w *BulkWriter[T]) flushBatch(ctx context.Context, batch []T) error {
	if err := w.flush(ctx, batch); err != nil {
		return w.fail(fmt.Errorf("bulk writer %s: flush of %d entries: %w", w.name, len(batch), err))
	}

	bulkFlushedTotal.WithLabelValues(w.name).Add(float64(len(batch)))
	if w.logger != nil {
		w.logger.Debug("Flushed batch",
			zap.String("writer", w.name),
			zap.Int("size", len(batch)),
		)
	}
	return nil
}

// fail records the first error and returns it
func (w *BulkWriter[T]) fail(err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
	return w.err
}

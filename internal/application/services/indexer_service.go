package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// ErrFeedClosed is reported when the block feed ends without an error
var ErrFeedClosed = errors.New("block feed closed")

// IndexerService orchestrates the pipeline: genesis once, then the live
// block feed dispersed one block at a time. Any error stops the loop and is
// reported on Errors; recovery is a process restart.
type IndexerService struct {
	metaRepo   repositories.ServiceMetaRepository
	transactor repositories.Transactor
	importer   *GenesisImporter
	genesis    GenesisSource
	dispersal  *DispersalService
	subscriber BlockSubscriber
	logger     *zap.Logger
	metrics    *IndexerMetrics
	errCh      chan error
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// IndexerMetrics tracks indexer progress
type IndexerMetrics struct {
	mu                sync.RWMutex
	BlocksDispersed   int64
	BlocksSkipped     int64
	LastSequence      int64
	LastBlockTime     time.Time
	DispersalLatency  time.Duration
	GenesisAppliedNow bool
	fatal             error
}

// NewIndexerService creates a new indexer service. genesis may be nil when
// no snapshot is configured; the checkpoint is then marked applied empty.
// Each block is dispersed in its own transaction opened by transactor.
func NewIndexerService(
	metaRepo repositories.ServiceMetaRepository,
	transactor repositories.Transactor,
	importer *GenesisImporter,
	genesis GenesisSource,
	dispersal *DispersalService,
	subscriber BlockSubscriber,
	logger *zap.Logger,
) *IndexerService {
	return &IndexerService{
		metaRepo:   metaRepo,
		transactor: transactor,
		importer:   importer,
		genesis:    genesis,
		dispersal:  dispersal,
		subscriber: subscriber,
		logger:     logger,
		metrics:    &IndexerMetrics{},
		errCh:      make(chan error, 1),
		stopCh:     make(chan struct{}),
	}
}

// Start reads the checkpoint, applies genesis if needed and subscribes to
// the live feed. Blocks are dispersed in a background goroutine.
func (s *IndexerService) Start(ctx context.Context) error {
	meta, err := s.bootstrap(ctx)
	if err != nil {
		return err
	}

	fromBlock := meta.LastSequence + 1
	blocks, feedErrs, err := s.subscriber.Subscribe(ctx, fromBlock)
	if err != nil {
		return fmt.Errorf("failed to subscribe to block feed: %w", err)
	}

	s.logger.Info("Subscribed to irreversible blocks", zap.Int64("from_block", fromBlock))

	s.wg.Add(1)
	go s.runDispersalLoop(ctx, meta.LastSequence, blocks, feedErrs)

	return nil
}

// Errors delivers the fatal error that stopped the loop
func (s *IndexerService) Errors() <-chan error {
	return s.errCh
}

// Stop stops the loop and closes the feed
func (s *IndexerService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping indexer service")
		close(s.stopCh)
		s.wg.Wait()
		if err := s.subscriber.Close(); err != nil {
			s.logger.Warn("Failed to close block feed", zap.Error(err))
		}
	})
}

// GetMetrics returns current indexer metrics
func (s *IndexerService) GetMetrics() IndexerMetrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	return IndexerMetrics{
		BlocksDispersed:   s.metrics.BlocksDispersed,
		BlocksSkipped:     s.metrics.BlocksSkipped,
		LastSequence:      s.metrics.LastSequence,
		LastBlockTime:     s.metrics.LastBlockTime,
		DispersalLatency:  s.metrics.DispersalLatency,
		GenesisAppliedNow: s.metrics.GenesisAppliedNow,
	}
}

// HealthCheck reports the error that stopped the dispersal loop, if any
func (s *IndexerService) HealthCheck(ctx context.Context) error {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	if s.metrics.fatal != nil {
		return fmt.Errorf("dispersal stopped: %w", s.metrics.fatal)
	}
	return nil
}

// bootstrap returns the checkpoint, creating it and importing genesis on first boot
func (s *IndexerService) bootstrap(ctx context.Context) (*entities.ServiceMeta, error) {
	meta, err := s.metaRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if meta == nil {
		meta = &entities.ServiceMeta{}
		if err := s.metaRepo.Upsert(ctx, meta); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint: %w", err)
		}
		s.logger.Info("Created checkpoint")
	}

	if meta.IsGenesisApplied {
		s.logger.Info("Genesis already applied",
			zap.Int64("last_sequence", meta.LastSequence),
		)
		return meta, nil
	}

	// A previous run may have died mid-import; start from empty tables
	if err := s.metaRepo.ResetDerived(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear state before genesis: %w", err)
	}

	s.logger.Info("Applying genesis")
	if s.genesis != nil {
		err = s.importer.Import(ctx, s.genesis)
	} else {
		s.logger.Warn("No genesis source configured, marking genesis applied without records")
		err = s.importer.Finish(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("genesis import failed: %w", err)
	}

	if err := s.metaRepo.SetGenesisApplied(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark genesis applied: %w", err)
	}
	meta.IsGenesisApplied = true

	s.metrics.mu.Lock()
	s.metrics.GenesisAppliedNow = true
	s.metrics.mu.Unlock()

	return meta, nil
}

// runDispersalLoop disperses blocks in arrival order until stop or the first error
func (s *IndexerService) runDispersalLoop(ctx context.Context, last int64, blocks <-chan entities.Block, feedErrs <-chan error) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case err := <-feedErrs:
			if err != nil {
				s.fail(fmt.Errorf("block feed failed: %w", err))
				return
			}
			feedErrs = nil
		case block, ok := <-blocks:
			if !ok {
				s.fail(s.feedClosedError(feedErrs))
				return
			}

			if block.BlockNum <= last {
				s.logger.Debug("Skipping already dispersed block",
					zap.Int64("block_num", block.BlockNum),
					zap.Int64("last_sequence", last),
				)
				s.metrics.mu.Lock()
				s.metrics.BlocksSkipped++
				s.metrics.mu.Unlock()
				continue
			}

			if err := s.processBlock(ctx, &block); err != nil {
				s.fail(err)
				return
			}
			last = block.BlockNum
		}
	}
}

// processBlock disperses a block and advances the checkpoint in one
// transaction, so a block is either fully applied and recorded or not at all
func (s *IndexerService) processBlock(ctx context.Context, block *entities.Block) error {
	start := time.Now()

	var writes *SnapshotWrites
	err := s.transactor.InTx(ctx, func(ctx context.Context, store repositories.Store) error {
		var err error
		if writes, err = s.dispersal.Disperse(ctx, store, block); err != nil {
			return err
		}
		if err := store.ServiceMeta.UpdateLastBlock(ctx, block.BlockNum, block.BlockTime); err != nil {
			return fmt.Errorf("failed to update checkpoint at block %d: %w", block.BlockNum, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	writes.Publish(ctx)

	s.metrics.mu.Lock()
	s.metrics.BlocksDispersed++
	s.metrics.LastSequence = block.BlockNum
	s.metrics.LastBlockTime = block.BlockTime
	s.metrics.DispersalLatency = time.Since(start)
	s.metrics.mu.Unlock()

	return nil
}

// feedClosedError prefers the error the feed reported before closing
func (s *IndexerService) feedClosedError(feedErrs <-chan error) error {
	if feedErrs != nil {
		select {
		case err, ok := <-feedErrs:
			if ok && err != nil {
				return fmt.Errorf("block feed failed: %w", err)
			}
		default:
		}
	}
	return ErrFeedClosed
}

func (s *IndexerService) fail(err error) {
	s.metrics.mu.Lock()
	s.metrics.fatal = err
	s.metrics.mu.Unlock()

	fatalErrorsTotal.WithLabelValues(errs.KindOf(err).String()).Inc()
	s.logger.Error("Indexer stopped on fatal error",
		zap.Error(err),
		zap.String("kind", errs.KindOf(err).String()),
	)

	select {
	case s.errCh <- err:
	default:
	}
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/config"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

// DispersalService interprets the actions of irreversible blocks and updates
// every derived entity. Blocks, transactions and actions are processed
// strictly in order; running totals depend on it.
type DispersalService struct {
	converter *VestingConverter
	tracker   *ProposalTracker
	chain     config.ChainConfig
	pipeline  config.PipelineConfig
	logger    *zap.Logger
	routes    []route
}

// NewDispersalService creates a new dispersal service
func NewDispersalService(
	converter *VestingConverter,
	tracker *ProposalTracker,
	chain config.ChainConfig,
	pipeline config.PipelineConfig,
	logger *zap.Logger,
) *DispersalService {
	s := &DispersalService{
		converter: converter,
		tracker:   tracker,
		chain:     chain,
		pipeline:  pipeline,
		logger:    logger,
	}
	s.routes = s.buildRoutes()
	return s
}

// blockScope binds the collaborators of one block to its transaction
type blockScope struct {
	store     repositories.Store
	converter *VestingConverter
	tracker   *ProposalTracker
}

// actionContext carries the position of the action being dispersed
type actionContext struct {
	*blockScope
	blockNum  int64
	blockTime time.Time
	trxID     string
	action    *entities.Action
}

func (ac *actionContext) op(name string) string {
	return ac.action.Code + "." + ac.action.Action + "." + name
}

func (ac *actionContext) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("block_num", ac.blockNum),
		zap.String("trx_id", ac.trxID),
		zap.String("code", ac.action.Code),
		zap.String("receiver", ac.action.Receiver),
		zap.String("action", ac.action.Action),
	}
}

// Disperse processes one block against store, normally bound to the
// block's transaction. The first error aborts the block; the caller must
// roll back and treat it as fatal. On success the returned cache updates
// are to be published once the transaction commits.
func (s *DispersalService) Disperse(ctx context.Context, store repositories.Store, block *entities.Block) (*SnapshotWrites, error) {
	start := time.Now()

	converter, writes := s.converter.forBlock(store)
	scope := &blockScope{
		store:     store,
		converter: converter,
		tracker:   s.tracker.withRepo(store.Proposals),
	}

	for i := range block.Transactions {
		trx := &block.Transactions[i]

		blockTime := trx.BlockTime
		if blockTime.IsZero() {
			blockTime = block.BlockTime
		}

		for j := range trx.Actions {
			ac := &actionContext{
				blockScope: scope,
				blockNum:   block.BlockNum,
				blockTime:  blockTime,
				trxID:      trx.ID,
				action:     &trx.Actions[j],
			}

			if err := s.dispatch(ctx, ac); err != nil {
				return nil, fmt.Errorf("block %d trx %s action #%d %s/%s/%s: %w",
					block.BlockNum, trx.ID, j, ac.action.Code, ac.action.Receiver, ac.action.Action, err)
			}
		}
	}

	if err := writes.seal(ctx); err != nil {
		return nil, err
	}

	blocksDispersedTotal.Inc()
	lastBlockNum.Set(float64(block.BlockNum))
	dispersalDuration.Observe(time.Since(start).Seconds())

	s.logger.Debug("Dispersed block",
		zap.Int64("block_num", block.BlockNum),
		zap.Int("transactions", len(block.Transactions)),
		zap.Duration("took", time.Since(start)),
	)

	return writes, nil
}

func (s *DispersalService) dispatch(ctx context.Context, ac *actionContext) error {
	r := s.resolve(ac.action)
	if r == nil {
		actionsUnroutedTotal.Inc()
		s.logger.Debug("Unrouted action", ac.fields()...)
		return nil
	}

	actionsRoutedTotal.WithLabelValues(r.name).Inc()

	if r.events == eventsBefore {
		if err := s.processEvents(ctx, ac); err != nil {
			return err
		}
	}

	if r.handle != nil {
		if err := r.handle(ctx, ac); err != nil {
			return err
		}
	}

	if r.events == eventsAfter {
		if err := s.processEvents(ctx, ac); err != nil {
			return err
		}
	}

	return nil
}

func (s *DispersalService) handleProposal(ctx context.Context, ac *actionContext) error {
	return ac.tracker.Handle(ctx, ac.action.Action, ac.action.Args)
}

// decodeArgs unmarshals action args, failing when they are absent
func decodeArgs(op string, args json.RawMessage, dst interface{}) error {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		return errs.Missing(op, "args")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return errs.Wrap(errs.KindMalformedAction, op, err)
	}
	return nil
}

// requireFields takes name/value pairs and reports the first empty value
func requireFields(op string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return errs.Missing(op, pairs[i])
		}
	}
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/config"
	"github.com/bimakw/vesting-indexer/internal/domain/asset"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/chain"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/database"
)

// Genesis record types
const (
	GenesisAccount  = "account"
	GenesisTransfer = "transfer"
	GenesisCurrency = "currency"
	GenesisBalance  = "balance"
)

// skippedGenesisTypes are present in the snapshot but carry nothing we index
var skippedGenesisTypes = map[string]bool{
	"domain":  true,
	"message": true,
	"pin":     true,
	"block":   true,
}

type genesisAccount struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Balance   string `json:"balance"`
	Vesting   string `json:"vesting"`
	Delegated string `json:"delegated"`
	Received  string `json:"received"`
}

type genesisTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity string `json:"quantity"`
	Memo     string `json:"memo"`
	Block    int64  `json:"block"`
	TrxID    string `json:"trx_id"`
	Time     string `json:"time"`
}

type genesisCurrency struct {
	Symbol    string `json:"symbol"`
	Issuer    string `json:"issuer"`
	Supply    string `json:"supply"`
	MaxSupply string `json:"max_supply"`
}

// finisher is the type-erased side of a BulkWriter
type finisher interface {
	Finish(ctx context.Context) error
}

// GenesisImporter loads the one-time genesis snapshot through bulk writers,
// one set per record type. TypeEnd is the durability barrier of a type.
type GenesisImporter struct {
	store    repositories.Store
	pipeline config.PipelineConfig
	logger   *zap.Logger

	mu        sync.Mutex
	finished  bool
	users     *database.BulkWriter[entities.UserMeta]
	balances  *database.BulkWriter[entities.Balance]
	vesting   *database.BulkWriter[entities.VestingBalance]
	transfers *database.BulkWriter[entities.Transfer]
	tokens    *database.BulkWriter[entities.Token]
	open      map[string][]finisher
	counts    map[string]int
}

// NewGenesisImporter creates a new genesis importer
func NewGenesisImporter(store repositories.Store, pipeline config.PipelineConfig, logger *zap.Logger) *GenesisImporter {
	return &GenesisImporter{
		store:    store,
		pipeline: pipeline,
		logger:   logger,
		open:     make(map[string][]finisher),
		counts:   make(map[string]int),
	}
}

// Import drives the importer over a whole source, ending each type as the
// feed moves past it and finishing at EOF.
func (g *GenesisImporter) Import(ctx context.Context, source GenesisSource) error {
	start := time.Now()
	current := ""

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read genesis: %w", err)
		}

		if record.Type != current && current != "" {
			if err := g.TypeEnd(ctx, current); err != nil {
				return err
			}
		}
		current = record.Type

		if _, err := g.Handle(ctx, record.Type, record.Data); err != nil {
			return fmt.Errorf("genesis %s record: %w", record.Type, err)
		}
	}

	if current != "" {
		if err := g.TypeEnd(ctx, current); err != nil {
			return err
		}
	}
	if err := g.Finish(ctx); err != nil {
		return err
	}

	g.logger.Info("Genesis import completed",
		zap.Any("records", g.Counts()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Handle routes one record. It reports false for types that are not imported.
func (g *GenesisImporter) Handle(ctx context.Context, typ string, data json.RawMessage) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finished {
		return false, errs.Newf(errs.KindAlreadyFinished, "genesis.handle", "record of type %q after finish", typ)
	}

	var (
		handled = true
		err     error
	)
	switch typ {
	case GenesisAccount:
		err = g.handleAccount(ctx, data)
	case GenesisTransfer:
		err = g.handleTransfer(ctx, data)
	case GenesisCurrency:
		err = g.handleCurrency(ctx, data)
	case GenesisBalance:
		// Not imported yet: account records already carry the liquid balance
		// and standalone balance records have no consumer.
		g.logger.Debug("Genesis balance record ignored")
	default:
		handled = false
		if skippedGenesisTypes[typ] {
			g.logger.Debug("Genesis record type skipped", zap.String("type", typ))
		} else {
			g.logger.Warn("Unknown genesis record type", zap.String("type", typ))
		}
	}
	if err != nil {
		return false, err
	}

	g.counts[typ]++
	genesisRecordsTotal.WithLabelValues(typ, fmt.Sprint(handled)).Inc()
	return handled, nil
}

// TypeEnd drains the writers of typ. Records of that type are durable once it returns.
func (g *GenesisImporter) TypeEnd(ctx context.Context, typ string) error {
	g.mu.Lock()
	writers := g.open[typ]
	delete(g.open, typ)
	switch typ {
	case GenesisAccount:
		g.users, g.balances, g.vesting = nil, nil, nil
	case GenesisTransfer:
		g.transfers = nil
	case GenesisCurrency:
		g.tokens = nil
	}
	g.mu.Unlock()

	for _, w := range writers {
		if err := w.Finish(ctx); err != nil {
			return fmt.Errorf("failed to flush genesis %s records: %w", typ, err)
		}
	}

	if len(writers) > 0 {
		g.logger.Info("Genesis type imported", zap.String("type", typ), zap.Int("records", g.count(typ)))
	}
	return nil
}

// Finish drains any type that has not been ended and closes the importer.
// Later Handle calls fail with an already-finished error.
func (g *GenesisImporter) Finish(ctx context.Context) error {
	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return nil
	}
	g.finished = true
	types := make([]string, 0, len(g.open))
	for typ := range g.open {
		types = append(types, typ)
	}
	g.mu.Unlock()

	for _, typ := range types {
		if err := g.TypeEnd(ctx, typ); err != nil {
			return err
		}
	}
	return nil
}

// Counts returns records seen per type
func (g *GenesisImporter) Counts() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.counts))
	for k, v := range g.counts {
		out[k] = v
	}
	return out
}

func (g *GenesisImporter) count(typ string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[typ]
}

func newGenesisWriter[T any](ctx context.Context, g *GenesisImporter, name string, flush database.FlushFunc[T]) *database.BulkWriter[T] {
	return database.NewBulkWriter(ctx, "genesis_"+name, g.pipeline.BulkBatchSize, g.pipeline.BulkMaxInFlight, flush, g.logger)
}

func (g *GenesisImporter) handleAccount(ctx context.Context, data json.RawMessage) error {
	const op = "genesis.account"

	var rec genesisAccount
	if err := decodeArgs(op, data, &rec); err != nil {
		return err
	}
	if err := requireFields(op, "name", rec.Name, "balance", rec.Balance, "vesting", rec.Vesting); err != nil {
		return err
	}

	liquid, err := asset.Parse(rec.Balance)
	if err != nil {
		return err
	}
	vesting, err := asset.Parse(rec.Vesting)
	if err != nil {
		return err
	}
	delegated, err := vestingPart(op, "delegated", rec.Delegated, vesting)
	if err != nil {
		return err
	}
	received, err := vestingPart(op, "received", rec.Received, vesting)
	if err != nil {
		return err
	}

	if g.users == nil {
		g.users = newGenesisWriter[entities.UserMeta](ctx, g, "user_metas", g.store.UserMetas.BatchUpsert)
		g.balances = newGenesisWriter[entities.Balance](ctx, g, "balances", g.store.Balances.BatchUpsert)
		g.vesting = newGenesisWriter[entities.VestingBalance](ctx, g, "vesting_balances", g.store.Vesting.BatchUpsertBalances)
		g.open[GenesisAccount] = []finisher{g.users, g.balances, g.vesting}
	}

	if err := g.users.AddEntry(entities.UserMeta{UserID: rec.Name, Username: rec.Username}); err != nil {
		return err
	}
	if err := g.balances.AddEntry(entities.Balance{
		Name:     rec.Name,
		Balances: entities.BalanceEntries{entities.BalanceEntryFromAsset(liquid)},
	}); err != nil {
		return err
	}
	return g.vesting.AddEntry(entities.VestingBalance{
		Account:   rec.Name,
		Vesting:   vesting.String(),
		Delegated: delegated,
		Received:  received,
	})
}

func (g *GenesisImporter) handleTransfer(ctx context.Context, data json.RawMessage) error {
	const op = "genesis.transfer"

	var rec genesisTransfer
	if err := decodeArgs(op, data, &rec); err != nil {
		return err
	}
	if err := requireFields(op, "from", rec.From, "to", rec.To, "quantity", rec.Quantity); err != nil {
		return err
	}

	quantity, err := asset.Parse(rec.Quantity)
	if err != nil {
		return err
	}

	var ts time.Time
	if rec.Time != "" {
		if ts, err = chain.ParseTime(rec.Time); err != nil {
			return errs.Wrap(errs.KindFormat, op, err)
		}
	}

	if g.transfers == nil {
		g.transfers = newGenesisWriter[entities.Transfer](ctx, g, "transfers", g.store.Transfers.BatchInsert)
		g.open[GenesisTransfer] = []finisher{g.transfers}
	}

	return g.transfers.AddEntry(entities.Transfer{
		Sender:    rec.From,
		Receiver:  rec.To,
		Quantity:  quantity.Amount(),
		Symbol:    quantity.Symbol,
		Memo:      rec.Memo,
		BlockNum:  rec.Block,
		TrxID:     rec.TrxID,
		Timestamp: ts,
	})
}

func (g *GenesisImporter) handleCurrency(ctx context.Context, data json.RawMessage) error {
	const op = "genesis.currency"

	var rec genesisCurrency
	if err := decodeArgs(op, data, &rec); err != nil {
		return err
	}
	if err := requireFields(op, "supply", rec.Supply); err != nil {
		return err
	}

	supply, err := asset.Parse(rec.Supply)
	if err != nil {
		return err
	}
	symbol := rec.Symbol
	if symbol == "" {
		symbol = supply.Symbol
	}

	if g.tokens == nil {
		g.tokens = newGenesisWriter[entities.Token](ctx, g, "tokens", g.store.Tokens.BatchUpsert)
		g.open[GenesisCurrency] = []finisher{g.tokens}
	}

	return g.tokens.AddEntry(entities.Token{
		Symbol:    symbol,
		Issuer:    rec.Issuer,
		Supply:    rec.Supply,
		MaxSupply: rec.MaxSupply,
	})
}

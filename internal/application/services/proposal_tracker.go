package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/config"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/errs"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/chain"
)

type permissionLevel struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

type proposedAction struct {
	Account       string            `json:"account"`
	Name          string            `json:"name"`
	Authorization []permissionLevel `json:"authorization"`
	Data          json.RawMessage   `json:"data"`
}

type proposedTrx struct {
	Expiration string           `json:"expiration"`
	Actions    []proposedAction `json:"actions"`
}

type proposeArgs struct {
	Proposer     string            `json:"proposer"`
	ProposalName string            `json:"proposal_name"`
	Requested    []permissionLevel `json:"requested"`
	Trx          *proposedTrx      `json:"trx"`
}

type approveArgs struct {
	Proposer     string          `json:"proposer"`
	ProposalName string          `json:"proposal_name"`
	Level        permissionLevel `json:"level"`
}

type closeProposalArgs struct {
	Proposer     string `json:"proposer"`
	ProposalName string `json:"proposal_name"`
}

// ProposalTracker follows multisig proposals that wrap a single vesting
// delegate action, keyed by (proposer, proposal name). Rows live from
// propose until exec or cancel.
type ProposalTracker struct {
	repo   repositories.ProposalRepository
	chain  config.ChainConfig
	logger *zap.Logger
}

// NewProposalTracker creates a new proposal tracker
func NewProposalTracker(repo repositories.ProposalRepository, chain config.ChainConfig, logger *zap.Logger) *ProposalTracker {
	return &ProposalTracker{
		repo:   repo,
		chain:  chain,
		logger: logger,
	}
}

// withRepo returns a tracker writing to repo
func (t *ProposalTracker) withRepo(repo repositories.ProposalRepository) *ProposalTracker {
	scoped := *t
	scoped.repo = repo
	return &scoped
}

// Handle dispatches a msig action by name
func (t *ProposalTracker) Handle(ctx context.Context, action string, args json.RawMessage) error {
	switch action {
	case "propose":
		return t.Propose(ctx, args)
	case "approve":
		return t.Approve(ctx, args, true)
	case "unapprove":
		return t.Approve(ctx, args, false)
	case "exec", "cancel":
		return t.Close(ctx, action, args)
	default:
		return nil
	}
}

// Propose starts tracking a proposal whose only action is a vesting delegate
func (t *ProposalTracker) Propose(ctx context.Context, raw json.RawMessage) error {
	const op = "msig.propose"

	var args proposeArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return err
	}
	if err := requireFields(op, "proposer", args.Proposer, "proposal_name", args.ProposalName); err != nil {
		return err
	}
	if args.Trx == nil {
		return errs.Missing(op, "trx")
	}

	if len(args.Trx.Actions) != 1 {
		return nil
	}
	inner := args.Trx.Actions[0]
	if inner.Account != t.chain.VestingContract || inner.Name != "delegate" {
		return nil
	}

	delegate, err := chain.DecodeDelegateArgs(inner.Data)
	if err != nil {
		return errs.Wrap(errs.KindMalformedAction, op, err)
	}
	if err := requireFields(op, "trx.actions[0].data.from", delegate.From, "trx.actions[0].data.quantity", delegate.Quantity); err != nil {
		return err
	}

	expiration, err := chain.ParseTime(args.Trx.Expiration)
	if err != nil {
		return errs.Wrap(errs.KindMalformedAction, op, err)
	}

	approvers := make([]string, 0, len(args.Requested))
	for _, level := range args.Requested {
		approvers = append(approvers, level.Actor)
	}

	proposal := &entities.DelegateVestingProposal{
		CommunityID:  t.chain.CommunityID,
		Proposer:     args.Proposer,
		ProposalID:   args.ProposalName,
		UserID:       delegate.From,
		ToUserID:     delegate.To,
		Approvers:    approvers,
		Expiration:   expiration,
		Quantity:     delegate.Quantity,
		InterestRate: delegate.InterestRate,
	}
	if err := t.repo.Upsert(ctx, proposal); err != nil {
		return fmt.Errorf("failed to upsert proposal: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("proposal").Inc()

	t.logger.Info("Tracking delegate proposal",
		zap.String("proposer", args.Proposer),
		zap.String("proposal", args.ProposalName),
		zap.String("user", delegate.From),
	)
	return nil
}

// Approve sets or clears the author signature when the approving actor is
// the delegating user. Unknown proposals are ignored.
func (t *ProposalTracker) Approve(ctx context.Context, raw json.RawMessage, signed bool) error {
	op := "msig.approve"
	if !signed {
		op = "msig.unapprove"
	}

	var args approveArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return err
	}
	if err := requireFields(op, "proposer", args.Proposer, "proposal_name", args.ProposalName, "level.actor", args.Level.Actor); err != nil {
		return err
	}

	proposal, err := t.repo.Get(ctx, args.Proposer, args.ProposalName)
	if err != nil {
		return fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal == nil || proposal.UserID != args.Level.Actor {
		return nil
	}

	if _, err := t.repo.SetSignedByAuthor(ctx, args.Proposer, args.ProposalName, signed); err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	return nil
}

// Close forgets a proposal on exec or cancel, tracked or not
func (t *ProposalTracker) Close(ctx context.Context, action string, raw json.RawMessage) error {
	op := "msig." + action

	var args closeProposalArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return err
	}
	if err := requireFields(op, "proposer", args.Proposer, "proposal_name", args.ProposalName); err != nil {
		return err
	}

	if err := t.repo.Delete(ctx, args.Proposer, args.ProposalName); err != nil {
		return fmt.Errorf("failed to delete proposal: %w", err)
	}
	return nil
}

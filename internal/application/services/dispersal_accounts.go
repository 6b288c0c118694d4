package services

import (
	"context"
	"fmt"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

type updateMetaArgs struct {
	Account string `json:"account"`
	Meta    struct {
		Name *string `json:"name"`
	} `json:"meta"`
}

type newUsernameArgs struct {
	Creator string `json:"creator"`
	Owner   string `json:"owner"`
	Name    string `json:"name"`
}

func (s *DispersalService) handleUpdateMeta(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args updateMetaArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "account", args.Account); err != nil {
		return err
	}

	// Profile updates that do not touch the display name change nothing here
	if args.Meta.Name == nil || *args.Meta.Name == "" {
		return nil
	}

	meta := &entities.UserMeta{UserID: args.Account, Name: *args.Meta.Name}
	if err := ac.store.UserMetas.Upsert(ctx, meta); err != nil {
		return fmt.Errorf("failed to upsert user meta: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("user_meta").Inc()
	return nil
}

func (s *DispersalService) handleNewUsername(ctx context.Context, ac *actionContext) error {
	op := ac.op("args")

	var args newUsernameArgs
	if err := decodeArgs(op, ac.action.Args, &args); err != nil {
		return err
	}
	if err := requireFields(op, "owner", args.Owner, "name", args.Name); err != nil {
		return err
	}

	meta := &entities.UserMeta{UserID: args.Owner, Username: args.Name}
	if err := ac.store.UserMetas.Upsert(ctx, meta); err != nil {
		return fmt.Errorf("failed to upsert user meta: %w", err)
	}
	recordsWrittenTotal.WithLabelValues("user_meta").Inc()
	return nil
}

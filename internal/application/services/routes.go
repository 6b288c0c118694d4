package services

import (
	"context"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// anyName matches every code, receiver or action in a route key
const anyName = "*"

// eventOrder places attached event processing relative to the action handler
type eventOrder int

const (
	eventsNone eventOrder = iota
	eventsBefore
	eventsAfter
)

type routeKey struct {
	code     string
	receiver string
	action   string
}

func (k routeKey) matches(a *entities.Action) bool {
	return matchName(k.code, a.Code) &&
		matchName(k.receiver, a.Receiver) &&
		matchName(k.action, a.Action)
}

func matchName(pattern, name string) bool {
	return pattern == anyName || pattern == name
}

type actionHandler func(ctx context.Context, ac *actionContext) error

// route binds a key to a handler. handle may be nil for event-only routes.
type route struct {
	key    routeKey
	name   string
	events eventOrder
	handle actionHandler
}

// buildRoutes returns the routing table, first match wins
func (s *DispersalService) buildRoutes() []route {
	token := s.chain.TokenContract
	vesting := s.chain.VestingContract
	control := s.chain.ControlContract
	social := s.chain.SocialContract
	msig := s.chain.MsigContract

	routes := []route{
		{key: routeKey{token, token, "transfer"}, name: "transfer", events: eventsAfter, handle: s.handleTransfer},
		{key: routeKey{token, token, "payment"}, name: "transfer", events: eventsAfter, handle: s.handleTransfer},
		{key: routeKey{token, token, "bulktransfer"}, name: "bulk_transfer", events: eventsAfter, handle: s.handleBulkTransfer},
		{key: routeKey{token, token, "bulkpayment"}, name: "bulk_transfer", events: eventsAfter, handle: s.handleBulkTransfer},
		{key: routeKey{token, token, "issue"}, name: "token_events", events: eventsAfter},
		{key: routeKey{token, token, "create"}, name: "token_events", events: eventsAfter},
		{key: routeKey{token, token, "claim"}, name: "token_events", events: eventsAfter},

		{key: routeKey{token, vesting, "transfer"}, name: "vesting_events", events: eventsBefore},
		{key: routeKey{vesting, vesting, "delegate"}, name: "delegate", events: eventsBefore, handle: s.handleDelegate},
		{key: routeKey{vesting, vesting, "timeoutconv"}, name: "vesting_events", events: eventsBefore},
		{key: routeKey{vesting, vesting, "withdraw"}, name: "withdraw", events: eventsBefore, handle: s.handleWithdraw},
		{key: routeKey{vesting, vesting, "stopwithdraw"}, name: "stop_withdraw", events: eventsBefore, handle: s.handleStopWithdraw},
		{key: routeKey{vesting, vesting, "undelegate"}, name: "undelegate", handle: s.handleUndelegate},
		{key: routeKey{vesting, vesting, "setparams"}, name: "set_params", handle: s.handleSetParams},

		{key: routeKey{control, control, "changevest"}, name: "change_vest", handle: s.handleChangeVest},
		{key: routeKey{social, social, "updatemeta"}, name: "update_meta", handle: s.handleUpdateMeta},
		{key: routeKey{anyName, anyName, "newusername"}, name: "new_username", handle: s.handleNewUsername},
	}

	for _, action := range []string{"propose", "approve", "unapprove", "exec", "cancel"} {
		routes = append(routes, route{
			key:    routeKey{msig, msig, action},
			name:   "proposal",
			handle: s.handleProposal,
		})
	}

	return routes
}

// resolve returns the first route matching the action, nil when unrouted
func (s *DispersalService) resolve(a *entities.Action) *route {
	for i := range s.routes {
		if s.routes[i].key.matches(a) {
			return &s.routes[i]
		}
	}
	return nil
}

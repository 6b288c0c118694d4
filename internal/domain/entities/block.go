package entities

import (
	"encoding/json"
	"time"
)

// Block is an irreversible block delivered by the live feed
type Block struct {
	BlockNum     int64
	BlockTime    time.Time
	Transactions []Transaction
}

// Transaction is an ordered list of actions executed atomically on chain
type Transaction struct {
	ID        string
	BlockNum  int64
	BlockTime time.Time
	Actions   []Action
}

// Action is a single contract action as seen by one receiver.
// Args and event args are kept raw and decoded by the handler that routes them.
type Action struct {
	Code     string
	Receiver string
	Action   string
	Args     json.RawMessage
	Events   []Event
}

// Event is a state-change event emitted while executing an action
type Event struct {
	Code  string
	Event string
	Args  json.RawMessage
}

// GenesisRecord is one typed record of the genesis snapshot feed
type GenesisRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

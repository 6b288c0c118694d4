package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/chain"
)

// Message types exchanged with the block feed
const (
	msgSubscribe  = "subscribe"
	msgSubscribed = "subscribed"
	msgBlock      = "block"
	msgError      = "error"
)

// chainTime decodes chain.ParseTime layouts from JSON strings
type chainTime time.Time

func (t *chainTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = chainTime(time.Time{})
		return nil
	}
	parsed, err := chain.ParseTime(s)
	if err != nil {
		return err
	}
	*t = chainTime(parsed)
	return nil
}

type subscribeRequest struct {
	Type             string `json:"type"`
	IrreversibleOnly bool   `json:"irreversibleOnly"`
	FromBlock        int64  `json:"fromBlock"`
}

type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type wireBlock struct {
	BlockNum     int64             `json:"blockNum"`
	BlockTime    chainTime         `json:"blockTime"`
	Transactions []wireTransaction `json:"transactions"`
}

type wireTransaction struct {
	ID        string       `json:"id"`
	BlockNum  int64        `json:"blockNum"`
	BlockTime *chainTime   `json:"blockTime"`
	Actions   []wireAction `json:"actions"`
}

type wireAction struct {
	Code     string          `json:"code"`
	Receiver string          `json:"receiver"`
	Action   string          `json:"action"`
	Args     json.RawMessage `json:"args"`
	Events   []wireEvent     `json:"events"`
}

type wireEvent struct {
	Code  string          `json:"code"`
	Event string          `json:"event"`
	Args  json.RawMessage `json:"args"`
}

// DecodeBlock converts a feed block payload into the domain block.
// Transactions without their own position inherit the block's.
func DecodeBlock(data []byte) (*entities.Block, error) {
	var wb wireBlock
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("failed to decode block: %w", err)
	}
	if wb.BlockNum <= 0 {
		return nil, fmt.Errorf("block without blockNum")
	}

	block := &entities.Block{
		BlockNum:     wb.BlockNum,
		BlockTime:    time.Time(wb.BlockTime),
		Transactions: make([]entities.Transaction, 0, len(wb.Transactions)),
	}

	for _, wt := range wb.Transactions {
		trx := entities.Transaction{
			ID:        strings.TrimSpace(wt.ID),
			BlockNum:  wt.BlockNum,
			BlockTime: block.BlockTime,
			Actions:   make([]entities.Action, 0, len(wt.Actions)),
		}
		if trx.BlockNum == 0 {
			trx.BlockNum = block.BlockNum
		}
		if wt.BlockTime != nil {
			trx.BlockTime = time.Time(*wt.BlockTime)
		}

		for _, wa := range wt.Actions {
			action := entities.Action{
				Code:     wa.Code,
				Receiver: wa.Receiver,
				Action:   wa.Action,
				Args:     wa.Args,
				Events:   make([]entities.Event, 0, len(wa.Events)),
			}
			for _, we := range wa.Events {
				action.Events = append(action.Events, entities.Event{
					Code:  we.Code,
					Event: we.Event,
					Args:  we.Args,
				})
			}
			trx.Actions = append(trx.Actions, action)
		}

		block.Transactions = append(block.Transactions, trx)
	}

	return block, nil
}

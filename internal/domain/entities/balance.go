package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bimakw/vesting-indexer/internal/domain/asset"
)

// BalanceEntry is one symbol's liquid amount in integer units
type BalanceEntry struct {
	Amount   int64  `json:"amount"`
	Decimals int32  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// String renders the entry as an asset string
func (e BalanceEntry) String() string {
	return asset.Format(e.Amount, e.Decimals, e.Symbol)
}

// BalanceEntryFromAsset converts a parsed asset into a balance entry
func BalanceEntryFromAsset(a asset.Asset) BalanceEntry {
	return BalanceEntry{Amount: a.Units(), Decimals: a.Decimals, Symbol: a.Symbol}
}

// BalanceEntries is stored as a JSONB array
type BalanceEntries []BalanceEntry

// Value implements driver.Valuer
func (b BalanceEntries) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (b *BalanceEntries) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*b = BalanceEntries{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported balance entries type %T", src)
	}
	return json.Unmarshal(data, b)
}

// Balance holds an account's liquid balances, at most one entry per symbol
type Balance struct {
	Name      string         `db:"name"`
	Balances  BalanceEntries `db:"balances"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Set replaces the entry for entry.Symbol in place or appends it
func (b *Balance) Set(entry BalanceEntry) {
	for i := range b.Balances {
		if b.Balances[i].Symbol == entry.Symbol {
			b.Balances[i] = entry
			return
		}
	}
	b.Balances = append(b.Balances, entry)
}

// Entry returns the entry for a symbol
func (b *Balance) Entry(symbol string) (BalanceEntry, bool) {
	for _, e := range b.Balances {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return BalanceEntry{}, false
}

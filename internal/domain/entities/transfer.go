package entities

import (
	"time"
)

// Transfer represents a token movement between two accounts.
// Transfers are immutable once written.
type Transfer struct {
	ID        int64     `db:"id"`
	Sender    string    `db:"sender"`
	Receiver  string    `db:"receiver"`
	Quantity  string    `db:"quantity"` // numeric part, e.g. "1.000"
	Symbol    string    `db:"symbol"`
	Memo      string    `db:"memo"`
	BlockNum  int64     `db:"block_num"`
	TrxID     string    `db:"trx_id"`
	Timestamp time.Time `db:"block_time"`
	CreatedAt time.Time `db:"created_at"`
}

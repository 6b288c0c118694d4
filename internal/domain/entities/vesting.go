package entities

import (
	"time"
)

// VestingStat is the total vesting supply, the denominator of the vesting/token ratio
type VestingStat struct {
	Symbol    string    `db:"symbol"`
	Stat      string    `db:"stat"`
	UpdatedAt time.Time `db:"updated_at"`
}

// VestingBalance is an account's vesting position; all amounts share the vesting symbol
type VestingBalance struct {
	Account   string    `db:"account"`
	Vesting   string    `db:"vesting"`
	Delegated string    `db:"delegated"`
	Received  string    `db:"received"`
	UpdatedAt time.Time `db:"updated_at"`
}

// VestingParams is the singleton withdrawal schedule configuration
type VestingParams struct {
	Intervals       int       `db:"intervals"`
	IntervalSeconds int64     `db:"interval_seconds"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Interval returns the payout interval as a duration
func (p VestingParams) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// VestingChange is an audit row for a control-contract vesting change
type VestingChange struct {
	ID        int64     `db:"id"`
	Who       string    `db:"who"`
	Diff      string    `db:"diff"`
	BlockNum  int64     `db:"block_num"`
	TrxID     string    `db:"trx_id"`
	Timestamp time.Time `db:"block_time"`
}

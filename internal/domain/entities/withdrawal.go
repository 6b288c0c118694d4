package entities

import (
	"time"
)

// Withdrawal is an active vesting withdrawal schedule, one per owner
type Withdrawal struct {
	Owner             string    `db:"owner"`
	To                string    `db:"to_user"`
	Quantity          string    `db:"quantity"`
	Rate              string    `db:"rate"`
	RemainingPayments int       `db:"remaining_payments"`
	IntervalSeconds   int64     `db:"interval_seconds"`
	NextPayout        time.Time `db:"next_payout"`
	ToWithdraw        string    `db:"to_withdraw"`
	UpdatedAt         time.Time `db:"updated_at"`
}

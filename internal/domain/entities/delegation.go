package entities

import (
	"time"
)

// Delegation is a grant of vesting from one account to another.
// Exactly one row per (From, To) has IsActual set; closed rows keep a zero quantity.
type Delegation struct {
	ID           int64     `db:"id"`
	From         string    `db:"from_user"`
	To           string    `db:"to_user"`
	Quantity     string    `db:"quantity"`
	InterestRate int       `db:"interest_rate"`
	IsActual     bool      `db:"is_actual"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

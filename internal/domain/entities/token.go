package entities

import (
	"time"
)

// Token represents a currency created on the token contract, one row per symbol
type Token struct {
	Symbol    string    `db:"symbol"`
	Issuer    string    `db:"issuer"`
	Supply    string    `db:"supply"`
	MaxSupply string    `db:"max_supply"`
	UpdatedAt time.Time `db:"updated_at"`
}

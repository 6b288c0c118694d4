package entities

import (
	"time"
)

// UserMeta holds an account's registered username and profile display name.
// Empty fields mean "not known yet" and never overwrite stored values.
type UserMeta struct {
	UserID    string    `db:"user_id"`
	Username  string    `db:"username"`
	Name      string    `db:"name"`
	UpdatedAt time.Time `db:"updated_at"`
}

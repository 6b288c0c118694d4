package entities

import (
	"time"
)

// ServiceMeta is the singleton checkpoint of the ingestion pipeline
type ServiceMeta struct {
	IsGenesisApplied bool       `db:"is_genesis_applied"`
	LastSequence     int64      `db:"last_sequence"`
	LastBlockTime    *time.Time `db:"last_block_time"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

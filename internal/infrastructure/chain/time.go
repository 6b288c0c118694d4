package chain

import (
	"fmt"
	"time"
)

// timeLayouts are tried in order; node timestamps carry no zone and are UTC
var timeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ParseTime parses a chain timestamp such as a block time or a trx expiration
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse chain time: %s", s)
}

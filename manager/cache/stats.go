package cache

import (
	"sync/atomic"
	"time"
)

type EntryStats struct {
	Created time.Time

	Reads  atomic.Int64
	Writes atomic.Int64
}

func newEntryStats() *EntryStats {
	return &EntryStats{Created: time.Now()}
}

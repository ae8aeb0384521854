// package repositories provides SQLite implementations of the session and credential stores.
package repositories

import (
	"time"
)

// toMillis converts t to the unix millisecond representation stored on disk.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts a stored unix millisecond value back to a [time.Time] in UTC.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

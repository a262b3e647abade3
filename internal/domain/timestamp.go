package domain

import "time"

// The chain replica encodes instants as integer microseconds since the Unix
// epoch, while the ledger works in time.Time. Conversion truncates to
// millisecond precision and round-trips exactly for millisecond inputs.

// TimestampToTime converts a chain-side microsecond timestamp to a time.Time.
func TimestampToTime(micros int64) time.Time {
	return time.UnixMilli(micros / 1000).UTC()
}

// TimeToTimestamp converts a time.Time to a chain-side microsecond timestamp.
func TimeToTimestamp(t time.Time) int64 {
	return t.UnixMilli() * 1000
}

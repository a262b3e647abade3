package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestampRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
	}{
		{"epoch", time.UnixMilli(0).UTC()},
		{"millisecond precision", time.Date(2025, 6, 1, 12, 30, 45, 123_000_000, time.UTC)},
		{"far future", time.Date(2099, 12, 31, 23, 59, 59, 999_000_000, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, TimestampToTime(TimeToTimestamp(tc.in)).Equal(tc.in))
		})
	}
}

func TestTimestampToTime_TruncatesSubMillisecond(t *testing.T) {
	// 1,700,000,000,123,456 us -> 1,700,000,000,123 ms.
	got := TimestampToTime(1_700_000_000_123_456)
	assert.Equal(t, int64(1_700_000_000_123), got.UnixMilli())
}

func TestTimeToTimestamp_Micros(t *testing.T) {
	d := time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	assert.Equal(t, d.UnixMilli()*1000, TimeToTimestamp(d))
}

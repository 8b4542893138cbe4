package calendar

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayUsesReferenceTimezone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2025-12-09 16:30 UTC is already 2025-12-10 in Tokyo.
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 9, 16, 30, 0, 0, time.UTC))
	cal := New(clock, tokyo)

	assert.Equal(t, civil.Date{Year: 2025, Month: 12, Day: 10}, cal.Today())

	earlier := New(clockwork.NewFakeClockAt(time.Date(2025, 12, 9, 14, 59, 0, 0, time.UTC)), tokyo)
	assert.Equal(t, civil.Date{Year: 2025, Month: 12, Day: 9}, earlier.Today())

	clock.Advance(23 * time.Hour)
	assert.Equal(t, civil.Date{Year: 2025, Month: 12, Day: 11}, cal.Today())
}

func TestWeekWindowIsSevenDaysInclusive(t *testing.T) {
	cal := New(clockwork.NewFakeClockAt(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)), time.UTC)
	from, to := cal.WeekWindow()
	assert.Equal(t, civil.Date{Year: 2025, Month: 2, Day: 25}, from)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 3}, to)
	assert.Equal(t, 6, to.DaysSince(from))
}

func TestSeed(t *testing.T) {
	assert.Equal(t, int64(20251210), Seed(civil.Date{Year: 2025, Month: 12, Day: 10}))
	assert.Equal(t, int64(20260101), Seed(civil.Date{Year: 2026, Month: 1, Day: 1}))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-12-10")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: 12, Day: 10}, d)

	d, err = ParseDate("20251210")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: 12, Day: 10}, d)

	for _, bad := range []string{"", "2025-13-01", "2025-02-30", "yesterday", "2025121"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("+09:00")
	require.NoError(t, err)
	_, off := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 9*3600, off)

	loc, err = LoadLocation("UTC+9")
	require.NoError(t, err)
	_, off = time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 9*3600, off)

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestTimeRoundTrip(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 2, Day: 29}
	assert.Equal(t, d, FromTime(ToTime(d)))
}

package gtfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "08:02:00", want: 8*3600 + 2*60},
		{in: "8:02:00", want: 8*3600 + 2*60},
		{in: "08:30", want: 8*3600 + 30*60},
		{in: " 23:59:59 ", want: 86399},
		{in: "25:10:00", want: 25*3600 + 10*60},
		{in: "", wantErr: true},
		{in: "0800", wantErr: true},
		{in: "08:60", wantErr: true},
		{in: "08:5", wantErr: true},
		{in: "aa:00", wantErr: true},
		{in: "08:00:00:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Run("accepts HH:MM query times", func(t *testing.T) {
		got, err := ParseTimeOfDay("08:15")
		require.NoError(t, err)
		assert.Equal(t, "08:15:00", got.String())
	})

	t.Run("rejects hours past midnight", func(t *testing.T) {
		_, err := ParseTimeOfDay("24:00")
		assert.ErrorIs(t, err, ErrInvalidTime)
	})
}

func TestTimeOfDayAddWrapsAtMidnight(t *testing.T) {
	tod, err := ParseTimeOfDay("23:50")
	require.NoError(t, err)

	assert.Equal(t, "00:05:00", tod.Add(15*time.Minute).String())
	assert.Equal(t, "23:55:00", tod.Add(5*time.Minute).String())
}

func TestNewStopTime(t *testing.T) {
	t.Run("keeps times before midnight", func(t *testing.T) {
		st, err := NewStopTime("T1", "S1", "08:02:00", "08:03:00")
		require.NoError(t, err)
		assert.Equal(t, "08:02:00", st.ArrivalTime.String())
		assert.Equal(t, "08:03:00", st.DepartureTime.String())
	})

	t.Run("flags times at or past 24:00", func(t *testing.T) {
		_, err := NewStopTime("T1", "S1", "23:59:00", "24:00:00")
		assert.ErrorIs(t, err, ErrBeyondServiceDay)

		_, err = NewStopTime("T1", "S1", "25:01:00", "25:02:00")
		assert.ErrorIs(t, err, ErrBeyondServiceDay)
	})

	t.Run("reports malformed clocks", func(t *testing.T) {
		_, err := NewStopTime("T1", "S1", "nope", "08:00:00")
		assert.ErrorIs(t, err, ErrInvalidTime)
	})
}

func TestParseQueryTime(t *testing.T) {
	got, err := ParseQueryTime("08:15")
	require.NoError(t, err)
	assert.Equal(t, 8*3600+15*60, got.Seconds())

	for _, in := range []string{"8:15", "+8:15", "08:15:00", " 08:15", "24:00", "08:60", "0815"} {
		_, err := ParseQueryTime(in)
		assert.ErrorIs(t, err, ErrInvalidTime, in)
	}
}

func TestParseServiceDate(t *testing.T) {
	d, err := ParseServiceDate("20210421")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, time.April, 21, 0, 0, 0, 0, time.UTC), d)

	for _, in := range []string{"2021-04-21", "+2021042", "2021042", "20211341", ""} {
		_, err := ParseServiceDate(in)
		assert.ErrorIs(t, err, ErrInvalidDate, in)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("20210421")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 4, 21, 0, 0, 0, 0, time.UTC), d)

	iso, err := ParseDate("2021-04-21")
	require.NoError(t, err)
	assert.Equal(t, d, iso)

	_, err = ParseDate("2021042")
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = ParseDate("20211341")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestWeekdays(t *testing.T) {
	// 2021-04-19 is a Monday.
	monday := time.Date(2021, 4, 19, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.Equal(t, Weekday(i), WeekdayOf(monday.AddDate(0, 0, i)))
	}

	set := WeekdaySetFromFlags([7]bool{true, false, true, false, false, false, true})
	assert.True(t, set.Has(Monday))
	assert.False(t, set.Has(Tuesday))
	assert.True(t, set.Has(Wednesday))
	assert.True(t, set.Has(Sunday))
	assert.Equal(t, "1010001", set.String())
	assert.Equal(t, set, NewWeekdaySet(Monday, Wednesday, Sunday))
}

func TestCalendarCoversIsInclusive(t *testing.T) {
	c := Calendar{
		ServiceID: "WD",
		StartDate: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, c.Covers(c.StartDate))
	assert.True(t, c.Covers(c.EndDate))
	assert.False(t, c.Covers(c.EndDate.AddDate(0, 0, 1)))
	assert.False(t, c.Covers(c.StartDate.AddDate(0, 0, -1)))
}

package gtfs

import (
	"strings"
	"time"
)

// Weekday indexes days Monday-first, matching the calendar.txt column order.
type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) String() string {
	if int(d) < len(weekdayNames) {
		return weekdayNames[d]
	}
	return "unknown"
}

// WeekdayOf maps the Go weekday (Sunday = 0) of t onto the Monday-first index.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// WeekdaySet is a bitset of the days a service runs.
type WeekdaySet uint8

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// WeekdaySetFromFlags builds a set from the seven calendar.txt flags in
// Monday..Sunday order.
func WeekdaySetFromFlags(flags [7]bool) WeekdaySet {
	var s WeekdaySet
	for i, on := range flags {
		if on {
			s = s.With(Weekday(i))
		}
	}
	return s
}

func (s WeekdaySet) With(d Weekday) WeekdaySet { return s | 1<<d }

func (s WeekdaySet) Has(d Weekday) bool { return s&(1<<d) != 0 }

func (s WeekdaySet) String() string {
	var b strings.Builder
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

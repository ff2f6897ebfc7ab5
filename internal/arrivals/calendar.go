package arrivals

import (
	"time"

	"gtfs-arrivals/internal/gtfs"
)

// ActiveServices returns the service IDs running on date: the date falls in
// the entry's inclusive range and the entry's flag for that weekday is set.
// Only the year, month and day of date are considered.
func ActiveServices(calendar []gtfs.Calendar, date time.Time) Set {
	date = gtfs.DateOf(date)
	day := gtfs.WeekdayOf(date)

	active := Set{}
	for _, c := range calendar {
		if c.Covers(date) && c.Days.Has(day) {
			active.Add(c.ServiceID)
		}
	}
	return active
}

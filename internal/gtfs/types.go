package gtfs

import (
	"fmt"
	"time"
)

type Trip struct {
	TripID    string
	ServiceID string
}

type Stop struct {
	StopID        string
	StopName      string
	ParentStation string // empty when the stop has no parent
}

type StopTime struct {
	TripID        string
	StopID        string
	ArrivalTime   TimeOfDay
	DepartureTime TimeOfDay
}

// Calendar is one row of calendar.txt. Dates are UTC midnight values and the
// range is inclusive on both ends.
type Calendar struct {
	ServiceID string
	Days      WeekdaySet
	StartDate time.Time
	EndDate   time.Time
}

// Covers reports whether date lies within [StartDate, EndDate].
func (c Calendar) Covers(date time.Time) bool {
	return !date.Before(c.StartDate) && !date.After(c.EndDate)
}

// Tables is a read-only snapshot of the four schedule tables.
type Tables struct {
	Trips     []Trip
	Stops     []Stop
	StopTimes []StopTime
	Calendar  []Calendar
}

// Stats summarises table sizes for logging and health reporting.
type Stats struct {
	Trips     int `json:"trips"`
	Stops     int `json:"stops"`
	StopTimes int `json:"stop_times"`
	Calendar  int `json:"calendar"`
}

func (t *Tables) Stats() Stats {
	if t == nil {
		return Stats{}
	}
	return Stats{
		Trips:     len(t.Trips),
		Stops:     len(t.Stops),
		StopTimes: len(t.StopTimes),
		Calendar:  len(t.Calendar),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("trips=%d stops=%d stop_times=%d calendar=%d", s.Trips, s.Stops, s.StopTimes, s.Calendar)
}

// NewStopTime builds a StopTime from raw GTFS clock strings. Rows whose
// arrival or departure is at or past 24:00:00 return ErrBeyondServiceDay and
// must be dropped by the caller.
func NewStopTime(tripID, stopID, arrival, departure string) (StopTime, error) {
	arr, err := ParseClock(arrival)
	if err != nil {
		return StopTime{}, fmt.Errorf("arrival_time: %w", err)
	}
	dep, err := ParseClock(departure)
	if err != nil {
		return StopTime{}, fmt.Errorf("departure_time: %w", err)
	}
	return NewStopTimeSeconds(tripID, stopID, arr, dep)
}

// NewStopTimeSeconds is NewStopTime for values already expressed as seconds
// since midnight, which may exceed 24h.
func NewStopTimeSeconds(tripID, stopID string, arrivalSec, departureSec int) (StopTime, error) {
	arr, err := TimeOfDayFromSeconds(arrivalSec)
	if err != nil {
		return StopTime{}, fmt.Errorf("arrival_time: %w", err)
	}
	dep, err := TimeOfDayFromSeconds(departureSec)
	if err != nil {
		return StopTime{}, fmt.Errorf("departure_time: %w", err)
	}
	return StopTime{TripID: tripID, StopID: stopID, ArrivalTime: arr, DepartureTime: dep}, nil
}

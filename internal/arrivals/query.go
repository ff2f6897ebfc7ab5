package arrivals

import (
	"errors"
	"fmt"
	"time"

	"gtfs-arrivals/internal/gtfs"
)

// ErrInvalidQuery wraps every input validation failure of a Query.
var ErrInvalidQuery = errors.New("invalid query")

// Query is the public arrival-count request in its wire form.
type Query struct {
	StopName        string `json:"stop_name" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	EndTime         string `json:"end_time" validate:"required"`
	Date            string `json:"date" validate:"required,len=8,numeric"`
	IntervalMinutes int    `json:"interval" validate:"gt=0,lte=1440"`
}

// Request is a parsed Query.
type Request struct {
	StopName string
	Start    gtfs.TimeOfDay
	End      gtfs.TimeOfDay
	Date     time.Time
	Interval time.Duration
}

// MaxIntervalMinutes is the widest bucket a query may ask for: one day.
const MaxIntervalMinutes = 24 * 60

// Parse validates the query. Times must be HH:MM, the date YYYYMMDD and the
// interval between 1 and MaxIntervalMinutes. Failures wrap ErrInvalidQuery
// together with the specific gtfs or interval error.
func (q Query) Parse() (Request, error) {
	if q.StopName == "" {
		return Request{}, fmt.Errorf("%w: stop_name is required", ErrInvalidQuery)
	}
	start, err := gtfs.ParseQueryTime(q.StartTime)
	if err != nil {
		return Request{}, fmt.Errorf("%w: start_time: %w", ErrInvalidQuery, err)
	}
	end, err := gtfs.ParseQueryTime(q.EndTime)
	if err != nil {
		return Request{}, fmt.Errorf("%w: end_time: %w", ErrInvalidQuery, err)
	}
	date, err := gtfs.ParseServiceDate(q.Date)
	if err != nil {
		return Request{}, fmt.Errorf("%w: date: %w", ErrInvalidQuery, err)
	}
	if q.IntervalMinutes <= 0 || q.IntervalMinutes > MaxIntervalMinutes {
		return Request{}, fmt.Errorf("%w: %w: %d minutes", ErrInvalidQuery, ErrInvalidInterval, q.IntervalMinutes)
	}
	return Request{
		StopName: q.StopName,
		Start:    start,
		End:      end,
		Date:     date,
		Interval: time.Duration(q.IntervalMinutes) * time.Minute,
	}, nil
}

// Result is the answer to one query.
type Result struct {
	StopName        string   `json:"stop_name"`
	Date            string   `json:"date"`
	IntervalMinutes int      `json:"interval"`
	Buckets         []Bucket `json:"buckets"`
	Counts          []int    `json:"counts"`

	StopIDs    []string `json:"-"`
	ServiceIDs []string `json:"-"`
	Events     int      `json:"-"`
}

// Index is a snapshot of the tables with the lookups the pipeline needs. It
// is immutable once built and safe for concurrent queries.
type Index struct {
	calendar []gtfs.Calendar
	stops    stopLookup
	events   eventIndex
	stats    gtfs.Stats
}

func NewIndex(t *gtfs.Tables) *Index {
	if t == nil {
		t = &gtfs.Tables{}
	}
	return &Index{
		calendar: t.Calendar,
		stops:    newStopLookup(t.Stops),
		events:   newEventIndex(t.Trips, t.StopTimes),
		stats:    t.Stats(),
	}
}

func (x *Index) Stats() gtfs.Stats { return x.stats }

func (x *Index) ActiveServices(date time.Time) Set { return ActiveServices(x.calendar, date) }

func (x *Index) ResolveStop(name string) Set { return x.stops.resolve(name) }

func (x *Index) FilteredEvents(stopIDs, serviceIDs Set) []gtfs.TimeOfDay {
	return x.events.events(stopIDs, serviceIDs)
}

// Run executes the pipeline for a parsed request. An unknown stop or a date
// without service yields all-zero buckets.
func (x *Index) Run(r Request) (Result, error) {
	services := x.ActiveServices(r.Date)
	stopIDs := x.ResolveStop(r.StopName)
	events := x.FilteredEvents(stopIDs, services)

	buckets, err := Buckets(events, r.Start, r.End, r.Interval)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return Result{
		StopName:        r.StopName,
		Date:            r.Date.Format(gtfs.DateFormat),
		IntervalMinutes: int(r.Interval / time.Minute),
		Buckets:         buckets,
		Counts:          counts(buckets),
		StopIDs:         stopIDs.Sorted(),
		ServiceIDs:      services.Sorted(),
		Events:          len(events),
	}, nil
}

// Query parses q and runs it.
func (x *Index) Query(q Query) (Result, error) {
	r, err := q.Parse()
	if err != nil {
		return Result{}, err
	}
	return x.Run(r)
}

// ArrivingBuses counts arrivals at stopName on date in interval-minute
// buckets over [start, end). Times are HH:MM and date is YYYYMMDD.
func ArrivingBuses(t *gtfs.Tables, stopName, start, end, date string, interval int) ([]int, error) {
	res, err := NewIndex(t).Query(Query{
		StopName:        stopName,
		StartTime:       start,
		EndTime:         end,
		Date:            date,
		IntervalMinutes: interval,
	})
	if err != nil {
		return nil, err
	}
	return res.Counts, nil
}

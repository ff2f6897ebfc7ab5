package gtfs

import (
	"errors"
	"sort"
)

// Drop reasons recorded by Builder.
const (
	ReasonBeyondServiceDay = "beyond_service_day"
	ReasonMalformed        = "malformed"
	ReasonMissingTrip      = "missing_trip"
	ReasonMissingStop      = "missing_stop"
	ReasonMissingService   = "missing_service"
)

// Drop identifies a class of rows excluded while loading.
type Drop struct {
	Table  string
	Reason string
}

// Drops counts excluded rows per table and reason.
type Drops map[Drop]int

// Total returns the number of dropped rows across all classes.
func (d Drops) Total() int {
	n := 0
	for _, c := range d {
		n += c
	}
	return n
}

// Keys returns the drop classes in a stable order.
func (d Drops) Keys() []Drop {
	keys := make([]Drop, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Table != keys[j].Table {
			return keys[i].Table < keys[j].Table
		}
		return keys[i].Reason < keys[j].Reason
	})
	return keys
}

// Builder collects rows from a loader and produces a validated Tables
// snapshot. Every loader goes through it so that the same rows are dropped
// whatever the source format.
type Builder struct {
	tables Tables
	drops  Drops
}

func NewBuilder() *Builder {
	return &Builder{drops: Drops{}}
}

func (b *Builder) AddTrip(t Trip) { b.tables.Trips = append(b.tables.Trips, t) }

func (b *Builder) AddStop(s Stop) { b.tables.Stops = append(b.tables.Stops, s) }

func (b *Builder) AddCalendar(c Calendar) { b.tables.Calendar = append(b.tables.Calendar, c) }

// AddStopTime parses and adds a stop_times row given as GTFS clock strings.
func (b *Builder) AddStopTime(tripID, stopID, arrival, departure string) {
	st, err := NewStopTime(tripID, stopID, arrival, departure)
	b.addStopTime(st, err)
}

// AddStopTimeSeconds adds a stop_times row given as seconds since midnight.
func (b *Builder) AddStopTimeSeconds(tripID, stopID string, arrivalSec, departureSec int) {
	st, err := NewStopTimeSeconds(tripID, stopID, arrivalSec, departureSec)
	b.addStopTime(st, err)
}

func (b *Builder) addStopTime(st StopTime, err error) {
	switch {
	case errors.Is(err, ErrBeyondServiceDay):
		b.Drop("stop_times", ReasonBeyondServiceDay)
	case err != nil:
		b.Drop("stop_times", ReasonMalformed)
	default:
		b.tables.StopTimes = append(b.tables.StopTimes, st)
	}
}

// Drop records one excluded row.
func (b *Builder) Drop(table, reason string) {
	b.drops[Drop{Table: table, Reason: reason}]++
}

// Build removes rows whose references cannot be resolved and returns the
// snapshot with its drop counts. The builder must not be reused.
func (b *Builder) Build() (*Tables, Drops) {
	services := make(map[string]struct{}, len(b.tables.Calendar))
	for _, c := range b.tables.Calendar {
		services[c.ServiceID] = struct{}{}
	}
	stops := make(map[string]struct{}, len(b.tables.Stops))
	for _, s := range b.tables.Stops {
		stops[s.StopID] = struct{}{}
	}

	trips := make(map[string]struct{}, len(b.tables.Trips))
	kept := b.tables.Trips[:0]
	for _, t := range b.tables.Trips {
		if _, ok := services[t.ServiceID]; !ok {
			b.Drop("trips", ReasonMissingService)
			continue
		}
		trips[t.TripID] = struct{}{}
		kept = append(kept, t)
	}
	b.tables.Trips = kept

	keptTimes := b.tables.StopTimes[:0]
	for _, st := range b.tables.StopTimes {
		if _, ok := trips[st.TripID]; !ok {
			b.Drop("stop_times", ReasonMissingTrip)
			continue
		}
		if _, ok := stops[st.StopID]; !ok {
			b.Drop("stop_times", ReasonMissingStop)
			continue
		}
		keptTimes = append(keptTimes, st)
	}
	b.tables.StopTimes = keptTimes

	t := b.tables
	return &t, b.drops
}

package arrivals

import "gtfs-arrivals/internal/gtfs"

// eventIndex keys stop times by stop_id and trips by service_id so the event
// filter never rescans the full tables.
type eventIndex struct {
	stopTimesByStop map[string][]gtfs.StopTime
	tripsByService  map[string][]string
}

func newEventIndex(trips []gtfs.Trip, stopTimes []gtfs.StopTime) eventIndex {
	x := eventIndex{
		stopTimesByStop: make(map[string][]gtfs.StopTime),
		tripsByService:  make(map[string][]string),
	}
	for _, st := range stopTimes {
		x.stopTimesByStop[st.StopID] = append(x.stopTimesByStop[st.StopID], st)
	}
	for _, t := range trips {
		x.tripsByService[t.ServiceID] = append(x.tripsByService[t.ServiceID], t.TripID)
	}
	return x
}

func (x eventIndex) events(stopIDs, serviceIDs Set) []gtfs.TimeOfDay {
	if stopIDs.Len() == 0 || serviceIDs.Len() == 0 {
		return nil
	}

	var candidates []gtfs.StopTime
	visiting := Set{}
	for id := range stopIDs {
		for _, st := range x.stopTimesByStop[id] {
			candidates = append(candidates, st)
			visiting.Add(st.TripID)
		}
	}

	eligible := Set{}
	for svc := range serviceIDs {
		for _, tripID := range x.tripsByService[svc] {
			if visiting.Has(tripID) {
				eligible.Add(tripID)
			}
		}
	}

	var events []gtfs.TimeOfDay
	for _, st := range candidates {
		if eligible.Has(st.TripID) {
			events = append(events, st.ArrivalTime)
		}
	}
	return events
}

// FilteredEvents returns the arrival time of every stop time at one of
// stopIDs whose trip runs under one of serviceIDs. Stop times referencing an
// unknown trip are dropped. A trip calling at the stop more than once
// contributes one event per call.
func FilteredEvents(stopIDs, serviceIDs Set, trips []gtfs.Trip, stopTimes []gtfs.StopTime) []gtfs.TimeOfDay {
	return newEventIndex(trips, stopTimes).events(stopIDs, serviceIDs)
}

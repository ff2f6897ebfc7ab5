package arrivals

import "gtfs-arrivals/internal/gtfs"

// stopLookup holds the two tiers used to resolve a stop name.
type stopLookup struct {
	byName   map[string][]string // stop_name -> stop_ids
	byParent map[string][]string // parent_station -> child stop_ids
}

func newStopLookup(stops []gtfs.Stop) stopLookup {
	l := stopLookup{
		byName:   make(map[string][]string),
		byParent: make(map[string][]string),
	}
	for _, s := range stops {
		if s.StopName != "" {
			l.byName[s.StopName] = append(l.byName[s.StopName], s.StopID)
		}
		if s.ParentStation != "" {
			l.byParent[s.ParentStation] = append(l.byParent[s.ParentStation], s.StopID)
		}
	}
	return l
}

// resolve tries the exact stop name first and only falls back to the parent
// station tier when no stop carries that name.
func (l stopLookup) resolve(name string) Set {
	if ids := l.byName[name]; len(ids) > 0 {
		return NewSet(ids...)
	}
	return NewSet(l.byParent[name]...)
}

// ResolveStop returns the stop IDs a stop name refers to. A name matching
// one or more stops exactly resolves to those stops; otherwise it is treated
// as a station and resolves to the stops listing it as parent_station. An
// unknown name yields an empty set.
func ResolveStop(stops []gtfs.Stop, name string) Set {
	return newStopLookup(stops).resolve(name)
}

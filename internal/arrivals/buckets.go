package arrivals

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gtfs-arrivals/internal/gtfs"
)

var ErrInvalidInterval = errors.New("interval must be between one second and 24 hours")

// Bucket is the half-open time-of-day interval [Start, End) and the number of
// events inside it.
type Bucket struct {
	Start gtfs.TimeOfDay `json:"start"`
	End   gtfs.TimeOfDay `json:"end"`
	Count int            `json:"count"`
}

// Buckets splits [start, end) into interval-wide buckets and counts events in
// each. Buckets are generated from start while the bucket start is before
// end; the last bucket keeps its full width even if it overhangs end.
//
// Bucket edges are compared as times of day, so a bucket whose end passes
// midnight wraps and matches nothing. Windows crossing midnight are not
// supported.
func Buckets(events []gtfs.TimeOfDay, start, end gtfs.TimeOfDay, interval time.Duration) ([]Bucket, error) {
	if interval < time.Second || interval > 24*time.Hour {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	sorted := make([]gtfs.TimeOfDay, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// first index whose event is at or after t
	at := func(t gtfs.TimeOfDay) int {
		return sort.Search(len(sorted), func(i int) bool { return sorted[i] >= t })
	}

	step := int(interval / time.Second)
	buckets := []Bucket{}
	for cur := start.Seconds(); cur < end.Seconds(); cur += step {
		b := Bucket{Start: gtfs.TimeOfDay(cur)}
		b.End = b.Start.Add(interval)
		if lo, hi := at(b.Start), at(b.End); hi > lo {
			b.Count = hi - lo
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

// BucketCounts is Buckets reduced to the per-bucket counts in chronological
// order.
func BucketCounts(events []gtfs.TimeOfDay, start, end gtfs.TimeOfDay, interval time.Duration) ([]int, error) {
	buckets, err := Buckets(events, start, end, interval)
	if err != nil {
		return nil, err
	}
	return counts(buckets), nil
}

func counts(buckets []Bucket) []int {
	out := make([]int, len(buckets))
	for i, b := range buckets {
		out[i] = b.Count
	}
	return out
}

// Package feed loads the four GTFS tables the arrival pipeline needs from
// static feed files: an unpacked directory of CSV files or a zip archive.
// Both read the same CSV rows with gocsv.
package feed

import (
	"context"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"gtfs-arrivals/internal/gtfs"
)

// opener opens one feed file by name, e.g. "stops.txt".
type opener func(name string) (io.ReadCloser, error)

// readTables parses the four tables through open and applies the load rules
// of gtfs.Builder. Both loaders go through here, so a feed yields the same
// tables and drop counts whether it is unpacked or zipped.
func readTables(ctx context.Context, open opener, logger *zap.Logger) (*gtfs.Tables, gtfs.Drops, error) {
	var (
		trips     []*tripRow
		stops     []*stopRow
		stopTimes []*stopTimeRow
		calendar  []*calendarRow
	)
	files := []struct {
		name string
		out  interface{}
	}{
		{"calendar.txt", &calendar},
		{"stops.txt", &stops},
		{"trips.txt", &trips},
		{"stop_times.txt", &stopTimes},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := parseFile(open, f.name, f.out, logger); err != nil {
			return nil, nil, err
		}
	}

	b := gtfs.NewBuilder()
	addRows(b, trips, stops, stopTimes, calendar)
	tables, drops := b.Build()
	return tables, drops, nil
}

func parseFile(open opener, name string, out interface{}, logger *zap.Logger) error {
	f, err := open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalCSV(gtfsCSVReader(f), out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	logger.Debug("parsed csv file", zap.String("file_name", name))
	return nil
}

func addRows(b *gtfs.Builder, trips []*tripRow, stops []*stopRow, stopTimes []*stopTimeRow, calendar []*calendarRow) {
	for _, r := range calendar {
		start, err := gtfs.ParseDate(r.StartDate)
		if err != nil {
			b.Drop("calendar", gtfs.ReasonMalformed)
			continue
		}
		end, err := gtfs.ParseDate(r.EndDate)
		if err != nil {
			b.Drop("calendar", gtfs.ReasonMalformed)
			continue
		}
		b.AddCalendar(gtfs.Calendar{
			ServiceID: r.ServiceID,
			Days:      gtfs.WeekdaySetFromFlags(r.flags()),
			StartDate: start,
			EndDate:   end,
		})
	}
	for _, r := range stops {
		b.AddStop(gtfs.Stop{StopID: r.StopID, StopName: r.StopName, ParentStation: r.ParentStation})
	}
	for _, r := range trips {
		b.AddTrip(gtfs.Trip{TripID: r.TripID, ServiceID: r.ServiceID})
	}
	for _, r := range stopTimes {
		b.AddStopTime(r.TripID, r.StopID, r.ArrivalTime, r.DepartureTime)
	}
}

// logLoad reports the outcome of a load. Dropped rows are logged per class
// so a feed with many post-midnight trips is visible without debug logging.
func logLoad(logger *zap.Logger, kind, source string, tables *gtfs.Tables, drops gtfs.Drops) {
	for _, d := range drops.Keys() {
		logger.Warn("dropped rows",
			zap.String("source", source),
			zap.String("table", d.Table),
			zap.String("reason", d.Reason),
			zap.Int("count", drops[d]),
		)
	}
	logger.Info("feed loaded",
		zap.String("kind", kind),
		zap.String("source", source),
		zap.Stringer("tables", tables.Stats()),
		zap.Int("dropped", drops.Total()),
	)
}

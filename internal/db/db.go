package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"gtfs-arrivals/internal/gtfs"
)

// Driver picks the database/sql driver for dsn and returns the data source
// string to hand it. postgres:// and postgresql:// go to pgx, anything else
// is treated as a SQLite path with an optional sqlite: prefix.
func Driver(dsn string) (driver, source string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", dsn
	}
	return "sqlite", strings.TrimPrefix(dsn, "sqlite:")
}

// IsDSN reports whether source names a database rather than a feed file.
func IsDSN(source string) bool {
	return strings.HasPrefix(source, "postgres://") ||
		strings.HasPrefix(source, "postgresql://") ||
		strings.HasPrefix(source, "sqlite:")
}

func Open(dsn string) (*sql.DB, error) {
	driver, source := Driver(dsn)
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		return db, nil
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Queries are written against the column names of GTFS importers
// (gtfs-via-postgres and plain CSV imports) and avoid dialect specific
// casts so they run on both PostgreSQL and SQLite.
const (
	calendarQuery = `
SELECT service_id,
       CAST(monday AS TEXT), CAST(tuesday AS TEXT), CAST(wednesday AS TEXT),
       CAST(thursday AS TEXT), CAST(friday AS TEXT), CAST(saturday AS TEXT),
       CAST(sunday AS TEXT),
       CAST(start_date AS TEXT), CAST(end_date AS TEXT)
FROM calendar`

	stopsQuery = `
SELECT stop_id, COALESCE(stop_name, ''), COALESCE(CAST(parent_station AS TEXT), '')
FROM stops`

	tripsQuery = `SELECT trip_id, service_id FROM trips`

	stopTimesQuery = `
SELECT trip_id, stop_id,
       COALESCE(CAST(arrival_time AS TEXT), ''),
       COALESCE(CAST(departure_time AS TEXT), '')
FROM stop_times`
)

func fetchCalendar(ctx context.Context, db *sql.DB, b *gtfs.Builder) error {
	rows, err := db.QueryContext(ctx, calendarQuery)
	if err != nil {
		return fmt.Errorf("query calendar: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			serviceID  string
			days       [7]sql.NullString
			start, end sql.NullString
		)
		if err := rows.Scan(&serviceID,
			&days[0], &days[1], &days[2], &days[3], &days[4], &days[5], &days[6],
			&start, &end); err != nil {
			return err
		}
		startDate, err := gtfs.ParseDate(start.String)
		if err != nil {
			b.Drop("calendar", gtfs.ReasonMalformed)
			continue
		}
		endDate, err := gtfs.ParseDate(end.String)
		if err != nil {
			b.Drop("calendar", gtfs.ReasonMalformed)
			continue
		}
		var flags [7]bool
		for i, d := range days {
			flags[i] = truthy(d.String)
		}
		b.AddCalendar(gtfs.Calendar{
			ServiceID: serviceID,
			Days:      gtfs.WeekdaySetFromFlags(flags),
			StartDate: startDate,
			EndDate:   endDate,
		})
	}
	return rows.Err()
}

func fetchStops(ctx context.Context, db *sql.DB, b *gtfs.Builder) error {
	rows, err := db.QueryContext(ctx, stopsQuery)
	if err != nil {
		return fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s gtfs.Stop
		if err := rows.Scan(&s.StopID, &s.StopName, &s.ParentStation); err != nil {
			return err
		}
		b.AddStop(s)
	}
	return rows.Err()
}

func fetchTrips(ctx context.Context, db *sql.DB, b *gtfs.Builder) error {
	rows, err := db.QueryContext(ctx, tripsQuery)
	if err != nil {
		return fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t gtfs.Trip
		if err := rows.Scan(&t.TripID, &t.ServiceID); err != nil {
			return err
		}
		b.AddTrip(t)
	}
	return rows.Err()
}

func fetchStopTimes(ctx context.Context, db *sql.DB, b *gtfs.Builder) error {
	rows, err := db.QueryContext(ctx, stopTimesQuery)
	if err != nil {
		return fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tripID, stopID, arr, dep string
		if err := rows.Scan(&tripID, &stopID, &arr, &dep); err != nil {
			return err
		}
		arrSec, err := daySeconds(arr)
		if err != nil {
			b.Drop("stop_times", gtfs.ReasonMalformed)
			continue
		}
		depSec, err := daySeconds(dep)
		if err != nil {
			b.Drop("stop_times", gtfs.ReasonMalformed)
			continue
		}
		b.AddStopTimeSeconds(tripID, stopID, arrSec, depSec)
	}
	return rows.Err()
}

// truthy accepts the weekday flag spellings used by GTFS importers: 0/1
// integers, SQL booleans and the gtfs-via-postgres availability enum.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "available":
		return true
	}
	return false
}

// daySeconds parses a stored stop time. Importers keep these as GTFS clock
// text, as integer seconds since midnight, or as a PostgreSQL interval that
// may carry a "1 day" prefix. Hours may be 24 or more.
func daySeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", gtfs.ErrInvalidTime)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: %d seconds", gtfs.ErrInvalidTime, n)
		}
		return n, nil
	}
	days := 0
	if fields := strings.Fields(s); len(fields) == 3 && strings.HasPrefix(fields[1], "day") {
		d, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", gtfs.ErrInvalidTime, s)
		}
		days, s = d, fields[2]
	}
	sec, err := gtfs.ParseClock(s)
	if err != nil {
		return 0, err
	}
	return days*24*3600 + sec, nil
}

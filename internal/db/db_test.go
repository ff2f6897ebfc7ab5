package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gtfs-arrivals/internal/arrivals"
	"gtfs-arrivals/internal/gtfs"
)

const schema = `
CREATE TABLE calendar (
  service_id TEXT PRIMARY KEY,
  monday INTEGER, tuesday INTEGER, wednesday INTEGER, thursday INTEGER,
  friday INTEGER, saturday INTEGER, sunday INTEGER,
  start_date TEXT, end_date TEXT
);
CREATE TABLE stops (stop_id TEXT PRIMARY KEY, stop_name TEXT, parent_station TEXT);
CREATE TABLE trips (trip_id TEXT PRIMARY KEY, route_id TEXT, service_id TEXT);
CREATE TABLE stop_times (trip_id TEXT, arrival_time, departure_time, stop_id TEXT, stop_sequence INTEGER);
`

const fixture = `
INSERT INTO calendar VALUES
  ('WD', 1, 1, 1, 1, 1, 0, 0, '20210101', '20211231'),
  ('WE', 0, 0, 0, 0, 0, 1, 1, '2021-01-01', '2021-12-31'),
  ('BROKEN', 1, 1, 1, 1, 1, 1, 1, NULL, '20211231');
INSERT INTO stops VALUES
  ('CS1', 'Central Station', NULL),
  ('CS2', 'Central Station', ''),
  ('P3', 'Platform 3', 'central');
INSERT INTO trips VALUES ('T1', 'R', 'WD'), ('T2', 'R', 'WD'), ('T3', 'R', 'WE');
INSERT INTO stop_times VALUES
  ('T1', '08:02:00', '08:02:00', 'CS1', 1),
  ('T1', '25:00:00', '25:00:00', 'P3', 2),
  ('T2', 30840, 30840, 'CS2', 1),
  ('T2', NULL, NULL, 'P3', 2),
  ('T3', '8:05:00', '8:05:00', 'CS1', 1);
`

func openFixture(t *testing.T) *Loader {
	t.Helper()
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Ping(ctx, db))
	_, err = db.ExecContext(ctx, schema)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fixture)
	require.NoError(t, err)
	return NewLoader(db, "fixture", zap.NewNop())
}

func TestLoader(t *testing.T) {
	tables, drops, err := openFixture(t).Load(context.Background())
	require.NoError(t, err)

	t.Run("reads every table", func(t *testing.T) {
		assert.Equal(t, gtfs.Stats{Trips: 3, Stops: 3, StopTimes: 3, Calendar: 2}, tables.Stats())
		assert.Equal(t, gtfs.Drops{
			{Table: "calendar", Reason: gtfs.ReasonMalformed}:           1,
			{Table: "stop_times", Reason: gtfs.ReasonBeyondServiceDay}: 1,
			{Table: "stop_times", Reason: gtfs.ReasonMalformed}:        1,
		}, drops)
	})

	t.Run("weekday flags and both date spellings are understood", func(t *testing.T) {
		byID := map[string]gtfs.Calendar{}
		for _, c := range tables.Calendar {
			byID[c.ServiceID] = c
		}
		assert.Equal(t, "1111100", byID["WD"].Days.String())
		assert.Equal(t, "0000011", byID["WE"].Days.String())
		assert.Equal(t, byID["WD"].StartDate, byID["WE"].StartDate)
	})

	t.Run("null parent stations are empty", func(t *testing.T) {
		for _, s := range tables.Stops {
			if s.StopID == "CS1" {
				assert.Empty(t, s.ParentStation)
			}
		}
	})

	t.Run("feeds the pipeline", func(t *testing.T) {
		// 30840 seconds is 08:34.
		counts, err := arrivals.ArrivingBuses(tables, "Central Station", "08:00", "08:45", "20210421", 15)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0, 1}, counts)

		counts, err = arrivals.ArrivingBuses(tables, "Central Station", "08:00", "08:45", "20210424", 15)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0, 0}, counts)
	})
}

func TestLoaderMissingTable(t *testing.T) {
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)
	defer db.Close()

	_, _, err = NewLoader(db, "empty", zap.NewNop()).Load(context.Background())
	assert.ErrorContains(t, err, "query calendar")
}

func TestDaySeconds(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"08:02:00", 8*3600 + 120, false},
		{"8:02:00", 8*3600 + 120, false},
		{"25:10:00", 25*3600 + 600, false},
		{"1 day 01:10:00", 25*3600 + 600, false},
		{"29520", 29520, false},
		{" 08:02:00 ", 8*3600 + 120, false},
		{"", 0, true},
		{"-5", 0, true},
		{"noon", 0, true},
		{"x days 01:00:00", 0, true},
	}
	for _, tc := range cases {
		got, err := daySeconds(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, gtfs.ErrInvalidTime, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "t", "true", "TRUE", "available", " 1 "} {
		assert.True(t, truthy(v), v)
	}
	for _, v := range []string{"0", "f", "false", "not_available", "", "2"} {
		assert.False(t, truthy(v), v)
	}
}

func TestDriver(t *testing.T) {
	cases := []struct {
		dsn, driver, source string
	}{
		{"postgres://u:p@localhost:5432/gtfs", "pgx", "postgres://u:p@localhost:5432/gtfs"},
		{"postgresql://localhost/gtfs", "pgx", "postgresql://localhost/gtfs"},
		{"sqlite:/data/gtfs.db", "sqlite", "/data/gtfs.db"},
		{"sqlite::memory:", "sqlite", ":memory:"},
		{"gtfs.db", "sqlite", "gtfs.db"},
	}
	for _, tc := range cases {
		driver, source := Driver(tc.dsn)
		assert.Equal(t, tc.driver, driver, tc.dsn)
		assert.Equal(t, tc.source, source, tc.dsn)
	}
	assert.True(t, IsDSN("postgres://localhost/gtfs"))
	assert.True(t, IsDSN("sqlite:gtfs.db"))
	assert.False(t, IsDSN("./feed"))
	assert.False(t, IsDSN("feed.zip"))
}

func TestWithDBName(t *testing.T) {
	got, err := WithDBName("postgres://u:p@db:5432/postgres?sslmode=disable", "gtfs_madrid_20250101")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/gtfs_madrid_20250101?sslmode=disable", got)

	got, err = WithDBName("u@db:5432/postgres", "/other")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@db:5432/other", got)

	_, err = WithDBName("", "x")
	assert.ErrorIs(t, err, ErrEmptyDSN)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://u:xxxxx@db:5432/gtfs", Redact("postgres://u:secret@db:5432/gtfs"))
	assert.Equal(t, "postgres://db/gtfs", Redact("postgres://db/gtfs"))
	assert.Equal(t, "sqlite:gtfs.db", Redact("sqlite:gtfs.db"))
}

package db

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"gtfs-arrivals/internal/gtfs"
)

// Loader reads the four schedule tables from an imported GTFS database.
type Loader struct {
	db     *sql.DB
	name   string
	logger *zap.Logger
}

// NewLoader wraps an open database. name identifies it in logs.
func NewLoader(db *sql.DB, name string, logger *zap.Logger) *Loader {
	return &Loader{db: db, name: name, logger: logger}
}

func (l *Loader) String() string { return l.name }

func (l *Loader) Load(ctx context.Context) (*gtfs.Tables, gtfs.Drops, error) {
	b := gtfs.NewBuilder()
	steps := []func(context.Context, *sql.DB, *gtfs.Builder) error{
		fetchCalendar, fetchStops, fetchTrips, fetchStopTimes,
	}
	for _, step := range steps {
		if err := step(ctx, l.db, b); err != nil {
			return nil, nil, err
		}
	}
	tables, drops := b.Build()

	for _, d := range drops.Keys() {
		l.logger.Warn("dropped rows",
			zap.String("db", l.name),
			zap.String("table", d.Table),
			zap.String("reason", d.Reason),
			zap.Int("count", drops[d]),
		)
	}
	l.logger.Info("tables loaded from database",
		zap.String("db", l.name),
		zap.Stringer("tables", tables.Stats()),
		zap.Int("dropped", drops.Total()),
	)
	return tables, drops, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gtfs-arrivals/internal/gtfs"
)

var ErrNoImport = errors.New("no successful import found")

// ResolveLatestImportDBName looks up the most recently imported feed database
// for a city in the importer's bookkeeping table. meta must be connected to
// the database holding public.latest_successful_imports.
func ResolveLatestImportDBName(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var dbName sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&dbName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w for city like %q", ErrNoImport, city)
		}
		return "", fmt.Errorf("query latest import: %w", err)
	}
	if !dbName.Valid || dbName.String == "" {
		return "", fmt.Errorf("%w: empty db_name for city like %q", ErrNoImport, city)
	}
	return dbName.String, nil
}

// CityLoader follows the latest successful import for a city. Every Load
// re-resolves the database name and switches connections when a newer import
// appears or the current database stops answering.
type CityLoader struct {
	baseDSN  string
	city     string
	switched func(reason string)
	logger   *zap.Logger

	mu   sync.Mutex
	conn *sql.DB
	name string
}

// NewCityLoader resolves imports through the 'postgres' database of the
// cluster at baseDSN. switched, if not nil, is called with "update" or
// "ping_failure" after every connection switch.
func NewCityLoader(baseDSN, city string, switched func(reason string), logger *zap.Logger) *CityLoader {
	return &CityLoader{baseDSN: baseDSN, city: city, switched: switched, logger: logger}
}

func (l *CityLoader) String() string { return "city:" + l.city }

func (l *CityLoader) Load(ctx context.Context) (*gtfs.Tables, gtfs.Drops, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.resolve(ctx); err != nil {
		if l.conn == nil {
			return nil, nil, err
		}
		l.logger.Warn("keeping current city database", zap.String("db", l.name), zap.Error(err))
	}
	return NewLoader(l.conn, l.name, l.logger).Load(ctx)
}

func (l *CityLoader) resolve(ctx context.Context) error {
	reason := "update"
	force := false
	if l.conn != nil {
		if err := Ping(ctx, l.conn); err != nil {
			l.logger.Warn("db ping failed, re-resolving city database", zap.String("db", l.name), zap.Error(err))
			reason, force = "ping_failure", true
		}
	}

	rootDSN, err := WithDBName(l.baseDSN, "postgres")
	if err != nil {
		return fmt.Errorf("invalid base DSN: %w", err)
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return fmt.Errorf("open meta db: %w", err)
	}
	defer meta.Close()

	name, err := ResolveLatestImportDBName(ctx, meta, l.city)
	if err != nil {
		return err
	}
	if name == l.name && !force {
		return nil
	}

	dsn, err := WithDBName(l.baseDSN, name)
	if err != nil {
		return err
	}
	conn, err := Open(dsn)
	if err != nil {
		return err
	}
	if err := Ping(ctx, conn); err != nil {
		conn.Close()
		return fmt.Errorf("ping %s: %w", name, err)
	}

	old, oldName := l.conn, l.name
	l.conn, l.name = conn, name
	if old != nil {
		old.Close()
		if l.switched != nil {
			l.switched(reason)
		}
	}
	l.logger.Info("using city database", zap.String("city", l.city), zap.String("db", name), zap.String("previous", oldName))
	return nil
}

// Close releases the current connection.
func (l *CityLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn, l.name = nil, ""
	return err
}

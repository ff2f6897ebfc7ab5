package feed

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"gtfs-arrivals/internal/gtfs"
)

// DirLoader reads trips.txt, stops.txt, stop_times.txt and calendar.txt
// from an unpacked feed directory. Other files in the directory are ignored.
type DirLoader struct {
	dir    string
	logger *zap.Logger
}

func NewDirLoader(dir string, logger *zap.Logger) *DirLoader {
	return &DirLoader{dir: dir, logger: logger}
}

func (l *DirLoader) String() string { return l.dir }

func (l *DirLoader) Load(ctx context.Context) (*gtfs.Tables, gtfs.Drops, error) {
	tables, drops, err := readTables(ctx, l.open, l.logger)
	if err != nil {
		return nil, nil, err
	}
	logLoad(l.logger, "dir", l.dir, tables, drops)
	return tables, drops, nil
}

func (l *DirLoader) open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(l.dir, name))
}

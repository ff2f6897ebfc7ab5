package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	static "github.com/jamespfennell/gtfs"
	"go.uber.org/zap"

	"gtfs-arrivals/internal/gtfs"
)

// ZipLoader parses a zipped GTFS feed from a local path or an http(s) URL.
type ZipLoader struct {
	source string
	client *http.Client
	logger *zap.Logger
}

func NewZipLoader(source string, logger *zap.Logger) *ZipLoader {
	return &ZipLoader{
		source: source,
		client: &http.Client{Timeout: 2 * time.Minute},
		logger: logger,
	}
}

func (l *ZipLoader) String() string { return l.source }

func (l *ZipLoader) Load(ctx context.Context) (*gtfs.Tables, gtfs.Drops, error) {
	b, err := l.raw(ctx)
	if err != nil {
		return nil, nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, nil, fmt.Errorf("open gtfs zip %s: %w", l.source, err)
	}
	l.validate(b)

	tables, drops, err := readTables(ctx, zipOpener(zr), l.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("gtfs zip %s: %w", l.source, err)
	}
	logLoad(l.logger, "zip", l.source, tables, drops)
	return tables, drops, nil
}

// validate runs the archive through the full GTFS parser and logs what it
// reports about the feed as a whole. It never fails the load: the tables
// come from readTables either way.
func (l *ZipLoader) validate(b []byte) {
	data, err := static.ParseStatic(b, static.ParseStaticOptions{})
	if err != nil {
		l.logger.Warn("gtfs feed failed validation", zap.String("source", l.source), zap.Error(err))
		return
	}
	if n := len(data.Warnings); n > 0 {
		l.logger.Warn("gtfs feed warnings", zap.String("source", l.source), zap.Int("warnings", n))
	}
	l.logger.Debug("gtfs feed validated",
		zap.String("source", l.source),
		zap.Int("agencies", len(data.Agencies)),
		zap.Int("routes", len(data.Routes)),
	)
}

// zipOpener finds feed files by base name, so archives that wrap the feed in
// a top-level folder load too.
func zipOpener(zr *zip.Reader) opener {
	return func(name string) (io.ReadCloser, error) {
		for _, f := range zr.File {
			if path.Base(f.Name) == name && !f.FileInfo().IsDir() {
				return f.Open()
			}
		}
		return nil, fs.ErrNotExist
	}
}

func (l *ZipLoader) raw(ctx context.Context) ([]byte, error) {
	if !IsURL(l.source) {
		b, err := os.ReadFile(l.source)
		if err != nil {
			return nil, fmt.Errorf("read gtfs zip: %w", err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download gtfs zip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download gtfs zip: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// IsURL reports whether source should be fetched over http.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Package service holds the live table snapshot behind every transport and
// answers arrival queries against it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gtfs-arrivals/internal/arrivals"
	"gtfs-arrivals/internal/gtfs"
)

// ErrNotReady is returned by Query before the first successful load.
var ErrNotReady = errors.New("tables not loaded")

// Query outcomes reported to Metrics.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

type Loader interface {
	Load(ctx context.Context) (*gtfs.Tables, gtfs.Drops, error)
}

type Metrics interface {
	ObserveQuery(transport, outcome string, d time.Duration)
	ObserveLoad(stats gtfs.Stats, drops gtfs.Drops, d time.Duration, err error)
}

type Publisher interface {
	PublishResult(stopName string, v any) error
}

// Snapshot describes the tables currently served.
type Snapshot struct {
	Source   string     `json:"source"`
	Tables   gtfs.Stats `json:"tables"`
	Dropped  int        `json:"dropped"`
	LoadedAt time.Time  `json:"loaded_at"`
}

// Result is an arrivals.Result tagged with the id it was published under.
type Result struct {
	RequestID string `json:"request_id"`
	arrivals.Result
}

type Manager struct {
	loader          Loader
	source          string
	refreshInterval time.Duration
	pub             Publisher
	metrics         Metrics
	logger          *zap.Logger

	mu       sync.RWMutex
	index    *arrivals.Index
	snapshot Snapshot

	loadMu sync.Mutex

	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup
}

// NewManager builds a manager around loader. pub and metrics may be nil.
func NewManager(loader Loader, source string, refreshInterval time.Duration, pub Publisher, metrics Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		loader:          loader,
		source:          source,
		refreshInterval: refreshInterval,
		pub:             pub,
		metrics:         metrics,
		logger:          logger,
	}
}

// Load reads a fresh snapshot and swaps it in. On failure the previous
// snapshot keeps being served.
func (m *Manager) Load(ctx context.Context) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	start := time.Now()
	tables, drops, err := m.loader.Load(ctx)
	elapsed := time.Since(start)
	if err != nil {
		if m.metrics != nil {
			m.metrics.ObserveLoad(gtfs.Stats{}, nil, elapsed, err)
		}
		return fmt.Errorf("load tables from %s: %w", m.source, err)
	}

	idx := arrivals.NewIndex(tables)
	snap := Snapshot{
		Source:   m.source,
		Tables:   idx.Stats(),
		Dropped:  drops.Total(),
		LoadedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.index = idx
	m.snapshot = snap
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ObserveLoad(snap.Tables, drops, elapsed, nil)
	}
	m.logger.Info("snapshot swapped",
		zap.String("source", m.source),
		zap.Stringer("tables", snap.Tables),
		zap.Duration("took", elapsed),
	)
	return nil
}

// Snapshot reports the tables in use and whether any have been loaded.
func (m *Manager) Snapshot() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot, m.index != nil
}

// Query answers q against the current snapshot. transport labels the
// caller in metrics. Successful results are published when a publisher is
// configured; publish failures are logged and do not fail the query.
func (m *Manager) Query(ctx context.Context, transport string, q arrivals.Query) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.RLock()
	idx := m.index
	m.mu.RUnlock()
	if idx == nil {
		return Result{}, ErrNotReady
	}

	start := time.Now()
	res, err := idx.Query(q)
	if m.metrics != nil {
		m.metrics.ObserveQuery(transport, outcome(err), time.Since(start))
	}
	if err != nil {
		return Result{}, err
	}

	out := Result{RequestID: uuid.NewString(), Result: res}
	m.logger.Debug("query answered",
		zap.String("request_id", out.RequestID),
		zap.String("transport", transport),
		zap.String("stop_name", res.StopName),
		zap.Strings("stop_ids", res.StopIDs),
		zap.Int("events", res.Events),
	)
	if m.pub != nil {
		if err := m.pub.PublishResult(res.StopName, out); err != nil {
			m.logger.Warn("publish result failed", zap.String("request_id", out.RequestID), zap.Error(err))
		}
	}
	return out, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, arrivals.ErrInvalidQuery):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// StartRefresher reloads the tables every refresh interval until ctx is
// cancelled or Stop is called. It does nothing when the interval is zero.
func (m *Manager) StartRefresher(parent context.Context) {
	if m.refreshInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.refreshCancel = cancel
	m.refreshWG.Add(1)
	go func() {
		defer m.refreshWG.Done()
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Load(ctx); err != nil {
					m.logger.Error("refresh tables error", zap.Error(err))
				}
			}
		}
	}()
}

func (m *Manager) Stop() {
	if m.refreshCancel != nil {
		m.refreshCancel()
	}
	m.refreshWG.Wait()
}

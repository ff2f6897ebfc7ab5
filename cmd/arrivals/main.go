package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gtfs-arrivals/internal/api"
	"gtfs-arrivals/internal/arrivals"
	"gtfs-arrivals/internal/config"
	"gtfs-arrivals/internal/db"
	"gtfs-arrivals/internal/feed"
	"gtfs-arrivals/internal/logging"
	"gtfs-arrivals/internal/metrics"
	"gtfs-arrivals/internal/publisher"
	"gtfs-arrivals/internal/service"
)

func main() {
	var (
		serve    = flag.Bool("serve", false, "serve queries over HTTP (and NATS when NATS_URL is set)")
		source   = flag.String("source", "", "GTFS directory, .zip path or URL, or database DSN (overrides GTFS_SOURCE)")
		stop     = flag.String("stop", "", "stop name, or parent station id")
		start    = flag.String("start", "", "window start, HH:MM")
		end      = flag.String("end", "", "window end, HH:MM")
		date     = flag.String("date", "", "service date, YYYYMMDD")
		interval = flag.Int("interval", 15, "bucket width in minutes, 1 to 1440")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Source = *source
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	var code int
	if *serve {
		code = runServer(ctx, cfg, logger)
	} else {
		code = runOnce(ctx, cfg, logger, arrivals.Query{
			StopName:        *stop,
			StartTime:       *start,
			EndTime:         *end,
			Date:            *date,
			IntervalMinutes: *interval,
		})
	}
	cancel()
	_ = logger.Sync()
	os.Exit(code)
}

// runOnce loads the tables, answers a single query and prints it as JSON.
// Exit status is 2 for invalid input and 1 for any other failure.
func runOnce(ctx context.Context, cfg *config.Config, logger *zap.Logger, q arrivals.Query) int {
	loader, closeLoader, err := newLoader(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("open source", zap.String("source", db.Redact(cfg.Source)), zap.Error(err))
		return 1
	}
	defer closeLoader()

	mgr := service.NewManager(loader, db.Redact(cfg.Source), 0, nil, nil, logger)
	if err := mgr.Load(ctx); err != nil {
		logger.Error("load tables", zap.Error(err))
		return 1
	}

	res, err := mgr.Query(ctx, "cli", q)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, arrivals.ErrInvalidQuery) {
			return 2
		}
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("write result", zap.Error(err))
		return 1
	}
	return 0
}

func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
	mcol := metrics.NewCollector(cfg.RefreshInterval())

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr, logger)
	}

	loader, closeLoader, err := newLoader(ctx, cfg, mcol, logger)
	if err != nil {
		logger.Error("open source", zap.String("source", db.Redact(cfg.Source)), zap.Error(err))
		return 1
	}
	defer closeLoader()

	var pub service.Publisher
	var nconn *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		nconn, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSResultPrefix, logger, mcol)
		if err != nil {
			logger.Error("nats connect", zap.Error(err))
			return 1
		}
		defer nconn.Close()
		pub = nconn
	}

	mgr := service.NewManager(loader, db.Redact(cfg.Source), cfg.RefreshInterval(), pub, mcol, logger)
	if err := mgr.Load(ctx); err != nil {
		logger.Error("initial load", zap.Error(err))
		return 1
	}
	mgr.StartRefresher(ctx)
	defer mgr.Stop()

	a := api.New(mgr, mcol.Handler(), logger)
	if nconn != nil {
		sub, err := nconn.Respond(cfg.NATSQuerySubject, a.HandleNATS)
		if err != nil {
			logger.Error("nats subscribe", zap.String("subject", cfg.NATSQuerySubject), zap.Error(err))
			return 1
		}
		defer func() { _ = sub.Unsubscribe() }()
		logger.Info("answering nats queries", zap.String("subject", cfg.NATSQuerySubject))
	}

	errc := make(chan error, 1)
	var srv *http.Server
	if cfg.HTTPAddr != "" {
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           a.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	} else if nconn == nil {
		logger.Error("nothing to serve: HTTP_ADDR and NATS_URL are both empty")
		return 1
	}

	code := 0
	select {
	case <-ctx.Done():
	case err := <-errc:
		logger.Error("http server error", zap.Error(err))
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if srv != nil {
		_ = srv.Shutdown(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("shutdown complete")
	return code
}

// newLoader picks the table source: a city's latest imported database, any
// other database DSN, a zip archive (local or remote), or a feed directory.
func newLoader(ctx context.Context, cfg *config.Config, mcol *metrics.Collector, logger *zap.Logger) (service.Loader, func(), error) {
	src := cfg.Source
	switch {
	case db.IsDSN(src):
		if driver, _ := db.Driver(src); driver == "pgx" && cfg.City != "" {
			var switched func(string)
			if mcol != nil {
				switched = mcol.DBSwitched
			}
			l := db.NewCityLoader(src, cfg.City, switched, logger)
			return l, func() { _ = l.Close() }, nil
		}
		conn, err := db.Open(src)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return db.NewLoader(conn, db.Redact(src), logger), func() { _ = conn.Close() }, nil
	case feed.IsURL(src), strings.HasSuffix(strings.ToLower(src), ".zip"):
		return feed.NewZipLoader(src, logger), func() {}, nil
	default:
		return feed.NewDirLoader(src, logger), func() {}, nil
	}
}

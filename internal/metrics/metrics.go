package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gtfs-arrivals/internal/gtfs"
)

type Collector struct {
	reg *prometheus.Registry

	Queries       *prometheus.CounterVec   // transport, outcome: ok|invalid|error
	QueryDuration *prometheus.HistogramVec // transport

	TableRows    *prometheus.GaugeVec   // table
	RowsDropped  *prometheus.CounterVec // table, reason
	Reloads      *prometheus.CounterVec // outcome: ok|error
	LoadDuration prometheus.Histogram
	LastLoad     prometheus.Gauge       // unix seconds
	DBSwitches   *prometheus.CounterVec // reason: update|ping_failure

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(refreshInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arrivals_queries_total",
			Help: "Arrival count queries by transport and outcome.",
		}, []string{"transport", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arrivals_query_duration_seconds",
			Help:    "Time spent answering an arrival count query.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}, []string{"transport"}),
		TableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arrivals_table_rows",
			Help: "Rows per GTFS table in the current snapshot.",
		}, []string{"table"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arrivals_rows_dropped_total",
			Help: "Rows excluded while loading tables.",
		}, []string{"table", "reason"}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arrivals_table_loads_total",
			Help: "Table snapshot loads by outcome.",
		}, []string{"outcome"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arrivals_table_load_duration_seconds",
			Help:    "Duration of a full table snapshot load.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		LastLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_table_last_load_timestamp_seconds",
			Help: "Unix time of the last successful load.",
		}),
		DBSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arrivals_db_switches_total",
			Help: "Number of city database switches.",
		}, []string{"reason"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arrivals_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arrivals_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arrivals_refresh_interval_seconds",
			Help: "Table refresh interval in seconds, 0 when disabled.",
		}),
	}

	reg.MustRegister(
		c.Queries, c.QueryDuration,
		c.TableRows, c.RowsDropped, c.Reloads, c.LoadDuration, c.LastLoad, c.DBSwitches,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.RefreshInterval,
	)
	c.RefreshInterval.Set(refreshInterval.Seconds())

	return c
}

// ObserveQuery records one answered query.
func (c *Collector) ObserveQuery(transport, outcome string, d time.Duration) {
	c.Queries.WithLabelValues(transport, outcome).Inc()
	c.QueryDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// ObserveLoad records a snapshot load. On failure only the outcome is
// counted and the table gauges keep describing the snapshot still served.
func (c *Collector) ObserveLoad(stats gtfs.Stats, drops gtfs.Drops, d time.Duration, err error) {
	if err != nil {
		c.Reloads.WithLabelValues("error").Inc()
		return
	}
	c.Reloads.WithLabelValues("ok").Inc()
	c.LoadDuration.Observe(d.Seconds())
	c.LastLoad.SetToCurrentTime()

	c.TableRows.WithLabelValues("trips").Set(float64(stats.Trips))
	c.TableRows.WithLabelValues("stops").Set(float64(stats.Stops))
	c.TableRows.WithLabelValues("stop_times").Set(float64(stats.StopTimes))
	c.TableRows.WithLabelValues("calendar").Set(float64(stats.Calendar))
	for k, n := range drops {
		c.RowsDropped.WithLabelValues(k.Table, k.Reason).Add(float64(n))
	}
}

// DBSwitched counts a switch to another city database.
func (c *Collector) DBSwitched(reason string) { c.DBSwitches.WithLabelValues(reason).Inc() }

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}

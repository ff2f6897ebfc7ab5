// Package api exposes arrival queries over HTTP and NATS request/reply.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"gtfs-arrivals/internal/arrivals"
	"gtfs-arrivals/internal/service"
)

type Querier interface {
	Query(ctx context.Context, transport string, q arrivals.Query) (service.Result, error)
	Snapshot() (service.Snapshot, bool)
}

type API struct {
	svc      Querier
	metrics  http.Handler
	validate *validator.Validate
	logger   *zap.Logger
}

// New builds the API. metrics may be nil, in which case /metrics is not
// routed.
func New(svc Querier, metrics http.Handler, logger *zap.Logger) *API {
	return &API{
		svc:      svc,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
	}
}

type errorResponse struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Snapshot *service.Snapshot `json:"snapshot,omitempty"`
}

func (a *API) Routes() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/arrivals", a.arrivalsHandler)
	router.HandlerFunc(http.MethodPost, "/arrivals", a.arrivalsBodyHandler)
	router.HandlerFunc(http.MethodGet, "/stops/:name/arrivals", a.stopArrivalsHandler)
	router.HandlerFunc(http.MethodGet, "/healthz", a.healthHandler)
	if a.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", a.metrics)
	}
	return router
}

// arrivalsHandler serves GET /arrivals?stop=&start=&end=&date=&interval=.
func (a *API) arrivalsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromValues(r, r.URL.Query().Get("stop"))
	if err != nil {
		a.sendError(w, http.StatusBadRequest, err)
		return
	}
	a.answer(w, r, q)
}

func (a *API) stopArrivalsHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	q, err := queryFromValues(r, params.ByName("name"))
	if err != nil {
		a.sendError(w, http.StatusBadRequest, err)
		return
	}
	a.answer(w, r, q)
}

// arrivalsBodyHandler accepts the same JSON document as the NATS subject.
func (a *API) arrivalsBodyHandler(w http.ResponseWriter, r *http.Request) {
	var q arrivals.Query
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		a.sendError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", arrivals.ErrInvalidQuery, err))
		return
	}
	a.answer(w, r, q)
}

func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.svc.Snapshot()
	if !ok {
		a.sendJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "loading"})
		return
	}
	a.sendJSON(w, http.StatusOK, healthResponse{Status: "ok", Snapshot: &snap})
}

func queryFromValues(r *http.Request, stop string) (arrivals.Query, error) {
	v := r.URL.Query()
	q := arrivals.Query{
		StopName:  stop,
		StartTime: v.Get("start"),
		EndTime:   v.Get("end"),
		Date:      v.Get("date"),
	}
	if s := v.Get("interval"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("%w: interval: %q is not a number of minutes", arrivals.ErrInvalidQuery, s)
		}
		q.IntervalMinutes = n
	}
	return q, nil
}

func (a *API) answer(w http.ResponseWriter, r *http.Request, q arrivals.Query) {
	res, err := a.run(r.Context(), "http", q)
	if err != nil {
		a.sendError(w, statusFor(err), err)
		return
	}
	a.sendJSON(w, http.StatusOK, res)
}

// run validates q and hands it to the service.
func (a *API) run(ctx context.Context, transport string, q arrivals.Query) (service.Result, error) {
	if err := a.validate.Struct(q); err != nil {
		return service.Result{}, fmt.Errorf("%w: %v", arrivals.ErrInvalidQuery, err)
	}
	return a.svc.Query(ctx, transport, q)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, arrivals.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) sendError(w http.ResponseWriter, code int, err error) {
	text := err.Error()
	if code == http.StatusInternalServerError {
		a.logger.Error("query failed", zap.Error(err))
		text = "internal server error"
	}
	a.sendJSON(w, code, errorResponse{Code: code, Text: text})
}

func (a *API) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}

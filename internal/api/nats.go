package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gtfs-arrivals/internal/arrivals"
)

// natsQueryTimeout bounds one request/reply query.
const natsQueryTimeout = 10 * time.Second

type natsError struct {
	Error string `json:"error"`
}

// HandleNATS answers one request/reply message. The request is the JSON form
// of arrivals.Query; the reply is the result or {"error": "..."}.
func (a *API) HandleNATS(data []byte) []byte {
	var q arrivals.Query
	if err := json.Unmarshal(data, &q); err != nil {
		return a.natsReply(natsError{Error: fmt.Sprintf("%v: %v", arrivals.ErrInvalidQuery, err)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), natsQueryTimeout)
	defer cancel()

	res, err := a.run(ctx, "nats", q)
	if err != nil {
		a.logger.Debug("nats query rejected", zap.Error(err))
		return a.natsReply(natsError{Error: err.Error()})
	}
	return a.natsReply(res)
}

func (a *API) natsReply(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("failed to encode nats reply", zap.Error(err))
		return []byte(`{"error":"internal error"}`)
	}
	return b
}

package publisher

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// QueueGroup load balances query requests across running instances.
const QueueGroup = "arrivals"

type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	logger  *zap.Logger
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// NewNATSPublisher connects to url. Results are published under prefix; an
// empty prefix disables publishing but keeps the connection for requests.
func NewNATSPublisher(url, prefix string, logger *zap.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfs-arrivals"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// Subject returns the subject results for stopName are published on.
func (p *NATSPublisher) Subject(stopName string) string {
	return ResultSubject(p.prefix, stopName)
}

// PublishResult publishes v as JSON on the stop's result subject.
func (p *NATSPublisher) PublishResult(stopName string, v any) error {
	if p.prefix == "" || p.nc == nil {
		return nil
	}
	subject := p.Subject(stopName)
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	p.logger.Debug("nats publish", zap.String("subject", subject), zap.Error(err))
	return err
}

// Respond serves request/reply messages on subject. handle receives the
// request payload and returns the reply payload.
func (p *NATSPublisher) Respond(subject string, handle func(data []byte) []byte) (*nats.Subscription, error) {
	return p.nc.QueueSubscribe(subject, QueueGroup, func(msg *nats.Msg) {
		reply := handle(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			p.logger.Warn("nats respond failed", zap.String("subject", subject), zap.Error(err))
		}
	})
}

// ResultSubject builds "<prefix>.<stop token>".
func ResultSubject(prefix, stopName string) string {
	return prefix + "." + subjectToken(stopName)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}

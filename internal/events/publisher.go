// Package events announces session activity on NATS. Publishing is best
// effort; a missing or broken broker never fails a request.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

var logger = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Events") })

type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

// Event is the envelope of every published message.
type Event struct {
	SessionId string    `json:"session_id"`
	JobId     string    `json:"job_id,omitempty"`
	TraceId   string    `json:"trace_id,omitempty"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

type NatsPublisher struct {
	conn *nats.Conn
}

// Connect dials url and returns a publisher that drains the connection when
// ctx is done.
func Connect(ctx context.Context, url string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pdfchat"),
		nats.Timeout(config.NatsConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger().Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger().Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		if err := nc.Drain(); err != nil {
			logger().Error("Error draining NATS connection", "error", err)
		}
	}()
	logger().Info("NATS connected", "url", nc.ConnectedUrl())
	return &NatsPublisher{conn: nc}, nil
}

// Publish sends event as JSON with the trace context of ctx in the headers.
func (p *NatsPublisher) Publish(ctx context.Context, subject string, event any) error {
	msg, err := newMsg(ctx, subject, event)
	if err != nil {
		return err
	}
	return p.conn.PublishMsg(msg)
}

func newMsg(ctx context.Context, subject string, event any) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Emit publishes and logs failures instead of returning them.
func Emit(ctx context.Context, p Publisher, subject string, event Event) {
	if p == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if event.TraceId == "" {
		if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
			event.TraceId = trace
		}
	}
	if err := p.Publish(ctx, subject, event); err != nil {
		logger().WithContext(ctx).Warn("Event not published", "subject", subject, "error", err)
	}
}

// headerCarrier adapts nats.Msg headers to propagation.TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

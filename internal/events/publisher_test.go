package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingPublisher struct {
	subject string
	event   any
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, subject string, event any) error {
	r.subject = subject
	r.event = event
	return r.err
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*headerCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestNewMsg_InjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg, err := newMsg(ctx, config.NatsSubjectAnswered, Event{SessionId: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != config.NatsSubjectAnswered {
		t.Errorf("subject = %q", msg.Subject)
	}
	if got := msg.Header.Get("traceparent"); got == "" {
		t.Error("traceparent header not injected")
	}

	var decoded Event
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.SessionId != "s1" {
		t.Errorf("session id = %q", decoded.SessionId)
	}
}

func TestEmit(t *testing.T) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "trace-1")

	rec := &recordingPublisher{}
	Emit(ctx, rec, config.NatsSubjectCleared, Event{SessionId: "s1"})
	ev, ok := rec.event.(Event)
	if !ok {
		t.Fatalf("published %T", rec.event)
	}
	if ev.TraceId != "trace-1" || ev.Time.IsZero() {
		t.Errorf("envelope not filled: %+v", ev)
	}

	// failures and nil publishers are swallowed
	Emit(ctx, &recordingPublisher{err: errors.New("broker down")}, config.NatsSubjectCleared, Event{})
	Emit(ctx, nil, config.NatsSubjectCleared, Event{})
	Emit(ctx, Noop{}, config.NatsSubjectCleared, Event{})
}

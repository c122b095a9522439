package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
)

// natsHeaderCarrier adapts nats.Msg headers for the otel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publisher is the part of a NATS connection the event sink needs.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// newMsg encodes v as JSON and injects the trace context of ctx.
func newMsg(ctx context.Context, subject string, v any) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

// OrderEvents publishes every order as a JSON event.
type OrderEvents struct {
	Conn    Publisher
	Subject string
}

func (e *OrderEvents) Name() string { return "nats" }

func (e *OrderEvents) Send(ctx context.Context, o model.Order) error {
	msg, err := newMsg(ctx, e.Subject, o)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	if err := e.Conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Subject, err)
	}
	return nil
}

// ConnectNATS dials the NATS server used for order events.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("seatcover-storefront"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

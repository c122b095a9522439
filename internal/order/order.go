// Package order turns a visitor's selection, product and phone number into a
// persisted order and schedules its remote notification.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
	"github.com/fairyhunter13/seatcover-storefront/internal/pricing"
	"github.com/fairyhunter13/seatcover-storefront/internal/queue"
	"github.com/fairyhunter13/seatcover-storefront/internal/store"
)

// ThankYou is the confirmation shown after a successful submission.
const ThankYou = "Mulțumim! Te contactăm în curând."

var (
	ErrNoProductSelected = errors.New("no product selected")
	ErrMissingPhone      = errors.New("phone number is required")
	ErrInvalidPhone      = errors.New("phone number is invalid")
)

// Sink outcome statuses.
const (
	StatusPersisted = "persisted"
	StatusQueued    = "queued"
	StatusDropped   = "dropped"
)

// SinkOutcome is what happened to the order at one destination during
// submission. Remote sinks only report whether delivery was scheduled.
type SinkOutcome struct {
	Sink   string `json:"sink"`
	Status string `json:"status"`
}

// Submission is one order attempt.
type Submission struct {
	Selection model.Selection
	Product   *model.Product
	Phone     string
	RequestID string
}

// Result is a successful submission.
type Result struct {
	Order    model.Order   `json:"order"`
	Outcomes []SinkOutcome `json:"outcomes"`
	Message  string        `json:"message"`
}

// Enqueuer schedules remote delivery of an order.
type Enqueuer interface {
	Enqueue(job queue.Job) bool
}

// Pipeline validates and records orders.
type Pipeline struct {
	st    store.Store
	q     Enqueuer
	sinks []string
	now   func() time.Time
	log   *slog.Logger
}

// NewPipeline returns a Pipeline persisting to st. Orders are handed to q for
// the named remote sinks; with a nil q or no sinks nothing is sent remotely.
func NewPipeline(st store.Store, q Enqueuer, sinks []string) *Pipeline {
	return &Pipeline{st: st, q: q, sinks: sinks, now: time.Now, log: obs.Logger}
}

// CheckPhone validates a visitor phone number.
func CheckPhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrMissingPhone
	}
	if err := Validator().Struct(contact{Phone: phone}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: failed %q", ErrInvalidPhone, verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	return nil
}

// Build assembles the order for s, priced by the pricing engine rather than
// the product's listed price.
func Build(s Submission, at time.Time) model.Order {
	p := s.Product
	return model.Order{
		Brand:        s.Selection.Brand,
		Model:        s.Selection.Model,
		Year:         s.Selection.Year,
		ProductID:    p.ID,
		ProductTitle: p.Title,
		ProductCode:  p.Code,
		Color:        p.Color,
		Price:        pricing.Price(p.Title, s.Selection.Model),
		Phone:        strings.TrimSpace(s.Phone),
		Timestamp:    at.UTC(),
	}
}

// Submit validates s, records the order in the visitor's storage and
// schedules remote delivery. Only a local storage failure fails an otherwise
// valid submission.
func (p *Pipeline) Submit(ctx context.Context, visitor string, s Submission) (Result, error) {
	if err := p.check(s); err != nil {
		obs.OrdersRejected.Add(1)
		return Result{}, err
	}
	o := Build(s, p.now())
	if err := store.AppendJSON(ctx, p.st, visitor, store.KeyOrders, o); err != nil {
		return Result{}, fmt.Errorf("record order: %w", err)
	}
	if err := store.SetJSON(ctx, p.st, visitor, store.KeyLastOrder, o); err != nil {
		return Result{}, fmt.Errorf("record last order: %w", err)
	}
	outcomes := []SinkOutcome{{Sink: "local", Status: StatusPersisted}}

	if p.q != nil && len(p.sinks) > 0 {
		status := StatusQueued
		if !p.q.Enqueue(queue.Job{Visitor: visitor, RequestID: s.RequestID, Order: o}) {
			status = StatusDropped
			p.log.Warn("order_sink_failed", "sink", "queue", "request_id", s.RequestID, "error", "dispatch queue closed")
			obs.OrderSinkFailures.Add(1)
		}
		for _, name := range p.sinks {
			outcomes = append(outcomes, SinkOutcome{Sink: name, Status: status})
		}
	}

	obs.OrdersSubmitted.Add(1)
	p.log.Info("order_submitted",
		"request_id", s.RequestID,
		"product_id", o.ProductID,
		"brand", o.Brand,
		"model", o.Model,
		"price", o.Price.String(),
	)
	return Result{Order: o, Outcomes: outcomes, Message: ThankYou}, nil
}

func (p *Pipeline) check(s Submission) error {
	if s.Product == nil {
		return ErrNoProductSelected
	}
	return CheckPhone(s.Phone)
}

// LastOrder returns the visitor's most recent order.
func (p *Pipeline) LastOrder(ctx context.Context, visitor string) (model.Order, bool, error) {
	var o model.Order
	ok, err := store.GetJSON(ctx, p.st, visitor, store.KeyLastOrder, &o)
	if err != nil {
		return model.Order{}, false, fmt.Errorf("read last order: %w", err)
	}
	return o, ok, nil
}

// Orders returns the visitor's order log, oldest first.
func (p *Pipeline) Orders(ctx context.Context, visitor string) ([]model.Order, error) {
	var orders []model.Order
	if _, err := store.GetJSON(ctx, p.st, visitor, store.KeyOrders, &orders); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	return orders, nil
}

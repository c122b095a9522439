package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
	"github.com/fairyhunter13/seatcover-storefront/internal/queue"
)

// Sink is one remote destination for submitted orders.
type Sink interface {
	Name() string
	Send(ctx context.Context, o model.Order) error
}

// Outcome is the result of delivering one order to one sink.
type Outcome struct {
	Sink  string `json:"sink"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the delivery succeeded.
func (o Outcome) OK() bool { return o.Error == "" }

// Dispatcher fans an order out to every sink concurrently. Each sink's
// failure is logged and counted on its own and never retried.
type Dispatcher struct {
	sinks []Sink
	log   *slog.Logger
}

// NewDispatcher returns a Dispatcher over the given sinks. Nil sinks are skipped.
func NewDispatcher(log *slog.Logger, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = obs.Logger
	}
	d := &Dispatcher{log: log}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Send delivers o to every sink and returns one outcome per sink, in sink order.
func (d *Dispatcher) Send(ctx context.Context, o model.Order) []Outcome {
	outcomes := make([]Outcome, len(d.sinks))
	var g errgroup.Group
	for i, s := range d.sinks {
		g.Go(func() error {
			out := Outcome{Sink: s.Name()}
			if err := s.Send(ctx, o); err != nil {
				out.Error = err.Error()
			}
			outcomes[i] = out
			// Sink errors stay in the outcome so one failure never cancels another sink.
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Deliver implements queue.Handler.
func (d *Dispatcher) Deliver(ctx context.Context, job queue.Job) {
	for _, out := range d.Send(ctx, job.Order) {
		if out.OK() {
			d.log.Debug("order_sink_delivered",
				"sink", out.Sink,
				"sequence", job.Sequence,
				"request_id", job.RequestID,
				"waited_ms", time.Since(job.EnqueuedAt).Milliseconds(),
			)
			continue
		}
		obs.OrderSinkFailures.Add(1)
		d.log.Warn("order_sink_failed",
			"sink", out.Sink,
			"sequence", job.Sequence,
			"request_id", job.RequestID,
			"visitor", job.Visitor,
			"error", out.Error,
		)
	}
}

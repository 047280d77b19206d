// Package notify runs the daily sweep: for every owner it finds today's
// events and sends one reminder per event through a transport.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/cakeday/internal/daymatch"
	"github.com/mesh-intelligence/cakeday/internal/metrics"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// DeliveryError reports a failed send for one matching record.
type DeliveryError struct {
	Recipient string
	RecordID  string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering %s to %s: %v", e.RecordID, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, types.ErrDelivery) true for every DeliveryError.
func (e *DeliveryError) Is(target error) bool { return target == types.ErrDelivery }

// Report summarizes one sweep.
type Report struct {
	Owners   int
	Matches  int
	Sent     int
	Failed   int
	Failures []DeliveryError
	// OwnerErrors counts owners skipped because their matches could not be read.
	OwnerErrors int
}

// Notifier delivers reminders for today's matches.
type Notifier struct {
	eval      *daymatch.Evaluator
	transport types.Transport
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithMetrics records sweep and delivery counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithLogger sets the logger for per-item failures.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New returns a Notifier that reads matches from eval and sends through t.
func New(eval *daymatch.Evaluator, t types.Transport, opts ...Option) *Notifier {
	n := &Notifier{eval: eval, transport: t, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Message renders the reminder text for r.
func Message(r types.Record) string {
	msg := fmt.Sprintf("Today is %s's birthday! Don't forget to congratulate them.", r.Label)
	if r.Group != nil && *r.Group != "" {
		msg += fmt.Sprintf(" (%s)", *r.Group)
	}
	return msg
}

// Sweep notifies every owner about today's events. Owners are visited in
// store order and their matches in insertion order; sends are sequential.
//
// Only a failure to enumerate owners aborts the sweep. A storage failure
// for one owner or a failed send is logged and counted, and the sweep moves
// on. If ctx ends, the sweep stops before the next send and returns the
// partial report with ctx's error.
func (n *Notifier) Sweep(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report

	owners, err := n.eval.Owners(ctx)
	if err != nil {
		n.metrics.SweepFinished(metrics.ResultError, time.Since(start), time.Now())
		return rep, err
	}
	rep.Owners = len(owners)

	now := n.eval.Now()
	today := types.MonthDayOf(now)

	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			n.finish(&rep, start, metrics.ResultError)
			return rep, err
		}

		matches, err := n.eval.MatchesOn(ctx, owner, today, now.Year())
		if err != nil {
			rep.OwnerErrors++
			n.logger.Error("reading matches", "owner", owner, "error", err)
			continue
		}
		rep.Matches += len(matches)

		for _, r := range matches {
			if err := ctx.Err(); err != nil {
				n.finish(&rep, start, metrics.ResultError)
				return rep, err
			}
			n.deliver(ctx, &rep, owner, r)
		}
	}

	n.finish(&rep, start, metrics.ResultOK)
	return rep, nil
}

func (n *Notifier) deliver(ctx context.Context, rep *Report, owner string, r types.Record) {
	if err := n.transport.Send(ctx, owner, Message(r)); err != nil {
		de := DeliveryError{Recipient: owner, RecordID: r.RecordID, Err: err}
		rep.Failed++
		rep.Failures = append(rep.Failures, de)
		n.metrics.Notification(metrics.StatusFailed)
		n.logger.Warn("delivery failed", "owner", owner, "record", r.RecordID, "error", err)
		return
	}
	rep.Sent++
	n.metrics.Notification(metrics.StatusSent)
	n.logger.Debug("reminder sent", "owner", owner, "record", r.RecordID)
}

func (n *Notifier) finish(rep *Report, start time.Time, result string) {
	d := time.Since(start)
	n.metrics.SweepFinished(result, d, time.Now())
	n.logger.Info("sweep finished",
		"result", result,
		"owners", rep.Owners,
		"matches", rep.Matches,
		"sent", rep.Sent,
		"failed", rep.Failed,
		"owner_errors", rep.OwnerErrors,
		"duration", d,
	)
}

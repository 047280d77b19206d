// Package daymatch decides which records fall on a calendar day.
//
// Matching is structural and year-agnostic: a record matches a target day
// when its month and day equal the target's. The stored year is never
// consulted, so a birthday recurs every year without rewriting the record.
package daymatch

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// LeapDayPolicy controls how February 29 records behave in common years.
type LeapDayPolicy string

const (
	// LeapDayExact matches 02-29 records only on February 29.
	LeapDayExact LeapDayPolicy = types.LeapDayExact
	// LeapDayFeb28 also matches 02-29 records on February 28 of common years.
	LeapDayFeb28 LeapDayPolicy = types.LeapDayFeb28
)

var leapDay = types.MonthDay{Month: time.February, Day: 29}

// Matches reports whether d falls on target, ignoring the year.
func Matches(d types.Date, target types.MonthDay) bool {
	return d.Month == target.Month && d.Day == target.Day
}

// Select returns the records that match target, keeping input order.
// An empty owner selects across all owners.
func Select(records []types.Record, target types.MonthDay, owner string) []types.Record {
	out := []types.Record{}
	for _, r := range records {
		if owner != "" && r.OwnerID != owner {
			continue
		}
		if Matches(r.Date, target) {
			out = append(out, r)
		}
	}
	return out
}

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Evaluator answers "whose event is today" against a RecordStore.
// It holds no state beyond its collaborators and is safe for concurrent use.
type Evaluator struct {
	store  types.RecordStore
	clock  func() time.Time
	loc    *time.Location
	policy LeapDayPolicy
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) { e.clock = clock }
}

// WithLocation sets the zone used to decide the current calendar day.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithLeapDayPolicy sets the February 29 policy.
func WithLeapDayPolicy(p LeapDayPolicy) Option {
	return func(e *Evaluator) { e.policy = p }
}

// New returns an Evaluator over store. Defaults: time.Now, time.Local,
// LeapDayExact.
func New(store types.RecordStore, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:  store,
		clock:  time.Now,
		loc:    time.Local,
		policy: LeapDayExact,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the current time in the evaluator's location.
func (e *Evaluator) Now() time.Time {
	return e.clock().In(e.loc)
}

// Today returns the current calendar day in the evaluator's location.
func (e *Evaluator) Today() types.MonthDay {
	return types.MonthDayOf(e.Now())
}

// TodayFor returns the owner's records matching today.
func (e *Evaluator) TodayFor(ctx context.Context, owner string) ([]types.Record, error) {
	now := e.Now()
	return e.MatchesOn(ctx, owner, types.MonthDayOf(now), now.Year())
}

// MatchesOn returns the owner's records matching target in the given year.
// The year only matters for LeapDayFeb28, which adds 02-29 records to
// February 28 when year is not a leap year.
func (e *Evaluator) MatchesOn(ctx context.Context, owner string, target types.MonthDay, year int) ([]types.Record, error) {
	matches, err := e.store.MatchingToday(ctx, owner, target)
	if err != nil {
		return nil, err
	}
	if e.policy != LeapDayFeb28 || IsLeapYear(year) {
		return matches, nil
	}
	if target.Month != time.February || target.Day != 28 {
		return matches, nil
	}
	extra, err := e.store.MatchingToday(ctx, owner, leapDay)
	if err != nil {
		return nil, err
	}
	return append(matches, extra...), nil
}

// Owners returns every owner known to the store, in store order.
func (e *Evaluator) Owners(ctx context.Context) ([]string, error) {
	owners, err := e.store.ListDistinctOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	return owners, nil
}

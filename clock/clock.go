// Package clock provides the time source and slot-granularity arithmetic
// used across the reservation engine so tests can substitute a frozen clock
// instead of reaching for time.Now() directly.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall-clock access.
type Clock interface {
	Now() time.Time
}

// Real is the production clock, backed by time.Now.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Frozen is a test double that always returns the same instant unless
// advanced explicitly.
type Frozen struct {
	at time.Time
}

func NewFrozen(at time.Time) *Frozen {
	return &Frozen{at: at.UTC()}
}

func (f *Frozen) Now() time.Time { return f.at }

func (f *Frozen) Advance(d time.Duration) { f.at = f.at.Add(d) }

// NewID mints a new random identifier for entities. Every entity in the
// data model uses uuid.NewString(), matching the teacher's usage of
// google/uuid throughout the booking service.
func NewID() string {
	return uuid.NewString()
}

// Granularity is the tenant-configured timeslot bucket width. The data
// model invariant I-2 restricts this to 5 or 15 minutes.
type Granularity time.Duration

const (
	Granularity5Min  Granularity = Granularity(5 * time.Minute)
	Granularity15Min Granularity = Granularity(15 * time.Minute)
)

// Validate reports whether g is one of the two permitted slot widths.
func (g Granularity) Validate() bool {
	return g == Granularity5Min || g == Granularity15Min
}

// Floor truncates t down to the start of the enclosing bucket of width g,
// anchored at the Unix epoch so that buckets are identical across calls
// regardless of time zone.
func Floor(t time.Time, g Granularity) time.Time {
	d := time.Duration(g)
	return t.UTC().Truncate(d)
}

// Buckets returns the sequence of [start,end) timeslot boundaries of width
// g that cover [from,to).
func Buckets(from, to time.Time, g Granularity) []struct{ Start, End time.Time } {
	d := time.Duration(g)
	var out []struct{ Start, End time.Time }
	cur := Floor(from, g)
	for cur.Before(to) {
		next := cur.Add(d)
		out = append(out, struct{ Start, End time.Time }{cur, next})
		cur = next
	}
	return out
}

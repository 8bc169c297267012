package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Cadence tracks the next activation of a cron schedule. It does not start
// goroutines; the owner asks Due and calls Fired after running the work.
type Cadence struct {
	name     string
	expr     string
	schedule cron.Schedule
	next     time.Time
}

// NewCadence parses expr (standard cron or "@every <duration>") and arms the
// first activation after now.
func NewCadence(name, expr string, now time.Time) (*Cadence, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s schedule %q: %w", name, expr, err)
	}
	return &Cadence{
		name:     name,
		expr:     expr,
		schedule: schedule,
		next:     schedule.Next(now),
	}, nil
}

func (c *Cadence) Name() string           { return c.name }
func (c *Cadence) Expr() string           { return c.expr }
func (c *Cadence) Next() time.Time        { return c.next }
func (c *Cadence) Due(now time.Time) bool { return !now.Before(c.next) }

// Fired re-arms the cadence relative to now. Activations missed while work
// was running are skipped, not queued.
func (c *Cadence) Fired(now time.Time) {
	c.next = c.schedule.Next(now)
}

// Earliest returns the soonest next activation among cadences.
func Earliest(cadences ...*Cadence) time.Time {
	var earliest time.Time
	for _, c := range cadences {
		if earliest.IsZero() || c.next.Before(earliest) {
			earliest = c.next
		}
	}
	return earliest
}

// Package models provides small hardware blocks written as simulation
// processes, and a YAML description to assemble them into a runnable design.
package models

import (
	"github.com/sarchlab/deltasim/signal"
	"github.com/sarchlab/deltasim/sim"
)

func nameOf[T comparable](sig *signal.Signal[T], role string) string {
	if sig.Name() == "" {
		return role
	}

	return role + "." + sig.Name()
}

// Clock toggles sig every half ticks.
func Clock(sig *signal.Signal[bool], half sim.VTime) sim.Process {
	return sim.NamedGenerator(nameOf(sig, "clock"),
		func(yield func(sim.Clause) bool) {
			for yield(sim.Wait(sim.Delay(half))) {
				sig.Next(!sig.Val())
			}
		})
}

// Counter increments out on every rising edge of clk. The count wraps to zero
// when it reaches limit; a limit of zero never wraps.
func Counter(
	clk *signal.Signal[bool],
	out *signal.Signal[int],
	limit int,
) sim.Process {
	return sim.NamedGenerator(nameOf(out, "counter"),
		func(yield func(sim.Clause) bool) {
			for yield(sim.Wait(clk.Posedge())) {
				v := out.Val() + 1
				if limit > 0 && v >= limit {
					v = 0
				}

				out.Next(v)
			}
		})
}

// Stimulus drives the values onto sig one per period, starting immediately,
// and completes after the last period.
func Stimulus[T comparable](
	sig *signal.Signal[T],
	values []T,
	period sim.VTime,
) sim.Process {
	return sim.NamedGenerator(nameOf(sig, "stimulus"),
		func(yield func(sim.Clause) bool) {
			for _, v := range values {
				sig.Next(v)

				if !yield(sim.Wait(sim.Delay(period))) {
					return
				}
			}
		})
}

// Handshake answers a four-phase req/ack handshake. Ack rises delay ticks
// after req rises and falls as soon as req falls.
func Handshake(req, ack *signal.Signal[bool], delay sim.VTime) sim.Process {
	return sim.NamedGenerator(nameOf(ack, "handshake"),
		func(yield func(sim.Clause) bool) {
			for yield(sim.Wait(req.Posedge())) {
				if !yield(sim.Wait(sim.Delay(delay))) {
					return
				}

				ack.Next(true)

				if !yield(sim.Wait(req.Negedge())) {
					return
				}

				ack.Next(false)
			}
		})
}

// A Requester drives a number of four-phase transactions against a
// Handshake. Each transaction runs as a sub-process.
type Requester struct {
	req, ack  *signal.Signal[bool]
	count     int
	completed []sim.VTime
	ctx       *sim.Env
}

// NewRequester creates a requester issuing count transactions.
func NewRequester(
	ctx *sim.Env,
	req, ack *signal.Signal[bool],
	count int,
) *Requester {
	return &Requester{
		ctx:   ctx,
		req:   req,
		ack:   ack,
		count: count,
	}
}

// Completed returns the times at which transactions completed.
func (r *Requester) Completed() []sim.VTime {
	return r.completed
}

// Process returns the process issuing the transactions.
func (r *Requester) Process() sim.Process {
	return sim.NamedGenerator(nameOf(r.req, "requester"),
		func(yield func(sim.Clause) bool) {
			for i := 0; i < r.count; i++ {
				if !yield(sim.Wait(sim.Call(r.transaction()))) {
					return
				}

				r.completed = append(r.completed, r.ctx.Now())
			}
		})
}

func (r *Requester) transaction() sim.Process {
	return sim.Generator(func(yield func(sim.Clause) bool) {
		r.req.Next(true)

		if !yield(sim.Wait(r.ack.Posedge())) {
			return
		}

		r.req.Next(false)

		yield(sim.Wait(r.ack.Negedge()))
	})
}

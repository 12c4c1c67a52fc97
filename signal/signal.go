// Package signal provides the value-change signals processes communicate
// through.
//
// A signal holds a current value and a pending next value. Assigning the next
// value marks the signal dirty in its sim.Env; the simulation commits it at
// the start of the following delta cycle and hands the processes waiting on the
// change back to the scheduler. Processes always read the value as it was at
// the start of the delta cycle.
package signal

import (
	"fmt"

	"github.com/sarchlab/deltasim/sim"
)

// A Signal is a value shared between processes.
type Signal[T comparable] struct {
	ctx  *sim.Env
	name string

	val  T
	next T

	isBool  bool
	changed waitList
	posedge waitList
	negedge waitList
}

// New creates a signal holding init.
func New[T comparable](ctx *sim.Env, init T) *Signal[T] {
	_, isBool := any(init).(bool)

	return &Signal[T]{
		ctx:    ctx,
		val:    init,
		next:   init,
		isBool: isBool,
	}
}

// NewBool creates a one-bit signal.
func NewBool(ctx *sim.Env, init bool) *Signal[bool] {
	return New(ctx, init)
}

// WithName sets the name used in traces and co-simulation.
func (s *Signal[T]) WithName(name string) *Signal[T] {
	s.name = name
	return s
}

// Name returns the signal name.
func (s *Signal[T]) Name() string {
	return s.name
}

// Val returns the current value.
func (s *Signal[T]) Val() T {
	return s.val
}

// NextVal returns the value the signal will take at the next update.
func (s *Signal[T]) NextVal() T {
	return s.next
}

// Next assigns the value the signal takes at the start of the next delta
// cycle.
func (s *Signal[T]) Next(v T) {
	s.next = v
	s.ctx.MarkDirty(s)
}

// NextAfter assigns v once d ticks have passed.
func (s *Signal[T]) NextAfter(v T, d sim.VTime) error {
	return s.ctx.Schedule(s.ctx.Now()+d, &delayedAssign[T]{sig: s, val: v})
}

// Changed fires on any value change.
func (s *Signal[T]) Changed() sim.Trigger {
	return sim.On(&s.changed)
}

// Posedge fires when a bool signal goes from false to true.
func (s *Signal[T]) Posedge() sim.Trigger {
	s.mustBeBool("posedge")
	return sim.On(&s.posedge)
}

// Negedge fires when a bool signal goes from true to false.
func (s *Signal[T]) Negedge() sim.Trigger {
	s.mustBeBool("negedge")
	return sim.On(&s.negedge)
}

func (s *Signal[T]) mustBeBool(edge string) {
	if !s.isBool {
		panic(fmt.Sprintf("signal %s: %s requires a bool signal", s.name, edge))
	}
}

// Update commits the next value and returns the tasks waiting on the change.
func (s *Signal[T]) Update() []*sim.Task {
	if s.next == s.val {
		return nil
	}

	old := s.val
	s.val = s.next

	waiters := s.changed.drain()

	if s.isBool {
		if any(old).(bool) {
			waiters = append(waiters, s.negedge.drain()...)
		} else {
			waiters = append(waiters, s.posedge.drain()...)
		}
	}

	return waiters
}

// NumWaiters returns the number of live suspensions registered on the signal.
func (s *Signal[T]) NumWaiters() int {
	return s.changed.live() + s.posedge.live() + s.negedge.live()
}

func (s *Signal[T]) String() string {
	return fmt.Sprintf("%s=%v", s.name, s.val)
}

type delayedAssign[T comparable] struct {
	sig *Signal[T]
	val T
}

func (a *delayedAssign[T]) Apply() []*sim.Task {
	a.sig.Next(a.val)
	return nil
}

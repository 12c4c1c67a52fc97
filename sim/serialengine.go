package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type runConfig struct {
	duration    VTime
	hasDuration bool
	quiet       bool
}

// A RunOption customizes one call to Run.
type RunOption func(*runConfig)

// WithDuration stops the run once d ticks have been simulated. Without it the
// run continues until no event is left.
func WithDuration(d VTime) RunOption {
	return func(c *runConfig) {
		c.duration = d
		c.hasDuration = true
	}
}

// Quiet suppresses the termination message of this run.
func Quiet() RunOption {
	return func(c *runConfig) {
		c.quiet = true
	}
}

// Run executes delta cycles until the requested duration elapses or nothing is
// left to do. Running out of events or time is reported through the returned
// Termination. A duration that overflows VTime is rejected with an error
// before anything runs. A malformed wait clause or a co-simulation failure
// also ends the run with an error, and the simulation cannot continue.
//
// Run can be called again to continue the simulation from where it stopped.
func (s *Simulation) Run(opts ...RunOption) (*Termination, error) {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	cfg := runConfig{quiet: s.quiet}
	for _, o := range opts {
		o(&cfg)
	}

	var stop *Task
	var stopAt VTime
	if cfg.hasDuration {
		stopAt = s.ctx.Now() + cfg.duration
		if stopAt < s.ctx.Now() {
			return nil, fmt.Errorf("%w: duration %d from %d",
				ErrTimeOverflow, cfg.duration, s.ctx.Now())
		}

		stop = &Task{id: "stop", hasRun: true}
		s.ctx.timeline.pushTask(stopAt, stop)
	}

	reason, err := s.loop(stop, stopAt)
	if stop != nil {
		s.ctx.timeline.removeTask(stop)
	}

	if err != nil {
		return nil, err
	}

	term := &Termination{
		Reason:  reason,
		Time:    s.ctx.Now(),
		Pending: s.ctx.timeline.Len() > 0,
	}
	if reason == DurationElapsed {
		term.Duration = cfg.duration
	}

	s.report(term, cfg.quiet)

	return term, nil
}

func (s *Simulation) loop(stop *Task, stopAt VTime) (Reason, error) {
	deltas := uint64(0)

	for {
		err := s.runDeltaCycle(deltas)
		if err != nil {
			return NoMoreEvents, err
		}

		deltas++

		if s.ctx.NumDirty() > 0 {
			continue
		}

		if stop != nil && s.ctx.Now() == stopAt {
			return DurationElapsed, nil
		}

		if s.ctx.timeline.Len() == 0 {
			return NoMoreEvents, nil
		}

		s.advance()
		deltas = 0
	}
}

func (s *Simulation) runDeltaCycle(delta uint64) error {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	s.stateLock.Lock()
	defer s.stateLock.Unlock()

	for _, u := range s.ctx.drainDirty() {
		s.ready = append(s.ready, u.Update()...)
	}

	if s.cosim != nil && s.cosimRunning {
		if err := s.cosim.Put(); err != nil {
			return fmt.Errorf("sim: co-simulation put: %w", err)
		}
	}

	if err := s.dispatch(); err != nil {
		return err
	}

	if s.cosim != nil {
		if err := s.cosim.Get(); err != nil {
			return fmt.Errorf("sim: co-simulation get: %w", err)
		}

		s.cosimRunning = true
	}

	s.deltaCycles.Add(1)
	s.logger.WithFields(logrus.Fields{
		"now":   s.ctx.Now(),
		"delta": delta,
		"dirty": s.ctx.NumDirty(),
	}).Debug("delta cycle done")
	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosDeltaCycle,
		Now:    s.ctx.Now(),
		Item:   delta,
	})

	return nil
}

func (s *Simulation) dispatch() error {
	for len(s.ready) > 0 {
		t := s.ready[0]
		s.ready[0] = nil
		s.ready = s.ready[1:]

		if t.hasRun || !t.greenLight() {
			continue
		}

		if err := s.resume(t); err != nil {
			return err
		}
	}

	return nil
}

func (s *Simulation) resume(t *Task) error {
	t.hasRun = true
	now := s.ctx.Now()

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosBeforeResume, Now: now, Item: t})

	clause, ok := t.proc.Resume()
	s.resumptions.Add(1)

	if !ok {
		s.untrackTask(t)
		s.InvokeHook(HookCtx{Domain: s, Pos: HookPosTaskComplete, Now: now, Item: t})

		if t.caller != nil {
			s.ready = append(s.ready, t.caller)
		}

		return nil
	}

	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosAfterResume,
		Now:    now,
		Item:   t,
		Detail: clause,
	})

	if cerr := validateClause(clause, now); cerr != nil {
		cerr.TaskID = t.id
		return cerr
	}

	clone := t.clone()
	s.trackTask(clone)
	s.route(clause, clone)

	return nil
}

// route registers the clone with every destination of a validated clause.
func (s *Simulation) route(clause Clause, clone *Task) {
	if len(clause) == 1 {
		if join, ok := clause[0].(JoinTrigger); ok {
			clone.gate = NewJoinGate(len(join.Triggers))
			for _, sub := range join.Triggers {
				s.routeTrigger(sub, clone)
			}

			return
		}
	}

	for _, trig := range clause {
		s.routeTrigger(trig, clone)
	}
}

func (s *Simulation) routeTrigger(trig Trigger, clone *Task) {
	switch t := trig.(type) {
	case ListTrigger:
		t.List.Append(clone)
	case DelayTrigger:
		s.ctx.timeline.pushTask(s.ctx.Now()+t.Duration, clone)
	case CallTrigger:
		s.spawn(t.Process, clone)
	case JoinTrigger:
		s.spawn(t.Process(), clone)
	case ImmediateTrigger:
		s.ready = append(s.ready, clone)
	default:
		panic(fmt.Sprintf("sim: unvalidated trigger %T", trig))
	}
}

func (s *Simulation) spawn(p Process, caller *Task) {
	sub := s.ctx.newTask(p, caller)
	s.trackTask(sub)
	s.ready = append(s.ready, sub)
}

// advance moves the current time to the earliest timeline entry and makes
// every entry due at that time ready.
func (s *Simulation) advance() {
	first := s.ctx.timeline.peek()
	prev := s.ctx.Now()
	if first.due < prev {
		panic(fmt.Sprintf(
			"sim: cannot advance to the past, entry @ %d, now %d",
			first.due, prev,
		))
	}

	s.ctx.writeNow(first.due)

	for _, e := range s.ctx.timeline.popDue(first.due) {
		if e.task != nil {
			s.ready = append(s.ready, e.task)
			continue
		}

		s.ready = append(s.ready, e.event.Apply()...)
	}

	s.timeAdvances.Add(1)
	s.logger.WithField("now", first.due).Debug("time advanced")
	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosTimeAdvance,
		Now:    first.due,
		Detail: prev,
	})
}

func (s *Simulation) report(term *Termination, quiet bool) {
	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosTerminate,
		Now:    term.Time,
		Item:   term,
	})

	if quiet {
		return
	}

	fmt.Fprintln(s.output, term.Message())
}

// Pause blocks the run loop before the next delta cycle until Continue is
// called.
func (s *Simulation) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue lets a paused simulation run again.
func (s *Simulation) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// IsPaused tells if Pause has been called without a matching Continue.
func (s *Simulation) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}

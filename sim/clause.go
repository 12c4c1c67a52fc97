package sim

// A Trigger is one elementary condition a process can wait for. The set of
// triggers is closed: ListTrigger, DelayTrigger, CallTrigger, JoinTrigger and
// ImmediateTrigger.
type Trigger interface {
	isTrigger()
}

// A Clause is what a process declares when it suspends. The process resumes
// as soon as any one of the triggers fires.
type Clause []Trigger

// Wait builds a clause from triggers.
func Wait(triggers ...Trigger) Clause {
	return Clause(triggers)
}

// ListTrigger waits on a signal's wait list.
type ListTrigger struct {
	List WaitList
}

// DelayTrigger fires Duration ticks after the clause is declared.
type DelayTrigger struct {
	Duration VTime
}

// CallTrigger runs Process as a sub-process and fires when it completes.
type CallTrigger struct {
	Process Process
}

// JoinTrigger fires once every one of its triggers has fired.
type JoinTrigger struct {
	Triggers []Trigger
}

// ImmediateTrigger fires in the same delta cycle, after the tasks already in
// the ready queue.
type ImmediateTrigger struct{}

func (ListTrigger) isTrigger()      {}
func (DelayTrigger) isTrigger()     {}
func (CallTrigger) isTrigger()      {}
func (JoinTrigger) isTrigger()      {}
func (ImmediateTrigger) isTrigger() {}

// Immediate resumes the process without waiting.
var Immediate Trigger = ImmediateTrigger{}

// On waits on a wait list.
func On(wl WaitList) Trigger {
	return ListTrigger{List: wl}
}

// Delay waits for d ticks.
func Delay(d VTime) Trigger {
	return DelayTrigger{Duration: d}
}

// Call runs p to completion before resuming the caller.
func Call(p Process) Trigger {
	return CallTrigger{Process: p}
}

// Join waits for all the triggers.
func Join(triggers ...Trigger) Trigger {
	return JoinTrigger{Triggers: triggers}
}

// Process returns a process that waits for the join and then completes. It
// lets a join be awaited through Call.
func (j JoinTrigger) Process() Process {
	return &joinProcess{join: j}
}

// validateClause checks a clause yielded at time now.
func validateClause(c Clause, now VTime) *ClauseTypeError {
	if len(c) == 0 {
		return &ClauseTypeError{Reason: "empty wait clause"}
	}

	for _, t := range c {
		if err := validateTrigger(t, now); err != nil {
			return err
		}
	}

	return nil
}

func validateTrigger(t Trigger, now VTime) *ClauseTypeError {
	switch trig := t.(type) {
	case ListTrigger:
		if trig.List == nil {
			return &ClauseTypeError{Trigger: t, Reason: "nil wait list"}
		}
	case DelayTrigger:
		if now+trig.Duration < now {
			return &ClauseTypeError{Trigger: t, Reason: "delay overflows the time range"}
		}
	case CallTrigger:
		if isNilProcess(trig.Process) {
			return &ClauseTypeError{Trigger: t, Reason: "nil sub-process"}
		}
	case JoinTrigger:
		if len(trig.Triggers) == 0 {
			return &ClauseTypeError{Trigger: t, Reason: "join without triggers"}
		}

		for _, sub := range trig.Triggers {
			if err := validateTrigger(sub, now); err != nil {
				return err
			}
		}
	case ImmediateTrigger:
	case nil:
		return &ClauseTypeError{Reason: "nil trigger"}
	default:
		return &ClauseTypeError{Trigger: t, Reason: "unknown trigger"}
	}

	return nil
}

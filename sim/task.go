package sim

// A Task wraps one suspension of a process.
//
// Every time a process declares a wait clause, the simulation creates a
// single clone of the task and registers that same clone with every
// destination of the clause. Whichever destination hands the clone back first
// resumes the process and marks the clone as run; the copies still sitting in
// the other destinations are dropped when they come back. A process is
// therefore resumed at most once per suspension.
type Task struct {
	id     string
	proc   Process
	caller *Task
	gate   *JoinGate
	hasRun bool
}

// ID returns the ID of the process the task wraps. All clones of one process
// share the ID.
func (t *Task) ID() string {
	return t.id
}

// Name returns the process name if the process implements Named, otherwise the
// task ID.
func (t *Task) Name() string {
	if n, ok := t.proc.(Named); ok {
		return n.Name()
	}

	return t.id
}

// Process returns the wrapped process.
func (t *Task) Process() Process {
	return t.proc
}

// Caller returns the task resumed when this task's process completes, or nil.
func (t *Task) Caller() *Task {
	return t.caller
}

// Gate returns the join gate the task is waiting to clear, or nil.
func (t *Task) Gate() *JoinGate {
	return t.gate
}

// HasRun tells if this suspension has already been resumed.
func (t *Task) HasRun() bool {
	return t.hasRun
}

// greenLight reports whether a popped task may resume. A task without a gate
// always may; a gated task only when its pop is the one that clears the gate.
func (t *Task) greenLight() bool {
	if t.gate == nil {
		return true
	}

	return t.gate.Release()
}

// clone returns the suspension record for the next wait of the same process.
// Gates belong to a single suspension and are not carried over.
func (t *Task) clone() *Task {
	return &Task{
		id:     t.id,
		proc:   t.proc,
		caller: t.caller,
	}
}

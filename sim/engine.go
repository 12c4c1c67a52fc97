package sim

// VTime is the simulated time, counted in ticks.
type VTime uint64

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTime
}

// An Updater is a signal whose value changed during the current delta cycle.
// Update commits the pending value and returns the tasks that were waiting on
// the change. It is called once per dirty signal per delta cycle.
type Updater interface {
	Update() []*Task
}

// A WaitList collects the tasks waiting for a signal condition. The owner of
// the list hands the tasks back through Updater.Update when the condition
// occurs.
type WaitList interface {
	Append(t *Task)
}

// A CoSimulator bridges the simulation to an external process. Put pushes
// pending outputs and Get pulls inputs, possibly marking signals dirty. Both
// are called at most once per delta cycle.
type CoSimulator interface {
	Put() error
	Get() error
}

// Named is implemented by processes that want a readable name in traces.
type Named interface {
	Name() string
}

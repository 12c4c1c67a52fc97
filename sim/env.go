package sim

import (
	"fmt"
	"sync"
)

// Env holds the state shared by a simulation and its collaborators: the
// current time, the set of signals that changed in the current step, and the
// timeline of future events. Signals and co-simulation bridges are built
// against an Env before the Simulation that runs it.
type Env struct {
	timeLock sync.RWMutex
	now      VTime

	dirty    []Updater
	dirtySet map[Updater]struct{}

	timeline *timeline
	idGen    IDGenerator
}

// NewEnv creates an empty Env at time zero.
func NewEnv() *Env {
	return &Env{
		dirtySet: make(map[Updater]struct{}),
		timeline: newTimeline(),
		idGen:    NewSequentialIDGenerator(),
	}
}

// UseIDGenerator replaces the generator used to name tasks. It must be called
// before any process is registered.
func (c *Env) UseIDGenerator(g IDGenerator) {
	c.idGen = g
}

// Now returns the current simulated time. It is safe to call from other
// goroutines while the simulation runs.
func (c *Env) Now() VTime {
	c.timeLock.RLock()
	t := c.now
	c.timeLock.RUnlock()

	return t
}

func (c *Env) writeNow(t VTime) {
	c.timeLock.Lock()
	c.now = t
	c.timeLock.Unlock()
}

// MarkDirty adds a signal to the set of signals updated at the start of the
// next delta cycle. Marking a signal that is already dirty does nothing.
func (c *Env) MarkDirty(u Updater) {
	if _, ok := c.dirtySet[u]; ok {
		return
	}

	c.dirtySet[u] = struct{}{}
	c.dirty = append(c.dirty, u)
}

// NumDirty returns the number of signals waiting to be updated.
func (c *Env) NumDirty() int {
	return len(c.dirty)
}

// drainDirty empties the dirty set and returns its former content in the
// order the signals were marked.
func (c *Env) drainDirty() []Updater {
	dirty := c.dirty
	c.dirty = nil
	clear(c.dirtySet)

	return dirty
}

// Schedule registers an event whose Apply runs when the current time reaches
// t.
func (c *Env) Schedule(t VTime, evt Event) error {
	now := c.Now()
	if t < now {
		return fmt.Errorf("%w: event @ %d, now %d", ErrPastEvent, t, now)
	}

	c.timeline.pushEvent(t, evt)

	return nil
}

// NumPending returns the number of timeline entries not yet due.
func (c *Env) NumPending() int {
	return c.timeline.Len()
}

func (c *Env) newTask(p Process, caller *Task) *Task {
	return &Task{
		id:     c.idGen.Generate(),
		proc:   p,
		caller: caller,
	}
}

func (c *Env) reset() {
	c.writeNow(0)
	c.drainDirty()
	c.timeline.clear()
}

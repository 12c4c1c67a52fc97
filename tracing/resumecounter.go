package tracing

import (
	"sync"

	"github.com/sarchlab/deltasim/sim"
)

// ResumeCounter is a hook that counts process resumptions per task name and
// per simulated time.
type ResumeCounter struct {
	lock      sync.Mutex
	taskNames []string
	perTask   map[string]uint64
	perTime   map[sim.VTime]uint64
	total     uint64
}

// NewResumeCounter creates a new ResumeCounter.
func NewResumeCounter() *ResumeCounter {
	return &ResumeCounter{
		perTask: make(map[string]uint64),
		perTime: make(map[sim.VTime]uint64),
	}
}

// Func counts the resumption announced by the hook context.
func (c *ResumeCounter) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosBeforeResume {
		return
	}

	name := ctx.Item.(*sim.Task).Name()

	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.perTask[name]; !ok {
		c.taskNames = append(c.taskNames, name)
	}

	c.perTask[name]++
	c.perTime[ctx.Now]++
	c.total++
}

// TaskNames returns the names of the resumed tasks in order of first
// resumption.
func (c *ResumeCounter) TaskNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.taskNames...)
}

// TaskCount returns how many times the named task was resumed.
func (c *ResumeCounter) TaskCount(name string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.perTask[name]
}

// CountAt returns the number of resumptions at time t.
func (c *ResumeCounter) CountAt(t sim.VTime) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.perTime[t]
}

// Total returns the number of resumptions seen.
func (c *ResumeCounter) Total() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.total
}

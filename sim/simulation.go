package sim

import (
	"io"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// A Simulation drives a set of processes against the clock of an Env.
type Simulation struct {
	*HookableBase

	ctx   *Env
	ready []*Task

	cosim        CoSimulator
	cosimRunning bool

	logger *logrus.Logger
	output io.Writer
	quiet  bool

	tasksLock sync.Mutex
	tasks     map[string]*Task

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	// stateLock is held by the run loop for the length of a delta cycle.
	stateLock sync.RWMutex

	singleRunLock sync.Mutex

	resumptions  atomic.Uint64
	deltaCycles  atomic.Uint64
	timeAdvances atomic.Uint64
}

// NewSimulation creates a simulation over ctx with the default settings. See
// Builder.Build for the accepted process arguments.
func NewSimulation(ctx *Env, processes ...any) (*Simulation, error) {
	return MakeBuilder().WithEnv(ctx).Build(processes...)
}

// Env returns the environment the simulation runs.
func (s *Simulation) Env() *Env {
	return s.ctx
}

// Now returns the current simulated time.
func (s *Simulation) Now() VTime {
	return s.ctx.Now()
}

// Stats summarizes the work a simulation has done so far.
type Stats struct {
	Resumptions  uint64 `json:"resumptions"`
	DeltaCycles  uint64 `json:"delta_cycles"`
	TimeAdvances uint64 `json:"time_advances"`
}

// Stats returns the counters of all runs so far. It is safe to call while the
// simulation runs.
func (s *Simulation) Stats() Stats {
	return Stats{
		Resumptions:  s.resumptions.Load(),
		DeltaCycles:  s.deltaCycles.Load(),
		TimeAdvances: s.timeAdvances.Load(),
	}
}

// TaskIDs returns the IDs of the processes that have not completed, sorted.
func (s *Simulation) TaskIDs() []string {
	s.tasksLock.Lock()
	defer s.tasksLock.Unlock()

	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Task returns the most recent suspension of the process with the given ID,
// or nil if the process completed or never existed.
func (s *Simulation) Task(id string) *Task {
	s.tasksLock.Lock()
	defer s.tasksLock.Unlock()

	return s.tasks[id]
}

// TaskInfo is a view of a suspended process taken between delta cycles.
type TaskInfo struct {
	ID            string
	Name          string
	HasRun        bool
	Caller        string
	GateRemaining int
}

// TaskInfo describes the most recent suspension of the process with the given
// ID. It waits for the current delta cycle to finish and must not be called
// from a hook.
func (s *Simulation) TaskInfo(id string) (TaskInfo, bool) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	t := s.Task(id)
	if t == nil {
		return TaskInfo{}, false
	}

	info := TaskInfo{
		ID:     t.id,
		Name:   t.Name(),
		HasRun: t.hasRun,
	}
	if t.caller != nil {
		info.Caller = t.caller.id
	}
	if t.gate != nil {
		info.GateRemaining = t.gate.Remaining()
	}

	return info, true
}

// Close stops the processes that are still suspended so that their bodies
// can clean up. Resuming a stopped process completes it, so a later Run only
// finishes the bookkeeping of pending entries.
func (s *Simulation) Close() {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	s.tasksLock.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*Task)
	s.tasksLock.Unlock()

	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		stopProcess(tasks[id].proc)
	}

	s.ready = nil
}

func (s *Simulation) trackTask(t *Task) {
	s.tasksLock.Lock()
	s.tasks[t.id] = t
	s.tasksLock.Unlock()
}

func (s *Simulation) untrackTask(t *Task) {
	s.tasksLock.Lock()
	delete(s.tasks, t.id)
	s.tasksLock.Unlock()
}

// addProcesses flattens the construction arguments into ready tasks.
func (s *Simulation) addProcesses(args []any) error {
	for i, arg := range args {
		err := s.flatten(arg, strconv.Itoa(i))
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Simulation) flatten(arg any, path string) error {
	if p, ok := arg.(Process); ok && !isNilProcess(p) {
		t := s.ctx.newTask(p, nil)
		s.trackTask(t)
		s.ready = append(s.ready, t)

		return nil
	}

	if arg == nil {
		return &InvalidArgumentError{Path: path, Value: arg}
	}

	v := reflect.ValueOf(arg)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			err := s.flatten(v.Index(i).Interface(), path+"."+strconv.Itoa(i))
			if err != nil {
				return err
			}
		}

		return nil
	default:
		return &InvalidArgumentError{Path: path, Value: arg}
	}
}

var _ TimeTeller = (*Simulation)(nil)
var _ TimeTeller = (*Env)(nil)

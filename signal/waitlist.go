package signal

import "github.com/sarchlab/deltasim/sim"

// pruneThreshold is the list length above which suspensions that already ran
// through another trigger are dropped on append.
const pruneThreshold = 32

// waitList is a one-shot list of waiting tasks. Firing it hands out every task
// and leaves it empty.
type waitList struct {
	tasks []*sim.Task
}

func (l *waitList) Append(t *sim.Task) {
	if len(l.tasks) >= pruneThreshold {
		l.prune()
	}

	l.tasks = append(l.tasks, t)
}

func (l *waitList) prune() {
	live := l.tasks[:0]
	for _, t := range l.tasks {
		if !t.HasRun() {
			live = append(live, t)
		}
	}

	clear(l.tasks[len(live):])
	l.tasks = live
}

func (l *waitList) drain() []*sim.Task {
	tasks := l.tasks
	l.tasks = nil

	return tasks
}

func (l *waitList) live() int {
	n := 0
	for _, t := range l.tasks {
		if !t.HasRun() {
			n++
		}
	}

	return n
}

package sim

import (
	"container/heap"
)

// An Event is a timeline entry that is not a task. When the current time
// reaches the event's due-time, Apply is called and the returned tasks join
// the ready queue.
type Event interface {
	Apply() []*Task
}

// timelineEntry is one pending (due-time, payload) pair. Exactly one of task
// and event is set.
type timelineEntry struct {
	due   VTime
	seq   uint64
	task  *Task
	event Event
}

// timeline holds the not-yet-due entries ordered by due-time. Entries with the
// same due-time keep their insertion order.
type timeline struct {
	entries entryHeap
	nextSeq uint64
}

func newTimeline() *timeline {
	tl := &timeline{}
	tl.entries = make([]*timelineEntry, 0)
	heap.Init(&tl.entries)

	return tl
}

func (tl *timeline) pushTask(due VTime, t *Task) {
	tl.push(&timelineEntry{due: due, task: t})
}

func (tl *timeline) pushEvent(due VTime, evt Event) {
	tl.push(&timelineEntry{due: due, event: evt})
}

func (tl *timeline) push(e *timelineEntry) {
	e.seq = tl.nextSeq
	tl.nextSeq++
	heap.Push(&tl.entries, e)
}

// Len returns the number of pending entries.
func (tl *timeline) Len() int {
	return tl.entries.Len()
}

// peek returns the earliest entry, or nil when the timeline is empty.
func (tl *timeline) peek() *timelineEntry {
	if tl.entries.Len() == 0 {
		return nil
	}

	return tl.entries[0]
}

// popDue removes and returns every entry due at t, in insertion order.
func (tl *timeline) popDue(t VTime) []*timelineEntry {
	var due []*timelineEntry

	for tl.entries.Len() > 0 && tl.entries[0].due == t {
		due = append(due, heap.Pop(&tl.entries).(*timelineEntry))
	}

	return due
}

// removeTask drops the entry carrying t, if any.
func (tl *timeline) removeTask(t *Task) {
	for i, e := range tl.entries {
		if e.task == t {
			heap.Remove(&tl.entries, i)
			return
		}
	}
}

func (tl *timeline) clear() {
	tl.entries = tl.entries[:0]
	tl.nextSeq = 0
}

type entryHeap []*timelineEntry

// Len returns the length of the timeline
func (h entryHeap) Len() int {
	return len(h)
}

// Less orders entries by due-time, breaking ties by insertion order.
func (h entryHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}

	return h[i].seq < h[j].seq
}

// Swap changes the position of two entries in the heap
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Push adds an entry into the heap
func (h *entryHeap) Push(x any) {
	e := x.(*timelineEntry)
	*h = append(*h, e)
}

// Pop removes and returns the last entry of the heap
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]

	return e
}

package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/deltasim/sim"
)

// A ProgressBar tracks how much of a requested duration has been simulated.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Start     sim.VTime `json:"start"`
	Total     sim.VTime `json:"total"`
	Finished  sim.VTime `json:"finished"`
}

// Func moves the bar forward when simulated time advances.
func (b *ProgressBar) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosTimeAdvance {
		return
	}

	b.Lock()
	defer b.Unlock()

	b.Finished = min(ctx.Now-b.Start, b.Total)
}

// Fraction returns the finished share of the total.
func (b *ProgressBar) Fraction() float64 {
	b.Lock()
	defer b.Unlock()

	if b.Total == 0 {
		return 1
	}

	return float64(b.Finished) / float64(b.Total)
}

// CreateProgressBar creates a bar covering the next total ticks of the
// registered simulation and hooks it to the simulation.
func (m *Monitor) CreateProgressBar(name string, total sim.VTime) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Start:     m.simulation.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	m.progressBars = append(m.progressBars, bar)
	m.progressBarsLock.Unlock()

	m.simulation.AcceptHook(bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

package sim

// A JoinGate collapses N trigger firings into one resumption. Every pop of a
// gated task from the ready queue calls Release; only the pop that brings the
// countdown to zero lets the task run.
type JoinGate struct {
	remaining int
}

// NewJoinGate creates a gate that opens after n releases.
func NewJoinGate(n int) *JoinGate {
	return &JoinGate{remaining: n}
}

// Release counts one fired trigger and reports whether it was the last one.
func (g *JoinGate) Release() bool {
	g.remaining--

	return g.remaining == 0
}

// Remaining returns the number of triggers still to fire.
func (g *JoinGate) Remaining() int {
	return g.remaining
}

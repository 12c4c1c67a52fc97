package sim

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	// Domain is the hookable object that is raising this hook.
	Domain Hookable

	// Pos identifies where in the run loop the hook is firing from.
	Pos *HookPos

	// Now is the simulated time at which the hook fires.
	Now VTime

	// Item carries the primary subject associated with the hook (a task or a
	// termination).
	Item any

	// Detail holds optional auxiliary data; hook sites may leave it nil.
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	//
	// Hooks must be registered before the simulation starts running. Hooks
	// cannot be removed.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// InvokeHook triggers the registered Hooks.
	InvokeHook(ctx HookCtx)
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// Hook positions raised by a Simulation.
var (
	// HookPosBeforeResume fires right before a task's process is resumed.
	HookPosBeforeResume = &HookPos{Name: "BeforeResume"}

	// HookPosAfterResume fires after a process declared a wait clause. Detail
	// holds the Clause.
	HookPosAfterResume = &HookPos{Name: "AfterResume"}

	// HookPosTaskComplete fires when a process runs to completion.
	HookPosTaskComplete = &HookPos{Name: "TaskComplete"}

	// HookPosDeltaCycle fires at the end of every delta cycle. Item holds the
	// delta cycle count at the current time.
	HookPosDeltaCycle = &HookPos{Name: "DeltaCycle"}

	// HookPosTimeAdvance fires after the current time moves forward. Detail
	// holds the previous time.
	HookPosTimeAdvance = &HookPos{Name: "TimeAdvance"}

	// HookPosTerminate fires once per Run with the *Termination as Item.
	HookPosTerminate = &HookPos{Name: "Terminate"}
)

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NewHookableBase creates a HookableBase object.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hookList = make([]Hook, 0)

	return h
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// AcceptHook register a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hookList = append(h.hookList, hook)
}

// InvokeHook triggers the register Hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)

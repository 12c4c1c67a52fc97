package sim

import (
	"iter"
	"reflect"
)

// A Process is a resumable computation. Each call to Resume runs the process
// until it declares the next wait clause. Resume returns false once the
// process has completed; the clause is ignored in that case.
type Process interface {
	Resume() (Clause, bool)
}

// ProcessFunc turns a step function into a Process. The function keeps its
// own state between calls, usually in variables it closes over.
type ProcessFunc func() (Clause, bool)

// Resume calls f.
func (f ProcessFunc) Resume() (Clause, bool) {
	return f()
}

// isNilProcess reports whether p is nil or wraps a nil value, such as a nil
// *GeneratorProcess or a nil ProcessFunc.
func isNilProcess(p Process) bool {
	if p == nil {
		return true
	}

	if n, ok := p.(namedProcess); ok {
		return isNilProcess(n.Process)
	}

	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Chan,
		reflect.Interface, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// A GeneratorProcess runs a sequential process body written as an iterator.
// Every value the body yields is a wait clause; the body continues after the
// yield when the simulation resumes it.
//
//	p := sim.Generator(func(yield func(sim.Clause) bool) {
//	    for {
//	        if !yield(sim.Wait(sim.Delay(5))) {
//	            return
//	        }
//	        count++
//	    }
//	})
type GeneratorProcess struct {
	name string
	next func() (Clause, bool)
	stop func()
	done bool
}

// Generator creates a process from an iterator body.
func Generator(body iter.Seq[Clause]) *GeneratorProcess {
	next, stop := iter.Pull(body)

	return &GeneratorProcess{
		next: next,
		stop: stop,
	}
}

// NamedGenerator creates a named process from an iterator body.
func NamedGenerator(name string, body iter.Seq[Clause]) *GeneratorProcess {
	g := Generator(body)
	g.name = name

	return g
}

// Name returns the name given at creation.
func (g *GeneratorProcess) Name() string {
	return g.name
}

// Resume runs the body until its next yield.
func (g *GeneratorProcess) Resume() (Clause, bool) {
	if g.done {
		return nil, false
	}

	clause, ok := g.next()
	if !ok {
		g.done = true
		g.stop()
	}

	return clause, ok
}

// Stop abandons the body. The pending yield returns false so the body can
// return; deferred calls in the body run.
func (g *GeneratorProcess) Stop() {
	g.done = true
	g.stop()
}

// stopProcess ends the body of a process written as an iterator.
func stopProcess(p Process) {
	switch p := p.(type) {
	case namedProcess:
		stopProcess(p.Process)
	case *GeneratorProcess:
		p.Stop()
	}
}

// Done tells if the body has returned.
func (g *GeneratorProcess) Done() bool {
	return g.done
}

type namedProcess struct {
	Process
	name string
}

func (p namedProcess) Name() string {
	return p.name
}

// WithName attaches a name to a process for hooks and traces.
func WithName(name string, p Process) Process {
	return namedProcess{Process: p, name: name}
}

// joinProcess lets a join be waited on as one trigger among others. It
// declares the join once and completes when the join is satisfied, which
// resumes its caller.
type joinProcess struct {
	join     JoinTrigger
	declared bool
}

func (p *joinProcess) Resume() (Clause, bool) {
	if p.declared {
		return nil, false
	}

	p.declared = true

	return Clause{p.join}, true
}

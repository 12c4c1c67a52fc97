package sim

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Builder can be used to build a simulation.
type Builder struct {
	ctx    *Env
	cosim  CoSimulator
	logger *logrus.Logger
	output io.Writer
	quiet  bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		logger: logrus.StandardLogger(),
		output: os.Stderr,
	}
}

// WithEnv sets the environment the simulation runs. Signals and bridges must
// be created against the same Env. Without it, Build creates a new one.
func (b Builder) WithEnv(ctx *Env) Builder {
	b.ctx = ctx
	return b
}

// WithCoSimulator attaches a co-simulation bridge.
func (b Builder) WithCoSimulator(c CoSimulator) Builder {
	b.cosim = c
	return b
}

// WithLogger sets the logger used for debug output.
func (b Builder) WithLogger(l *logrus.Logger) Builder {
	b.logger = l
	return b
}

// WithOutput sets where termination messages are written. Defaults to
// standard error.
func (b Builder) WithOutput(w io.Writer) Builder {
	b.output = w
	return b
}

// WithQuiet suppresses termination messages for every run.
func (b Builder) WithQuiet() Builder {
	b.quiet = true
	return b
}

// Build resets the environment and creates a simulation over the given processes.
//
// Each argument is a Process or a slice or array whose elements are, in turn,
// processes or nested collections. Anything else fails with an
// InvalidArgumentError.
func (b Builder) Build(processes ...any) (*Simulation, error) {
	ctx := b.ctx
	if ctx == nil {
		ctx = NewEnv()
	}

	ctx.reset()

	s := &Simulation{
		HookableBase: NewHookableBase(),
		ctx:          ctx,
		cosim:        b.cosim,
		logger:       b.logger,
		output:       b.output,
		quiet:        b.quiet,
		tasks:        make(map[string]*Task),
	}

	err := s.addProcesses(processes)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Package cosim connects a simulation to an external simulator over a line
// protocol.
//
// Each Get reads lines of the form "name value" until a line holding a single
// dot, and drives the named input signals. Each Put writes "time name value"
// for every output signal whose value changed since the previous Put,
// followed by a dot line. The first Put reports every output.
package cosim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/deltasim/signal"
	"github.com/sarchlab/deltasim/sim"
)

// ErrUnknownSignal is returned when the external simulator drives a signal
// that was never registered as an input.
var ErrUnknownSignal = errors.New("cosim: unknown signal")

// ErrMalformedLine is returned for a line that is not "name value".
var ErrMalformedLine = errors.New("cosim: malformed line")

const endOfBatch = "."

type output struct {
	name   string
	format func() string
	last   string
	sent   bool
}

// Bridge implements sim.CoSimulator.
type Bridge struct {
	ctx     *sim.Env
	scanner *bufio.Scanner
	writer  *bufio.Writer
	logger  *logrus.Entry

	inputs  map[string]func(string) error
	outputs []*output
}

// NewBridge creates a bridge reading from r and writing to w.
func NewBridge(ctx *sim.Env, r io.Reader, w io.Writer) *Bridge {
	return &Bridge{
		ctx:     ctx,
		scanner: bufio.NewScanner(r),
		writer:  bufio.NewWriter(w),
		logger:  logrus.WithField("component", "cosim"),
		inputs:  make(map[string]func(string) error),
	}
}

// Drive registers sig as an input. Values read from the external simulator
// are converted with parse.
func Drive[T comparable](
	b *Bridge,
	sig *signal.Signal[T],
	parse func(string) (T, error),
) {
	b.inputs[mustName(sig.Name())] = func(raw string) error {
		v, err := parse(raw)
		if err != nil {
			return err
		}

		sig.Next(v)

		return nil
	}
}

// Watch registers sig as an output.
func Watch[T comparable](b *Bridge, sig *signal.Signal[T]) {
	b.outputs = append(b.outputs, &output{
		name:   mustName(sig.Name()),
		format: func() string { return fmt.Sprint(sig.Val()) },
	})
}

// ParseBool accepts 0/1 as well as true/false.
func ParseBool(raw string) (bool, error) {
	return strconv.ParseBool(raw)
}

// ParseInt accepts decimal and 0x-prefixed hexadecimal values.
func ParseInt(raw string) (int, error) {
	v, err := strconv.ParseInt(raw, 0, 0)
	return int(v), err
}

func mustName(name string) string {
	if name == "" {
		panic("cosim: signals exchanged with a bridge must be named")
	}

	return name
}

// Get reads one batch of input assignments.
func (b *Bridge) Get() error {
	n := 0

	for b.scanner.Scan() {
		line := strings.TrimSpace(b.scanner.Text())
		if line == endOfBatch {
			b.logger.WithFields(logrus.Fields{
				"now":         b.ctx.Now(),
				"assignments": n,
			}).Debug("batch received")

			return nil
		}

		if line == "" {
			continue
		}

		if err := b.assign(line); err != nil {
			return err
		}

		n++
	}

	if err := b.scanner.Err(); err != nil {
		return err
	}

	return io.ErrUnexpectedEOF
}

func (b *Bridge) assign(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	drive, ok := b.inputs[fields[0]]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSignal, fields[0])
	}

	if err := drive(fields[1]); err != nil {
		return fmt.Errorf("cosim: signal %s: %w", fields[0], err)
	}

	return nil
}

// Put writes the outputs that changed since the last call.
func (b *Bridge) Put() error {
	now := b.ctx.Now()

	for _, o := range b.outputs {
		v := o.format()
		if o.sent && v == o.last {
			continue
		}

		o.last = v
		o.sent = true

		if _, err := fmt.Fprintf(b.writer, "%d %s %s\n", now, o.name, v); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(b.writer, endOfBatch); err != nil {
		return err
	}

	return b.writer.Flush()
}

package models

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/deltasim/signal"
	"github.com/sarchlab/deltasim/sim"
)

// Config describes a design assembled from the blocks of this package.
// Nil sections are left out of the design.
type Config struct {
	Name string `yaml:"name"`

	// Duration is the default run length. Nil or zero runs until no event is
	// left.
	Duration *sim.VTime `yaml:"duration"`

	Clock     *ClockConfig     `yaml:"clock"`
	Counter   *CounterConfig   `yaml:"counter"`
	Handshake *HandshakeConfig `yaml:"handshake"`
	Stimulus  *StimulusConfig  `yaml:"stimulus"`
}

// ClockConfig configures the clock driving the counter.
type ClockConfig struct {
	Half sim.VTime `yaml:"half"`
}

// CounterConfig configures a counter on the clock. It requires a clock.
type CounterConfig struct {
	Limit int `yaml:"limit"`
}

// HandshakeConfig configures a requester and a handshake responder.
type HandshakeConfig struct {
	Transactions int       `yaml:"transactions"`
	Delay        sim.VTime `yaml:"delay"`
}

// StimulusConfig drives a data signal with a list of values.
type StimulusConfig struct {
	Values []int     `yaml:"values"`
	Period sim.VTime `yaml:"period"`
}

// LoadConfig reads and parses a YAML design description.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses and validates a YAML design description.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing model config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the sections are consistent.
func (c *Config) Validate() error {
	var errs []error

	if c.Clock != nil && c.Clock.Half == 0 {
		errs = append(errs, errors.New("clock: half period must be positive"))
	}

	if c.Counter != nil {
		if c.Clock == nil {
			errs = append(errs, errors.New("counter: requires a clock"))
		}

		if c.Counter.Limit < 0 {
			errs = append(errs, errors.New("counter: limit must not be negative"))
		}
	}

	if c.Handshake != nil && c.Handshake.Transactions < 0 {
		errs = append(errs,
			errors.New("handshake: transactions must not be negative"))
	}

	if c.Stimulus != nil && c.Stimulus.Period == 0 {
		errs = append(errs, errors.New("stimulus: period must be positive"))
	}

	return errors.Join(errs...)
}

// A Design is a set of signals and processes built from a Config.
type Design struct {
	Name      string
	Processes []sim.Process

	Clk       *signal.Signal[bool]
	Count     *signal.Signal[int]
	Req       *signal.Signal[bool]
	Ack       *signal.Signal[bool]
	Data      *signal.Signal[int]
	Requester *Requester
}

// Build creates the signals and processes described by the config against
// ctx.
func (c *Config) Build(ctx *sim.Env) *Design {
	d := &Design{Name: c.Name}

	if c.Clock != nil {
		d.Clk = signal.NewBool(ctx, false).WithName("clk")
		d.Processes = append(d.Processes, Clock(d.Clk, c.Clock.Half))
	}

	if c.Counter != nil {
		d.Count = signal.New(ctx, 0).WithName("count")
		d.Processes = append(d.Processes,
			Counter(d.Clk, d.Count, c.Counter.Limit))
	}

	if c.Handshake != nil {
		d.Req = signal.NewBool(ctx, false).WithName("req")
		d.Ack = signal.NewBool(ctx, false).WithName("ack")
		d.Requester = NewRequester(ctx, d.Req, d.Ack, c.Handshake.Transactions)
		d.Processes = append(d.Processes,
			Handshake(d.Req, d.Ack, c.Handshake.Delay),
			d.Requester.Process())
	}

	if c.Stimulus != nil {
		d.Data = signal.New(ctx, 0).WithName("data")
		d.Processes = append(d.Processes,
			Stimulus(d.Data, c.Stimulus.Values, c.Stimulus.Period))
	}

	return d
}

// Summary reports the observable state of the design.
func (d *Design) Summary() map[string]any {
	summary := map[string]any{}

	if d.Clk != nil {
		summary["clk"] = d.Clk.Val()
	}

	if d.Count != nil {
		summary["count"] = d.Count.Val()
	}

	if d.Requester != nil {
		summary["transactions"] = len(d.Requester.Completed())
	}

	if d.Data != nil {
		summary["data"] = d.Data.Val()
	}

	return summary
}

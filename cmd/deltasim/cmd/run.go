package cmd

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/deltasim/models"
	"github.com/sarchlab/deltasim/monitoring"
	"github.com/sarchlab/deltasim/sim"
	"github.com/sarchlab/deltasim/tracing"
)

// exitStatus is the completion status of the last run: 1 if events were still
// pending when it stopped.
var exitStatus int

type runOptions struct {
	duration    *sim.VTime
	quiet       bool
	trace       string
	monitor     bool
	port        int
	openBrowser bool
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		duration   uint64
		opts       runOptions
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a design",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := models.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("duration") {
				d := sim.VTime(duration)
				opts.duration = &d
			}

			term, design, err := runDesign(cfg, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields(design.Summary())).
				WithField("now", term.Time).
				Info("simulation complete")

			exitStatus = term.Status()

			return nil
		},
	}

	runCmd.Flags().StringVarP(&configPath, "config", "c", "model.yaml",
		"Design description")
	runCmd.Flags().Uint64Var(&duration, "duration", 0,
		"Ticks to simulate, 0 for no limit; overrides the duration of the design")
	runCmd.Flags().BoolVar(&opts.quiet, "quiet", false,
		"Do not print the termination message")
	runCmd.Flags().StringVar(&opts.trace, "trace", "",
		"Write a SQLite trace to this path (without extension)")
	runCmd.Flags().BoolVar(&opts.monitor, "monitor", false,
		"Serve the monitoring page while running")
	runCmd.Flags().IntVar(&opts.port, "monitor-port", 0,
		"Port of the monitoring server; random when 0")
	runCmd.Flags().BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring page in a browser")

	return runCmd
}

func runDesign(
	cfg *models.Config,
	opts runOptions,
	out io.Writer,
) (*sim.Termination, *models.Design, error) {
	ctx := sim.NewEnv()
	design := cfg.Build(ctx)

	builder := sim.MakeBuilder().WithEnv(ctx).WithOutput(out)
	if opts.quiet {
		builder = builder.WithQuiet()
	}

	s, err := builder.Build(design.Processes)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	counter := tracing.NewResumeCounter()
	s.AcceptHook(counter)

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		s.AcceptHook(sim.NewTaskLogger(logrus.StandardLogger()))
	}

	if opts.trace != "" {
		tracer := tracing.NewSQLiteTracer(opts.trace)
		if err := tracer.Init(); err != nil {
			return nil, nil, err
		}
		defer func() {
			if err := tracer.Close(); err != nil {
				logrus.WithError(err).Error("closing trace")
			}
		}()

		s.AcceptHook(tracer)
	}

	duration := opts.duration
	if duration == nil {
		duration = cfg.Duration
	}

	if duration != nil && *duration == 0 {
		duration = nil
	}

	var runOpts []sim.RunOption
	if duration != nil {
		runOpts = append(runOpts, sim.WithDuration(*duration))
	}

	if opts.monitor {
		m := monitoring.NewMonitor().WithPortNumber(opts.port)
		if opts.openBrowser {
			m.WithBrowser()
		}

		m.RegisterSimulation(s)

		if _, err := m.StartServer(); err != nil {
			return nil, nil, err
		}

		if duration != nil {
			bar := m.CreateProgressBar(cfg.Name, *duration)
			defer m.CompleteProgressBar(bar)
		}
	}

	term, err := s.Run(runOpts...)
	if err != nil {
		return nil, nil, err
	}

	for _, name := range counter.TaskNames() {
		logrus.WithFields(logrus.Fields{
			"task":        name,
			"resumptions": counter.TaskCount(name),
		}).Debug("task activity")
	}

	return term, design, nil
}

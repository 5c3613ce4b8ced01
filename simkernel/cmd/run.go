package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/simkernel/scenarios"
	"github.com/sarchlab/simkernel/sim"
	"github.com/sarchlab/simkernel/simulation"
)

func newRunCmd() *cobra.Command {
	run := &cobra.Command{
		Use:   "run [scenario]",
		Short: "Run a scenario.",
		Long: `Run a scenario until its horizon or the time given with --until. ` +
			`Settings can also come from a YAML file given with --config and ` +
			`from SIMKERNEL_* environment variables, which may be kept in a ` +
			`.env file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}

			return runScenario(cmd.Context(), cfg, logrus.StandardLogger())
		},
	}

	flags := run.Flags()
	flags.String("config", "", "YAML file with the run settings.")
	flags.String("env-file", ".env", "File with SIMKERNEL_* variables.")
	flags.Float64("until", 0, "Simulated time to run until.")
	flags.Bool("log-events", false, "Log every dispatched event.")
	flags.Bool("record", true, "Record the trace into an SQLite file.")
	flags.String("output", "", "Name of the trace file, without extension.")
	flags.Bool("monitor", false, "Serve the monitoring web page.")
	flags.Int("monitor-port", 0, "Port of the monitoring server.")
	flags.Bool("open-browser", false, "Open the monitoring page in a browser.")
	flags.Bool("hold", false,
		"Keep the monitor serving after the run until interrupted.")

	return run
}

func resolveConfig(cmd *cobra.Command, args []string) (Config, error) {
	cfg := DefaultConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := cfg.LoadConfigFile(path); err != nil {
			return cfg, err
		}
	}

	envFile, _ := cmd.Flags().GetString("env-file")

	env, err := ReadEnv(envFile)
	if err != nil {
		return cfg, err
	}

	if err := cfg.ApplyEnv(env); err != nil {
		return cfg, err
	}

	cfg.ApplyFlags(cmd.Flags())

	if len(args) > 0 {
		cfg.Scenario = args[0]
	}

	return cfg, cfg.Validate()
}

func runScenario(
	ctx context.Context,
	cfg Config,
	logger *logrus.Logger,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sc, err := scenarios.Get(cfg.Scenario)
	if err != nil {
		return err
	}

	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}

		logger.SetLevel(level)
	}

	s := buildSimulation(cfg, logger)
	defer s.Terminate()

	if err := sc.Setup(s.Simulator(), logger); err != nil {
		return fmt.Errorf("setting up %s: %w", sc.Name, err)
	}

	until := sc.Horizon
	if cfg.Until != nil {
		until = sim.VTimeInSec(*cfg.Until)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(ctx)

	if cfg.Monitor {
		g.Go(func() error {
			return s.Serve(serveCtx)
		})
	}

	g.Go(func() error {
		err := s.Run(until)
		if err == nil {
			logger.WithFields(logrus.Fields{
				"scenario": sc.Name,
				"now":      float64(s.Simulator().Now()),
				"pending":  s.Simulator().EventList().Len(),
			}).Info("run completed")
		}

		if !cfg.Hold || err != nil {
			stopServing()
		}

		return err
	})

	err = g.Wait()
	stopServing()

	return err
}

func buildSimulation(cfg Config, logger *logrus.Logger) *simulation.Simulation {
	b := simulation.MakeBuilder().WithLogger(logger)

	if cfg.LogEvents {
		b = b.WithEventLogging()
	}

	if cfg.Record {
		b = b.WithOutputFileName(cfg.Output)
	} else {
		b = b.WithoutRecording()
	}

	if cfg.Monitor {
		b = b.WithMonitorPort(cfg.MonitorPort)
		if cfg.OpenBrowser {
			b = b.WithOpenBrowser()
		}
	} else {
		b = b.WithoutMonitoring()
	}

	return b.Build()
}

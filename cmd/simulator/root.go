package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	seed       uint64
	population int
	infected   int
	mode       string
	workers    int

	logLevel   string
	logFormat  string
	logBackend string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "simulator",
		Short:         "Agent-based epidemic simulator",
		Long:          `Simulates a population of moving agents through susceptible, infected, recovered and immune states, with quarantine zones and vaccination campaigns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	env := logging.ConfigFromEnv()
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML config file overlaid on the built-in defaults")
	pf.Uint64Var(&flags.seed, "seed", 0, "random seed (0 picks one from the clock)")
	pf.IntVar(&flags.population, "population", 0, "override the population size")
	pf.IntVar(&flags.infected, "initial-infected", 0, "override the number of initially infected agents")
	pf.StringVar(&flags.mode, "contact-mode", "", "contact pass mode: sequential or simultaneous")
	pf.IntVar(&flags.workers, "contact-workers", 0, "goroutines used by the simultaneous contact pass")
	pf.StringVar(&flags.logLevel, "log-level", env.Level, "debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", env.Format, "text or json")
	pf.StringVar(&flags.logBackend, "log-backend", string(env.Backend), "slog or zap")

	root.AddCommand(
		newRunCmd(flags),
		newServeCmd(flags),
		newScenariosCmd(flags),
	)
	return root
}

func (f *globalFlags) logger(cmd *cobra.Command) logging.Logger {
	return logging.New(logging.Config{
		Level:   f.logLevel,
		Format:  f.logFormat,
		Backend: logging.Backend(f.logBackend),
		Output:  cmd.ErrOrStderr(),
	})
}

// config loads the config file and applies flags the user set explicitly.
func (f *globalFlags) config(cmd *cobra.Command) (core.Config, error) {
	cfg, err := core.LoadConfig(f.configPath)
	if err != nil {
		return cfg, err
	}

	pf := cmd.Flags()
	if pf.Changed("seed") {
		cfg.Seed = f.seed
	}
	if pf.Changed("population") {
		cfg.Population = f.population
	}
	if pf.Changed("initial-infected") {
		cfg.InitialInfected = f.infected
	}
	if pf.Changed("contact-mode") {
		cfg.ContactMode = core.ContactMode(f.mode)
	}
	if pf.Changed("contact-workers") {
		cfg.ContactWorkers = f.workers
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
	"github.com/signalsfoundry/epidemic-simulator/timectrl"
)

var errExtinct = errors.New("no infected agents remain")

type runFlags struct {
	ticks       int
	scenario    string
	mode        string
	interval    time.Duration
	statusEvery int
	stopEarly   bool
}

func newRunCmd(global *globalFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless simulation and print status lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHeadless(cmd, global, flags)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&flags.ticks, "ticks", "n", 3000, "number of ticks to run (0 runs until interrupted)")
	f.StringVarP(&flags.scenario, "scenario", "s", "", "scenario name or alias to load before running")
	f.StringVar(&flags.mode, "mode", "accelerated", "pacing: realtime or accelerated")
	f.DurationVar(&flags.interval, "interval", timectrl.DefaultInterval, "wall-clock time per tick in realtime mode")
	f.IntVar(&flags.statusEvery, "status-every", 60, "print a status line every N ticks")
	f.BoolVar(&flags.stopEarly, "stop-on-extinction", true, "stop once no infected agents remain")
	return cmd
}

func runHeadless(cmd *cobra.Command, global *globalFlags, flags *runFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := global.logger(cmd)

	engine, tc, err := buildLoop(ctx, cmd, global, log, flags.scenario, flags.mode, flags.interval)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	statusEvery := max(flags.statusEvery, 1)
	tc.AddListener(func(ctx context.Context, _ int) error {
		report, err := engine.Tick(ctx)
		if err != nil {
			return err
		}
		if report.Tick%statusEvery == 0 {
			printStatus(out, report, engine.Statistics().Deaths, engine.Multipliers())
		}
		if flags.stopEarly && report.Counts.Infected == 0 {
			printStatus(out, report, engine.Statistics().Deaths, engine.Multipliers())
			return errExtinct
		}
		return nil
	})

	err = tc.Run(ctx, flags.ticks)
	switch {
	case err == nil:
	case errors.Is(err, errExtinct):
		fmt.Fprintln(out, "epidemic over: no infected agents remain")
	default:
		return err
	}
	printSummary(out, engine.Snapshot())
	return nil
}

// buildLoop creates the engine, applies the optional scenario and wires a
// time controller with the requested pacing.
func buildLoop(ctx context.Context, cmd *cobra.Command, global *globalFlags, log logging.Logger, scenario, mode string, interval time.Duration, opts ...core.EngineOption) (*core.Engine, *timectrl.TimeController, error) {
	cfg, err := global.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	pacing, ok := timectrl.ParseMode(mode)
	if !ok {
		return nil, nil, fmt.Errorf("unknown mode %q", mode)
	}

	ledger := kb.NewKnowledgeBase()
	ledger.Subscribe(ledgerEventLogger(ctx, log))

	opts = append([]core.EngineOption{core.WithLogger(log), core.WithKnowledgeBase(ledger)}, opts...)
	engine, err := core.NewEngine(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	if scenario != "" {
		if _, err := engine.LoadScenario(ctx, scenario); err != nil {
			return nil, nil, err
		}
	}
	return engine, timectrl.NewTimeController(interval, pacing), nil
}

// ledgerEventLogger logs every agent lifecycle change at debug level.
func ledgerEventLogger(ctx context.Context, log logging.Logger) func(kb.Event) {
	return func(ev kb.Event) {
		log.Debug(ctx, "agent "+ev.Type.String(),
			logging.Any("agent_id", ev.Record.ID),
			logging.String("from", ev.From.String()),
			logging.String("to", ev.Record.State.String()),
			logging.Int("tick", ev.Tick),
		)
	}
}

func printStatus(w io.Writer, r core.TickReport, deaths int, m model.Multipliers) {
	c := r.Counts
	quarantine := "OFF"
	if m.Quarantine {
		quarantine = "ON"
	}
	fmt.Fprintf(w, "tick=%d population=%d susceptible=%d infected=%d recovered=%d immune=%d deaths=%d infection=%.1f recovery=%.1f vaccination=%.1f quarantine=%s\n",
		r.Tick, c.Total(), c.Susceptible, c.Infected, c.Recovered, c.Immune, deaths,
		m.Infection, m.Recovery, m.Vaccination, quarantine)
}

func printSummary(w io.Writer, s core.Snapshot) {
	fmt.Fprintf(w, "finished at tick %d: population=%d total_infections=%d total_recoveries=%d deaths=%d\n",
		s.Tick, s.Counts.Total(), s.Statistics.TotalInfections, s.Statistics.TotalRecoveries, s.Statistics.Deaths)
}

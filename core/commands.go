package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

var (
	// ErrUnknownCommand indicates a Command with an unrecognised Kind.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownParameter indicates an adjustment of a parameter that has no multiplier.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrZeroSteps indicates an adjustment that would not move the multiplier.
	ErrZeroSteps = errors.New("adjust needs a non-zero step count")
)

// CommandKind names an operator command.
type CommandKind string

const (
	CommandTogglePause      CommandKind = "toggle_pause"
	CommandReset            CommandKind = "reset"
	CommandToggleQuarantine CommandKind = "toggle_quarantine"
	CommandAdjust           CommandKind = "adjust"
	CommandLoadScenario     CommandKind = "load_scenario"
	CommandVaccinate        CommandKind = "vaccinate"
)

// Command is the transport-neutral form of an operator input. Parameter and
// Steps are used by CommandAdjust, Scenario by CommandLoadScenario.
type Command struct {
	Kind      CommandKind     `json:"command" yaml:"command"`
	Parameter model.Parameter `json:"parameter,omitempty" yaml:"parameter,omitempty"`
	Steps     int             `json:"steps,omitempty" yaml:"steps,omitempty"`
	Scenario  string          `json:"scenario,omitempty" yaml:"scenario,omitempty"`
}

// MultiplierStep is the increment applied per adjustment step.
const MultiplierStep = 0.1

// Bounds is an inclusive range for a multiplier.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var multiplierBounds = map[model.Parameter]Bounds{
	model.ParamInfection:   {Min: 0.1, Max: 2.0},
	model.ParamRecovery:    {Min: 0.1, Max: 2.0},
	model.ParamVaccination: {Min: 0.0, Max: 2.0},
}

// MultiplierBounds returns the range AdjustMultiplier clamps p to.
func MultiplierBounds(p model.Parameter) (Bounds, bool) {
	b, ok := multiplierBounds[p]
	return b, ok
}

// Apply executes cmd. It is the single entry point used by the HTTP and
// WebSocket surfaces.
func (e *Engine) Apply(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandTogglePause:
		e.TogglePause(ctx)
	case CommandReset:
		e.Reset(ctx)
	case CommandToggleQuarantine:
		e.ToggleQuarantine(ctx)
	case CommandAdjust:
		_, err := e.AdjustMultiplier(ctx, cmd.Parameter, cmd.Steps)
		return err
	case CommandLoadScenario:
		_, err := e.LoadScenario(ctx, cmd.Scenario)
		return err
	case CommandVaccinate:
		e.Vaccinate(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
	return nil
}

// TogglePause flips between running and paused and returns the new paused state.
func (e *Engine) TogglePause(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = !e.paused
	e.log.Debug(ctx, "pause toggled", logging.Bool("paused", e.paused))
	return e.paused
}

// ToggleQuarantine flips the quarantine policy and returns the new value.
// Agents already in a zone stay there.
func (e *Engine) ToggleQuarantine(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mult.Quarantine = !e.mult.Quarantine
	e.log.Debug(ctx, "quarantine toggled", logging.Bool("quarantine", e.mult.Quarantine))
	return e.mult.Quarantine
}

// AdjustMultiplier moves parameter p by steps increments of MultiplierStep,
// clamped to the parameter's bounds and rounded to one decimal. It returns
// the new value. A zero step count is rejected with ErrZeroSteps.
func (e *Engine) AdjustMultiplier(ctx context.Context, p model.Parameter, steps int) (float64, error) {
	b, ok := multiplierBounds[p]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, p)
	}
	if steps == 0 {
		return 0, fmt.Errorf("%w: %q", ErrZeroSteps, p)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur, _ := e.mult.Get(p)
	v := cur + float64(steps)*MultiplierStep
	v = math.Round(v*10) / 10
	v = min(b.Max, max(b.Min, v))
	e.mult.Set(p, v)

	e.log.Debug(ctx, "multiplier adjusted",
		logging.String("parameter", string(p)),
		logging.Float64("value", v),
	)
	return v, nil
}


// LoadScenario applies the named scenario's multipliers and quarantine
// policy, then resets the population so the initial vaccination campaign
// sees the new vaccination multiplier.
func (e *Engine) LoadScenario(ctx context.Context, key string) (model.Scenario, error) {
	s, err := e.catalog.Lookup(key)
	if err != nil {
		return model.Scenario{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.mult = s.Multipliers
	e.log.Info(ctx, "scenario loaded", logging.String("scenario", s.Name))
	e.resetLocked(ctx)
	return s, nil
}

// Vaccinate runs a vaccination sweep over the current susceptible agents
// and returns how many became Immune.
func (e *Engine) Vaccinate(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	coverage := e.cfg.VaccinationRate * e.mult.Vaccination
	immunised := SweepVaccination(e.agents, coverage, e.cfg.VaccinationSuccess, e.rng)
	e.recordVaccinations(ctx, immunised)
	e.log.Debug(ctx, "vaccination sweep",
		logging.Float64("coverage", coverage),
		logging.Int("immunised", len(immunised)),
	)
	return len(immunised)
}

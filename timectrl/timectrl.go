package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController paces steps.
type Mode int

const (
	// RealTime fires one step per Interval of wall-clock time.
	RealTime Mode = iota
	// Accelerated runs steps back to back, as fast as listeners allow.
	Accelerated
)

// DefaultInterval is one step per display frame at 60 Hz.
const DefaultInterval = time.Second / 60

// ParseMode maps "realtime" and "accelerated" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "realtime", "real-time", "":
		return RealTime, true
	case "accelerated", "fast":
		return Accelerated, true
	default:
		return RealTime, false
	}
}

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// StepFunc is invoked once per step with the 1-based step number. A non-nil
// error stops the controller.
type StepFunc func(ctx context.Context, step int) error

// TimeController drives the simulation loop and notifies registered
// listeners on every step.
type TimeController struct {
	mu       sync.RWMutex
	Interval time.Duration
	Mode     Mode

	step      int
	listeners []StepFunc
}

// NewTimeController constructs a controller. A non-positive interval falls
// back to DefaultInterval.
func NewTimeController(interval time.Duration, mode Mode) *TimeController {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TimeController{Interval: interval, Mode: mode}
}

// Steps returns the number of completed steps.
func (tc *TimeController) Steps() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.step
}

// Elapsed returns the simulated time covered so far, Steps()*Interval,
// regardless of mode.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return time.Duration(tc.step) * tc.Interval
}

// AddListener registers a callback invoked on every step, in registration order.
func (tc *TimeController) AddListener(fn StepFunc) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run steps until ctx is done, maxSteps steps have run (0 means no limit)
// or a listener fails. It returns nil when the step budget is exhausted and
// the context or listener error otherwise.
func (tc *TimeController) Run(ctx context.Context, maxSteps int) error {
	var tick <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for done := 0; maxSteps <= 0 || done < maxSteps; done++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		tc.mu.Lock()
		tc.step++
		step := tc.step
		listeners := append([]StepFunc(nil), tc.listeners...)
		tc.mu.Unlock()

		for _, fn := range listeners {
			if err := fn(ctx, step); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. The returned channel
// receives Run's result and is then closed.
func (tc *TimeController) Start(ctx context.Context, maxSteps int) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.Run(ctx, maxSteps)
	}()
	return done
}

package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcceleratedRunsExactSteps(t *testing.T) {
	tc := NewTimeController(time.Hour, Accelerated)

	var seen []int
	tc.AddListener(func(_ context.Context, step int) error {
		seen = append(seen, step)
		return nil
	})

	if err := tc.Run(context.Background(), 5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 5 || seen[0] != 1 || seen[4] != 5 {
		t.Fatalf("steps = %v, want 1..5", seen)
	}
	if got := tc.Elapsed(); got != 5*time.Hour {
		t.Fatalf("Elapsed() = %v, want 5h", got)
	}
}

func TestRealTimeStartStopsOnBudget(t *testing.T) {
	tc := NewTimeController(2*time.Millisecond, RealTime)

	done := tc.Start(context.Background(), 3)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := tc.Steps(); got != 3 {
		t.Fatalf("Steps() = %d, want 3", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tc := NewTimeController(time.Millisecond, RealTime)
	ctx, cancel := context.WithCancel(context.Background())

	tc.AddListener(func(_ context.Context, step int) error {
		if step == 2 {
			cancel()
		}
		return nil
	})

	err := <-tc.Start(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := tc.Steps(); got != 2 {
		t.Fatalf("Steps() = %d, want 2", got)
	}
}

func TestListenerErrorStopsRun(t *testing.T) {
	tc := NewTimeController(0, Accelerated)
	boom := errors.New("boom")
	tc.AddListener(func(_ context.Context, step int) error {
		if step == 3 {
			return boom
		}
		return nil
	})

	if err := tc.Run(context.Background(), 10); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if tc.Interval != DefaultInterval {
		t.Fatalf("Interval = %v, want default", tc.Interval)
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := ParseMode("accelerated"); !ok || m != Accelerated {
		t.Fatalf("ParseMode(accelerated) = %v, %v", m, ok)
	}
	if _, ok := ParseMode("warp"); ok {
		t.Fatal("ParseMode(warp) should fail")
	}
}

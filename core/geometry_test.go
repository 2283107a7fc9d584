package core

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestDistanceTo(t *testing.T) {
	a := Vec2{X: 0, Y: 0}
	b := Vec2{X: 3, Y: 4}
	if got := a.DistanceTo(b); math.Abs(got-5) > 1e-9 {
		t.Fatalf("DistanceTo = %v, want 5", got)
	}
}

func TestNormalizeZero(t *testing.T) {
	if _, ok := (Vec2{}).Normalize(); ok {
		t.Fatalf("zero vector should not normalize")
	}
	u, ok := Vec2{X: 0, Y: -2}.Normalize()
	if !ok || u != (Vec2{X: 0, Y: -1}) {
		t.Fatalf("Normalize = %+v, %v", u, ok)
	}
}

func TestBounceReflectsThenClamps(t *testing.T) {
	pos, vel := bounce(Vec2{X: -1, Y: 460}, Vec2{X: -1, Y: 0.5}, 1200, 450)
	if pos != (Vec2{X: 0, Y: 450}) {
		t.Fatalf("clamped pos = %+v, want {0 450}", pos)
	}
	if vel != (Vec2{X: 1, Y: -0.5}) {
		t.Fatalf("reflected vel = %+v, want {1 -0.5}", vel)
	}

	pos, vel = bounce(Vec2{X: 10, Y: 10}, Vec2{X: 1, Y: 1}, 1200, 450)
	if pos != (Vec2{X: 10, Y: 10}) || vel != (Vec2{X: 1, Y: 1}) {
		t.Fatalf("in-bounds agent changed: pos=%+v vel=%+v", pos, vel)
	}
}

func TestInsetAndRandomPoint(t *testing.T) {
	r := Rect{X: 950, Y: 50, Width: 200, Height: 200}
	inner := r.Inset(10)
	if inner != (Rect{X: 960, Y: 60, Width: 180, Height: 180}) {
		t.Fatalf("Inset = %+v", inner)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		if p := inner.RandomPoint(rng); !inner.Contains(p) {
			t.Fatalf("RandomPoint %+v outside %+v", p, inner)
		}
	}

	tiny := Rect{X: 0, Y: 0, Width: 10, Height: 100}.Inset(10)
	if tiny.Width != 0 || tiny.X != 5 {
		t.Fatalf("narrow inset = %+v, want collapsed onto x=5", tiny)
	}
}

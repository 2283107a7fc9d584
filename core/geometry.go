package core

import (
	"math"
	"math/rand/v2"
)

// Vec2 is a point or direction on the simulation canvas.
type Vec2 struct {
	X, Y float64
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale returns v * k.
func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

// Norm returns the Euclidean length of the vector.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec2) DistanceTo(other Vec2) float64 {
	return v.Sub(other).Norm()
}

// Normalize returns the unit vector along v. The zero vector has no
// direction, so ok is false and v is returned unchanged.
func (v Vec2) Normalize() (unit Vec2, ok bool) {
	n := v.Norm()
	if n == 0 {
		return v, false
	}
	return Vec2{X: v.X / n, Y: v.Y / n}, true
}

// randomHeading returns a unit vector with a uniformly random angle.
func randomHeading(rng *rand.Rand) Vec2 {
	angle := rng.Float64() * 2 * math.Pi
	return Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() Vec2 {
	return Vec2{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Inset shrinks r by margin on every side. Axes too small to shrink
// collapse onto the centre line.
func (r Rect) Inset(margin float64) Rect {
	out, c := r, r.Center()
	if r.Width > 2*margin {
		out.X += margin
		out.Width -= 2 * margin
	} else {
		out.X = c.X
		out.Width = 0
	}
	if r.Height > 2*margin {
		out.Y += margin
		out.Height -= 2 * margin
	} else {
		out.Y = c.Y
		out.Height = 0
	}
	return out
}

// RandomPoint samples a point uniformly inside r.
func (r Rect) RandomPoint(rng *rand.Rand) Vec2 {
	return Vec2{
		X: r.X + rng.Float64()*r.Width,
		Y: r.Y + rng.Float64()*r.Height,
	}
}

// bounce reflects the velocity component of every axis on which pos has left
// the canvas [0,w]x[0,h], then clamps pos back into it.
func bounce(pos, vel Vec2, w, h float64) (Vec2, Vec2) {
	if pos.X < 0 || pos.X > w {
		vel.X = -vel.X
	}
	if pos.Y < 0 || pos.Y > h {
		vel.Y = -vel.Y
	}
	pos.X = math.Max(0, math.Min(pos.X, w))
	pos.Y = math.Max(0, math.Min(pos.Y, h))
	return pos, vel
}

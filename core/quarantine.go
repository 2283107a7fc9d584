package core

import "math/rand/v2"

// QuarantineZone is a capacity-bounded region infected agents are steered
// into. Agents keep only the target point they were handed, not a slot
// object; the zone owns the occupancy count.
//
// Occupancy only grows unless the engine runs with ReleaseOnExit. That is
// the reference behaviour: a zone that has admitted Capacity agents stays
// full for the rest of the run even after its occupants recover or die.
type QuarantineZone struct {
	Name     string
	Bounds   Rect
	Capacity int
	// Margin keeps placement targets away from the zone edges.
	Margin float64

	occupied int
}

// NewQuarantineZone builds an empty zone.
func NewQuarantineZone(name string, bounds Rect, capacity int, margin float64) *QuarantineZone {
	return &QuarantineZone{Name: name, Bounds: bounds, Capacity: capacity, Margin: margin}
}

// HasSpace reports whether another agent may be admitted.
func (z *QuarantineZone) HasSpace() bool {
	return z.occupied < z.Capacity
}

// Occupied returns the number of slots taken.
func (z *QuarantineZone) Occupied() int {
	return z.occupied
}

// Place returns a uniformly sampled point inside the zone interior.
func (z *QuarantineZone) Place(rng *rand.Rand) Vec2 {
	return z.Bounds.Inset(z.Margin).RandomPoint(rng)
}

// Admit takes a slot and returns a target point for the new occupant.
// ok is false when the zone is full.
func (z *QuarantineZone) Admit(rng *rand.Rand) (target Vec2, ok bool) {
	if !z.HasSpace() {
		return Vec2{}, false
	}
	z.occupied++
	return z.Place(rng), true
}

// Release frees a slot. It never drops occupancy below zero.
func (z *QuarantineZone) Release() {
	if z.occupied > 0 {
		z.occupied--
	}
}

// Clear empties the zone.
func (z *QuarantineZone) Clear() {
	z.occupied = 0
}

func newZones(cfg Config) []*QuarantineZone {
	zones := make([]*QuarantineZone, 0, len(cfg.Zones))
	for _, zc := range cfg.Zones {
		zones = append(zones, NewQuarantineZone(zc.Name, zc.Bounds, zc.Capacity, cfg.ZoneMargin))
	}
	return zones
}

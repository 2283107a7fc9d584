package core

// MotionModel updates an agent's position and heading for one tick.
type MotionModel interface {
	Move(a *Agent, env *StepEnv)
}

// FreeMotionModel is the default roaming behaviour: constant speed along the
// current heading, an occasional turn toward a nearby agent, and an
// occasional random turn.
type FreeMotionModel struct{}

// Move advances a free agent and bounces it off the canvas edges.
func (FreeMotionModel) Move(a *Agent, env *StepEnv) {
	mv := env.Movement
	a.Position = a.Position.Add(a.Velocity.Scale(a.Speed))

	if env.Rand.Float64() < mv.FlockProb {
		if target := nearbyAgent(a, env); target != nil {
			if dir, ok := target.Position.Sub(a.Position).Normalize(); ok {
				a.Velocity = dir
			}
		}
	}

	a.Position, a.Velocity = bounce(a.Position, a.Velocity, env.Canvas.Width, env.Canvas.Height)

	if env.Rand.Float64() < mv.WanderProb {
		a.Velocity = randomHeading(env.Rand)
	}
}

// QuarantineMotionModel walks an agent to its zone target at reduced speed
// and keeps it milling around there once it arrives.
type QuarantineMotionModel struct{}

// Move advances a quarantined agent and bounces it off the canvas edges.
func (QuarantineMotionModel) Move(a *Agent, env *StepEnv) {
	mv := env.Movement
	toTarget := a.QuarantineTarget.Sub(a.Position)
	if toTarget.Norm() > mv.ArrivalDistance {
		dir, _ := toTarget.Normalize()
		a.Position = a.Position.Add(dir.Scale(a.Speed * mv.QuarantineSpeedFactor))
	} else {
		a.Position = a.Position.Add(a.Velocity.Scale(a.Speed * mv.QuarantineJitter))
		if env.Rand.Float64() < mv.QuarantineWanderProb {
			a.Velocity = randomHeading(env.Rand)
		}
	}

	a.Position, a.Velocity = bounce(a.Position, a.Velocity, env.Canvas.Width, env.Canvas.Height)
}

// motionFor chooses the motion model for the agent's current situation.
func motionFor(a *Agent) MotionModel {
	if a.Quarantined {
		return QuarantineMotionModel{}
	}
	return FreeMotionModel{}
}

// nearbyAgent picks a random other agent within the flocking radius, or nil.
func nearbyAgent(a *Agent, env *StepEnv) *Agent {
	var nearby []*Agent
	for _, other := range env.Population {
		if other == nil || other.ID == a.ID {
			continue
		}
		if a.Position.DistanceTo(other.Position) < env.Movement.FlockRadius {
			nearby = append(nearby, other)
		}
	}
	if len(nearby) == 0 {
		return nil
	}
	return nearby[env.Rand.IntN(len(nearby))]
}

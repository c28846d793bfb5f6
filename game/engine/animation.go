package engine

import (
	"math"
	"time"
)

// Step cadence in speed-scaled ticks per second.
const (
	BaseSpeed = 5.0
	FastSpeed = 20.0

	moveThreshold = 1.0
	waitThreshold = 0.3
)

// Animator drives a Simulation from wall-clock time and projects the bot pose between
// steps. It only changes the simulation through RunCommand.
type Animator struct {
	sim *Simulation

	MoveDelta float64
	SpeedUp   bool
	// Animation is the wheel accumulator; it grows while driving forward and shrinks in reverse.
	Animation float64
}

// NewAnimator attaches an animator to a simulation.
func NewAnimator(sim *Simulation) *Animator {
	return &Animator{sim: sim}
}

// Reset clears the accumulators. Call it whenever the simulation is reprogrammed.
func (a *Animator) Reset() {
	a.MoveDelta = 0
	a.Animation = 0
}

// Speed returns the current tick rate.
func (a *Animator) Speed() float64 {
	if a.SpeedUp {
		return FastSpeed
	}
	return BaseSpeed
}

// Threshold is the move delta at which the command under the cursor completes.
func (a *Animator) Threshold() float64 {
	if a.sim.Tape().Current() == None {
		return waitThreshold
	}
	return moveThreshold
}

// Tick advances time by elapsed and reports whether a simulation step happened.
// Nothing moves unless the bot is running, and at most one step fires per call.
func (a *Animator) Tick(elapsed time.Duration) bool {
	if a.sim.State() != Running || elapsed <= 0 {
		return false
	}

	dt := elapsed.Seconds() * a.Speed()
	a.MoveDelta += dt
	stepped := false
	if a.MoveDelta > a.Threshold() {
		a.MoveDelta = 0
		a.sim.RunCommand()
		stepped = true
	}

	if !a.sim.AtGoal() {
		bot := a.sim.Bot()
		if bot.Bonk && a.MoveDelta > 0.5 {
			dt = -dt
		}
		switch a.sim.Tape().Current() {
		case Forward:
			a.Animation += dt
		case Reverse:
			a.Animation -= dt
		}
	}
	return stepped
}

// Fraction returns the eased progress between the current and pending pose, in [0, 1].
// While a bonk is pending the progress turns back after the midpoint.
func (a *Animator) Fraction() float64 {
	d := a.MoveDelta / a.Threshold()
	if d > 1 {
		d = 1
	}
	if a.sim.Bot().Bonk && d > 0.5 {
		d = 1 - d
	}
	return inOutSine(d)
}

// Frame returns the wheel sprite frame, 0..2.
func (a *Animator) Frame() int {
	return ((int(a.Animation*10) % 3) + 3) % 3
}

// Projection is the interpolated pose handed to a renderer.
type Projection struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"` // radians, 0 along +x
	Frame int     `json:"frame"`
	Bonk  bool    `json:"bonk"`
}

// Pose interpolates the bot between its committed and pending pose.
func (a *Animator) Pose() Projection {
	bot := a.sim.Bot()
	d := a.Fraction()
	return Projection{
		X:     lerp(float64(bot.Pose.X), float64(bot.Pending.X), d),
		Y:     lerp(float64(bot.Pose.Y), float64(bot.Pending.Y), d),
		Angle: lerp(float64(bot.Pose.Dir), float64(bot.Pending.Dir), d) * math.Pi / 2,
		Frame: a.Frame(),
		Bonk:  bot.Bonk,
	}
}

func inOutSine(t float64) float64 {
	return -(math.Cos(math.Pi*t) - 1) / 2
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}

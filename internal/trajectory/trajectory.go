package trajectory

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/pendulum-video/internal/integrator"
	"github.com/ivlev/pendulum-video/internal/pendulum"
)

// Policy selects how states between two samples are resampled.
type Policy int

const (
	// Linear interpolates angle and angular velocity between the bracketing samples.
	Linear Policy = iota
	// Hold returns the nearest preceding sample (zero-order hold).
	Hold
)

// ParsePolicy maps "linear" and "hold" to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "linear", "":
		return Linear, nil
	case "hold", "zoh":
		return Hold, nil
	default:
		return Linear, fmt.Errorf("%w: unknown interpolation %q (linear, hold)", pendulum.ErrInvalidParameter, name)
	}
}

func (p Policy) String() string {
	if p == Hold {
		return "hold"
	}
	return "linear"
}

// InstabilityError reports the first non-finite state produced by the integrator.
type InstabilityError struct {
	Step  int
	State pendulum.State
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("%s at step %d (t=%.6f, angle=%g, angular velocity=%g)",
		pendulum.ErrNumericalInstability, e.Step, e.State.Time, e.State.Angle, e.State.AngularVelocity)
}

func (e *InstabilityError) Unwrap() error {
	return pendulum.ErrNumericalInstability
}

// Trajectory is an immutable, time-ordered sequence of states sampled at a
// fixed step. Only the last interval may be shorter so that the final
// sample lands exactly on the end time.
type Trajectory struct {
	states []pendulum.State
	step   float64
}

// Build integrates m from t0 to tEnd with a fixed step h.
// The result holds ceil((tEnd-t0)/h)+1 states, the first being the initial
// condition. A ratio within a relative 1e-9 of an integer counts as that
// integer, so float noise in (tEnd-t0)/h never adds a near-empty last step.
func Build(m *pendulum.Model, s integrator.Stepper, t0, tEnd, h float64) (*Trajectory, error) {
	span := tEnd - t0
	if !(span > 0) || math.IsInf(span, 0) {
		return nil, &pendulum.ParameterError{Field: "t_end", Value: tEnd, Reason: fmt.Sprintf("must be greater than start time %g", t0)}
	}
	if !(h > 0) || math.IsInf(h, 0) {
		return nil, &pendulum.ParameterError{Field: "step", Value: h, Reason: "must be > 0"}
	}

	ratio := span / h
	n := int(math.Ceil(ratio - 1e-9*ratio))
	if n < 1 {
		n = 1
	}

	states := make([]pendulum.State, n+1)
	states[0] = m.Initial(t0)
	for i := 1; i <= n; i++ {
		dt := h
		if i == n {
			dt = tEnd - states[i-1].Time
		}
		next := s.Step(m, states[i-1], dt)
		if i == n {
			next.Time = tEnd
		} else {
			next.Time = t0 + float64(i)*h
		}
		if !next.Valid() {
			return nil, &InstabilityError{Step: i, State: next}
		}
		states[i] = next
	}

	return &Trajectory{states: states, step: h}, nil
}

// Len returns the number of samples.
func (tr *Trajectory) Len() int { return len(tr.states) }

// State returns sample i.
func (tr *Trajectory) State(i int) pendulum.State { return tr.states[i] }

// Step returns the internal integration step.
func (tr *Trajectory) Step() float64 { return tr.step }

// Start returns the time of the first sample.
func (tr *Trajectory) Start() float64 { return tr.states[0].Time }

// End returns the time of the last sample.
func (tr *Trajectory) End() float64 { return tr.states[len(tr.states)-1].Time }

// At resamples the trajectory at time t. Times outside the covered range
// are clamped to the first or last sample.
func (tr *Trajectory) At(t float64, policy Policy) pendulum.State {
	last := len(tr.states) - 1
	if t <= tr.states[0].Time {
		s := tr.states[0]
		s.Time = t
		return s
	}
	if t >= tr.states[last].Time {
		s := tr.states[last]
		s.Time = t
		return s
	}

	i := int((t - tr.states[0].Time) / tr.step)
	if i >= last {
		i = last - 1
	}
	// guard against rounding in the division
	for i > 0 && tr.states[i].Time > t {
		i--
	}
	for i < last-1 && tr.states[i+1].Time <= t {
		i++
	}

	a, b := tr.states[i], tr.states[i+1]
	if policy == Hold {
		a.Time = t
		return a
	}

	f := (t - a.Time) / (b.Time - a.Time)
	return pendulum.State{
		Time:            t,
		Angle:           lerp(a.Angle, b.Angle, f),
		AngularVelocity: lerp(a.AngularVelocity, b.AngularVelocity, f),
	}
}

// EnergyDrift returns max |E(t)-E(0)| / E(0) over all samples. When the
// initial energy is zero the absolute drift is returned.
func (tr *Trajectory) EnergyDrift(m *pendulum.Model) float64 {
	e0 := m.Energy(tr.states[0])
	worst := 0.0
	for _, s := range tr.states[1:] {
		worst = math.Max(worst, math.Abs(m.Energy(s)-e0))
	}
	if e0 > 0 {
		return worst / e0
	}
	return worst
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

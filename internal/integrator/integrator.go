package integrator

import (
	"fmt"
	"strings"

	"github.com/ivlev/pendulum-video/internal/pendulum"
)

// Stepper advances a pendulum state by one fixed step h.
type Stepper interface {
	Name() string
	Step(m *pendulum.Model, s pendulum.State, h float64) pendulum.State
}

// New returns the stepper registered under method.
func New(method string) (Stepper, error) {
	switch strings.ToLower(method) {
	case "rk4", "":
		return RK4{}, nil
	case "leapfrog":
		return Leapfrog{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown integration method %q (rk4, leapfrog)", pendulum.ErrInvalidParameter, method)
	}
}

// DefaultStep is the internal step used when none is configured: fifty
// integration steps per output frame.
func DefaultStep(fps int) float64 {
	if fps <= 0 {
		return 1e-3
	}
	return 1.0 / (50.0 * float64(fps))
}

// RK4 is the classic fourth-order Runge-Kutta method.
type RK4 struct{}

func (RK4) Name() string { return "rk4" }

func (RK4) Step(m *pendulum.Model, s pendulum.State, h float64) pendulum.State {
	th, om := s.Angle, s.AngularVelocity

	k1t, k1o := m.Derivative(th, om)
	k2t, k2o := m.Derivative(th+0.5*h*k1t, om+0.5*h*k1o)
	k3t, k3o := m.Derivative(th+0.5*h*k2t, om+0.5*h*k2o)
	k4t, k4o := m.Derivative(th+h*k3t, om+h*k3o)

	f := h / 6.0
	return pendulum.State{
		Time:            s.Time + h,
		Angle:           th + f*(k1t+2*k2t+2*k3t+k4t),
		AngularVelocity: om + f*(k1o+2*k2o+2*k3o+k4o),
	}
}

// Leapfrog is the kick-drift-kick scheme. It is symplectic when damping is
// zero, so energy error stays bounded instead of drifting.
type Leapfrog struct{}

func (Leapfrog) Name() string { return "leapfrog" }

func (Leapfrog) Step(m *pendulum.Model, s pendulum.State, h float64) pendulum.State {
	_, a := m.Derivative(s.Angle, s.AngularVelocity)
	om := s.AngularVelocity + 0.5*h*a
	th := s.Angle + h*om
	// second kick uses the half-step velocity for the damping term
	_, a = m.Derivative(th, om)
	om += 0.5 * h * a

	return pendulum.State{Time: s.Time + h, Angle: th, AngularVelocity: om}
}

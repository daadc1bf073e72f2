package pendulum

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Params {
	return Params{
		Length:                 0.25,
		BobRadius:              0.075,
		RodWidth:               0.03,
		PivotOffset:            0.4,
		Gravity:                9.81,
		InitialAngle:           -0.785,
		InitialAngularVelocity: 5.0,
	}
}

func TestNewModelRejectsBadParams(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(p *Params)
		field string
	}{
		{"zero length", func(p *Params) { p.Length = 0 }, "length"},
		{"negative length", func(p *Params) { p.Length = -1 }, "length"},
		{"zero gravity", func(p *Params) { p.Gravity = 0 }, "gravity"},
		{"negative bob", func(p *Params) { p.BobRadius = -0.1 }, "bob_radius"},
		{"negative rod", func(p *Params) { p.RodWidth = -0.1 }, "rod_width"},
		{"negative damping", func(p *Params) { p.Damping = -0.5 }, "damping"},
		{"nan angle", func(p *Params) { p.InitialAngle = math.NaN() }, "initial_angle"},
		{"inf velocity", func(p *Params) { p.InitialAngularVelocity = math.Inf(1) }, "initial_angular_velocity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sample()
			tt.edit(&p)
			m, err := NewModel(p)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, errors.Is(err, ErrInvalidParameter))

			var pe *ParameterError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestDerivative(t *testing.T) {
	p := sample()
	p.Damping = 0.3
	m, err := NewModel(p)
	require.NoError(t, err)

	dTheta, dOmega := m.Derivative(0.5, 2.0)
	assert.Equal(t, 2.0, dTheta)
	assert.InDelta(t, -(9.81/0.25)*math.Sin(0.5)-0.3*2.0, dOmega, 1e-12)

	// large angles are not wrapped
	_, a := m.Derivative(0.5+8*math.Pi, 0)
	_, b := m.Derivative(0.5, 0)
	assert.InDelta(t, b, a, 1e-9)
}

func TestRestIsFixedPoint(t *testing.T) {
	p := sample()
	p.InitialAngle = 0
	p.InitialAngularVelocity = 0
	m, err := NewModel(p)
	require.NoError(t, err)

	s := m.Initial(0)
	dTheta, dOmega := m.Derivative(s.Angle, s.AngularVelocity)
	assert.Zero(t, dTheta)
	assert.Zero(t, dOmega)
	assert.Zero(t, m.Energy(s))
}

func TestEnergy(t *testing.T) {
	m, err := NewModel(sample())
	require.NoError(t, err)

	s := State{Angle: math.Pi, AngularVelocity: 0}
	assert.InDelta(t, 2*9.81*0.25, m.Energy(s), 1e-12)

	s = State{Angle: 0, AngularVelocity: 4}
	assert.InDelta(t, 0.5*(0.25*4)*(0.25*4), m.Energy(s), 1e-12)
}

func TestBobOffset(t *testing.T) {
	x, y := State{Angle: 0}.BobOffset(2)
	assert.InDelta(t, 0, x, 1e-12)
	assert.InDelta(t, -2, y, 1e-12)

	x, y = State{Angle: math.Pi / 2}.BobOffset(2)
	assert.InDelta(t, 2, x, 1e-12)
	assert.InDelta(t, 0, y, 1e-12)
}

func TestStateValid(t *testing.T) {
	assert.True(t, State{Time: 1, Angle: 2, AngularVelocity: 3}.Valid())
	assert.False(t, State{Angle: math.NaN()}.Valid())
	assert.False(t, State{AngularVelocity: math.Inf(-1)}.Valid())
}

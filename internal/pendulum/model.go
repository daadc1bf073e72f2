package pendulum

import "math"

// Params describes one damped simple pendulum. Angles are measured from the
// downward vertical, counter-clockwise positive.
type Params struct {
	Length                 float64 `yaml:"length" gcfg:"length"`                                     // m
	BobRadius              float64 `yaml:"bob_radius" gcfg:"bob-radius"`                             // m, drawing only
	RodWidth               float64 `yaml:"rod_width" gcfg:"rod-width"`                               // m, drawing only
	PivotOffset            float64 `yaml:"pivot_offset" gcfg:"pivot-offset"`                         // m above the panel centre, drawing only
	Gravity                float64 `yaml:"gravity" gcfg:"gravity"`                                   // m/s^2
	InitialAngle           float64 `yaml:"initial_angle" gcfg:"initial-angle"`                       // rad
	InitialAngularVelocity float64 `yaml:"initial_angular_velocity" gcfg:"initial-angular-velocity"` // rad/s
	Damping                float64 `yaml:"damping" gcfg:"damping"`                                   // 1/s
}

// State is one point on a trajectory.
type State struct {
	Time            float64
	Angle           float64
	AngularVelocity float64
}

// Valid reports whether every component is finite.
func (s State) Valid() bool {
	return finite(s.Time) && finite(s.Angle) && finite(s.AngularVelocity)
}

// BobOffset returns the bob position relative to the pivot in a y-up frame.
func (s State) BobOffset(length float64) (x, y float64) {
	return length * math.Sin(s.Angle), -length * math.Cos(s.Angle)
}

// Model holds validated parameters and the equation of motion.
type Model struct {
	params Params
	w2     float64 // g/L
}

// NewModel validates p and returns a model for it.
func NewModel(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: p, w2: p.Gravity / p.Length}, nil
}

// Validate checks the physical and drawing constraints.
func (p Params) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"length", p.Length},
		{"bob_radius", p.BobRadius},
		{"rod_width", p.RodWidth},
		{"pivot_offset", p.PivotOffset},
		{"gravity", p.Gravity},
		{"initial_angle", p.InitialAngle},
		{"initial_angular_velocity", p.InitialAngularVelocity},
		{"damping", p.Damping},
	}
	for _, f := range fields {
		if !finite(f.value) {
			return &ParameterError{Field: f.name, Value: f.value, Reason: "must be finite"}
		}
	}

	switch {
	case p.Length <= 0:
		return &ParameterError{Field: "length", Value: p.Length, Reason: "must be > 0"}
	case p.Gravity <= 0:
		return &ParameterError{Field: "gravity", Value: p.Gravity, Reason: "must be > 0"}
	case p.BobRadius < 0:
		return &ParameterError{Field: "bob_radius", Value: p.BobRadius, Reason: "must be >= 0"}
	case p.RodWidth < 0:
		return &ParameterError{Field: "rod_width", Value: p.RodWidth, Reason: "must be >= 0"}
	case p.Damping < 0:
		return &ParameterError{Field: "damping", Value: p.Damping, Reason: "must be >= 0"}
	}
	return nil
}

// Params returns a copy of the model parameters.
func (m *Model) Params() Params {
	return m.params
}

// Initial returns the state at time t0.
func (m *Model) Initial(t0 float64) State {
	return State{Time: t0, Angle: m.params.InitialAngle, AngularVelocity: m.params.InitialAngularVelocity}
}

// Derivative evaluates the equation of motion:
//
//	dθ/dt = ω
//	dω/dt = -(g/L) sin θ - c ω
//
// The angle is never wrapped.
func (m *Model) Derivative(angle, angularVelocity float64) (dAngle, dAngularVelocity float64) {
	return angularVelocity, -m.w2*math.Sin(angle) - m.params.Damping*angularVelocity
}

// Energy returns the mechanical energy per unit mass, zero at rest at the bottom.
func (m *Model) Energy(s State) float64 {
	L := m.params.Length
	v := L * s.AngularVelocity
	return 0.5*v*v + m.params.Gravity*L*(1-math.Cos(s.Angle))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

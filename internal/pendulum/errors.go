package pendulum

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter marks physical, drawing or time inputs that cannot be simulated.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNumericalInstability marks an integration that produced NaN or Inf.
	ErrNumericalInstability = errors.New("numerical instability")
)

// ParameterError describes which field was rejected and why.
type ParameterError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s = %g (%s)", ErrInvalidParameter, e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrInvalidParameter
}

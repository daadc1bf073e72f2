package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/ivlev/pendulum-video/internal/pendulum"
)

// DefaultTupleOrder is the field order of the eight values passed to
// --pend1/--pend2, e.g. "0.25 0.075 0.03 0.4 9.81 5.0 -0.785 0.0".
var DefaultTupleOrder = []string{
	"length",
	"bob_radius",
	"rod_width",
	"pivot_offset",
	"gravity",
	"initial_angular_velocity",
	"initial_angle",
	"damping",
}

func fieldPtr(p *pendulum.Params, name string) *float64 {
	switch name {
	case "length":
		return &p.Length
	case "bob_radius":
		return &p.BobRadius
	case "rod_width":
		return &p.RodWidth
	case "pivot_offset":
		return &p.PivotOffset
	case "gravity":
		return &p.Gravity
	case "initial_angle":
		return &p.InitialAngle
	case "initial_angular_velocity":
		return &p.InitialAngularVelocity
	case "damping":
		return &p.Damping
	}
	return nil
}

// ParseOrder parses a comma separated field order and checks that it names
// every pendulum field exactly once.
func ParseOrder(s string) ([]string, error) {
	order := splitTuple(s)
	if len(order) != len(DefaultTupleOrder) {
		return nil, fmt.Errorf("%w: field order needs %d names, got %d", pendulum.ErrInvalidParameter, len(DefaultTupleOrder), len(order))
	}
	var probe pendulum.Params
	for i, name := range order {
		if fieldPtr(&probe, name) == nil {
			return nil, fmt.Errorf("%w: unknown pendulum field %q", pendulum.ErrInvalidParameter, name)
		}
		if slices.Contains(order[:i], name) {
			return nil, fmt.Errorf("%w: pendulum field %q listed twice", pendulum.ErrInvalidParameter, name)
		}
	}
	return order, nil
}

// ParseTuple maps whitespace or comma separated numbers onto pendulum
// fields in the given order.
func ParseTuple(s string, order []string) (pendulum.Params, error) {
	var p pendulum.Params
	values := splitTuple(s)
	if len(values) != len(order) {
		return p, fmt.Errorf("%w: expected %d values (%s), got %d",
			pendulum.ErrInvalidParameter, len(order), strings.Join(order, " "), len(values))
	}
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %s: %q is not a number", pendulum.ErrInvalidParameter, order[i], v)
		}
		ptr := fieldPtr(&p, order[i])
		if ptr == nil {
			return p, fmt.Errorf("%w: unknown pendulum field %q", pendulum.ErrInvalidParameter, order[i])
		}
		*ptr = f
	}
	return p, nil
}

// FormatTuple is the inverse of ParseTuple.
func FormatTuple(p pendulum.Params, order []string) string {
	parts := make([]string, 0, len(order))
	for _, name := range order {
		if ptr := fieldPtr(&p, name); ptr != nil {
			parts = append(parts, strconv.FormatFloat(*ptr, 'g', -1, 64))
		}
	}
	return strings.Join(parts, " ")
}

// ExpandTupleArgs folds "-name v1 ... vn" into "-name=v1 ... vn" for each
// named flag, so positional tuples survive the flag package. The fold only
// happens when the next n arguments are all numbers; anything else is left
// for flag parsing to report.
func ExpandTupleArgs(args []string, n int, names ...string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		if !strings.HasPrefix(a, "-") || strings.Contains(name, "=") || !slices.Contains(names, name) || i+n >= len(args) {
			out = append(out, a)
			continue
		}
		values := args[i+1 : i+1+n]
		if !allNumbers(values) {
			out = append(out, a)
			continue
		}
		out = append(out, a+"="+strings.Join(values, " "))
		i += n
	}
	return out
}

func allNumbers(values []string) bool {
	for _, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return true
}

func splitTuple(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

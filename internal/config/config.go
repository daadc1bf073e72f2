package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/ivlev/pendulum-video/internal/integrator"
	"github.com/ivlev/pendulum-video/internal/pendulum"
	"github.com/ivlev/pendulum-video/internal/trajectory"
)

type Config struct {
	OutputPath    string            `yaml:"output"`
	TStart        float64           `yaml:"t_start"`
	TEnd          float64           `yaml:"t_end"`
	FPS           int               `yaml:"fps"`
	Width         int               `yaml:"width"`
	Height        int               `yaml:"height"`
	Step          float64           `yaml:"step"` // 0 selects integrator.DefaultStep(FPS)
	Method        string            `yaml:"method"`
	Interpolation string            `yaml:"interpolation"`
	Description   string            `yaml:"description"`
	VideoEncoder  string            `yaml:"encoder"` // empty: probe ffmpeg
	Quality       int               `yaml:"quality"` // 0: encoder default
	ShowStats     bool              `yaml:"stats"`
	Stamp         bool              `yaml:"stamp"`
	Quiet         bool              `yaml:"quiet"`
	Pendulums     []pendulum.Params `yaml:"pendulums"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		TEnd:          10.0,
		FPS:           24,
		Width:         1280,
		Height:        720,
		Method:        "rk4",
		Interpolation: "linear",
		Description:   "Pendulum Simulation",
	}
}

// Duration returns the simulated span in seconds.
func (c *Config) Duration() float64 {
	return c.TEnd - c.TStart
}

// FrameCount returns round(fps * duration).
func (c *Config) FrameCount() int {
	return int(math.Round(float64(c.FPS) * c.Duration()))
}

// InternalStep returns the integration step, falling back to fifty steps per frame.
func (c *Config) InternalStep() float64 {
	if c.Step > 0 {
		return c.Step
	}
	return integrator.DefaultStep(c.FPS)
}

// Validate checks everything that can be checked before simulating.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputPath) == "" {
		return fmt.Errorf("%w: output path is required", pendulum.ErrInvalidParameter)
	}

	switch {
	case math.IsNaN(c.TStart) || math.IsInf(c.TStart, 0):
		return &pendulum.ParameterError{Field: "t_start", Value: c.TStart, Reason: "must be finite"}
	case !(c.Duration() > 0) || math.IsInf(c.TEnd, 0):
		return &pendulum.ParameterError{Field: "t_end", Value: c.TEnd, Reason: fmt.Sprintf("must be finite and greater than t_start (%g)", c.TStart)}
	case c.FPS <= 0:
		return &pendulum.ParameterError{Field: "fps", Value: float64(c.FPS), Reason: "must be > 0"}
	case c.FrameCount() < 1:
		return &pendulum.ParameterError{Field: "t_end", Value: c.TEnd, Reason: "shorter than one frame"}
	case c.Width <= 0:
		return &pendulum.ParameterError{Field: "width", Value: float64(c.Width), Reason: "must be > 0"}
	case c.Height <= 0:
		return &pendulum.ParameterError{Field: "height", Value: float64(c.Height), Reason: "must be > 0"}
	case math.IsNaN(c.Step) || math.IsInf(c.Step, 0) || c.Step < 0:
		return &pendulum.ParameterError{Field: "step", Value: c.Step, Reason: "must be a finite value >= 0"}
	case c.Quality < 0:
		return &pendulum.ParameterError{Field: "quality", Value: float64(c.Quality), Reason: "must be >= 0"}
	}

	// yuv420p needs even dimensions
	if !strings.EqualFold(filepath.Ext(c.OutputPath), ".gif") && (c.Width%2 != 0 || c.Height%2 != 0) {
		return fmt.Errorf("%w: frame size %dx%d must be even for video output", pendulum.ErrInvalidParameter, c.Width, c.Height)
	}

	if _, err := integrator.New(c.Method); err != nil {
		return err
	}
	if _, err := trajectory.ParsePolicy(c.Interpolation); err != nil {
		return err
	}

	if len(c.Pendulums) == 0 {
		return fmt.Errorf("%w: at least one pendulum is required (--pend1)", pendulum.ErrInvalidParameter)
	}
	if len(c.Pendulums) > 2 {
		return fmt.Errorf("%w: at most two pendulums can be compared, got %d", pendulum.ErrInvalidParameter, len(c.Pendulums))
	}
	for i, p := range c.Pendulums {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pendulum %d: %w", i+1, err)
		}
	}
	return nil
}

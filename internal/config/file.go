package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/pendulum-video/internal/pendulum"
)

// iniFile mirrors the INI layout:
//
//	[render]
//	output = swing.mp4
//	t-end = 15
//	fps = 30
//
//	[pendulum "1"]
//	length = 0.25
//	initial-angle = -0.785
type iniFile struct {
	Render   iniRender
	Pendulum map[string]*pendulum.Params
}

type iniRender struct {
	Output        string
	TStart        float64 `gcfg:"t-start"`
	TEnd          float64 `gcfg:"t-end"`
	FPS           int
	Width         int
	Height        int
	Step          float64
	Method        string
	Interpolation string
	Description   string
	Encoder       string
	Quality       int
	Stats         bool
	Stamp         bool
	Quiet         bool
}

// Load reads a YAML (.yaml, .yml) or INI (.ini, .gcfg, .conf) file on top of
// base. Keys absent from the file keep their value in base; a pendulum list in
// the file replaces the one in base.
func Load(path string, base Config) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path, base)
	case ".ini", ".gcfg", ".conf":
		return loadINI(path, base)
	default:
		return base, fmt.Errorf("%w: config %s: unsupported format (want .yaml, .yml, .ini, .gcfg or .conf)", pendulum.ErrInvalidParameter, path)
	}
}

func loadYAML(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("%w: config: %v", pendulum.ErrInvalidParameter, err)
	}

	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("%w: config %s: %v", pendulum.ErrInvalidParameter, path, err)
	}
	return cfg, nil
}

func loadINI(path string, base Config) (Config, error) {
	file := iniFile{Render: iniRender{
		Output:        base.OutputPath,
		TStart:        base.TStart,
		TEnd:          base.TEnd,
		FPS:           base.FPS,
		Width:         base.Width,
		Height:        base.Height,
		Step:          base.Step,
		Method:        base.Method,
		Interpolation: base.Interpolation,
		Description:   base.Description,
		Encoder:       base.VideoEncoder,
		Quality:       base.Quality,
		Stats:         base.ShowStats,
		Stamp:         base.Stamp,
		Quiet:         base.Quiet,
	}}
	if err := gcfg.ReadFileInto(&file, path); err != nil {
		return base, fmt.Errorf("%w: config %s: %v", pendulum.ErrInvalidParameter, path, err)
	}

	r := file.Render
	cfg := base
	cfg.OutputPath = r.Output
	cfg.TStart = r.TStart
	cfg.TEnd = r.TEnd
	cfg.FPS = r.FPS
	cfg.Width = r.Width
	cfg.Height = r.Height
	cfg.Step = r.Step
	cfg.Method = r.Method
	cfg.Interpolation = r.Interpolation
	cfg.Description = r.Description
	cfg.VideoEncoder = r.Encoder
	cfg.Quality = r.Quality
	cfg.ShowStats = r.Stats
	cfg.Stamp = r.Stamp
	cfg.Quiet = r.Quiet

	// sections are ordered by name: [pendulum "1"] before [pendulum "2"]
	if len(file.Pendulum) > 0 {
		cfg.Pendulums = nil
		for _, name := range slices.Sorted(maps.Keys(file.Pendulum)) {
			cfg.Pendulums = append(cfg.Pendulums, *file.Pendulum[name])
		}
	}
	return cfg, nil
}

// Save writes cfg as YAML so a command line run can be replayed with -config.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

package engine

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/pendulum-video/internal/config"
	"github.com/ivlev/pendulum-video/internal/integrator"
	"github.com/ivlev/pendulum-video/internal/pendulum"
	"github.com/ivlev/pendulum-video/internal/raster"
	"github.com/ivlev/pendulum-video/internal/scene"
	"github.com/ivlev/pendulum-video/internal/system"
	"github.com/ivlev/pendulum-video/internal/trajectory"
	"github.com/ivlev/pendulum-video/internal/video"
)

// Project runs one simulation and renders it to Config.OutputPath.
type Project struct {
	Config  *config.Config
	Encoder video.Encoder
	Out     io.Writer // progress and reports, os.Stdout when nil
}

// Result summarizes a finished run.
type Result struct {
	Frames       int
	Step         float64
	Drift        []float64 // relative energy drift per pendulum
	Total        time.Duration
	Simulation   time.Duration
	Rendering    time.Duration
	FramesPerSec float64
	Buffers      int64 // frame buffers allocated by the raster pool
}

func NewProject(cfg *config.Config, enc video.Encoder) *Project {
	return &Project{
		Config:  cfg,
		Encoder: enc,
	}
}

func (p *Project) printf(format string, args ...any) {
	if p.Config.Quiet {
		return
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

// Run validates the configuration, integrates every pendulum, then streams
// the composed frames into the encoder. Nothing is written to disk when the
// configuration or the integration fails.
func (p *Project) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	cfg := p.Config

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stepper, err := integrator.New(cfg.Method)
	if err != nil {
		return nil, err
	}
	policy, err := trajectory.ParsePolicy(cfg.Interpolation)
	if err != nil {
		return nil, err
	}

	h := cfg.InternalStep()
	if def := integrator.DefaultStep(cfg.FPS); h > def {
		log.Printf("[!] Step %g s is coarser than the default %g s; expect visible energy drift", h, def)
	}

	models := make([]*pendulum.Model, len(cfg.Pendulums))
	for i, params := range cfg.Pendulums {
		m, err := pendulum.NewModel(params)
		if err != nil {
			return nil, fmt.Errorf("pendulum %d: %w", i+1, err)
		}
		models[i] = m
	}

	p.printf("--- [PENDULUM VIDEO] ---\n")
	p.printf("[*] Output: %s | Pendulums: %d\n", cfg.OutputPath, len(models))
	p.printf("[*] Resolution: %dx%d @ %d FPS | Span: %.2f-%.2fs | %s, h = %g s\n",
		cfg.Width, cfg.Height, cfg.FPS, cfg.TStart, cfg.TEnd, stepper.Name(), h)
	p.printf("-----------------------------\n")

	simStart := time.Now()
	trajectories, err := simulate(ctx, models, stepper, cfg.TStart, cfg.TEnd, h)
	if err != nil {
		return nil, err
	}
	simTime := time.Since(simStart)

	sources := make([]scene.Source, len(models))
	drift := make([]float64, len(models))
	for i, m := range models {
		sources[i] = scene.Source{Params: m.Params(), Trajectory: trajectories[i]}
		drift[i] = trajectories[i].EnergyDrift(m)
	}

	layout := scene.Layout{Width: cfg.Width, Height: cfg.Height, Title: cfg.Description}
	if cfg.Stamp {
		layout.Stamp, err = stamp(cfg)
		if err != nil {
			return nil, err
		}
	}

	composer, err := scene.NewComposer(layout, scene.Timing{
		Start:  cfg.TStart,
		End:    cfg.TEnd,
		FPS:    cfg.FPS,
		Policy: policy,
	}, sources)
	if err != nil {
		return nil, err
	}

	count := composer.FrameCount()
	every := max(count/10, 1)
	progress := func(done int) {
		if done%every == 0 || done == count {
			p.printf("[>] Rendered: %d/%d\n", done, count)
		}
	}

	renderStart := time.Now()
	pool := system.NewImagePool()
	r := raster.New(cfg.Width, cfg.Height, pool)
	n, err := video.Render(ctx, composer.Frames(), r, p.Encoder, video.StreamParams{
		Path:    cfg.OutputPath,
		Width:   cfg.Width,
		Height:  cfg.Height,
		FPS:     cfg.FPS,
		Codec:   cfg.VideoEncoder,
		Quality: cfg.Quality,
	}, progress)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Frames:     n,
		Step:       h,
		Drift:      drift,
		Total:      time.Since(startTime),
		Simulation: simTime,
		Rendering:  time.Since(renderStart),
		Buffers:    pool.Allocated(),
	}
	res.FramesPerSec = float64(n) / res.Total.Seconds()

	if cfg.ShowStats {
		p.report(res)
	}
	return res, nil
}

// simulate integrates each pendulum on its own goroutine. Each goroutine
// writes only its own slot.
func simulate(ctx context.Context, models []*pendulum.Model, s integrator.Stepper, t0, tEnd, h float64) ([]*trajectory.Trajectory, error) {
	out := make([]*trajectory.Trajectory, len(models))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range models {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tr, err := trajectory.Build(m, s, t0, tEnd, h)
			if err != nil {
				return fmt.Errorf("pendulum %d: %w", i+1, err)
			}
			out[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// stamp encodes the run parameters as a QR code so a clip can be traced
// back to the command that produced it.
func stamp(cfg *config.Config) (image.Image, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "pendulum-video t=%g..%g fps=%d method=%s", cfg.TStart, cfg.TEnd, cfg.FPS, cfg.Method)
	for i, params := range cfg.Pendulums {
		fmt.Fprintf(&b, " pend%d=%s", i+1, config.FormatTuple(params, config.DefaultTupleOrder))
	}

	size := min(cfg.Width, cfg.Height) / 5
	if size < 64 {
		log.Printf("[!] Frame too small for a readable stamp, skipping")
		return nil, nil
	}
	q, err := qrcode.New(b.String(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("stamp: %w", err)
	}
	return q.Image(size), nil
}

func (p *Project) report(res *Result) {
	cfg := p.Config

	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Total Time: %.2fs\n", res.Total.Seconds())
	fmt.Fprintf(&b, "Simulation: %.2fs\n", res.Simulation.Seconds())
	fmt.Fprintf(&b, "Rendering + Encoding: %.2fs\n", res.Rendering.Seconds())
	fmt.Fprintf(&b, "Effective FPS: %.2f\n", res.FramesPerSec)
	fmt.Fprintf(&b, "Frame buffers: %d for %d frames\n", res.Buffers, res.Frames)
	for i, d := range res.Drift {
		fmt.Fprintf(&b, "Energy drift #%d: %.3e\n", i+1, d)
	}
	if mem, err := system.ResourceReport(); err == nil {
		fmt.Fprintf(&b, "Memory: %s\n", mem)
	} else {
		log.Printf("[!] Memory report unavailable: %v", err)
	}
	b.WriteString("----------------------------\n")
	p.printf("%s", b.String())

	entry := fmt.Sprintf("[%s] Output: %s | Pendulums: %d | Frames: %d | Total: %.2fs | Sim: %.2fs | Render: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		filepath.Base(cfg.OutputPath),
		len(res.Drift),
		res.Frames,
		res.Total.Seconds(),
		res.Simulation.Seconds(),
		res.Rendering.Seconds(),
		res.FramesPerSec,
	)
	logPath := filepath.Join(filepath.Dir(cfg.OutputPath), "benchmark.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[!] Could not write %s: %v", logPath, err)
		return
	}
	defer f.Close()
	f.WriteString(entry)
}

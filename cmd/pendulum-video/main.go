package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ivlev/pendulum-video/internal/config"
	"github.com/ivlev/pendulum-video/internal/engine"
	"github.com/ivlev/pendulum-video/internal/pendulum"
	"github.com/ivlev/pendulum-video/internal/system"
	"github.com/ivlev/pendulum-video/internal/video"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	args = config.ExpandTupleArgs(args, len(config.DefaultTupleOrder), "pend1", "pend2")

	fs := flag.NewFlagSet("pendulum-video", flag.ContinueOnError)
	fs.SetOutput(stderr)

	def := config.Default()
	pathPtr := fs.String("path", "", "Output video path (.mp4, .mov, .mkv via ffmpeg; .gif in-process)")
	fs.String("pend1", "", "First pendulum: 8 values in -pend-order, e.g. 0.25 0.075 0.03 0.4 9.81 5.0 -0.785 0.0")
	fs.String("pend2", "", "Second pendulum, same schema; renders side by side")
	orderPtr := fs.String("pend-order", strings.Join(config.DefaultTupleOrder, ","), "Field order of the -pend1/-pend2 values")
	tStartPtr := fs.Float64("t_start", def.TStart, "Simulation start time (s)")
	tEndPtr := fs.Float64("t_end", def.TEnd, "Simulation end time (s)")
	fpsPtr := fs.Int("fps", def.FPS, "Frames per second")
	widthPtr := fs.Int("width", def.Width, "Width")
	heightPtr := fs.Int("height", def.Height, "Height")
	stepPtr := fs.Float64("step", 0, "Integration step (s), 0 = 1/(50*fps)")
	methodPtr := fs.String("method", def.Method, "Integrator: rk4, leapfrog")
	interpPtr := fs.String("interp", def.Interpolation, "Frame resampling: linear, hold")
	descPtr := fs.String("desc", def.Description, "Title drawn on each frame")
	encoderPtr := fs.String("encoder", "", "ffmpeg video encoder (empty = detect)")
	qualityPtr := fs.Int("quality", 0, "Video quality (0 = auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100kbit/s)")
	statsPtr := fs.Bool("stats", false, "Print a performance report and append it to benchmark.log next to the output")
	stampPtr := fs.Bool("stamp", false, "Draw a QR code with the run parameters")
	quietPtr := fs.Bool("quiet", false, "Suppress progress and summary output (warnings and errors still go to stderr)")
	configPtr := fs.String("config", "", "Run file (.yaml, .yml, .ini, .gcfg, .conf); flags override it")
	savePtr := fs.String("save-config", "", "Write the effective configuration as YAML and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		return fail(stderr, "usage", fmt.Errorf("%w: unexpected arguments %q", pendulum.ErrInvalidParameter, fs.Args()))
	}

	cfg := def
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr, cfg)
		if err != nil {
			return fail(stderr, "config", err)
		}
		cfg = loaded
	}

	order, err := config.ParseOrder(*orderPtr)
	if err != nil {
		return fail(stderr, "usage", err)
	}

	// explicit flags win over the run file
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.OutputPath = *pathPtr
		case "t_start":
			cfg.TStart = *tStartPtr
		case "t_end":
			cfg.TEnd = *tEndPtr
		case "fps":
			cfg.FPS = *fpsPtr
		case "width":
			cfg.Width = *widthPtr
		case "height":
			cfg.Height = *heightPtr
		case "step":
			cfg.Step = *stepPtr
		case "method":
			cfg.Method = *methodPtr
		case "interp":
			cfg.Interpolation = *interpPtr
		case "desc":
			cfg.Description = *descPtr
		case "encoder":
			cfg.VideoEncoder = *encoderPtr
		case "quality":
			cfg.Quality = *qualityPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		case "stamp":
			cfg.Stamp = *stampPtr
		case "quiet":
			cfg.Quiet = *quietPtr
		case "pend1", "pend2":
			slot := 0
			if f.Name == "pend2" {
				slot = 1
			}
			// Visit is lexical, so -pend1 has been applied already
			if slot == 1 && len(cfg.Pendulums) == 0 {
				flagErr = errors.Join(flagErr, fmt.Errorf("%w: -pend2 needs -pend1", pendulum.ErrInvalidParameter))
				return
			}
			p, err := config.ParseTuple(f.Value.String(), order)
			if err != nil {
				flagErr = errors.Join(flagErr, fmt.Errorf("-%s: %w", f.Name, err))
				return
			}
			for len(cfg.Pendulums) <= slot {
				cfg.Pendulums = append(cfg.Pendulums, pendulum.Params{})
			}
			cfg.Pendulums[slot] = p
		}
	})
	if flagErr != nil {
		return fail(stderr, "usage", flagErr)
	}

	if *savePtr != "" {
		if err := config.Save(cfg, *savePtr); err != nil {
			return fail(stderr, "config", err)
		}
		fmt.Fprintf(stdout, "[+++] Configuration saved: %s\n", *savePtr)
		return 0
	}

	// Validate before probing ffmpeg so bad input fails fast.
	if err := cfg.Validate(); err != nil {
		return fail(stderr, "parameters", err)
	}

	encoder := video.NewEncoder(cfg.OutputPath)
	if _, ok := encoder.(*video.FFmpegEncoder); ok {
		if cfg.VideoEncoder == "" {
			cfg.VideoEncoder = system.GetBestH264Encoder()
			if cfg.VideoEncoder != "libx264" && !cfg.Quiet {
				fmt.Fprintf(stdout, "[*] Hardware acceleration detected: %s\n", cfg.VideoEncoder)
			}
		}
		if cfg.Quality == 0 {
			cfg.Quality = video.DefaultQuality(cfg.VideoEncoder)
		}
	}

	project := engine.NewProject(&cfg, encoder)
	project.Out = stdout
	res, err := project.Run(ctx)
	if err != nil {
		return fail(stderr, stage(err), err)
	}

	if cfg.Quiet {
		return 0
	}
	abs, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		abs = cfg.OutputPath
	}
	fmt.Fprintf(stdout, "[+++] Saved %s at %d fps (%d frames, %.2f s)\n", abs, cfg.FPS, res.Frames, cfg.Duration())
	return 0
}

// stage names the part of the pipeline an error came from.
func stage(err error) string {
	switch {
	case errors.Is(err, pendulum.ErrInvalidParameter):
		return "parameters"
	case errors.Is(err, pendulum.ErrNumericalInstability):
		return "simulation"
	case errors.Is(err, video.ErrRenderIO):
		return "output"
	case errors.Is(err, video.ErrEncoding):
		return "encoding"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	}
	return "run"
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, pendulum.ErrInvalidParameter):
		return 2
	case errors.Is(err, pendulum.ErrNumericalInstability):
		return 3
	case errors.Is(err, video.ErrRenderIO):
		return 4
	case errors.Is(err, video.ErrEncoding):
		return 5
	}
	return 1
}

func fail(stderr io.Writer, stage string, err error) int {
	fmt.Fprintf(stderr, "[-] %s: %v\n", stage, err)
	return exitCode(err)
}

package scene

import (
	"fmt"
	"image"
	"image/color"
	"iter"
	"math"

	"github.com/ivlev/pendulum-video/internal/pendulum"
	"github.com/ivlev/pendulum-video/internal/trajectory"
)

// Palette used for every frame.
var (
	Background = color.RGBA{0x02, 0x13, 0x3e, 0xff}
	PanelColor = color.RGBA{0x18, 0x2a, 0x69, 0xff}
	RodColor   = color.RGBA{0xe0, 0x30, 0x30, 0xff}
	BobColor   = color.RGBA{0x30, 0x70, 0xe0, 0xff}
	PivotColor = color.RGBA{0x10, 0x10, 0x10, 0xff}
	TextColor  = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

const (
	headerHeight = 40
	lineHeight   = 16
	legendRows   = 4
	fill         = 0.45 // share of min(panel width, plot height) covered by one extent
)

// Layout describes the output raster and its decorations.
type Layout struct {
	Width, Height int
	Title         string
	Stamp         image.Image // optional, drawn bottom-right
}

// Timing maps frame indices to simulation time.
type Timing struct {
	Start, End float64
	FPS        int
	Policy     trajectory.Policy
}

// FrameCount returns round(fps * (end - start)).
func (t Timing) FrameCount() int {
	return int(math.Round(float64(t.FPS) * (t.End - t.Start)))
}

// Source is one simulated pendulum to show.
type Source struct {
	Params     pendulum.Params
	Trajectory *trajectory.Trajectory
}

// Geometry is the resolved position of one pendulum in a frame.
type Geometry struct {
	Pivot, Bob      Point
	Angle           float64
	AngularVelocity float64
	Scale           float64 // pixels per metre, shared by all panels
	RodPixels       float64
	Panel           image.Rectangle
}

// Frame is the drawing for one output frame.
type Frame struct {
	Index    int
	Time     float64
	Geometry []Geometry
	Commands []Command
}

type panel struct {
	src    Source
	bounds image.Rectangle
	pivot  Point
}

// Composer turns trajectories into per-frame drawings. It holds no mutable
// state after construction, so frames can be requested in any order and
// requesting the same frame twice gives the same result.
type Composer struct {
	layout Layout
	timing Timing
	panels []panel
	scale  float64
	count  int
	footer int
	static []Command
}

// NewComposer lays out one or two sources side by side with a common scale
// derived from the largest pendulum.
func NewComposer(layout Layout, timing Timing, sources []Source) (*Composer, error) {
	if len(sources) < 1 || len(sources) > 2 {
		return nil, fmt.Errorf("%w: expected 1 or 2 pendulums, got %d", pendulum.ErrInvalidParameter, len(sources))
	}
	if layout.Width <= 0 || layout.Height <= headerHeight {
		return nil, fmt.Errorf("%w: frame size %dx%d too small", pendulum.ErrInvalidParameter, layout.Width, layout.Height)
	}
	if timing.FPS <= 0 {
		return nil, &pendulum.ParameterError{Field: "fps", Value: float64(timing.FPS), Reason: "must be > 0"}
	}
	if timing.FrameCount() < 1 {
		return nil, &pendulum.ParameterError{Field: "t_end", Value: timing.End, Reason: "shorter than one frame"}
	}
	for i, s := range sources {
		if s.Trajectory == nil {
			return nil, fmt.Errorf("pendulum %d has no trajectory", i+1)
		}
		if err := s.Params.Validate(); err != nil {
			return nil, fmt.Errorf("pendulum %d: %w", i+1, err)
		}
	}

	c := &Composer{layout: layout, timing: timing, count: timing.FrameCount()}
	c.arrange(sources)
	c.static = c.decorations()
	return c, nil
}

func (c *Composer) arrange(sources []Source) {
	n := len(sources)
	footer := legendRows*lineHeight + 16
	plotH := c.layout.Height - headerHeight - footer
	if plotH < c.layout.Height/2 {
		footer = 0
		plotH = c.layout.Height - headerHeight
	}
	c.footer = footer
	panelW := c.layout.Width / n

	extent := 0.0
	for _, s := range sources {
		p := s.Params
		extent = math.Max(extent, p.Length+p.BobRadius+math.Abs(p.PivotOffset))
	}
	c.scale = float64(min(panelW, plotH)) * fill / extent

	c.panels = make([]panel, n)
	for i, s := range sources {
		b := image.Rect(i*panelW, 0, (i+1)*panelW, c.layout.Height)
		cx := float64(b.Min.X) + float64(panelW)/2
		cy := float64(headerHeight) + float64(plotH)/2
		c.panels[i] = panel{
			src:    s,
			bounds: b,
			pivot:  Point{X: cx, Y: cy - s.Params.PivotOffset*c.scale},
		}
	}
}

// Scale returns the shared pixels-per-metre factor.
func (c *Composer) Scale() float64 { return c.scale }

// FrameCount returns the number of frames Frames yields.
func (c *Composer) FrameCount() int { return c.count }

// TimeAt returns the simulation time of frame i.
func (c *Composer) TimeAt(i int) float64 {
	return c.timing.Start + float64(i)/float64(c.timing.FPS)
}

// Frames yields every frame in increasing time order. Each call starts over
// from frame zero; frames are built on demand and never retained.
func (c *Composer) Frames() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for i := 0; i < c.count; i++ {
			if !yield(c.FrameAt(i)) {
				return
			}
		}
	}
}

// FrameAt composes frame i.
func (c *Composer) FrameAt(i int) Frame {
	t := c.TimeAt(i)
	f := Frame{
		Index:    i,
		Time:     t,
		Geometry: make([]Geometry, len(c.panels)),
	}

	cmds := make([]Command, 0, len(c.static)+4*len(c.panels)+2)
	cmds = append(cmds, c.static...)
	cmds = append(cmds, Text{
		At:    Point{X: float64(c.layout.Width) - 110, Y: 24},
		Text:  fmt.Sprintf("t = %6.2f s", t),
		Color: TextColor,
	})

	for k, p := range c.panels {
		g := c.geometry(p, t)
		f.Geometry[k] = g

		prm := p.src.Params
		cmds = append(cmds,
			Line{From: g.Pivot, To: g.Bob, Width: math.Max(prm.RodWidth*c.scale, 1), Color: RodColor},
			Circle{Center: g.Pivot, Radius: math.Max(prm.RodWidth*c.scale, 3), Color: PivotColor},
			Circle{Center: g.Bob, Radius: math.Max(prm.BobRadius*c.scale, 2), Color: BobColor},
		)
	}

	if c.layout.Stamp != nil {
		b := c.layout.Stamp.Bounds()
		cmds = append(cmds, Stamp{
			At:    image.Pt(c.layout.Width-b.Dx()-8, c.layout.Height-b.Dy()-8),
			Image: c.layout.Stamp,
		})
	}

	f.Commands = cmds
	return f
}

func (c *Composer) geometry(p panel, t float64) Geometry {
	s := p.src.Trajectory.At(t, c.timing.Policy)
	// screen y points down, so the downward hanging bob has +y
	dx, dy := s.BobOffset(p.src.Params.Length)
	bob := Point{X: p.pivot.X + dx*c.scale, Y: p.pivot.Y - dy*c.scale}
	return Geometry{
		Pivot:           p.pivot,
		Bob:             bob,
		Angle:           s.Angle,
		AngularVelocity: s.AngularVelocity,
		Scale:           c.scale,
		RodPixels:       math.Hypot(bob.X-p.pivot.X, bob.Y-p.pivot.Y),
		Panel:           p.bounds,
	}
}

// decorations builds the commands shared by every frame: backgrounds,
// panel titles and parameter legends.
func (c *Composer) decorations() []Command {
	W, H := float64(c.layout.Width), float64(c.layout.Height)
	cmds := []Command{Rect{Max: Point{X: W, Y: H}, Color: Background}}

	for k, p := range c.panels {
		b := p.bounds
		title := c.layout.Title
		if len(c.panels) > 1 {
			title = fmt.Sprintf("%s - Pendulum %d", c.layout.Title, k+1)
		}
		mid := float64(b.Min.X+b.Max.X) / 2
		cmds = append(cmds, Text{At: Point{X: mid, Y: 24}, Text: title, Align: AlignCenter, Color: TextColor})

		if k > 0 {
			x := float64(b.Min.X)
			cmds = append(cmds, Line{From: Point{X: x, Y: headerHeight}, To: Point{X: x, Y: H}, Width: 2, Color: PanelColor})
		}

		if c.footer == 0 {
			continue
		}
		legendTop := H - float64(c.footer)
		cmds = append(cmds, Rect{
			Min:   Point{X: float64(b.Min.X) + 8, Y: legendTop},
			Max:   Point{X: float64(b.Max.X) - 8, Y: H - 4},
			Color: PanelColor,
		})
		colW := float64(b.Dx()-16) / 2
		for i, line := range legend(p.src.Params) {
			col, row := i/legendRows, i%legendRows
			cmds = append(cmds, Text{
				At:    Point{X: float64(b.Min.X) + 16 + float64(col)*colW, Y: legendTop + float64(row+1)*lineHeight},
				Text:  line,
				Color: TextColor,
			})
		}
	}
	return cmds
}

func legend(p pendulum.Params) []string {
	return []string{
		fmt.Sprintf("L: %.3f m", p.Length),
		fmt.Sprintf("r: %.3f m", p.BobRadius),
		fmt.Sprintf("w: %.3f m", p.RodWidth),
		fmt.Sprintf("d: %.3f m", p.PivotOffset),
		fmt.Sprintf("g: %.3f m/s^2", p.Gravity),
		fmt.Sprintf("phi0: %.3f rad", p.InitialAngle),
		fmt.Sprintf("omega0: %.3f rad/s", p.InitialAngularVelocity),
		fmt.Sprintf("c: %.3f 1/s", p.Damping),
	}
}

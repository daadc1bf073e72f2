package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ivlev/pendulum-video/internal/scene"
	"github.com/ivlev/pendulum-video/internal/system"
)

// kappa places cubic control points so four arcs approximate a circle.
const kappa = 0.5522847498

// Rasterizer paints scene commands into RGBA buffers of a fixed size.
// It is not safe for concurrent use.
type Rasterizer struct {
	bounds image.Rectangle
	z      *vector.Rasterizer
	face   font.Face
	pool   *system.ImagePool
}

func New(width, height int, pool *system.ImagePool) *Rasterizer {
	if pool == nil {
		pool = system.NewImagePool()
	}
	z := vector.NewRasterizer(1, 1)
	z.DrawOp = draw.Src
	return &Rasterizer{
		bounds: image.Rect(0, 0, width, height),
		z:      z,
		face:   basicfont.Face7x13,
		pool:   pool,
	}
}

// Bounds returns the output frame rectangle.
func (r *Rasterizer) Bounds() image.Rectangle { return r.bounds }

// Draw renders frame f. The caller hands the buffer back with Release once
// it has been consumed.
func (r *Rasterizer) Draw(f scene.Frame) *image.RGBA {
	dst := r.pool.Get(r.bounds.Size())

	for _, cmd := range f.Commands {
		switch c := cmd.(type) {
		case scene.Rect:
			rect := image.Rect(round(c.Min.X), round(c.Min.Y), round(c.Max.X), round(c.Max.Y))
			draw.Draw(dst, rect.Intersect(r.bounds), image.NewUniform(c.Color), image.Point{}, draw.Over)
		case scene.Line:
			r.line(dst, c)
		case scene.Circle:
			r.circle(dst, c)
		case scene.Text:
			r.text(dst, c)
		case scene.Stamp:
			b := c.Image.Bounds()
			draw.Draw(dst, image.Rectangle{Min: c.At, Max: c.At.Add(b.Size())}, c.Image, b.Min, draw.Over)
		}
	}
	return dst
}

// Release returns a buffer obtained from Draw.
func (r *Rasterizer) Release(img *image.RGBA) {
	r.pool.Put(img)
}

func (r *Rasterizer) line(dst *image.RGBA, l scene.Line) {
	dx, dy := l.To.X-l.From.X, l.To.Y-l.From.Y
	length := math.Hypot(dx, dy)
	if length == 0 || l.Width <= 0 {
		return
	}
	// unit normal scaled to half the width, plus a square cap along the axis
	hw := l.Width / 2
	nx, ny := -dy/length*hw, dx/length*hw
	ex, ey := dx/length*hw, dy/length*hw

	pts := [4]scene.Point{
		{X: l.From.X - ex + nx, Y: l.From.Y - ey + ny},
		{X: l.To.X + ex + nx, Y: l.To.Y + ey + ny},
		{X: l.To.X + ex - nx, Y: l.To.Y + ey - ny},
		{X: l.From.X - ex - nx, Y: l.From.Y - ey - ny},
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	box, ok := r.box(minX, minY, maxX, maxY)
	if !ok {
		return
	}

	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	r.z.Reset(box.Dx(), box.Dy())
	r.z.MoveTo(f32(pts[0].X-ox), f32(pts[0].Y-oy))
	for _, p := range pts[1:] {
		r.z.LineTo(f32(p.X-ox), f32(p.Y-oy))
	}
	r.z.ClosePath()
	r.fill(dst, box, l.Color)
}

func (r *Rasterizer) circle(dst *image.RGBA, c scene.Circle) {
	if c.Radius <= 0 {
		return
	}
	box, ok := r.box(c.Center.X-c.Radius, c.Center.Y-c.Radius, c.Center.X+c.Radius, c.Center.Y+c.Radius)
	if !ok {
		return
	}

	cx, cy := c.Center.X-float64(box.Min.X), c.Center.Y-float64(box.Min.Y)
	rad, k := c.Radius, c.Radius*kappa

	r.z.Reset(box.Dx(), box.Dy())
	r.z.MoveTo(f32(cx+rad), f32(cy))
	r.z.CubeTo(f32(cx+rad), f32(cy+k), f32(cx+k), f32(cy+rad), f32(cx), f32(cy+rad))
	r.z.CubeTo(f32(cx-k), f32(cy+rad), f32(cx-rad), f32(cy+k), f32(cx-rad), f32(cy))
	r.z.CubeTo(f32(cx-rad), f32(cy-k), f32(cx-k), f32(cy-rad), f32(cx), f32(cy-rad))
	r.z.CubeTo(f32(cx+k), f32(cy-rad), f32(cx+rad), f32(cy-k), f32(cx+rad), f32(cy))
	r.z.ClosePath()
	r.fill(dst, box, c.Color)
}

// fill rasterizes the current path into a box-sized coverage mask and
// composites it. DrawMask clips the box against the frame.
func (r *Rasterizer) fill(dst *image.RGBA, box image.Rectangle, c color.RGBA) {
	mask := image.NewAlpha(image.Rect(0, 0, box.Dx(), box.Dy()))
	r.z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(dst, box, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

func (r *Rasterizer) text(dst *image.RGBA, t scene.Text) {
	x := t.At.X
	if t.Align == scene.AlignCenter {
		x -= float64(font.MeasureString(r.face, t.Text).Round()) / 2
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(t.Color),
		Face: r.face,
		Dot:  fixed.P(round(x), round(t.At.Y)),
	}
	d.DrawString(t.Text)
}

// box returns the pixel-aligned bounding box of a shape. Shapes are
// rasterized in their own box so the accumulator stays small.
func (r *Rasterizer) box(minX, minY, maxX, maxY float64) (image.Rectangle, bool) {
	b := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
	if b.Empty() || b.Intersect(r.bounds).Empty() {
		return image.Rectangle{}, false
	}
	return b, true
}

func round(v float64) int { return int(math.Round(v)) }

func f32(v float64) float32 { return float32(v) }

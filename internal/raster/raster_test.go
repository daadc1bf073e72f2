package raster

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/pendulum-video/internal/integrator"
	"github.com/ivlev/pendulum-video/internal/pendulum"
	"github.com/ivlev/pendulum-video/internal/scene"
	"github.com/ivlev/pendulum-video/internal/system"
	"github.com/ivlev/pendulum-video/internal/trajectory"
)

func average(img image.Image, rect image.Rectangle) color.RGBA {
	rect = rect.Intersect(img.Bounds())
	var sr, sg, sb, sa, n uint64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			sr += uint64(c.R)
			sg += uint64(c.G)
			sb += uint64(c.B)
			sa += uint64(c.A)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}
	}
	return color.RGBA{uint8(sr / n), uint8(sg / n), uint8(sb / n), uint8(sa / n)}
}

// near allows for anti-aliasing round-off at full coverage.
func near(t *testing.T, want, got color.RGBA, msgAndArgs ...interface{}) {
	t.Helper()
	for _, d := range []int{int(want.R) - int(got.R), int(want.G) - int(got.G), int(want.B) - int(got.B), int(want.A) - int(got.A)} {
		if d < -2 || d > 2 {
			assert.Fail(t, fmt.Sprintf("colour mismatch: want %v got %v", want, got), msgAndArgs...)
			return
		}
	}
}

func around(p scene.Point, r int) image.Rectangle {
	x, y := int(p.X), int(p.Y)
	return image.Rect(x-r, y-r, x+r, y+r)
}

func TestDrawPrimitives(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	bg := color.RGBA{0, 0, 0, 255}

	r := New(200, 100, nil)
	img := r.Draw(scene.Frame{Commands: []scene.Command{
		scene.Rect{Max: scene.Point{X: 200, Y: 100}, Color: bg},
		scene.Line{From: scene.Point{X: 20, Y: 50}, To: scene.Point{X: 120, Y: 50}, Width: 6, Color: red},
		scene.Circle{Center: scene.Point{X: 160, Y: 50}, Radius: 20, Color: blue},
	}})
	defer r.Release(img)

	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())
	near(t, red, img.RGBAAt(70, 50))
	near(t, blue, img.RGBAAt(160, 50))
	assert.Equal(t, bg, img.RGBAAt(5, 5))
	assert.Equal(t, bg, img.RGBAAt(70, 60))
	assert.Equal(t, bg, img.RGBAAt(160, 80))
}

func TestShapesPartlyOffFrame(t *testing.T) {
	green := color.RGBA{0, 255, 0, 255}
	r := New(50, 50, nil)
	img := r.Draw(scene.Frame{Commands: []scene.Command{
		scene.Circle{Center: scene.Point{X: 0, Y: 0}, Radius: 20, Color: green},
		scene.Line{From: scene.Point{X: -30, Y: 40}, To: scene.Point{X: 30, Y: 40}, Width: 4, Color: green},
		scene.Circle{Center: scene.Point{X: 500, Y: 500}, Radius: 5, Color: green},
	}})
	defer r.Release(img)

	near(t, green, img.RGBAAt(3, 3))
	near(t, green, img.RGBAAt(10, 40))
	assert.Equal(t, uint8(0), img.RGBAAt(45, 45).A)
}

func TestPooledBuffersAreCleared(t *testing.T) {
	pool := system.NewImagePool()
	r := New(40, 40, pool)

	img := r.Draw(scene.Frame{Commands: []scene.Command{
		scene.Rect{Max: scene.Point{X: 40, Y: 40}, Color: color.RGBA{9, 9, 9, 255}},
	}})
	r.Release(img)

	img = r.Draw(scene.Frame{})
	defer r.Release(img)
	assert.Equal(t, color.RGBA{}, img.RGBAAt(20, 20))
	assert.LessOrEqual(t, pool.Allocated(), int64(2))
}

func TestStampAndText(t *testing.T) {
	stamp := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range stamp.Pix {
		stamp.Pix[i] = 255
	}

	r := New(100, 60, nil)
	img := r.Draw(scene.Frame{Commands: []scene.Command{
		scene.Rect{Max: scene.Point{X: 100, Y: 60}, Color: color.RGBA{0, 0, 0, 255}},
		scene.Stamp{At: image.Pt(80, 40), Image: stamp},
		scene.Text{At: scene.Point{X: 50, Y: 20}, Text: "HELLO", Align: scene.AlignCenter, Color: color.RGBA{255, 255, 255, 255}},
	}})
	defer r.Release(img)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(85, 45))
	assert.Greater(t, average(img, image.Rect(30, 8, 70, 22)).R, uint8(10))
	assert.Equal(t, uint8(0), average(img, image.Rect(0, 30, 20, 60)).R)
}

func TestDrawComposedFrame(t *testing.T) {
	p := pendulum.Params{Length: 0.25, BobRadius: 0.075, RodWidth: 0.03, PivotOffset: 0.4, Gravity: 9.81, InitialAngle: -0.785, InitialAngularVelocity: 5}
	m, err := pendulum.NewModel(p)
	require.NoError(t, err)
	tr, err := trajectory.Build(m, integrator.RK4{}, 0, 1, integrator.DefaultStep(10))
	require.NoError(t, err)

	c, err := scene.NewComposer(scene.Layout{Width: 320, Height: 240, Title: "raster"}, scene.Timing{End: 1, FPS: 10}, []scene.Source{{Params: p, Trajectory: tr}})
	require.NoError(t, err)

	r := New(320, 240, nil)
	for f := range c.Frames() {
		img := r.Draw(f)
		g := f.Geometry[0]
		near(t, scene.BobColor, average(img, around(g.Bob, 2)), "frame %d", f.Index)
		r.Release(img)
	}
}

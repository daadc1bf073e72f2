package scene

import (
	"image"
	"image/color"
)

// Point is a position in pixels, y pointing down.
type Point struct {
	X, Y float64
}

// Command is one drawing primitive. Frames carry an ordered list of them,
// painted back to front.
type Command interface {
	command()
}

// Rect fills an axis-aligned rectangle.
type Rect struct {
	Min, Max Point
	Color    color.RGBA
}

// Line strokes a segment with square ends.
type Line struct {
	From, To Point
	Width    float64
	Color    color.RGBA
}

// Circle fills a disc.
type Circle struct {
	Center Point
	Radius float64
	Color  color.RGBA
}

// Align controls horizontal text placement relative to Text.At.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Text draws a single line with its baseline at At.Y.
type Text struct {
	At    Point
	Text  string
	Align Align
	Color color.RGBA
}

// Stamp copies a prepared image with its top-left corner at At.
type Stamp struct {
	At    image.Point
	Image image.Image
}

func (Rect) command()   {}
func (Line) command()   {}
func (Circle) command() {}
func (Text) command()   {}
func (Stamp) command()  {}

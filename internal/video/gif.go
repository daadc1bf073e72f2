package video

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"log"
	"math"
	"os"
)

// gifMemoryWarn is the buffered pixel count above which a GIF stream warns
// that it is holding the whole clip in memory.
var gifMemoryWarn = 256 << 20

// GIFEncoder writes animated GIFs without external tools. GIF delays have
// 10 ms resolution, so the effective frame rate is rounded.
type GIFEncoder struct{}

func (e *GIFEncoder) Open(ctx context.Context, p StreamParams) (Stream, error) {
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 {
		return nil, fmt.Errorf("%w: invalid stream %dx%d @ %d fps", ErrEncoding, p.Width, p.Height, p.FPS)
	}
	tmp, err := prepareOutput(p.Path)
	if err != nil {
		return nil, err
	}
	delay := int(math.Round(100 / float64(p.FPS)))
	if delay < 1 {
		delay = 1
	}
	return &gifStream{ctx: ctx, params: p, tmp: tmp, delay: delay}, nil
}

type gifStream struct {
	ctx    context.Context
	params StreamParams
	tmp    string
	delay  int
	anim   gif.GIF
	pixels int
	warned bool
	done   bool
}

func (s *gifStream) WriteFrame(img *image.RGBA) error {
	if s.done {
		return fmt.Errorf("%w: stream already closed", ErrEncoding)
	}
	if err := checkSize(img, s.params); err != nil {
		return err
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}

	pal := image.NewPaletted(image.Rect(0, 0, s.params.Width, s.params.Height), palette.Plan9)
	draw.Draw(pal, pal.Bounds(), img, img.Bounds().Min, draw.Src)
	s.anim.Image = append(s.anim.Image, pal)
	s.anim.Delay = append(s.anim.Delay, s.delay)

	s.pixels += len(pal.Pix)
	if !s.warned && s.pixels > gifMemoryWarn {
		s.warned = true
		log.Printf("[!] GIF output holds %d frames (%d MiB) in memory until the end; use .mp4 for long clips",
			len(s.anim.Image), s.pixels>>20)
	}
	return nil
}

func (s *gifStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true

	f, err := os.Create(s.tmp)
	if err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("%w: %v", ErrRenderIO, err)
	}
	if err := gif.EncodeAll(f, &s.anim); err != nil {
		f.Close()
		os.Remove(s.tmp)
		return fmt.Errorf("%w: gif: %v", ErrEncoding, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("%w: %v", ErrRenderIO, err)
	}
	return finalize(s.tmp, s.params.Path)
}

func (s *gifStream) Abort() {
	if s.done {
		return
	}
	s.done = true
	s.anim = gif.GIF{}
	os.Remove(s.tmp)
}

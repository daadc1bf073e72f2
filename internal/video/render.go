package video

import (
	"context"
	"fmt"
	"iter"

	"github.com/ivlev/pendulum-video/internal/raster"
	"github.com/ivlev/pendulum-video/internal/scene"
)

// Render rasterizes frames in order and feeds them to a stream opened on
// enc. Any failure aborts the stream so no truncated file is left behind.
// progress, if set, is called after each encoded frame with the running count.
func Render(ctx context.Context, frames iter.Seq[scene.Frame], r *raster.Rasterizer, enc Encoder, p StreamParams, progress func(done int)) (int, error) {
	if b := r.Bounds(); b.Dx() != p.Width || b.Dy() != p.Height {
		return 0, fmt.Errorf("%w: rasterizer is %dx%d, stream expects %dx%d", ErrEncoding, b.Dx(), b.Dy(), p.Width, p.Height)
	}

	stream, err := enc.Open(ctx, p)
	if err != nil {
		return 0, err
	}

	n := 0
	for f := range frames {
		if err := ctx.Err(); err != nil {
			stream.Abort()
			return n, err
		}
		if f.Index != n {
			stream.Abort()
			return n, fmt.Errorf("%w: frame %d arrived at position %d", ErrEncoding, f.Index, n)
		}

		img := r.Draw(f)
		err := stream.WriteFrame(img)
		r.Release(img)
		if err != nil {
			stream.Abort()
			return n, fmt.Errorf("frame %d: %w", f.Index, err)
		}

		n++
		if progress != nil {
			progress(n)
		}
	}

	if err := stream.Close(); err != nil {
		return n, err
	}
	return n, nil
}

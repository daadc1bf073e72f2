package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrRenderIO marks failures to create, write or finalize the output file.
	ErrRenderIO = errors.New("render io error")

	// ErrEncoding marks frames or streams the encoder rejected.
	ErrEncoding = errors.New("encoding error")
)

// StreamParams describes the video being written.
type StreamParams struct {
	Path          string
	Width, Height int
	FPS           int
	Codec         string // ffmpeg encoder name, ignored by the GIF encoder
	Quality       int
}

// Stream accepts frames in order. Close finalizes the file at Path; Abort
// discards everything written so far. After either, the stream is unusable.
type Stream interface {
	WriteFrame(img *image.RGBA) error
	Close() error
	Abort()
}

// Encoder opens output streams.
type Encoder interface {
	Open(ctx context.Context, p StreamParams) (Stream, error)
}

// NewEncoder picks an encoder from the output extension: .gif is written
// in-process, everything else goes through ffmpeg.
func NewEncoder(path string) Encoder {
	if strings.EqualFold(filepath.Ext(path), ".gif") {
		return &GIFEncoder{}
	}
	return &FFmpegEncoder{}
}

// partialPath is the hidden sibling the stream writes to until Close.
// The extension is kept so muxers can still infer the container.
func partialPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

// prepareOutput creates the output directory and checks the partial file
// can be created there.
func prepareOutput(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty output path", ErrRenderIO)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("%w: create output directory: %v", ErrRenderIO, err)
		}
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrRenderIO, path)
	}

	tmp := partialPath(path)
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("%w: open output: %v", ErrRenderIO, err)
	}
	f.Close()
	return tmp, nil
}

// finalize moves a completed partial file into place.
func finalize(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: finalize %s: %v", ErrRenderIO, path, err)
	}
	return nil
}

func checkSize(img *image.RGBA, p StreamParams) error {
	if img.Bounds().Dx() != p.Width || img.Bounds().Dy() != p.Height {
		return fmt.Errorf("%w: frame is %dx%d, stream expects %dx%d",
			ErrEncoding, img.Bounds().Dx(), img.Bounds().Dy(), p.Width, p.Height)
	}
	return nil
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	// sub-images and foreign types are repacked into a tight buffer
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

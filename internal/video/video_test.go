package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/gif"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/pendulum-video/internal/integrator"
	"github.com/ivlev/pendulum-video/internal/pendulum"
	"github.com/ivlev/pendulum-video/internal/raster"
	"github.com/ivlev/pendulum-video/internal/scene"
	"github.com/ivlev/pendulum-video/internal/trajectory"
)

func composer(t *testing.T, w, h int, tEnd float64, fps int) *scene.Composer {
	t.Helper()
	p := pendulum.Params{Length: 0.25, BobRadius: 0.075, RodWidth: 0.03, PivotOffset: 0.4, Gravity: 9.81, InitialAngle: -0.785, InitialAngularVelocity: 5}
	m, err := pendulum.NewModel(p)
	require.NoError(t, err)
	tr, err := trajectory.Build(m, integrator.RK4{}, 0, tEnd, integrator.DefaultStep(fps))
	require.NoError(t, err)
	c, err := scene.NewComposer(scene.Layout{Width: w, Height: h, Title: "video"}, scene.Timing{End: tEnd, FPS: fps}, []scene.Source{{Params: p, Trajectory: tr}})
	require.NoError(t, err)
	return c
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPartialPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", ".clip.partial.mp4"), partialPath(filepath.Join("out", "clip.mp4")))
	assert.Equal(t, ".clip.partial.gif", partialPath("clip.gif"))
}

func TestNewEncoder(t *testing.T) {
	assert.IsType(t, &GIFEncoder{}, NewEncoder("a/b.GIF"))
	assert.IsType(t, &FFmpegEncoder{}, NewEncoder("a/b.mp4"))
	assert.IsType(t, &FFmpegEncoder{}, NewEncoder("noext"))
}

func TestRenderGIF(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "swing.gif")
	c := composer(t, 160, 120, 1.5, 20)

	var seen []int
	n, err := Render(context.Background(), c.Frames(), raster.New(160, 120, nil), &GIFEncoder{},
		StreamParams{Path: out, Width: 160, Height: 120, FPS: 20},
		func(done int) { seen = append(seen, done) })
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Len(t, seen, 30)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 30)
	assert.Equal(t, 5, anim.Delay[0])
	assert.Equal(t, image.Rect(0, 0, 160, 120), anim.Image[0].Bounds())

	assert.Equal(t, []string{"swing.gif"}, dirEntries(t, filepath.Join(dir, "nested")))
}

func TestGIFWarnsOnLargeClips(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)
	old := gifMemoryWarn
	gifMemoryWarn = 3 * 16 * 16
	defer func() { gifMemoryWarn = old }()

	s, err := (&GIFEncoder{}).Open(context.Background(), StreamParams{Path: filepath.Join(t.TempDir(), "a.gif"), Width: 16, Height: 16, FPS: 10})
	require.NoError(t, err)
	defer s.Abort()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))))
	}
	assert.Empty(t, logs.String())

	require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))))
	require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))))
	assert.Equal(t, 1, strings.Count(logs.String(), "[!] GIF output holds 4 frames"))
}

func TestRenderOutputNotWritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	c := composer(t, 160, 120, 0.5, 10)
	_, err := Render(context.Background(), c.Frames(), raster.New(160, 120, nil), &GIFEncoder{},
		StreamParams{Path: filepath.Join(blocker, "out.gif"), Width: 160, Height: 120, FPS: 10}, nil)
	assert.True(t, errors.Is(err, ErrRenderIO), "%v", err)

	_, err = Render(context.Background(), c.Frames(), raster.New(160, 120, nil), &GIFEncoder{},
		StreamParams{Path: dir, Width: 160, Height: 120, FPS: 10}, nil)
	assert.True(t, errors.Is(err, ErrRenderIO), "%v", err)
}

func TestRenderSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	c := composer(t, 160, 120, 0.5, 10)

	_, err := Render(context.Background(), c.Frames(), raster.New(160, 120, nil), &GIFEncoder{},
		StreamParams{Path: filepath.Join(dir, "a.gif"), Width: 200, Height: 120, FPS: 10}, nil)
	assert.True(t, errors.Is(err, ErrEncoding))
	assert.Empty(t, dirEntries(t, dir))
}

func TestStreamRejectsWrongFrame(t *testing.T) {
	dir := t.TempDir()
	s, err := (&GIFEncoder{}).Open(context.Background(), StreamParams{Path: filepath.Join(dir, "a.gif"), Width: 16, Height: 16, FPS: 10})
	require.NoError(t, err)

	require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))))
	err = s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 8, 16)))
	assert.True(t, errors.Is(err, ErrEncoding))

	s.Abort()
	assert.Empty(t, dirEntries(t, dir))
	assert.True(t, errors.Is(s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))), ErrEncoding))
}

type failingEncoder struct {
	failAt  int
	written int
	aborted bool
	closed  bool
}

func (e *failingEncoder) Open(ctx context.Context, p StreamParams) (Stream, error) { return e, nil }

func (e *failingEncoder) WriteFrame(img *image.RGBA) error {
	if e.written == e.failAt {
		return ErrEncoding
	}
	e.written++
	return nil
}

func (e *failingEncoder) Close() error { e.closed = true; return nil }
func (e *failingEncoder) Abort()       { e.aborted = true }

func TestRenderAbortsOnFailure(t *testing.T) {
	c := composer(t, 160, 120, 1, 10)
	enc := &failingEncoder{failAt: 4}

	n, err := Render(context.Background(), c.Frames(), raster.New(160, 120, nil), enc,
		StreamParams{Width: 160, Height: 120, FPS: 10}, nil)
	assert.True(t, errors.Is(err, ErrEncoding))
	assert.Equal(t, 4, n)
	assert.True(t, enc.aborted)
	assert.False(t, enc.closed)
}

func TestRenderHonoursCancel(t *testing.T) {
	c := composer(t, 160, 120, 1, 10)
	enc := &failingEncoder{failAt: -1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Render(ctx, c.Frames(), raster.New(160, 120, nil), enc, StreamParams{Width: 160, Height: 120, FPS: 10}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, enc.aborted)
}

func TestFFmpegMissingBinary(t *testing.T) {
	dir := t.TempDir()
	enc := &FFmpegEncoder{Binary: "ffmpeg-binary-that-does-not-exist"}
	_, err := enc.Open(context.Background(), StreamParams{Path: filepath.Join(dir, "a.mp4"), Width: 16, Height: 16, FPS: 10})
	assert.True(t, errors.Is(err, ErrEncoding))
	assert.Empty(t, dirEntries(t, dir))
}

// fakeFFmpeg writes a shell script standing in for ffmpeg. The script
// receives the same arguments, the last one being the partial output path.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestFFmpegRender(t *testing.T) {
	bin := fakeFFmpeg(t, `for last; do :; done
cat > "$last"
`)
	dir := t.TempDir()
	out := filepath.Join(dir, "x.mp4")
	c := composer(t, 160, 120, 1, 10)

	n, err := Render(context.Background(), c.Frames(), raster.New(160, 120, nil), &FFmpegEncoder{Binary: bin},
		StreamParams{Path: out, Width: 160, Height: 120, FPS: 10, Codec: "libx264"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	fi, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(10*160*120*4), fi.Size())
	assert.Equal(t, []string{"x.mp4"}, dirEntries(t, dir))
}

func TestFFmpegEncoderFailure(t *testing.T) {
	bin := fakeFFmpeg(t, `head -c 16 > /dev/null
echo "boom: rejected" >&2
exit 1
`)
	dir := t.TempDir()
	c := composer(t, 160, 120, 1, 10)

	_, err := Render(context.Background(), c.Frames(), raster.New(160, 120, nil), &FFmpegEncoder{Binary: bin},
		StreamParams{Path: filepath.Join(dir, "x.mp4"), Width: 160, Height: 120, FPS: 10}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncoding), "%v", err)
	assert.Contains(t, err.Error(), "boom: rejected")
	assert.Empty(t, dirEntries(t, dir))
}

func TestFFmpegAbortRemovesPartial(t *testing.T) {
	bin := fakeFFmpeg(t, `for last; do :; done
cat > "$last"
`)
	dir := t.TempDir()
	s, err := (&FFmpegEncoder{Binary: bin}).Open(context.Background(), StreamParams{Path: filepath.Join(dir, "x.mp4"), Width: 16, Height: 16, FPS: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{".x.partial.mp4"}, dirEntries(t, dir))

	require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))))
	s.Abort()
	assert.Empty(t, dirEntries(t, dir))
	assert.True(t, errors.Is(s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))), ErrEncoding))
}

func TestBuildFFmpegArgs(t *testing.T) {
	args := buildFFmpegArgs(StreamParams{Width: 1280, Height: 720, FPS: 30, Codec: "libx264", Quality: 20}, "/tmp/.x.partial.mp4")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f rawvideo -pixel_format rgba -video_size 1280x720 -framerate 30 -i -")
	assert.Contains(t, joined, "-c:v libx264 -crf 20 -preset medium")
	assert.Equal(t, "/tmp/.x.partial.mp4", args[len(args)-1])
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		codec   string
		quality int
		want    []string
	}{
		{"h264_videotoolbox", 75, []string{"-b:v", "7500k"}},
		{"h264_nvenc", 0, []string{"-cq", "28"}},
		{"libx264", 0, []string{"-crf", "23", "-preset", "medium"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QualityArgs(tt.codec, tt.quality), tt.codec)
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 5}
	b.Write([]byte("hello "))
	b.Write([]byte("world"))
	assert.Equal(t, "world", b.String())
}

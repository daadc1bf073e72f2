package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"sync"
)

// FFmpegEncoder streams raw RGBA frames into an ffmpeg child process.
type FFmpegEncoder struct {
	Binary string // defaults to "ffmpeg" on PATH
}

func (e *FFmpegEncoder) binary() string {
	if e.Binary != "" {
		return e.Binary
	}
	return "ffmpeg"
}

func (e *FFmpegEncoder) Open(ctx context.Context, p StreamParams) (Stream, error) {
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 {
		return nil, fmt.Errorf("%w: invalid stream %dx%d @ %d fps", ErrEncoding, p.Width, p.Height, p.FPS)
	}
	bin, err := exec.LookPath(e.binary())
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrEncoding, e.binary(), err)
	}

	tmp, err := prepareOutput(p.Path)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, bin, buildFFmpegArgs(p, tmp)...)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrEncoding, err)
	}
	if err := cmd.Start(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: ffmpeg start: %v", ErrEncoding, err)
	}

	return &ffmpegStream{params: p, tmp: tmp, cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

func buildFFmpegArgs(p StreamParams, output string) []string {
	codec := p.Codec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{
		"-y",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
		"-an",
		"-r", fmt.Sprintf("%d", p.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", codec,
	}
	args = append(args, QualityArgs(codec, p.Quality)...)
	args = append(args, output)
	return args
}

// DefaultQuality returns a sensible quality value for an encoder.
func DefaultQuality(codec string) int {
	switch codec {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

// QualityArgs maps quality onto the encoder's rate control flags:
// bitrate in 100 kbit/s units for VideoToolbox, -cq for NVENC, CRF otherwise.
func QualityArgs(codec string, quality int) []string {
	if quality <= 0 {
		quality = DefaultQuality(codec)
	}
	switch codec {
	case "h264_videotoolbox":
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

type ffmpegStream struct {
	params StreamParams
	tmp    string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	done   bool
	exited bool
}

func (s *ffmpegStream) WriteFrame(img *image.RGBA) error {
	if s.done || s.exited {
		return fmt.Errorf("%w: stream already closed", ErrEncoding)
	}
	if err := checkSize(img, s.params); err != nil {
		return err
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		// ffmpeg went away; reap it so its stderr is complete
		s.stdin.Close()
		waitErr := s.cmd.Wait()
		s.exited = true
		return fmt.Errorf("%w: write frame: %v (%v): %s", ErrEncoding, err, waitErr, s.stderr.String())
	}
	return nil
}

func (s *ffmpegStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.exited {
		os.Remove(s.tmp)
		return fmt.Errorf("%w: ffmpeg exited early: %s", ErrEncoding, s.stderr.String())
	}

	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("%w: ffmpeg: %v: %s", ErrEncoding, err, s.stderr.String())
	}
	return finalize(s.tmp, s.params.Path)
}

func (s *ffmpegStream) Abort() {
	if s.done {
		return
	}
	s.done = true

	if !s.exited {
		s.stdin.Close()
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.cmd.Wait()
	}
	os.Remove(s.tmp)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}

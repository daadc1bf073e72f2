package system

import (
	"image"
	"sync"
	"sync/atomic"
)

// ImagePool hands out cleared RGBA frame buffers of one or more sizes and
// takes them back once the encoder has consumed them. Buffers always start
// at the origin, so a pool is keyed by size alone.
type ImagePool struct {
	mu     sync.Mutex
	bySize map[image.Point]*sync.Pool
	allocs atomic.Int64
}

func NewImagePool() *ImagePool {
	return &ImagePool{bySize: make(map[image.Point]*sync.Pool)}
}

func (p *ImagePool) sized(size image.Point) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.bySize[size]
	if !ok {
		sp = &sync.Pool{New: func() any {
			p.allocs.Add(1)
			return image.NewRGBA(image.Rectangle{Max: size})
		}}
		p.bySize[size] = sp
	}
	return sp
}

// Get returns a fully transparent buffer of the given size.
func (p *ImagePool) Get(size image.Point) *image.RGBA {
	img := p.sized(size).Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

// Put recycles img. Buffers not positioned at the origin are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	p.sized(img.Rect.Max).Put(img)
}

// Allocated reports how many buffers the pool has had to create.
func (p *ImagePool) Allocated() int64 {
	return p.allocs.Load()
}

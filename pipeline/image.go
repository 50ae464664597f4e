package pipeline

import (
	"fmt"
	"sync"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/device"
)

// Image is a float4 device image guarded by a reader/writer lock. Once
// released, lock attempts report ok=false.
type Image struct {
	mu       sync.RWMutex
	buf      device.Buffer
	width    int
	height   int
	released bool

	// Bumped after every write.
	version uint64
}

// NewImage allocates a width x height float4 image on ctx.
func NewImage(ctx device.Context, name string, width, height int) (*Image, error) {
	buf, err := ctx.Buffer(name, width*height*device.PixelStride)
	if err != nil {
		return nil, err
	}
	return &Image{buf: buf, width: width, height: height}, nil
}

func (img *Image) Width() int  { return img.width }
func (img *Image) Height() int { return img.height }

// Pixels returns width * height.
func (img *Image) Pixels() int {
	return img.width * img.height
}

// ReadLock acquires a read lock and returns the image buffer. If the image
// has been released the lock is dropped before returning ok=false.
func (img *Image) ReadLock() (device.Buffer, bool) {
	img.mu.RLock()
	if img.released {
		img.mu.RUnlock()
		return nil, false
	}
	return img.buf, true
}

func (img *Image) ReadUnlock() {
	img.mu.RUnlock()
}

// WriteLock acquires the write lock. Like ReadLock it returns ok=false
// without holding the lock if the image has been released.
func (img *Image) WriteLock() (device.Buffer, bool) {
	img.mu.Lock()
	if img.released {
		img.mu.Unlock()
		return nil, false
	}
	return img.buf, true
}

func (img *Image) WriteUnlock() {
	img.version++
	img.mu.Unlock()
}

// Version returns a counter that changes whenever the image contents are
// written. It returns ok=false if the image has been released.
func (img *Image) Version() (uint64, bool) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.version, !img.released
}

// Released returns true once Release has been called.
func (img *Image) Released() bool {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.released
}

// Release the image buffer. Calling Release more than once is a no-op.
func (img *Image) Release() {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.released {
		return
	}
	img.released = true
	img.buf.Release()
}

// Snapshot copies the image contents into a host image.
func (img *Image) Snapshot() (*asset.Image, error) {
	buf, ok := img.ReadLock()
	if !ok {
		return nil, ErrSourceReleased
	}
	defer img.ReadUnlock()

	out := asset.NewImage(img.width, img.height)
	if err := buf.ReadData(0, out.Pix); err != nil {
		return nil, err
	}
	return out, nil
}

// replace uploads src, reallocating the buffer if the dimensions changed.
func (img *Image) replace(ctx device.Context, src *asset.Image) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.released {
		return ErrNodeReleased
	}

	if src.Width != img.width || src.Height != img.height {
		buf, err := ctx.Buffer(img.buf.Name(), src.Width*src.Height*device.PixelStride)
		if err != nil {
			return fmt.Errorf("could not resize image %s: %w", img.buf.Name(), err)
		}
		img.buf.Release()
		img.buf, img.width, img.height = buf, src.Width, src.Height
	}
	img.version++
	return img.buf.WriteData(src.Pix, 0)
}

package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/device/host"
	"github.com/achilleasa/radiance/renderer"
	"github.com/achilleasa/radiance/scene"
	"github.com/achilleasa/radiance/types"
)

func newTestContext(t *testing.T, width, height int, shared bool) *Context {
	t.Helper()
	backend := host.NewBackend(1)
	infos, err := backend.Devices()
	if err != nil {
		t.Fatal(err)
	}
	devCtx, err := backend.Open(infos[0])
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(devCtx.Release)

	cam := scene.DefaultCamera()
	cam.DepthRange = types.XY(0, float32(height))
	return &Context{
		Device: devCtx,
		Width:  width,
		Height: height,
		Scene:  scene.New(cam),
		Shared: shared,
	}
}

// A render source producing a fixed image. Color pixels carry
// (0.5, 0.25, 1) scaled by the sample count, depth holds the row index and
// normals hold (x, y, 0, 1).
type mockSource struct {
	color, depth, normals device.Buffer
	width, height         int

	samples int

	// Sample counter observed by each dispatch after reset handling.
	dispatched []int
	resets     []bool

	err     error
	failAt  int
	panicAt int
}

func newMockSource(t *testing.T, ctx *Context) *mockSource {
	t.Helper()
	m := &mockSource{width: ctx.Width, height: ctx.Height}
	var err error
	pixels := ctx.Pixels()
	if m.color, err = ctx.Device.Buffer("color", pixels*device.PixelStride); err != nil {
		t.Fatal(err)
	}
	if m.depth, err = ctx.Device.Buffer("depth", pixels); err != nil {
		t.Fatal(err)
	}
	if m.normals, err = ctx.Device.Buffer("normals", pixels*device.PixelStride); err != nil {
		t.Fatal(err)
	}

	depth := make([]float32, pixels)
	normals := make([]float32, pixels*device.PixelStride)
	for i := range depth {
		x, y := i%ctx.Width, i/ctx.Width
		depth[i] = float32(y)
		normals[i*4], normals[i*4+1], normals[i*4+2], normals[i*4+3] = float32(x), float32(y), 0, 1
	}
	if err = m.depth.WriteData(depth, 0); err != nil {
		t.Fatal(err)
	}
	if err = m.normals.WriteData(normals, 0); err != nil {
		t.Fatal(err)
	}
	return m
}

func (m *mockSource) Samples() int { return m.samples }

func (m *mockSource) Advance(reset bool) (renderer.Result, error) {
	m.resets = append(m.resets, reset)
	call := len(m.resets)
	if m.panicAt > 0 && call == m.panicAt {
		panic("device lost")
	}
	if m.err != nil && call >= m.failAt {
		return renderer.Result{}, m.err
	}

	if reset {
		m.samples = 0
	}
	m.dispatched = append(m.dispatched, m.samples)
	m.samples++

	s := float32(m.samples)
	color := make([]float32, m.width*m.height*device.PixelStride)
	for o := 0; o < len(color); o += 4 {
		color[o], color[o+1], color[o+2], color[o+3] = 0.5*s, 0.25*s, s, s
	}
	if err := m.color.WriteData(color, 0); err != nil {
		return renderer.Result{}, err
	}
	return renderer.Result{
		Color:    m.color,
		Depth:    m.depth,
		Normals:  m.normals,
		Samples:  m.samples,
		Rendered: true,
	}, nil
}

func snapshot(t *testing.T, img *Image) []float32 {
	t.Helper()
	out, err := img.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return out.Pix
}

var errDevice = errors.New("device exploded")

// A device context that counts Release calls on every buffer it allocates.
type trackingContext struct {
	device.Context

	mu   sync.Mutex
	bufs []*trackedBuffer
}

type trackedBuffer struct {
	device.Buffer
	releases atomic.Int32
}

func (b *trackedBuffer) Release() {
	b.releases.Add(1)
	b.Buffer.Release()
}

// Kernels of the wrapped context only accept its own buffers.
type trackingKernel struct {
	device.Kernel
}

func (k trackingKernel) SetArgs(values ...interface{}) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		if tb, ok := v.(*trackedBuffer); ok {
			v = tb.Buffer
		}
		args[i] = v
	}
	return k.Kernel.SetArgs(args...)
}

// Route all further allocations on ctx through a tracking context.
func trackBuffers(ctx *Context) *trackingContext {
	tc := &trackingContext{Context: ctx.Device}
	ctx.Device = tc
	return tc
}

func (c *trackingContext) Buffer(name string, size int) (device.Buffer, error) {
	buf, err := c.Context.Buffer(name, size)
	if err != nil {
		return nil, err
	}
	tb := &trackedBuffer{Buffer: buf}
	c.mu.Lock()
	c.bufs = append(c.bufs, tb)
	c.mu.Unlock()
	return tb, nil
}

func (c *trackingContext) Kernel(name string) (device.Kernel, error) {
	k, err := c.Context.Kernel(name)
	if err != nil {
		return nil, err
	}
	return trackingKernel{k}, nil
}

// Fail unless every tracked buffer has been released exactly once.
func (c *trackingContext) expectReleasedOnce(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bufs) == 0 {
		t.Fatal("expected pipeline buffers to be allocated")
	}
	for _, b := range c.bufs {
		if got := b.releases.Load(); got != 1 {
			t.Fatalf("expected buffer %s to be released exactly once; got %d", b.Name(), got)
		}
	}
}

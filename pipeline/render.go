package pipeline

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/renderer"
	"github.com/achilleasa/radiance/scene"
	"github.com/achilleasa/radiance/types"
)

// RenderSource advances progressive rendering by one tick. It is
// implemented by *renderer.Coordinator.
type RenderSource interface {
	Advance(reset bool) (renderer.Result, error)
	Samples() int
}

// RenderNode publishes the normalized render output. Its color output holds
// the sample-weighted average, and separate depth and normals images are
// exposed for extraction. An optional upstream provides environment maps
// for hot swapping.
type RenderNode struct {
	baseNode
	source RenderSource

	env     *Image
	depth   *Image
	normals *Image

	// Environment source version pushed by the last swap.
	envSwapped bool
	envVersion uint64

	divide       device.Kernel
	depthToImage device.Kernel
	copyImage    device.Kernel

	resetRequested atomic.Bool
	started        bool
	lastRev        scene.Revisions
	last           renderer.Result

	// Host staging used when device memory is not shared.
	hostColor []float32
	hostDepth []float32
	hostImage []float32
}

func NewRenderNode(tag string, source RenderSource) *RenderNode {
	n := &RenderNode{source: source}
	n.setup(tag, 0, 1, true)
	return n
}

func (n *RenderNode) Init(ctx *Context, upstreams ...Node) error {
	if err := n.bind(ctx, upstreams); err != nil {
		return err
	}

	// The environment upstream may have any size and is never dispatched
	// against, so keep it out of the input list.
	if len(n.inputs) == 1 {
		n.env = n.inputs[0]
	}
	n.inputs = nil

	if err := n.allocOutput(); err != nil {
		return err
	}

	var err error
	if n.depth, err = NewImage(ctx.Device, n.tag+"-depth", ctx.Width, ctx.Height); err != nil {
		return fmt.Errorf("node (%s): could not allocate depth image: %w", n.tag, err)
	}
	if n.normals, err = NewImage(ctx.Device, n.tag+"-normals", ctx.Width, ctx.Height); err != nil {
		return fmt.Errorf("node (%s): could not allocate normals image: %w", n.tag, err)
	}

	if !ctx.Shared {
		return nil
	}
	if n.divide, err = n.loadKernel(device.KernelDivide); err != nil {
		return err
	}
	if n.depthToImage, err = n.loadKernel(device.KernelDepthToImage); err != nil {
		return err
	}
	n.copyImage, err = n.loadKernel(device.KernelCopyImage)
	return err
}

// Channel returns the depth or normals image.
func (n *RenderNode) Channel(ch Channel) *Image {
	if ch == NormalsChannel {
		return n.normals
	}
	return n.depth
}

// RequestReset restarts sample accumulation on the next tick.
func (n *RenderNode) RequestReset() {
	n.resetRequested.Store(true)
}

// Samples returns the number of primary passes since the last reset.
func (n *RenderNode) Samples() int {
	return n.source.Samples()
}

// LastResult returns the render result of the most recent tick.
func (n *RenderNode) LastResult() renderer.Result {
	return n.last
}

// HasEnvironmentSource returns true if the node was bound to an environment
// upstream.
func (n *RenderNode) HasEnvironmentSource() bool {
	return n.env != nil
}

// SwapEnvironment reads the environment upstream and pushes it into the
// scene unless it is unchanged since the last swap. It returns
// ErrSourceReleased if the upstream has been released.
func (n *RenderNode) SwapEnvironment() error {
	if n.env == nil {
		return nil
	}
	version, ok := n.env.Version()
	if !ok {
		return fmt.Errorf("node (%s): environment swap: %w", n.tag, ErrSourceReleased)
	}
	if n.envSwapped && version == n.envVersion {
		return nil
	}
	img, err := n.env.Snapshot()
	if err != nil {
		return fmt.Errorf("node (%s): environment swap: %w", n.tag, err)
	}
	n.ctx.updateEnvironment(img)
	n.envSwapped, n.envVersion = true, version
	logger.Debugf("[%s] swapped environment (%dx%d)", n.tag, img.Width, img.Height)
	return nil
}

// Process advances the render source, resetting accumulation on the first
// tick, on request or whenever the scene changed, and publishes the
// normalized output.
func (n *RenderNode) Process() error {
	if !n.Repeat() {
		return nil
	}
	if n.out == nil {
		return fmt.Errorf("node (%s): %w", n.tag, ErrNotInitialized)
	}

	tick := time.Now()
	reset := n.resetRequested.Swap(false)
	rev := n.ctx.Scene.Revisions()
	if !n.started || rev != n.lastRev {
		reset = true
	}
	n.started = true
	n.lastRev = rev

	res, err := n.source.Advance(reset)
	if err != nil {
		return fmt.Errorf("node (%s): %w", n.tag, err)
	}
	n.last = res

	depthRange := n.ctx.Scene.Camera().DepthRange
	if n.ctx.Shared {
		err = n.publishShared(res, depthRange)
	} else {
		err = n.publishHost(res, depthRange)
	}
	if err != nil {
		return fmt.Errorf("node (%s): %w", n.tag, err)
	}

	n.record(time.Since(tick))
	return nil
}

func (n *RenderNode) publishShared(res renderer.Result, depthRange types.Vec2) error {
	pixels := n.ctx.Pixels()
	w, h := uint32(n.ctx.Width), uint32(n.ctx.Height)

	err := writeImage(n.out, func(out device.Buffer) error {
		return exec(n.divide, pixels, res.Color, out, uint32(pixels))
	})
	if err == nil {
		err = writeImage(n.depth, func(out device.Buffer) error {
			return exec(n.depthToImage, pixels, res.Depth, out, uint32(pixels), depthRange[0], depthRange[1])
		})
	}
	if err == nil {
		err = writeImage(n.normals, func(out device.Buffer) error {
			return exec(n.copyImage, pixels, res.Normals, out, w, h)
		})
	}
	return err
}

func (n *RenderNode) publishHost(res renderer.Result, depthRange types.Vec2) error {
	pixels := n.ctx.Pixels()
	n.hostColor = grow(n.hostColor, pixels*device.PixelStride)
	n.hostDepth = grow(n.hostDepth, pixels)
	n.hostImage = grow(n.hostImage, pixels*device.PixelStride)

	if err := res.Color.ReadData(0, n.hostColor); err != nil {
		return err
	}
	divideWeights(n.hostColor)
	if err := writeImage(n.out, func(out device.Buffer) error { return out.WriteData(n.hostColor, 0) }); err != nil {
		return err
	}

	if err := res.Depth.ReadData(0, n.hostDepth); err != nil {
		return err
	}
	depthToImage(n.hostDepth, n.hostImage, depthRange[0], depthRange[1])
	if err := writeImage(n.depth, func(out device.Buffer) error { return out.WriteData(n.hostImage, 0) }); err != nil {
		return err
	}

	if err := res.Normals.ReadData(0, n.hostImage); err != nil {
		return err
	}
	return writeImage(n.normals, func(out device.Buffer) error { return out.WriteData(n.hostImage, 0) })
}

func (n *RenderNode) Release() {
	if !n.release(n.divide, n.depthToImage, n.copyImage) {
		return
	}
	if n.depth != nil {
		n.depth.Release()
	}
	if n.normals != nil {
		n.normals.Release()
	}
}

func writeImage(img *Image, fn func(out device.Buffer) error) error {
	out, ok := img.WriteLock()
	if !ok {
		return ErrNodeReleased
	}
	defer img.WriteUnlock()
	return fn(out)
}

func exec(k device.Kernel, work int, args ...interface{}) error {
	if err := k.SetArgs(args...); err != nil {
		return err
	}
	_, err := k.Exec1D(0, work, 0)
	return err
}

func grow(buf []float32, size int) []float32 {
	if cap(buf) < size {
		return make([]float32, size)
	}
	return buf[:size]
}

// divideWeights normalizes accumulated float4 pixels in place by their
// sample weight.
func divideWeights(pix []float32) {
	for o := 0; o+3 < len(pix); o += device.PixelStride {
		var scale float32
		if w := pix[o+3]; w > 0 {
			scale = 1 / w
		}
		pix[o] *= scale
		pix[o+1] *= scale
		pix[o+2] *= scale
		pix[o+3] = 1
	}
}

// depthToImage maps depth samples to a grayscale float4 image where near
// is white.
func depthToImage(depth, dst []float32, near, far float32) {
	span := far - near
	if span <= 0 {
		span = 1
	}
	for i, d := range depth {
		o := i * device.PixelStride
		if o+3 >= len(dst) {
			break
		}
		v := 1 - types.Clamp((d-near)/span, 0, 1)
		dst[o], dst[o+1], dst[o+2], dst[o+3] = v, v, v, 1
	}
}

package pipeline

import (
	"fmt"

	"github.com/achilleasa/radiance/device"
)

// FlipNode flips its upstream image vertically.
type FlipNode struct {
	baseNode
	kernel device.Kernel
}

func NewFlipNode(tag string) *FlipNode {
	n := &FlipNode{}
	n.setup(tag, 1, 1, false)
	return n
}

func (n *FlipNode) Init(ctx *Context, upstreams ...Node) error {
	err := n.bind(ctx, upstreams)
	if err == nil {
		err = n.checkFrameSize()
	}
	if err == nil {
		n.kernel, err = n.loadKernel(device.KernelFlipVertical)
	}
	if err == nil {
		err = n.allocOutput()
	}
	return err
}

func (n *FlipNode) Process() error {
	if !n.Repeat() {
		return nil
	}
	w, h := uint32(n.ctx.Width), uint32(n.ctx.Height)
	return n.dispatch(n.kernel, func(in []device.Buffer, out device.Buffer) []interface{} {
		return []interface{}{in[0], out, w, h}
	})
}

func (n *FlipNode) Release() {
	n.release(n.kernel)
}

// ExposureNode tone maps its upstream with 1 - exp(-c * exposure).
type ExposureNode struct {
	baseNode
	exposure float32
	kernel   device.Kernel
}

func NewExposureNode(tag string, exposure float32) *ExposureNode {
	n := &ExposureNode{exposure: exposure}
	n.setup(tag, 1, 1, false)
	return n
}

func (n *ExposureNode) Init(ctx *Context, upstreams ...Node) error {
	err := n.bind(ctx, upstreams)
	if err == nil {
		err = n.checkFrameSize()
	}
	if err == nil {
		n.kernel, err = n.loadKernel(device.KernelFixedExposure)
	}
	if err == nil {
		err = n.allocOutput()
	}
	return err
}

func (n *ExposureNode) Process() error {
	if !n.Repeat() {
		return nil
	}
	pixels := uint32(n.ctx.Pixels())
	return n.dispatch(n.kernel, func(in []device.Buffer, out device.Buffer) []interface{} {
		return []interface{}{in[0], out, pixels, n.exposure}
	})
}

func (n *ExposureNode) Release() {
	n.release(n.kernel)
}

type Channel uint8

// Render node channels that can be extracted.
const (
	DepthChannel Channel = iota
	NormalsChannel
)

func (c Channel) String() string {
	if c == NormalsChannel {
		return "normals"
	}
	return "depth"
}

// ExtractNode copies the depth or normals image of a render node, optionally
// flipping it vertically.
type ExtractNode struct {
	baseNode
	src     *RenderNode
	channel Channel
	flip    bool
	kernel  device.Kernel
}

func NewExtractNode(tag string, src *RenderNode, channel Channel, flip bool) *ExtractNode {
	n := &ExtractNode{src: src, channel: channel, flip: flip}
	n.setup(tag, 1, 1, false)
	return n
}

// Init expects the render node passed to NewExtractNode as its only upstream.
func (n *ExtractNode) Init(ctx *Context, upstreams ...Node) error {
	if err := n.bind(ctx, upstreams); err != nil {
		return err
	}
	if upstreams[0] != Node(n.src) {
		return fmt.Errorf("node (%s): %w: expected %s as upstream; got %s", n.tag, ErrUpstreamMismatch, n.src.Tag(), upstreams[0].Tag())
	}

	// Read from the selected channel instead of the color output.
	img := n.src.Channel(n.channel)
	if img == nil {
		return fmt.Errorf("node (%s): upstream %s: %w", n.tag, n.src.Tag(), ErrNotInitialized)
	}
	n.inputs[0] = img
	if err := n.checkFrameSize(); err != nil {
		return err
	}

	kernelName := device.KernelCopyImage
	if n.flip {
		kernelName = device.KernelFlipVertical
	}
	var err error
	if n.kernel, err = n.loadKernel(kernelName); err != nil {
		return err
	}
	return n.allocOutput()
}

func (n *ExtractNode) Channel() Channel { return n.channel }

func (n *ExtractNode) Process() error {
	if !n.Repeat() {
		return nil
	}
	w, h := uint32(n.ctx.Width), uint32(n.ctx.Height)
	return n.dispatch(n.kernel, func(in []device.Buffer, out device.Buffer) []interface{} {
		return []interface{}{in[0], out, w, h}
	})
}

func (n *ExtractNode) Release() {
	n.release(n.kernel)
}

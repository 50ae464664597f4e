package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/achilleasa/radiance/campath"
	"github.com/achilleasa/radiance/device"
)

type Projection uint8

// Supported projections.
const (
	FisheyeToEquirect Projection = iota
	CubemapToSphere
)

func (p Projection) kernel() string {
	if p == CubemapToSphere {
		return device.KernelCubemapToSphere
	}
	return device.KernelFisheyeToEquirect
}

func (p Projection) String() string {
	if p == CubemapToSphere {
		return "cubemap"
	}
	return "fisheye"
}

// ProjectionNode reprojects its upstream into an equirectangular image. The
// view orientation is either fixed or driven by a camera path.
type ProjectionNode struct {
	baseNode
	projection Projection
	kernel     device.Kernel

	mu     sync.Mutex
	yaw    float32
	pitch  float32
	player *campath.Player
}

func NewProjectionNode(tag string, projection Projection) *ProjectionNode {
	n := &ProjectionNode{projection: projection}
	n.setup(tag, 1, 1, true)
	return n
}

func (n *ProjectionNode) Init(ctx *Context, upstreams ...Node) error {
	err := n.bind(ctx, upstreams)
	if err == nil {
		err = n.checkFrameSize()
	}
	if err == nil {
		n.kernel, err = n.loadKernel(n.projection.kernel())
	}
	if err == nil {
		err = n.allocOutput()
	}
	return err
}

// SetOrientation sets a fixed view orientation in radians.
func (n *ProjectionNode) SetOrientation(yaw, pitch float32) {
	n.mu.Lock()
	n.yaw, n.pitch = yaw, pitch
	n.mu.Unlock()
}

// SetCameraPath drives the orientation from player, one node per tick.
func (n *ProjectionNode) SetCameraPath(player *campath.Player) {
	n.mu.Lock()
	n.player = player
	n.mu.Unlock()
}

func (n *ProjectionNode) orientation() (float32, float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.player != nil {
		if pose, ok := n.player.Next(); ok {
			n.yaw = pose.Phi
			n.pitch = math.Pi/2 - pose.Theta
		}
	}
	return n.yaw, n.pitch
}

func (n *ProjectionNode) Process() error {
	if !n.Repeat() {
		return nil
	}
	yaw, pitch := n.orientation()
	w, h := uint32(n.ctx.Width), uint32(n.ctx.Height)
	return n.dispatch(n.kernel, func(in []device.Buffer, out device.Buffer) []interface{} {
		return []interface{}{in[0], out, w, h, yaw, pitch}
	})
}

func (n *ProjectionNode) Release() {
	n.release(n.kernel)
}

// ProjectionWorker processes a projection node continuously on its own
// goroutine until stopped.
type ProjectionWorker struct {
	node     *ProjectionNode
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// NewProjectionWorker creates a worker that processes node every interval.
func NewProjectionWorker(node *ProjectionNode, interval time.Duration) *ProjectionWorker {
	if interval <= 0 {
		interval = 40 * time.Millisecond
	}
	return &ProjectionWorker{node: node, interval: interval}
}

// Start the worker. The node must already be initialized.
func (w *ProjectionWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
}

func (w *ProjectionWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		w.node.ctx.deviceMu.Lock()
		err := w.node.Process()
		w.node.ctx.deviceMu.Unlock()
		if err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			logger.Warningf("[%s] projection worker stopped: %v", w.node.Tag(), err)
			return
		}
	}
}

// Stop the worker and wait for it to exit. It returns the error that
// stopped the worker, if any.
func (w *ProjectionWorker) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *ProjectionWorker) String() string {
	return fmt.Sprintf("projection worker (%s, %s)", w.node.Tag(), w.node.projection)
}

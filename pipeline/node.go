package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/radiance/device"
)

// A Node is a pipeline stage producing a single output image.
type Node interface {
	Tag() string

	// Init binds the node to its upstreams and allocates its resources.
	// Passing the wrong number of upstreams panics with ErrArity.
	Init(ctx *Context, upstreams ...Node) error

	// Process runs one tick. It is a no-op while repeat is disabled.
	Process() error

	// Release is idempotent.
	Release()

	SetRepeat(repeat bool)
	Repeat() bool

	Output() *Image

	Stats() NodeStats
}

// NodeStats contains timing information for a node.
type NodeStats struct {
	Tag       string
	Processed uint64
	Last      time.Duration
	Total     time.Duration
}

// Mean returns the average processing time.
func (s NodeStats) Mean() time.Duration {
	if s.Processed == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Processed)
}

// Shared node plumbing: arity checks, input binding, locking and timing.
type baseNode struct {
	tag      string
	minArity int
	maxArity int

	ctx    *Context
	inputs []*Image
	out    *Image

	repeat   atomic.Bool
	released atomic.Bool

	statsMu sync.Mutex
	stats   NodeStats
}

func (n *baseNode) setup(tag string, minArity, maxArity int, repeat bool) {
	n.tag, n.minArity, n.maxArity = tag, minArity, maxArity
	n.stats.Tag = tag
	n.repeat.Store(repeat)
}

func (n *baseNode) Tag() string           { return n.tag }
func (n *baseNode) Output() *Image        { return n.out }
func (n *baseNode) Repeat() bool          { return n.repeat.Load() }
func (n *baseNode) SetRepeat(repeat bool) { n.repeat.Store(repeat) }

func (n *baseNode) Stats() NodeStats {
	n.statsMu.Lock()
	defer n.statsMu.Unlock()
	return n.stats
}

func (n *baseNode) record(elapsed time.Duration) {
	n.statsMu.Lock()
	n.stats.Processed++
	n.stats.Last = elapsed
	n.stats.Total += elapsed
	n.statsMu.Unlock()
}

// bind checks the arity and collects upstream output images, which must all
// match the context frame size.
func (n *baseNode) bind(ctx *Context, upstreams []Node) error {
	if len(upstreams) < n.minArity || len(upstreams) > n.maxArity {
		panic(fmt.Errorf("%w: node %s accepts %d..%d upstreams; got %d", ErrArity, n.tag, n.minArity, n.maxArity, len(upstreams)))
	}

	n.ctx = ctx
	n.inputs = n.inputs[:0]
	for _, up := range upstreams {
		img := up.Output()
		if img == nil {
			return fmt.Errorf("node (%s): upstream %s: %w", n.tag, up.Tag(), ErrNotInitialized)
		}
		n.inputs = append(n.inputs, img)
	}
	return nil
}

// checkFrameSize ensures every input matches the context frame size.
func (n *baseNode) checkFrameSize() error {
	for _, img := range n.inputs {
		if img.Width() != n.ctx.Width || img.Height() != n.ctx.Height {
			return fmt.Errorf("node (%s): %w: upstream image is %dx%d; expected %dx%d", n.tag, ErrUpstreamMismatch, img.Width(), img.Height(), n.ctx.Width, n.ctx.Height)
		}
	}
	return nil
}

func (n *baseNode) allocOutput() error {
	out, err := NewImage(n.ctx.Device, n.tag, n.ctx.Width, n.ctx.Height)
	if err != nil {
		return fmt.Errorf("node (%s): could not allocate output: %w", n.tag, err)
	}
	n.out = out
	return nil
}

func (n *baseNode) loadKernel(name string) (device.Kernel, error) {
	k, err := n.ctx.Device.Kernel(name)
	if err != nil {
		return nil, fmt.Errorf("node (%s): %w", n.tag, err)
	}
	return k, nil
}

// dispatch read-locks the inputs in order, write-locks the output, runs
// kernel over every output pixel and unlocks in reverse order.
func (n *baseNode) dispatch(kernel device.Kernel, argsFn func(in []device.Buffer, out device.Buffer) []interface{}) error {
	if n.out == nil {
		return fmt.Errorf("node (%s): %w", n.tag, ErrNotInitialized)
	}

	in := make([]device.Buffer, 0, len(n.inputs))
	defer func() {
		for i := len(in) - 1; i >= 0; i-- {
			n.inputs[i].ReadUnlock()
		}
	}()
	for _, img := range n.inputs {
		buf, ok := img.ReadLock()
		if !ok {
			return fmt.Errorf("node (%s): %w", n.tag, ErrSourceReleased)
		}
		in = append(in, buf)
	}

	out, ok := n.out.WriteLock()
	if !ok {
		return fmt.Errorf("node (%s): %w", n.tag, ErrNodeReleased)
	}
	defer n.out.WriteUnlock()

	if err := kernel.SetArgs(argsFn(in, out)...); err != nil {
		return fmt.Errorf("node (%s): %w", n.tag, err)
	}
	elapsed, err := kernel.Exec1D(0, n.out.Pixels(), 0)
	if err != nil {
		return fmt.Errorf("node (%s): %w", n.tag, err)
	}
	n.record(elapsed)
	return nil
}

// release marks the node released and returns true on the first call.
func (n *baseNode) release(kernels ...device.Kernel) bool {
	if !n.released.CompareAndSwap(false, true) {
		return false
	}
	for _, k := range kernels {
		if k != nil {
			k.Release()
		}
	}
	if n.out != nil {
		n.out.Release()
	}
	return true
}

// Package renderer coordinates progressive rendering across a primary and
// any number of secondary devices.
package renderer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/log"
	"github.com/achilleasa/radiance/scene"
	"github.com/achilleasa/radiance/tracer"
	"golang.org/x/sync/errgroup"
)

var logger = log.New("renderer")

// Session is the device session contract used by the coordinator. It is
// implemented by *tracer.Session.
type Session interface {
	Info() device.Info
	Role() tracer.Role
	Context() device.Context
	Output() tracer.Output
	Pixels() int
	Stats() tracer.Stats

	Render(sc *scene.Scene) error
	Clear() error
	Readback(dst []float32) ([]float32, error)
	Release()
}

// Result describes the primary output after a tick.
type Result struct {
	Color   device.Buffer
	Depth   device.Buffer
	Normals device.Buffer

	// Primary render passes since the last reset.
	Samples int

	// True if the primary rendered a pass during this tick.
	Rendered bool

	// Number of secondary frames folded into the primary this tick.
	Accumulated int
}

// Per-secondary state shared between the coordinator and the secondary's
// render goroutine.
type worker struct {
	session Session

	// Set by the coordinator to request a clear.
	clear atomic.Bool

	mailbox *mailbox

	produced atomic.Uint64
	dropped  atomic.Uint64
	stale    atomic.Uint64
	merged   atomic.Uint64
	errors   atomic.Uint64
}

// Coordinator drives the primary session from the caller's goroutine and
// runs one render goroutine per secondary session.
type Coordinator struct {
	opts  Options
	scene *scene.Scene

	primary Session
	workers []*worker

	staging    device.Buffer
	accumulate device.Kernel

	epoch   atomic.Uint64
	samples int
	ticks   uint64

	cancel       context.CancelFunc
	group        errgroup.Group
	shutdownOnce sync.Once
	shutdownErr  error
	closed       atomic.Bool

	// First fatal secondary error; reported by every later Advance.
	errMu        sync.Mutex
	secondaryErr error
}

// NewCoordinator takes ownership of sessions, which must contain exactly one
// primary, and starts the secondary render goroutines. The goroutines stop
// when ctx is cancelled or Shutdown is called.
func NewCoordinator(ctx context.Context, sc *scene.Scene, sessions []Session, opts Options) (*Coordinator, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}

	c := &Coordinator{
		opts:  opts.withDefaults(),
		scene: sc,
	}

	for _, s := range sessions {
		if s.Role() == tracer.Primary {
			if c.primary != nil {
				return nil, ErrMultiplePrimary
			}
			c.primary = s
			continue
		}
		c.workers = append(c.workers, &worker{
			session: s,
			mailbox: newMailbox(),
		})
	}
	if c.primary == nil {
		return nil, ErrNoPrimary
	}
	for _, w := range c.workers {
		if w.session.Pixels() != c.primary.Pixels() {
			return nil, fmt.Errorf("%w: %s has %d pixels; primary %s has %d", ErrSizeMismatch, w.session.Info().Name, w.session.Pixels(), c.primary.Info().Name, c.primary.Pixels())
		}
		// Secondaries start with a clear
		w.clear.Store(true)
	}

	primaryCtx := c.primary.Context()
	name := c.primary.Info().Name
	var err error
	if c.staging, err = primaryCtx.Buffer("staging", c.primary.Pixels()*device.PixelStride); err != nil {
		return nil, failure.Fatal(name, "staging buffer allocation", err)
	}
	if c.accumulate, err = primaryCtx.Kernel(device.KernelAccumulate); err != nil {
		c.staging.Release()
		return nil, failure.Fatal(name, "kernel load", err)
	}

	gctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	for _, w := range c.workers {
		// A failing secondary must not cancel its siblings, so the group
		// shares the plain cancellable context.
		c.group.Go(func() error {
			err := c.runSecondary(gctx, w)
			if err != nil {
				logger.Errorf("device (%s): secondary stopped: %v", w.session.Info().Name, err)
				c.setErr(err)
			}
			return err
		})
	}

	logger.Infof("coordinating %d device(s); primary: %s", len(sessions), name)
	return c, nil
}

// Render loop for a secondary session.
func (c *Coordinator) runSecondary(ctx context.Context, w *worker) error {
	name := w.session.Info().Name
	logger.Debugf("device (%s): starting secondary render loop", name)
	defer logger.Debugf("device (%s): secondary render loop exited", name)

	var (
		epoch        uint64
		samples      uint64
		update       bool
		lastReadback time.Time
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if w.clear.CompareAndSwap(true, false) {
			epoch = c.epoch.Load()
			if err := w.session.Clear(); err != nil {
				// The output of a device that cannot be cleared is useless
				return failure.Fatal(name, "clear", err)
			}
			samples = 0
			update = true
		}

		if err := w.session.Render(c.scene); err != nil {
			w.errors.Add(1)
			logger.Warningf("device (%s): render pass failed: %v", name, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.opts.RetryDelay):
			}
			continue
		}
		samples++

		if update || time.Since(lastReadback) > c.opts.ReadbackInterval {
			pixels, err := w.session.Readback(w.mailbox.buffer())
			if err != nil {
				w.errors.Add(1)
				logger.Warningf("device (%s): readback failed: %v", name, err)
				continue
			}
			if w.mailbox.Put(&frame{epoch: epoch, samples: samples, pixels: pixels}) {
				w.dropped.Add(1)
			}
			w.produced.Add(1)
			lastReadback = time.Now()
			update = false
		}
	}
}

// Advance runs one primary tick. If reset is true all accumulated progress
// is discarded on every device first. Secondary frames produced before the
// latest reset are dropped.
func (c *Coordinator) Advance(reset bool) (Result, error) {
	if c.closed.Load() {
		return Result{}, ErrShutdown
	}
	if err := c.Err(); err != nil {
		return Result{}, err
	}

	c.ticks++
	res := Result{}
	if reset {
		if err := c.primary.Clear(); err != nil {
			return res, err
		}
		c.samples = 0
		c.epoch.Add(1)
		for _, w := range c.workers {
			w.clear.Store(true)
		}
	}

	if c.opts.NumSamples == ContinuousSampling || c.samples < c.opts.NumSamples {
		if err := c.primary.Render(c.scene); err != nil {
			return res, err
		}
		c.samples++
		res.Rendered = true
	}

	epoch := c.epoch.Load()
	color := c.primary.Output().Color
	pixels := c.primary.Pixels()
	for _, w := range c.workers {
		f := w.mailbox.Take()
		if f == nil {
			continue
		}
		if f.epoch < epoch {
			w.stale.Add(1)
			w.mailbox.recycle(f.pixels)
			continue
		}

		err := c.merge(f.pixels, color, pixels)
		w.mailbox.recycle(f.pixels)
		if err != nil {
			return res, err
		}
		w.merged.Add(1)
		res.Accumulated++
	}

	out := c.primary.Output()
	res.Color, res.Depth, res.Normals = out.Color, out.Depth, out.Normals
	res.Samples = c.samples
	return res, nil
}

func (c *Coordinator) setErr(err error) {
	c.errMu.Lock()
	if c.secondaryErr == nil {
		c.secondaryErr = err
	}
	c.errMu.Unlock()
}

// Err returns the first fatal error reported by a secondary session.
func (c *Coordinator) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.secondaryErr
}

// Upload a secondary frame into the staging buffer and add it to dst.
func (c *Coordinator) merge(src []float32, dst device.Buffer, pixels int) error {
	if err := c.staging.WriteData(src, 0); err != nil {
		return err
	}
	if err := c.accumulate.SetArgs(c.staging, dst, uint32(pixels)); err != nil {
		return err
	}
	_, err := c.accumulate.Exec1D(0, pixels, 0)
	return err
}

// Output returns the primary output buffers.
func (c *Coordinator) Output() tracer.Output {
	return c.primary.Output()
}

// Samples returns the number of primary passes since the last reset.
func (c *Coordinator) Samples() int {
	return c.samples
}

// Primary returns the primary session.
func (c *Coordinator) Primary() Session {
	return c.primary
}

// Shutdown stops the secondary goroutines, waits for them to exit and
// releases every session. It returns the first fatal secondary error, if
// any. Calling Shutdown more than once is a no-op.
func (c *Coordinator) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.shutdownErr = c.group.Wait()

		c.accumulate.Release()
		c.staging.Release()
		for _, w := range c.workers {
			w.session.Release()
		}
		c.primary.Release()
		logger.Info("coordinator shut down")
	})
	return c.shutdownErr
}

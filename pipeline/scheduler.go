package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/radiance/campath"
	"github.com/achilleasa/radiance/event"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/scene"
)

// A FrameSink receives the flushed output.
type FrameSink interface {
	Flush(frame int, color, depth *Image) error
}

// Scheduler drives the pipeline one tick at a time. Within a window of
// PerFrame ticks the render node accumulates samples; the last tick of the
// window flushes the extracted output and restarts accumulation.
type Scheduler struct {
	opts Options
	ctx  *Context

	env        Node
	ownsEnv    bool
	render     *RenderNode
	flip       *FlipNode
	depth      *ExtractNode
	normals    *ExtractNode
	exposure   *ExposureNode
	projection *ProjectionNode
	worker     *ProjectionWorker

	// Owned nodes in release order.
	nodes []Node
	sinks []FrameSink
	hooks []func() error

	quit       event.QuitHandler
	controller *event.CameraController
	recorder   *campath.Recorder
	player     *campath.Player

	tick         int
	ticks        int
	frames       int
	flushes      int
	pathFinished bool
	stage        string
	lastReport   time.Time

	shutdownOnce sync.Once
	closed       atomic.Bool
}

func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		opts:     opts.withDefaults(),
		recorder: &campath.Recorder{},
	}
	if s.opts.Interactive {
		s.controller = event.NewCameraController(s.recorder)
	}
	if len(s.opts.CameraPath) > 0 {
		s.player = campath.NewPlayer(s.opts.CameraPath, s.opts.CameraPathOffset)
	}
	return s
}

// Init builds and initializes the node graph. If upstream is not nil it must
// be an initialized image source providing environment maps; it remains
// owned by the caller.
func (s *Scheduler) Init(ctx *Context, source RenderSource, upstream Node) (err error) {
	s.ctx = ctx
	defer func() {
		if err != nil {
			s.releaseNodes()
			s.nodes = nil
		}
	}()

	s.env = upstream
	if s.env == nil && s.opts.EnvironmentPath != "" {
		env := NewEnvironmentNode("environment", s.opts.EnvironmentPath)
		if err = env.Init(ctx); err != nil {
			return err
		}
		s.env, s.ownsEnv = env, true
		s.nodes = append(s.nodes, env)
	}

	s.render = NewRenderNode("render", source)
	if s.env != nil {
		err = s.initNode(s.render, s.env)
	} else {
		err = s.initNode(s.render)
	}
	if err != nil {
		return err
	}

	s.depth = NewExtractNode("depth", s.render, DepthChannel, s.opts.Flip)
	if err = s.initNode(s.depth, s.render); err != nil {
		return err
	}
	s.normals = NewExtractNode("normals", s.render, NormalsChannel, s.opts.Flip)
	if err = s.initNode(s.normals, s.render); err != nil {
		return err
	}

	// The flip node keeps color in the same orientation as the extracted
	// channels. With flipping disabled it still decouples the flushed color
	// from the progressive one.
	var colorSource Node = s.render
	if s.opts.Flip {
		s.flip = NewFlipNode("flip")
		if err = s.initNode(s.flip, s.render); err != nil {
			return err
		}
		colorSource = s.flip
	}
	s.exposure = NewExposureNode("exposure", s.opts.Exposure)
	if err = s.initNode(s.exposure, colorSource); err != nil {
		return err
	}

	if popts := s.opts.Projection; popts != nil {
		s.projection = NewProjectionNode("projection", popts.Projection)
		if err = s.initNode(s.projection, s.render); err != nil {
			return err
		}
		s.projection.SetOrientation(popts.Yaw, popts.Pitch)
		if len(popts.CameraPath) > 0 {
			s.projection.SetCameraPath(campath.NewPlayer(popts.CameraPath, 0))
		}
		s.worker = NewProjectionWorker(s.projection, popts.Interval)
		s.worker.Start(context.Background())
	}

	s.lastReport = time.Now()
	logger.Infof("initialized pipeline (%dx%d, per frame %d, shared %t)", ctx.Width, ctx.Height, s.opts.PerFrame, ctx.Shared)
	return nil
}

func (s *Scheduler) initNode(n Node, upstreams ...Node) error {
	if err := n.Init(s.ctx, upstreams...); err != nil {
		n.Release()
		return err
	}
	s.nodes = append(s.nodes, n)
	return nil
}

// AddSink registers a sink that receives every flushed frame.
func (s *Scheduler) AddSink(sink FrameSink) {
	s.sinks = append(s.sinks, sink)
}

// AddTickHook registers fn to run after every tick executed by Run. An
// error returned by fn ends the session like a failed tick.
func (s *Scheduler) AddTickHook(fn func() error) {
	s.hooks = append(s.hooks, fn)
}

// OutputBuffers returns the flushed color and depth images.
func (s *Scheduler) OutputBuffers() (color, depth *Image) {
	return s.exposure.Output(), s.depth.Output()
}

// GUIBuffers returns every inspectable image keyed by node tag.
func (s *Scheduler) GUIBuffers() map[string]*Image {
	bufs := map[string]*Image{
		s.render.Tag():   s.render.Output(),
		"render-depth":   s.render.Channel(DepthChannel),
		"render-normals": s.render.Channel(NormalsChannel),
	}
	for _, n := range s.nodes {
		if n != Node(s.render) && n.Output() != nil {
			bufs[n.Tag()] = n.Output()
		}
	}
	if s.env != nil && s.env.Output() != nil {
		bufs[s.env.Tag()] = s.env.Output()
	}
	return bufs
}

// EventSinks returns the handlers that should receive window input.
func (s *Scheduler) EventSinks() []event.Handler {
	sinks := []event.Handler{&s.quit}
	if s.controller != nil {
		sinks = append(sinks, s.controller)
	}
	return sinks
}

// Quit requests the Run loop to exit after the current tick.
func (s *Scheduler) Quit() {
	s.quit.Request()
}

func (s *Scheduler) Tick() int    { return s.tick }
func (s *Scheduler) Frames() int  { return s.frames }
func (s *Scheduler) Flushes() int { return s.flushes }

// CameraPathFinished returns true once the automatic camera path has been
// exhausted.
func (s *Scheduler) CameraPathFinished() bool {
	return s.pathFinished
}

// Advance runs a single tick.
func (s *Scheduler) Advance() error {
	if s.closed.Load() {
		return ErrReleased
	}
	if s.render == nil {
		return ErrNotInitialized
	}

	s.ctx.deviceMu.Lock()
	defer s.ctx.deviceMu.Unlock()

	// Every continuous tick starts a new window.
	if s.tick == 0 || s.opts.PerFrame == Continuous {
		s.stage = s.render.Tag()
		if err := s.render.SwapEnvironment(); err != nil {
			return err
		}
		s.stepCameraPath()
	}

	if s.controller != nil {
		s.controller.Update(s.ctx.Scene, s.ticks)
	}

	s.stage = s.render.Tag()
	if err := s.render.Process(); err != nil {
		return err
	}

	flush := s.opts.PerFrame == Continuous || s.tick == s.opts.PerFrame-1
	if flush {
		s.setRepeat(true)
	}
	for _, n := range []Node{s.depth, s.normals} {
		s.stage = n.Tag()
		if err := n.Process(); err != nil {
			return err
		}
	}
	if flush {
		if err := s.flush(); err != nil {
			return err
		}
	}
	s.setRepeat(false)

	if flush && s.opts.PerFrame != Continuous {
		s.render.RequestReset()
		s.tick = -1
		s.frames++
	}
	s.tick++
	s.ticks++

	s.maybeReport()
	return nil
}

func (s *Scheduler) setRepeat(repeat bool) {
	nodes := []Node{s.depth, s.normals, s.exposure}
	if s.flip != nil {
		nodes = append(nodes, s.flip)
	}
	for _, n := range nodes {
		n.SetRepeat(repeat)
	}
}

func (s *Scheduler) flush() error {
	if s.flip != nil {
		s.stage = s.flip.Tag()
		if err := s.flip.Process(); err != nil {
			return err
		}
	}
	s.stage = s.exposure.Tag()
	if err := s.exposure.Process(); err != nil {
		return err
	}

	s.flushes++
	color, depth := s.OutputBuffers()
	for _, sink := range s.sinks {
		s.stage = "sink"
		if err := sink.Flush(s.flushes, color, depth); err != nil {
			return err
		}
	}
	logger.Debugf("flushed frame %d after %d samples", s.flushes, s.render.Samples())
	return nil
}

func (s *Scheduler) stepCameraPath() {
	if s.player == nil || s.pathFinished {
		return
	}
	pose, ok := s.player.Next()
	if !ok {
		s.pathFinished = true
		logger.Noticef("camera path finished after %d nodes", s.player.Len())
		return
	}
	s.ctx.Scene.UpdateCamera(func(c *scene.Camera) {
		c.Position = pose.Position
		c.Theta = pose.Theta
		c.Phi = pose.Phi
	})
}

// done reports whether Run should stop before the next tick.
func (s *Scheduler) done() bool {
	switch {
	case s.quit.Requested():
		logger.Notice("quit requested")
	case s.opts.PerFrame != Continuous && s.opts.MaxFrames > 0 && s.frames >= s.opts.MaxFrames:
		logger.Noticef("rendered %d frames", s.frames)
	case s.opts.QuitOnCameraPathFinished && s.pathFinished:
		logger.Notice("camera path finished")
	default:
		return false
	}
	return true
}

// Run advances the pipeline until ctx is cancelled, a quit is requested,
// MaxFrames windows complete, the camera path finishes (if configured) or a
// tick fails. The pipeline is released on return.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.Shutdown()

	for {
		select {
		case <-ctx.Done():
			logger.Notice("render session cancelled")
			return nil
		default:
		}
		if s.done() {
			return nil
		}

		if err := s.safeAdvance(); err != nil {
			if errors.Is(err, ErrSourceReleased) {
				logger.Errorf("environment source released; terminating pipeline")
				return err
			}
			if s.opts.CatchErrors {
				err = failure.Recoverable(s.stage, err)
				logger.Warningf("ending render session: %v", err)
			}
			return err
		}
	}
}

func (s *Scheduler) safeAdvance() (err error) {
	if s.opts.CatchErrors {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
	}
	if err := s.Advance(); err != nil {
		return err
	}
	for _, hook := range s.hooks {
		s.stage = "hook"
		if err := hook(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops detached workers, writes any recorded camera path and
// releases every owned node. It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)
		if s.worker != nil {
			if err := s.worker.Stop(); err != nil {
				logger.Warningf("%s: %v", s.worker, err)
			}
		}
		if s.opts.RecordPath != "" {
			err := s.recorder.WriteFile(s.opts.RecordPath)
			switch {
			case errors.Is(err, campath.ErrTooFewPositions):
				logger.Infof("not writing camera path: %d position(s) recorded", s.recorder.Len())
			case err != nil:
				logger.Errorf("could not write camera path: %v", err)
			}
		}
		s.releaseNodes()
	})
}

func (s *Scheduler) releaseNodes() {
	for i := len(s.nodes) - 1; i >= 0; i-- {
		s.nodes[i].Release()
	}
}

// Package tracer wraps a device context into a render session that owns the
// per-device output buffers and scene compiler.
package tracer

import (
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/radiance/compiler"
	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/log"
	"github.com/achilleasa/radiance/scene"
)

var logger = log.New("tracer")

type Role uint8

// Session roles.
const (
	Primary Role = iota
	Secondary
)

func (r Role) String() string {
	if r == Primary {
		return "primary"
	}
	return "secondary"
}

// Output is the per-device buffer triple written by every render pass.
type Output struct {
	// float4 per pixel: accumulated rgb plus sample weight.
	Color device.Buffer

	// One float per pixel.
	Depth device.Buffer

	// float4 per pixel.
	Normals device.Buffer
}

// Session statistics.
type Stats struct {
	Passes    uint64
	Readbacks uint64

	// Duration of the last render pass and total time spent rendering.
	LastPass  time.Duration
	TotalTime time.Duration
}

// A Session drives a single device. Render, Clear and Readback must be
// called from the goroutine that owns the session.
type Session struct {
	ctx    device.Context
	index  int
	role   Role
	width  int
	height int

	out          Output
	compiler     *compiler.Compiler
	renderKernel device.Kernel

	statsMu sync.Mutex
	stats   Stats

	released bool
}

// NewSession allocates the output buffers for a width x height frame on ctx.
// The session takes ownership of ctx.
func NewSession(ctx device.Context, index int, role Role, width, height int, factory compiler.IntersectorFactory) (*Session, error) {
	if width <= 0 || height <= 0 {
		return nil, failure.Config("resolution", "invalid frame dimensions %dx%d", width, height)
	}

	s := &Session{
		ctx:      ctx,
		index:    index,
		role:     role,
		width:    width,
		height:   height,
		compiler: compiler.New(ctx, factory),
	}

	pixels := width * height
	var err error
	if s.out.Color, err = ctx.Buffer("color", pixels*device.PixelStride); err == nil {
		if s.out.Depth, err = ctx.Buffer("depth", pixels); err == nil {
			s.out.Normals, err = ctx.Buffer("normals", pixels*device.PixelStride)
		}
	}
	if err != nil {
		s.Release()
		return nil, failure.Fatal(ctx.Info().Name, "output buffer allocation", err)
	}

	if s.renderKernel, err = ctx.Kernel(device.KernelRenderPass); err != nil {
		s.Release()
		return nil, failure.Fatal(ctx.Info().Name, "kernel load", err)
	}

	logger.Infof("device (%s): created %s session %d (%dx%d)", ctx.Info().Name, role, index, width, height)
	return s, nil
}

func (s *Session) Index() int                   { return s.index }
func (s *Session) Role() Role                   { return s.role }
func (s *Session) Info() device.Info            { return s.ctx.Info() }
func (s *Session) Context() device.Context      { return s.ctx }
func (s *Session) Compiler() *compiler.Compiler { return s.compiler }
func (s *Session) Output() Output               { return s.out }

// Pixels returns the number of pixels in the output frame.
func (s *Session) Pixels() int {
	return s.width * s.height
}

// Stats returns a copy of the session statistics.
func (s *Session) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Render syncs sc to the device and adds one sample per pixel to the output
// buffers. The call blocks until the device completes the pass.
func (s *Session) Render(sc *scene.Scene) error {
	if s.released {
		return ErrReleased
	}

	cs, err := s.compiler.Compile(sc)
	if err != nil {
		return err
	}

	s.statsMu.Lock()
	passes := s.stats.Passes
	s.statsMu.Unlock()

	seed := uint32(passes)*0x9E3779B9 ^ uint32(s.index+1)*0x85EBCA6B
	err = s.renderKernel.SetArgs(
		cs.Camera(), cs.Environment(), cs.Lights(),
		s.out.Color, s.out.Depth, s.out.Normals,
		uint32(s.width), uint32(s.height), seed,
	)
	if err != nil {
		return fmt.Errorf("device (%s): %w", s.ctx.Info().Name, err)
	}

	elapsed, err := s.renderKernel.Exec1D(0, s.Pixels(), 0)
	if err != nil {
		return fmt.Errorf("device (%s): render pass failed: %w", s.ctx.Info().Name, err)
	}

	s.statsMu.Lock()
	s.stats.Passes++
	s.stats.LastPass = elapsed
	s.stats.TotalTime += elapsed
	s.statsMu.Unlock()
	return nil
}

// Clear resets the output buffers.
func (s *Session) Clear() error {
	if s.released {
		return ErrReleased
	}
	for _, buf := range []device.Buffer{s.out.Color, s.out.Depth, s.out.Normals} {
		if err := buf.Fill(0); err != nil {
			return err
		}
	}
	return nil
}

// Readback copies the color buffer into dst, growing it if required, and
// returns the filled slice.
func (s *Session) Readback(dst []float32) ([]float32, error) {
	if s.released {
		return dst, ErrReleased
	}

	size := s.out.Color.Size()
	if cap(dst) < size {
		dst = make([]float32, size)
	}
	dst = dst[:size]

	if err := s.out.Color.ReadData(0, dst); err != nil {
		return dst, err
	}

	s.statsMu.Lock()
	s.stats.Readbacks++
	s.statsMu.Unlock()
	return dst, nil
}

// Release the session resources including its device context. Calling
// Release more than once is a no-op.
func (s *Session) Release() {
	if s.released {
		return
	}
	s.released = true

	if s.renderKernel != nil {
		s.renderKernel.Release()
	}
	for _, buf := range []device.Buffer{s.out.Color, s.out.Depth, s.out.Normals} {
		if buf != nil {
			buf.Release()
		}
	}
	s.compiler.Release()
	s.ctx.Release()
}

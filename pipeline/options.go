package pipeline

import (
	"time"

	"github.com/achilleasa/radiance/campath"
)

// Continuous accumulation: flush on every tick.
const Continuous = -1

// ProjectionOptions configures a detached projection worker.
type ProjectionOptions struct {
	Projection Projection

	// Time between two projection passes.
	Interval time.Duration

	// Fixed orientation, ignored when CameraPath is set.
	Yaw   float32
	Pitch float32

	CameraPath []campath.Node
}

type Options struct {
	// Ticks per accumulation window or Continuous.
	PerFrame int

	// Stop after this many accumulation windows. Zero means unbounded.
	// Ignored in continuous mode.
	MaxFrames int

	// Automatic camera path played one node per window.
	CameraPath       []campath.Node
	CameraPathOffset int

	QuitOnCameraPathFinished bool

	// If true, recoverable tick errors and panics end the session with a
	// *failure.RecoverableRenderError instead of propagating.
	CatchErrors bool

	// Exposure applied to the color output on flush.
	Exposure float32

	// Flip extracted images vertically.
	Flip bool

	// Enable the interactive camera controller.
	Interactive bool

	// Write interactively recorded camera positions here on shutdown.
	RecordPath string

	// Decode an environment map source from this path when no upstream is
	// passed to Init.
	EnvironmentPath string

	Projection *ProjectionOptions

	// Period of the node timing report. Zero disables it.
	ReportInterval time.Duration
}

// DefaultOptions returns continuous accumulation with unit exposure.
func DefaultOptions() Options {
	return Options{
		PerFrame: Continuous,
		Exposure: 1,
		Flip:     true,
	}
}

func (o Options) withDefaults() Options {
	if o.PerFrame == 0 || o.PerFrame < Continuous {
		o.PerFrame = Continuous
	}
	if o.Exposure <= 0 {
		o.Exposure = 1
	}
	return o
}

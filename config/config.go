// Package config holds the render session configuration.
package config

import (
	"time"

	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/scene"
	"github.com/achilleasa/radiance/types"
)

// Continuous accumulation.
const ContinuousSampling = -1

// Config contains every option recognized by a render session.
type Config struct {
	Width  int
	Height int

	// If true pipeline images share memory with the primary render device.
	// Otherwise render output is round-tripped through host memory.
	ShareDeviceMemory bool

	ModelPath string
	ModelName string

	// Integrator parameters.
	ShadowRays int
	AORays     int
	AOEnabled  bool
	NumBounces int

	// Passes per accumulation window or ContinuousSampling.
	NumSamples int

	CameraPosition types.Vec3
	SensorSize     types.Vec2
	DepthRange     types.Vec2
	FocalLength    float32
	FocusDistance  float32
	Aperture       float32
	CameraKind     scene.CameraKind

	EnvironmentMapName    string
	EnvironmentMapPath    string
	EnvironmentMultiplier float32
	FisheyeEnabled        bool

	// Camera path played back one node per window; empty disables it.
	AutomaticCameraPath   string
	AutoCameraFrameOffset int

	StereoDisplacement float32
	StereoDistance     float32

	// Stop after this many windows; zero means unbounded.
	MaxFrames                int
	QuitOnCameraPathFinished bool

	// Compute backend name and device selection.
	Backend      string
	NumDevices   int
	Blacklist    []string
	ForcePrimary string

	Exposure         float32
	CatchErrors      bool
	ReadbackInterval time.Duration

	// Flushed frames are written here when set.
	OutputPath string

	// Interactive preview window; camera positions recorded with Space are
	// written to RecordPath on exit.
	Interactive bool
	RecordPath  string
}

// Default returns the default configuration.
func Default() Config {
	cam := scene.DefaultCamera()
	return Config{
		Width:                 1280,
		Height:                720,
		ShadowRays:            1,
		AORays:                1,
		NumBounces:            5,
		NumSamples:            ContinuousSampling,
		CameraPosition:        cam.Position,
		SensorSize:            cam.SensorSize,
		DepthRange:            cam.DepthRange,
		FocalLength:           cam.FocalLength,
		CameraKind:            scene.Perspective,
		EnvironmentMultiplier: 1,
		Backend:               "host",
		Exposure:              1,
		ReadbackInterval:      time.Second,
	}
}

// Validate checks the configuration and returns a
// *failure.ConfigurationError describing the first invalid option.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return failure.Config("resolution", "invalid frame size %dx%d", c.Width, c.Height)
	case c.NumSamples == 0 || c.NumSamples < ContinuousSampling:
		return failure.Config("num_samples", "expected %d or a positive sample count; got %d", ContinuousSampling, c.NumSamples)
	case c.NumBounces < 0:
		return failure.Config("num_bounces", "expected a non-negative bounce count; got %d", c.NumBounces)
	case c.ShadowRays < 0 || c.AORays < 0:
		return failure.Config("rays", "expected non-negative ray counts; got shadow=%d ao=%d", c.ShadowRays, c.AORays)
	case c.DepthRange[1] <= c.DepthRange[0]:
		return failure.Config("depth_range", "far plane %f must be beyond near plane %f", c.DepthRange[1], c.DepthRange[0])
	case c.SensorSize[0] <= 0 || c.SensorSize[1] <= 0:
		return failure.Config("sensor_size", "invalid sensor size %v", c.SensorSize)
	case c.FocalLength <= 0:
		return failure.Config("focal_length", "expected a positive focal length; got %f", c.FocalLength)
	case c.Aperture < 0 || c.FocusDistance < 0:
		return failure.Config("aperture", "expected non-negative aperture and focus distance")
	case c.EnvironmentMultiplier < 0:
		return failure.Config("environment_multiplier", "expected a non-negative multiplier; got %f", c.EnvironmentMultiplier)
	case c.AutoCameraFrameOffset < 0:
		return failure.Config("auto_camera_frame_offset", "expected a non-negative offset; got %d", c.AutoCameraFrameOffset)
	case c.MaxFrames < 0:
		return failure.Config("max_frames", "expected a non-negative frame count; got %d", c.MaxFrames)
	case c.QuitOnCameraPathFinished && c.AutomaticCameraPath == "":
		return failure.Config("quit_on_camera_path_finished", "no automatic camera path configured")
	case c.Backend == "":
		return failure.Config("backend", "no compute backend specified")
	case c.NumDevices < 0:
		return failure.Config("num_devices", "expected a non-negative device count; got %d", c.NumDevices)
	case c.Exposure <= 0:
		return failure.Config("exposure", "expected a positive exposure; got %f", c.Exposure)
	case c.ReadbackInterval <= 0:
		return failure.Config("readback_interval", "expected a positive interval; got %s", c.ReadbackInterval)
	}
	return nil
}

// Camera builds the initial scene camera.
func (c Config) Camera() scene.Camera {
	cam := scene.DefaultCamera()
	cam.Kind = c.CameraKind
	cam.Position = c.CameraPosition
	cam.SensorSize = c.SensorSize
	cam.DepthRange = c.DepthRange
	cam.FocalLength = c.FocalLength
	cam.FocusDistance = c.FocusDistance
	cam.Aperture = c.Aperture
	cam.StereoDisplacement = c.StereoDisplacement
	cam.StereoDistance = c.StereoDistance
	return cam
}

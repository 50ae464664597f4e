// Package pipeline post-processes the progressive render output through a
// chain of nodes driven by a tick scheduler.
package pipeline

import (
	"sync"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/log"
	"github.com/achilleasa/radiance/scene"
)

var logger = log.New("pipeline")

// EnvironmentUpdater pushes a replacement environment image into a scene.
// It is implemented by *compiler.Compiler.
type EnvironmentUpdater interface {
	UpdateEnvironment(sc *scene.Scene, img *asset.Image)
}

// Context holds the state shared by all nodes of a pipeline.
type Context struct {
	// Device owning every pipeline image. All nodes dispatch their
	// kernels here.
	Device device.Context

	Width  int
	Height int

	Scene *scene.Scene

	// Receives environment hot swaps. If nil the image is set on the scene
	// directly.
	Environment EnvironmentUpdater

	// If true the render output buffers live on Device and are normalized
	// by kernels. Otherwise they are read back, normalized on the host and
	// uploaded.
	Shared bool

	// Serializes use of Device between the scheduler and detached workers.
	deviceMu sync.Mutex
}

// Pixels returns the frame pixel count.
func (ctx *Context) Pixels() int {
	return ctx.Width * ctx.Height
}

func (ctx *Context) updateEnvironment(img *asset.Image) {
	if ctx.Environment != nil {
		ctx.Environment.UpdateEnvironment(ctx.Scene, img)
		return
	}
	ctx.Scene.SetEnvironmentImage(img)
}

//go:build !gpu

package display

import (
	"github.com/achilleasa/radiance/event"
	"github.com/achilleasa/radiance/pipeline"
)

// Window is unavailable without the gpu build tag.
type Window struct{}

func Open(title string, width, height int, handlers []event.Handler) (*Window, error) {
	return nil, ErrUnavailable
}

func (w *Window) Show(img *pipeline.Image) error { return ErrUnavailable }
func (w *Window) PollEvents()                    {}
func (w *Window) ShouldClose() bool              { return true }
func (w *Window) Close()                         {}

//go:build gpu

package display

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/achilleasa/radiance/event"
	"github.com/achilleasa/radiance/pipeline"
	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Window is an OpenGL preview window. It must be created and driven from
// the main OS thread.
type Window struct {
	window   *glfw.Window
	texFbo   uint32
	texture  uint32
	width    int
	height   int
	rgba     *image.RGBA
	handlers []event.Handler
}

// Open creates a preview window and forwards its input to handlers.
func Open(title string, width, height int, handlers []event.Handler) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("display: failed to initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("display: could not create opengl window: %w", err)
	}
	window.MakeContextCurrent()

	if err = gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("display: could not init opengl: %w", err)
	}

	w := &Window{
		window:   window,
		width:    width,
		height:   height,
		handlers: handlers,
	}

	// Setup texture for image data and attach it to an FBO for blitting
	gl.GenTextures(1, &w.texture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, w.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)

	gl.GenFramebuffers(1, &w.texFbo)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, w.texFbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, w.texture, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	window.SetKeyCallback(w.onKeyEvent)
	window.SetMouseButtonCallback(w.onMouseEvent)
	window.SetCursorPosCallback(w.onCursorPosEvent)
	window.SetCloseCallback(func(_ *glfw.Window) {
		event.Dispatch(w.handlers, event.Event{Kind: event.Quit})
	})

	logger.Infof("opened %dx%d preview window", width, height)
	return w, nil
}

// Show uploads img and presents it.
func (w *Window) Show(img *pipeline.Image) error {
	snap, err := img.Snapshot()
	if err != nil {
		return err
	}
	if snap.Width != w.width || snap.Height != w.height {
		return fmt.Errorf("display: image is %dx%d; window is %dx%d", snap.Width, snap.Height, w.width, w.height)
	}

	// GL textures start at the bottom row.
	w.rgba = ToRGBA(snap.Pix, snap.Width, snap.Height, true, w.rgba)
	gl.BindTexture(gl.TEXTURE_2D, w.texture)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w.width), int32(w.height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&w.rgba.Pix[0]))

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, w.texFbo)
	gl.BlitFramebuffer(0, 0, int32(w.width), int32(w.height), 0, 0, int32(w.width), int32(w.height), gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	w.window.SwapBuffers()
	return nil
}

// PollEvents processes pending window events.
func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) ShouldClose() bool {
	return w.window.ShouldClose()
}

func (w *Window) Close() {
	gl.DeleteFramebuffers(1, &w.texFbo)
	gl.DeleteTextures(1, &w.texture)
	w.window.Destroy()
	glfw.Terminate()
}

func (w *Window) onKeyEvent(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	var kind event.Kind
	switch action {
	case glfw.Press:
		kind = event.KeyPress
	case glfw.Release:
		kind = event.KeyRelease
	default:
		return
	}

	k := mapKey(key)
	if k == event.KeyUnknown {
		return
	}
	event.Dispatch(w.handlers, event.Event{Kind: kind, Key: k})
}

func (w *Window) onMouseEvent(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	var b event.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = event.ButtonLeft
	case glfw.MouseButtonRight:
		b = event.ButtonRight
	case glfw.MouseButtonMiddle:
		b = event.ButtonMiddle
	default:
		return
	}

	kind := event.MouseUp
	if action == glfw.Press {
		kind = event.MouseDown
	}
	x, y := win.GetCursorPos()
	event.Dispatch(w.handlers, event.Event{Kind: kind, Button: b, X: float32(x), Y: float32(y)})
}

func (w *Window) onCursorPosEvent(_ *glfw.Window, xPos, yPos float64) {
	event.Dispatch(w.handlers, event.Event{Kind: event.MouseMove, X: float32(xPos), Y: float32(yPos)})
}

func mapKey(key glfw.Key) event.Key {
	switch key {
	case glfw.KeyW:
		return event.KeyW
	case glfw.KeyA:
		return event.KeyA
	case glfw.KeyS:
		return event.KeyS
	case glfw.KeyD:
		return event.KeyD
	case glfw.KeyE:
		return event.KeyE
	case glfw.KeyX:
		return event.KeyX
	case glfw.KeyUp:
		return event.KeyUp
	case glfw.KeyDown:
		return event.KeyDown
	case glfw.KeyLeft:
		return event.KeyLeft
	case glfw.KeyRight:
		return event.KeyRight
	case glfw.KeyHome:
		return event.KeyHome
	case glfw.KeyEnd:
		return event.KeyEnd
	case glfw.KeySpace:
		return event.KeySpace
	case glfw.KeyEscape:
		return event.KeyEscape
	case glfw.KeyLeftShift:
		return event.KeyLeftShift
	case glfw.KeyRightShift:
		return event.KeyRightShift
	}
	return event.KeyUnknown
}

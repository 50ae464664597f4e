package event

import (
	"sync"
	"time"

	"github.com/achilleasa/radiance/campath"
	"github.com/achilleasa/radiance/log"
	"github.com/achilleasa/radiance/scene"
)

var logger = log.New("event")

const (
	// Coefficient for converting cursor deltas to camera angles.
	mouseSensitivity float32 = 0.001125

	// Camera movement speed in world units per second.
	defaultMoveSpeed float32 = 2.0

	// Divider applied to the move speed while shift is held.
	precisionDivider float32 = 20
)

// CameraController moves the scene camera from keyboard and mouse input.
// Handle may be called from the window goroutine while Update runs on the
// scheduler goroutine.
type CameraController struct {
	mu sync.Mutex

	pressed  map[Key]bool
	dragging bool
	lastX    float32
	lastY    float32

	// Pending mouse rotation.
	yaw  float32
	tilt float32

	// Set when Space was pressed since the last update.
	savePending bool

	recorder  *campath.Recorder
	moveSpeed float32
	now       func() time.Time
	lastTick  time.Time
}

// NewCameraController creates a controller. Recorded positions are added to
// recorder, which may be nil.
func NewCameraController(recorder *campath.Recorder) *CameraController {
	return &CameraController{
		pressed:   make(map[Key]bool),
		recorder:  recorder,
		moveSpeed: defaultMoveSpeed,
		now:       time.Now,
	}
}

// SetMoveSpeed overrides the movement speed in world units per second.
func (c *CameraController) SetMoveSpeed(speed float32) {
	c.mu.Lock()
	c.moveSpeed = speed
	c.mu.Unlock()
}

func (c *CameraController) Handle(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case KeyPress:
		if ev.Key == KeySpace {
			c.savePending = true
			return true
		}
		if !isCameraKey(ev.Key) {
			return false
		}
		c.pressed[ev.Key] = true
		return true
	case KeyRelease:
		if !isCameraKey(ev.Key) {
			return false
		}
		delete(c.pressed, ev.Key)
		return true
	case MouseDown:
		if ev.Button != ButtonLeft {
			return false
		}
		c.dragging = true
		c.lastX, c.lastY = ev.X, ev.Y
		return true
	case MouseUp:
		if ev.Button != ButtonLeft {
			return false
		}
		c.dragging = false
		return true
	case MouseMove:
		if !c.dragging {
			return false
		}
		dx, dy := ev.X-c.lastX, ev.Y-c.lastY
		c.lastX, c.lastY = ev.X, ev.Y
		c.yaw += dx * mouseSensitivity
		c.tilt -= dy * mouseSensitivity
		return true
	}
	return false
}

func isCameraKey(k Key) bool {
	switch k {
	case KeyW, KeyA, KeyS, KeyD, KeyE, KeyX,
		KeyUp, KeyDown, KeyLeft, KeyRight, KeyHome, KeyEnd,
		KeyLeftShift, KeyRightShift:
		return true
	}
	return false
}

// Update applies pending input to the scene camera and returns true if the
// camera changed. Movement is scaled by the time elapsed since the previous
// call. If a position save was requested it is recorded against tick.
func (c *CameraController) Update(sc *scene.Scene, tick int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var dt float32
	if !c.lastTick.IsZero() {
		dt = float32(now.Sub(c.lastTick).Seconds())
	}
	c.lastTick = now

	var forward, right, up float32
	if c.pressed[KeyW] || c.pressed[KeyUp] {
		forward++
	}
	if c.pressed[KeyS] || c.pressed[KeyDown] {
		forward--
	}
	if c.pressed[KeyD] || c.pressed[KeyRight] {
		right++
	}
	if c.pressed[KeyA] || c.pressed[KeyLeft] {
		right--
	}
	if c.pressed[KeyE] || c.pressed[KeyHome] {
		up++
	}
	if c.pressed[KeyX] || c.pressed[KeyEnd] {
		up--
	}

	speed := c.moveSpeed * dt
	if c.pressed[KeyLeftShift] || c.pressed[KeyRightShift] {
		speed /= precisionDivider
	}

	moved := speed != 0 && (forward != 0 || right != 0 || up != 0)
	rotated := c.yaw != 0 || c.tilt != 0
	if moved || rotated {
		yaw, tilt := c.yaw, c.tilt
		sc.UpdateCamera(func(cam *scene.Camera) {
			if rotated {
				cam.Rotate(yaw, 0)
				cam.Tilt(tilt)
			}
			if moved {
				cam.MoveForward(forward * speed)
				cam.MoveRight(right * speed)
				cam.MoveUp(up * speed)
			}
		})
		c.yaw, c.tilt = 0, 0
	}

	if c.savePending {
		c.savePending = false
		cam := sc.Camera()
		if c.recorder != nil {
			c.recorder.Add(tick, campath.Pose{Position: cam.Position, Theta: cam.Theta, Phi: cam.Phi})
			logger.Noticef("saved camera position %d at tick %d", c.recorder.Len(), tick)
		}
	}

	return moved || rotated
}

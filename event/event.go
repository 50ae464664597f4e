// Package event translates window input into camera and session control.
package event

import "fmt"

type Kind uint8

// Supported event kinds.
const (
	KeyPress Kind = iota
	KeyRelease
	MouseDown
	MouseUp
	MouseMove
	Quit
)

func (k Kind) String() string {
	switch k {
	case KeyPress:
		return "key-press"
	case KeyRelease:
		return "key-release"
	case MouseDown:
		return "mouse-down"
	case MouseUp:
		return "mouse-up"
	case MouseMove:
		return "mouse-move"
	case Quit:
		return "quit"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Key identifies a keyboard key independently of the windowing toolkit.
type Key uint16

const (
	KeyUnknown Key = iota
	KeyW
	KeyA
	KeyS
	KeyD
	KeyE
	KeyX
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeySpace
	KeyEscape
	KeyLeftShift
	KeyRightShift
)

type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// An Event is a single input notification. X and Y hold the cursor position
// for mouse events.
type Event struct {
	Kind   Kind
	Key    Key
	Button Button
	X, Y   float32
}

// A Handler consumes events. Handle returns true if the event was consumed
// and should not be passed to other handlers.
type Handler interface {
	Handle(ev Event) bool
}

// Dispatch passes ev to each handler in turn until one consumes it.
func Dispatch(handlers []Handler, ev Event) bool {
	for _, h := range handlers {
		if h.Handle(ev) {
			return true
		}
	}
	return false
}

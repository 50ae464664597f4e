// Package device defines the compute-binding contract used by the render
// core: enumerable backends, per-device contexts, float32 buffers and
// kernels invoked by name.
package device

import (
	"fmt"
	"time"
)

type DeviceType uint8

// Supported device types.
const (
	CpuDevice DeviceType = 1 << iota
	GpuDevice
	OtherDevice
	AllDevices DeviceType = 0xFF
)

func (dt DeviceType) String() string {
	switch dt {
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	}
	return fmt.Sprintf("DeviceType(%d)", uint8(dt))
}

// Info describes a device exposed by a backend.
type Info struct {
	// Index of the device within its backend.
	Index int

	Name string
	Type DeviceType

	// Relative speed estimate used for primary device selection.
	Speed uint32
}

// Implements Stringer.
func (i Info) String() string {
	return fmt.Sprintf("%s (%s, speed %d)", i.Name, i.Type, i.Speed)
}

// A Backend enumerates devices and opens contexts on them.
type Backend interface {
	Name() string
	Devices() ([]Info, error)
	Open(info Info) (Context, error)
}

// A Context owns the queue and the kernel library of a single device.
// Contexts are not safe for concurrent use; each one is driven by a single
// goroutine.
type Context interface {
	Info() Info

	// Allocate a buffer holding size float32 elements, initialized to zero.
	Buffer(name string, size int) (Buffer, error)

	// Load kernel by name.
	Kernel(name string) (Kernel, error)

	// Block until all queued work completes.
	Finish() error

	Release()
}

// A Buffer is a device-resident array of float32 elements.
type Buffer interface {
	Name() string

	// Size in elements.
	Size() int

	// Copy data into the buffer starting at the given element offset.
	WriteData(data []float32, offset int) error

	// Copy buffer contents starting at the given element offset into dst.
	ReadData(offset int, dst []float32) error

	// Set every element to v.
	Fill(v float32) error

	// Release buffer. Calling Release more than once is a no-op.
	Release()
}

// A Kernel is a named compute program. Arguments are bound positionally and
// may be Buffers, int32, uint32, float32 or types.Vec2/Vec3/Vec4 values.
type Kernel interface {
	Name() string
	SetArgs(args ...interface{}) error

	// Exec1D and Exec2D block until the dispatch completes and return its
	// duration. A zero local work size lets the backend pick one.
	Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error)
	Exec2D(offsetX, offsetY, globalWorkSizeX, globalWorkSizeY, localWorkSizeX, localWorkSizeY int) (time.Duration, error)

	Release()
}

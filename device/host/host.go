// Package host implements a software compute backend. Kernels are Go
// functions dispatched in parallel chunks over a shared worker pool.
package host

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/log"
)

// BackendName is the name the host backend registers under.
const BackendName = "host"

// Number of virtual devices exposed when none is configured.
const defaultDeviceCount = 2

var logger = log.New("host")

func init() {
	device.Register(BackendName, func() (device.Backend, error) {
		return NewBackend(defaultDeviceCount), nil
	})
}

// Backend exposes a configurable number of virtual CPU devices that share a
// worker pool.
type Backend struct {
	numDevices int

	poolOnce sync.Once
	pool     worker.DynamicWorkerPool
	workers  int
}

// NewBackend creates a host backend exposing numDevices virtual devices.
func NewBackend(numDevices int) *Backend {
	if numDevices < 1 {
		numDevices = 1
	}
	return &Backend{numDevices: numDevices}
}

func (b *Backend) Name() string {
	return BackendName
}

// SetDeviceCount changes the number of exposed virtual devices.
func (b *Backend) SetDeviceCount(n int) {
	if n > 0 {
		b.numDevices = n
	}
}

func (b *Backend) Devices() ([]device.Info, error) {
	infos := make([]device.Info, b.numDevices)
	for index := range infos {
		infos[index] = device.Info{
			Index: index,
			Name:  fmt.Sprintf("host-cpu%d", index),
			Type:  device.CpuDevice,
			Speed: uint32(runtime.NumCPU()),
		}
	}
	return infos, nil
}

func (b *Backend) Open(info device.Info) (device.Context, error) {
	if info.Index < 0 || info.Index >= b.numDevices {
		return nil, fmt.Errorf("host device (%s): %w", info.Name, device.ErrNoDevices)
	}

	b.poolOnce.Do(func() {
		b.workers = runtime.NumCPU()
		if b.workers > 64 {
			b.workers = 64
		}
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
		logger.Debugf("started host worker pool with %d workers", b.workers)
	})

	return &Context{
		info:    info,
		backend: b,
	}, nil
}

// Context is a virtual host device.
type Context struct {
	info     device.Info
	backend  *Backend
	released bool

	taskID int
}

func (c *Context) Info() device.Info {
	return c.info
}

func (c *Context) Buffer(name string, size int) (device.Buffer, error) {
	if c.released {
		return nil, fmt.Errorf("host device (%s): could not allocate buffer %s: %w", c.info.Name, name, device.ErrReleased)
	}
	if size < 0 {
		return nil, fmt.Errorf("host device (%s): could not allocate buffer %s of size %d", c.info.Name, name, size)
	}
	return &Buffer{
		ctx:  c,
		name: name,
		data: make([]float32, size),
	}, nil
}

func (c *Context) Kernel(name string) (device.Kernel, error) {
	if c.released {
		return nil, fmt.Errorf("host device (%s): could not load kernel %s: %w", c.info.Name, name, device.ErrReleased)
	}
	def, ok := kernelLibrary[name]
	if !ok {
		return nil, fmt.Errorf("host device (%s): could not load kernel %s: %w", c.info.Name, name, device.ErrUnknownKernel)
	}
	return &Kernel{
		ctx:  c,
		name: name,
		def:  def,
	}, nil
}

// Host kernels complete synchronously so there is never pending work.
func (c *Context) Finish() error {
	if c.released {
		return fmt.Errorf("host device (%s): %w", c.info.Name, device.ErrReleased)
	}
	return nil
}

func (c *Context) Release() {
	c.released = true
}

// Split [0, total) into chunks and run fn on each chunk using the shared
// worker pool. Blocks until all chunks complete.
func (c *Context) parallel(total int, fn func(start, end int)) {
	if total <= 0 {
		return
	}

	chunks := c.backend.workers * 2
	if chunks > total {
		chunks = total
	}
	if chunks <= 1 {
		fn(0, total)
		return
	}

	chunkSize := (total + chunks - 1) / chunks
	var wg sync.WaitGroup
	for start := 0; start < total; start += chunkSize {
		end := start + chunkSize
		if end > total {
			end = total
		}

		wg.Add(1)
		from, to := start, end
		id := c.taskID
		c.taskID++
		c.backend.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				fn(from, to)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

//go:build gpu

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"time"
	"unsafe"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/types"
	"github.com/cogentcore/webgpu/wgpu"
)

// Max workgroups per dispatch dimension.
const maxWorkgroupsPerDim = 65535

func init() {
	device.Register(BackendName, func() (device.Backend, error) {
		return NewBackend()
	})
}

// Backend exposes the WebGPU adapters available to this process.
type Backend struct {
	instance *wgpu.Instance
	adapters []*wgpu.Adapter
}

// NewBackend creates a WebGPU instance and requests the high performance
// adapter plus the fallback adapter when one exists.
func NewBackend() (*Backend, error) {
	b := &Backend{instance: wgpu.CreateInstance(nil)}
	for _, fallback := range []bool{false, true} {
		adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			ForceFallbackAdapter: fallback,
			PowerPreference:      wgpu.PowerPreferenceHighPerformance,
		})
		if err != nil || adapter == nil {
			continue
		}
		b.adapters = append(b.adapters, adapter)
	}

	if len(b.adapters) == 0 {
		return nil, device.ErrNoDevices
	}
	return b, nil
}

func (b *Backend) Name() string {
	return BackendName
}

func (b *Backend) Devices() ([]device.Info, error) {
	infos := make([]device.Info, 0, len(b.adapters))
	for index, adapter := range b.adapters {
		props := adapter.GetInfo()
		info := device.Info{
			Index: index,
			Name:  props.Name,
			Type:  device.OtherDevice,
			Speed: 1,
		}
		switch props.AdapterType {
		case wgpu.AdapterTypeDiscreteGPU:
			info.Type, info.Speed = device.GpuDevice, 100
		case wgpu.AdapterTypeIntegratedGPU:
			info.Type, info.Speed = device.GpuDevice, 50
		case wgpu.AdapterTypeCPU:
			info.Type, info.Speed = device.CpuDevice, 10
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (b *Backend) Open(info device.Info) (device.Context, error) {
	if info.Index < 0 || info.Index >= len(b.adapters) {
		return nil, failure.Fatal(info.Name, "open", device.ErrNoDevices)
	}

	dev, err := b.adapters[info.Index].RequestDevice(&wgpu.DeviceDescriptor{
		Label: info.Name,
	})
	if err != nil {
		return nil, failure.Fatal(info.Name, "request device", err)
	}

	return &Context{
		info:      info,
		device:    dev,
		queue:     dev.GetQueue(),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}, nil
}

// Context wraps a WebGPU device and its queue.
type Context struct {
	info   device.Info
	device *wgpu.Device
	queue  *wgpu.Queue

	// Compiled kernels by name.
	pipelines map[string]*wgpu.ComputePipeline
}

func (c *Context) Info() device.Info {
	return c.info
}

func (c *Context) Buffer(name string, size int) (device.Buffer, error) {
	if c.device == nil {
		return nil, fmt.Errorf("webgpu device (%s): could not allocate buffer %s: %w", c.info.Name, name, device.ErrReleased)
	}

	// Zero-sized storage bindings are invalid
	byteSize := uint64(size) * 4
	if byteSize == 0 {
		byteSize = 16
	}
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  byteSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu device (%s): could not allocate buffer %s of size %d: %w", c.info.Name, name, size, err)
	}

	return &Buffer{ctx: c, name: name, size: size, handle: buf}, nil
}

func (c *Context) Kernel(name string) (device.Kernel, error) {
	if c.device == nil {
		return nil, fmt.Errorf("webgpu device (%s): could not load kernel %s: %w", c.info.Name, name, device.ErrReleased)
	}

	pipeline, ok := c.pipelines[name]
	if !ok {
		src, err := Source(name)
		if err != nil {
			return nil, fmt.Errorf("webgpu device (%s): could not load kernel %s: %w", c.info.Name, name, err)
		}

		module, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          name,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
		})
		if err != nil {
			return nil, &failure.FatalInitError{Device: c.info.Name, Op: "build kernel " + name, Log: err.Error(), Err: err}
		}
		defer module.Release()

		pipeline, err = c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label: name,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: entryPoint,
			},
		})
		if err != nil {
			return nil, &failure.FatalInitError{Device: c.info.Name, Op: "create pipeline " + name, Log: err.Error(), Err: err}
		}
		c.pipelines[name] = pipeline
		logger.Debugf("webgpu device (%s): compiled kernel %s", c.info.Name, name)
	}

	return &Kernel{ctx: c, name: name, pipeline: pipeline}, nil
}

func (c *Context) Finish() error {
	if c.device == nil {
		return fmt.Errorf("webgpu device (%s): %w", c.info.Name, device.ErrReleased)
	}
	c.device.Poll(true, nil)
	return nil
}

func (c *Context) Release() {
	if c.device == nil {
		return
	}
	for name, pipeline := range c.pipelines {
		pipeline.Release()
		delete(c.pipelines, name)
	}
	c.queue.Release()
	c.device.Release()
	c.device = nil
}

// Submit the recorded commands and block until the queue drains.
func (c *Context) submit(encoder *wgpu.CommandEncoder) error {
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	c.queue.Submit(cmd)
	c.device.Poll(true, nil)
	return nil
}

// Buffer is a WebGPU storage buffer of float32 elements.
type Buffer struct {
	ctx    *Context
	name   string
	size   int
	handle *wgpu.Buffer
}

func (b *Buffer) Name() string {
	return b.name
}

func (b *Buffer) Size() int {
	return b.size
}

func (b *Buffer) WriteData(data []float32, offset int) error {
	if b.handle == nil {
		return fmt.Errorf("webgpu device (%s): could not write to buffer %s: %w", b.ctx.info.Name, b.name, device.ErrReleased)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("webgpu device (%s): insufficient buffer space (%d) in %s for copying data of length %d at offset %d: %w", b.ctx.info.Name, b.size, b.name, len(data), offset, device.ErrOutOfRange)
	}
	if len(data) == 0 {
		return nil
	}
	if err := b.ctx.queue.WriteBuffer(b.handle, uint64(offset)*4, floatBytes(data)); err != nil {
		return fmt.Errorf("webgpu device (%s): error copying host data to device buffer %s: %w", b.ctx.info.Name, b.name, err)
	}
	return nil
}

func (b *Buffer) ReadData(offset int, dst []float32) error {
	if b.handle == nil {
		return fmt.Errorf("webgpu device (%s): could not read from buffer %s: %w", b.ctx.info.Name, b.name, device.ErrReleased)
	}
	if offset < 0 || offset+len(dst) > b.size {
		return fmt.Errorf("webgpu device (%s): could not read %d elements at offset %d from buffer %s of size %d: %w", b.ctx.info.Name, len(dst), offset, b.name, b.size, device.ErrOutOfRange)
	}
	if len(dst) == 0 {
		return nil
	}

	byteSize := uint64(len(dst)) * 4
	staging, err := b.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.name + " readback",
		Size:  byteSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("webgpu device (%s): could not allocate readback buffer for %s: %w", b.ctx.info.Name, b.name, err)
	}
	defer staging.Release()

	encoder, err := b.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()
	if err = encoder.CopyBufferToBuffer(b.handle, uint64(offset)*4, staging, 0, byteSize); err != nil {
		return fmt.Errorf("webgpu device (%s): error copying device data from %s: %w", b.ctx.info.Name, b.name, err)
	}
	if err = b.ctx.submit(encoder); err != nil {
		return err
	}

	var status wgpu.BufferMapAsyncStatus
	if err = staging.MapAsync(wgpu.MapModeRead, 0, byteSize, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return err
	}
	b.ctx.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("webgpu device (%s): could not map readback buffer for %s (status %d)", b.ctx.info.Name, b.name, status)
	}

	copy(floatBytes(dst), staging.GetMappedRange(0, uint(byteSize)))
	return staging.Unmap()
}

func (b *Buffer) Fill(v float32) error {
	data := make([]float32, b.size)
	for i := range data {
		data[i] = v
	}
	return b.WriteData(data, 0)
}

func (b *Buffer) Release() {
	if b.handle != nil {
		b.handle.Release()
		b.handle = nil
	}
}

// Kernel is a compiled compute pipeline with its bound arguments.
type Kernel struct {
	ctx      *Context
	name     string
	pipeline *wgpu.ComputePipeline

	buffers []*Buffer
	params  []byte
}

func (k *Kernel) Name() string {
	return k.name
}

// Bind arguments. Buffers map to bindings 0..n-1 in order; scalar and vector
// arguments are packed in order into a uniform block bound right after them.
func (k *Kernel) SetArgs(args ...interface{}) error {
	k.buffers = k.buffers[:0]
	k.params = k.params[:0]

	for argIndex, arg := range args {
		switch v := arg.(type) {
		case *Buffer:
			if v.ctx != k.ctx {
				return fmt.Errorf("webgpu device (%s): could not set arg %d for kernel %s: %w", k.ctx.info.Name, argIndex, k.name, device.ErrForeignBuffer)
			}
			k.buffers = append(k.buffers, v)
		case int32:
			k.params = binary.LittleEndian.AppendUint32(k.params, uint32(v))
		case uint32:
			k.params = binary.LittleEndian.AppendUint32(k.params, v)
		case float32:
			k.params = binary.LittleEndian.AppendUint32(k.params, math.Float32bits(v))
		case types.Vec2:
			k.appendFloats(v[:]...)
		case types.Vec3:
			k.appendFloats(v[:]...)
		case types.Vec4:
			k.appendFloats(v[:]...)
		default:
			return fmt.Errorf(
				"webgpu device (%s): could not set arg %d for kernel %s; unsupported arg type: %s",
				k.ctx.info.Name,
				argIndex,
				k.name,
				reflect.TypeOf(arg),
			)
		}
	}

	// Uniform blocks are sized in multiples of 16 bytes
	for len(k.params)%16 != 0 || len(k.params) == 0 {
		k.params = append(k.params, 0)
	}
	return nil
}

func (k *Kernel) appendFloats(values ...float32) {
	for _, v := range values {
		k.params = binary.LittleEndian.AppendUint32(k.params, math.Float32bits(v))
	}
}

func (k *Kernel) Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error) {
	if offset != 0 {
		return 0, fmt.Errorf("webgpu device (%s): kernel %s: non-zero dispatch offsets are not supported", k.ctx.info.Name, k.name)
	}
	return k.dispatch(globalWorkSize)
}

func (k *Kernel) Exec2D(offsetX, offsetY, globalWorkSizeX, globalWorkSizeY, localWorkSizeX, localWorkSizeY int) (time.Duration, error) {
	if offsetX != 0 || offsetY != 0 {
		return 0, fmt.Errorf("webgpu device (%s): kernel %s: non-zero dispatch offsets are not supported", k.ctx.info.Name, k.name)
	}
	return k.dispatch(globalWorkSizeX * globalWorkSizeY)
}

// Kernels index work items as gid.x + gid.y * maxWorkgroupsPerDim * workgroupSize.
func (k *Kernel) dispatch(items int) (time.Duration, error) {
	if k.ctx.device == nil {
		return 0, fmt.Errorf("webgpu device (%s): unable to execute kernel %s: %w", k.ctx.info.Name, k.name, device.ErrReleased)
	}

	tick := time.Now()
	paramBuf, err := k.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: k.name + " params",
		Size:  uint64(len(k.params)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, err
	}
	defer paramBuf.Release()
	if err = k.ctx.queue.WriteBuffer(paramBuf, 0, k.params); err != nil {
		return 0, err
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(k.buffers)+1)
	for index, buf := range k.buffers {
		if buf.handle == nil {
			return 0, fmt.Errorf("webgpu device (%s): unable to execute kernel %s; arg %d: %w", k.ctx.info.Name, k.name, index, device.ErrReleased)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(index),
			Buffer:  buf.handle,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}
	entries = append(entries, wgpu.BindGroupEntry{
		Binding: uint32(len(k.buffers)),
		Buffer:  paramBuf,
		Offset:  0,
		Size:    wgpu.WholeSize,
	})

	layout := k.pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bindGroup, err := k.ctx.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.name,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return 0, fmt.Errorf("webgpu device (%s): could not bind args for kernel %s: %w", k.ctx.info.Name, k.name, err)
	}
	defer bindGroup.Release()

	encoder, err := k.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return 0, err
	}
	defer encoder.Release()

	groups := (items + workgroupSize - 1) / workgroupSize
	groupsX, groupsY := groups, 1
	if groupsX > maxWorkgroupsPerDim {
		groupsX = maxWorkgroupsPerDim
		groupsY = (groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(groupsX), uint32(groupsY), 1)
	if err = pass.End(); err != nil {
		return 0, fmt.Errorf("webgpu device (%s): unable to execute kernel %s: %w", k.ctx.info.Name, k.name, err)
	}
	pass.Release()

	if err = k.ctx.submit(encoder); err != nil {
		return 0, fmt.Errorf("webgpu device (%s): kernel %s did not complete successfully: %w", k.ctx.info.Name, k.name, err)
	}
	return time.Since(tick), nil
}

func (k *Kernel) Release() {
	k.buffers = nil
	k.params = nil
}

func floatBytes(data []float32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

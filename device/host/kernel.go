package host

import (
	"fmt"
	"time"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/types"
)

// Kernel argument kinds.
const (
	argBuffer  = 'b'
	argUint32  = 'u'
	argInt32   = 'i'
	argFloat32 = 'f'
	argVec2    = '2'
	argVec3    = '3'
	argVec4    = '4'
)

// A kernel body processes work items [start, end) of a dispatch whose global
// size is dims[0] x dims[1].
type kernelFunc func(a args, dims [2]int, start, end int)

type kernelDef struct {
	// One argument kind per positional argument.
	signature string
	body      kernelFunc
}

// Bound kernel arguments.
type args []interface{}

func (a args) buf(index int) []float32 { return a[index].(*Buffer).data }
func (a args) u32(index int) uint32    { return a[index].(uint32) }
func (a args) f32(index int) float32   { return a[index].(float32) }

// Kernel is a named host kernel bound to a context.
type Kernel struct {
	ctx  *Context
	name string
	def  kernelDef
	args args
}

func (k *Kernel) Name() string {
	return k.name
}

// Bind arguments to kernel. Arguments are type-checked against the kernel
// signature and buffers must belong to the kernel's device.
func (k *Kernel) SetArgs(values ...interface{}) error {
	if len(values) != len(k.def.signature) {
		return fmt.Errorf("host device (%s): kernel %s expects %d args; got %d", k.ctx.info.Name, k.name, len(k.def.signature), len(values))
	}

	for argIndex, arg := range values {
		var ok bool
		switch k.def.signature[argIndex] {
		case argBuffer:
			var buf *Buffer
			if buf, ok = arg.(*Buffer); ok {
				if buf.ctx != k.ctx {
					return fmt.Errorf("host device (%s): could not set arg %d for kernel %s: %w", k.ctx.info.Name, argIndex, k.name, device.ErrForeignBuffer)
				}
				if buf.data == nil {
					return fmt.Errorf("host device (%s): could not set arg %d for kernel %s: %w", k.ctx.info.Name, argIndex, k.name, device.ErrReleased)
				}
			}
		case argUint32:
			_, ok = arg.(uint32)
		case argInt32:
			_, ok = arg.(int32)
		case argFloat32:
			_, ok = arg.(float32)
		case argVec2:
			_, ok = arg.(types.Vec2)
		case argVec3:
			_, ok = arg.(types.Vec3)
		case argVec4:
			_, ok = arg.(types.Vec4)
		}

		if !ok {
			return fmt.Errorf(
				"host device (%s): could not set arg %d for kernel %s; unsupported arg type: %T",
				k.ctx.info.Name,
				argIndex,
				k.name,
				arg,
			)
		}
	}

	k.args = append(k.args[:0], values...)
	return nil
}

func (k *Kernel) Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error) {
	return k.exec(offset, [2]int{globalWorkSize, 1})
}

func (k *Kernel) Exec2D(offsetX, offsetY, globalWorkSizeX, globalWorkSizeY, localWorkSizeX, localWorkSizeY int) (time.Duration, error) {
	return k.exec(offsetY*globalWorkSizeX+offsetX, [2]int{globalWorkSizeX, globalWorkSizeY})
}

func (k *Kernel) exec(offset int, dims [2]int) (time.Duration, error) {
	if k.ctx.released {
		return 0, fmt.Errorf("host device (%s): unable to execute kernel %s: %w", k.ctx.info.Name, k.name, device.ErrReleased)
	}
	if len(k.args) != len(k.def.signature) {
		return 0, fmt.Errorf("host device (%s): unable to execute kernel %s: args not bound", k.ctx.info.Name, k.name)
	}
	for argIndex, arg := range k.args {
		if buf, ok := arg.(*Buffer); ok && buf.data == nil {
			return 0, fmt.Errorf("host device (%s): unable to execute kernel %s; arg %d: %w", k.ctx.info.Name, k.name, argIndex, device.ErrReleased)
		}
	}

	tick := time.Now()
	a := k.args
	k.ctx.parallel(dims[0]*dims[1]-offset, func(start, end int) {
		k.def.body(a, dims, start+offset, end+offset)
	})
	return time.Since(tick), nil
}

func (k *Kernel) Release() {
	k.args = nil
}

package host

import (
	"fmt"

	"github.com/achilleasa/radiance/device"
)

// Buffer is a host-memory device buffer.
type Buffer struct {
	ctx  *Context
	name string
	data []float32
}

func (b *Buffer) Name() string {
	return b.name
}

func (b *Buffer) Size() int {
	return len(b.data)
}

func (b *Buffer) WriteData(data []float32, offset int) error {
	if b.data == nil {
		return fmt.Errorf("host device (%s): could not write to buffer %s: %w", b.ctx.info.Name, b.name, device.ErrReleased)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("host device (%s): insufficient buffer space (%d) in %s for copying data of length %d at offset %d: %w", b.ctx.info.Name, len(b.data), b.name, len(data), offset, device.ErrOutOfRange)
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *Buffer) ReadData(offset int, dst []float32) error {
	if b.data == nil {
		return fmt.Errorf("host device (%s): could not read from buffer %s: %w", b.ctx.info.Name, b.name, device.ErrReleased)
	}
	if offset < 0 || offset+len(dst) > len(b.data) {
		return fmt.Errorf("host device (%s): could not read %d elements at offset %d from buffer %s of size %d: %w", b.ctx.info.Name, len(dst), offset, b.name, len(b.data), device.ErrOutOfRange)
	}
	copy(dst, b.data[offset:])
	return nil
}

func (b *Buffer) Fill(v float32) error {
	if b.data == nil {
		return fmt.Errorf("host device (%s): could not fill buffer %s: %w", b.ctx.info.Name, b.name, device.ErrReleased)
	}
	for i := range b.data {
		b.data[i] = v
	}
	return nil
}

func (b *Buffer) Release() {
	b.data = nil
}

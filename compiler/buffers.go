package compiler

import (
	"math"
	"reflect"

	"github.com/achilleasa/radiance/device"
)

// A table is a device buffer together with the host copy of its last
// uploaded contents.
type table struct {
	name string
	buf  device.Buffer
	data []float32
}

func newTable(name string) *table {
	return &table{name: name}
}

// Upload data to the device, reallocating the buffer if its size changes.
// Returns false if the contents are identical to the last upload.
func (t *table) update(ctx device.Context, data []float32) (bool, error) {
	if t.buf != nil && sameBits(t.data, data) {
		return false, nil
	}

	if t.buf == nil || t.buf.Size() != len(data) {
		t.release()
		buf, err := ctx.Buffer(t.name, len(data))
		if err != nil {
			return false, err
		}
		t.buf = buf
	}

	if err := t.buf.WriteData(data, 0); err != nil {
		return false, err
	}
	t.data = data
	return true, nil
}

func (t *table) release() {
	if t.buf != nil {
		t.buf.Release()
		t.buf = nil
	}
	t.data = nil
}

func sameBits(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for index := range a {
		if math.Float32bits(a[index]) != math.Float32bits(b[index]) {
			return false
		}
	}
	return true
}

// The set of GPU tables for a compiled scene.
type tableSet struct {
	Camera      *table
	Shapes      *table
	Materials   *table
	Lights      *table
	TexHeaders  *table
	Texels      *table
	Environment *table
}

func newTableSet() tableSet {
	return tableSet{
		Camera:      newTable("camera"),
		Shapes:      newTable("shapes"),
		Materials:   newTable("materials"),
		Lights:      newTable("lights"),
		TexHeaders:  newTable("textureHeaders"),
		Texels:      newTable("texels"),
		Environment: newTable("environment"),
	}
}

// Release all tables.
func (ts *tableSet) release() {
	reflVal := reflect.ValueOf(*ts)
	for fieldIndex := 0; fieldIndex < reflVal.NumField(); fieldIndex++ {
		if t, ok := reflVal.Field(fieldIndex).Interface().(*table); ok && t != nil {
			t.release()
		}
	}
}

package compiler

import (
	"fmt"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/scene"
)

// A MeshRange locates the vertices of a shape inside the intersector's
// geometry buffers.
type MeshRange struct {
	First int
	Count int
}

// An Intersector owns the device-side geometry used for ray intersection.
type Intersector interface {
	// Replace the loaded geometry. Returns one range per shape.
	Load(shapes []*scene.Shape) ([]MeshRange, error)

	Release()
}

// IntersectorFactory creates an Intersector bound to a device context.
type IntersectorFactory func(ctx device.Context) Intersector

// BufferIntersector uploads de-indexed triangle soup into a vertex and a
// normal buffer (float4 per vertex).
type BufferIntersector struct {
	ctx      device.Context
	vertices *table
	normals  *table
}

// NewBufferIntersector is the default IntersectorFactory.
func NewBufferIntersector(ctx device.Context) Intersector {
	return &BufferIntersector{
		ctx:      ctx,
		vertices: newTable("vertices"),
		normals:  newTable("normals"),
	}
}

func (bi *BufferIntersector) Load(shapes []*scene.Shape) ([]MeshRange, error) {
	var count int
	for _, shape := range shapes {
		count += len(shape.Indices)
	}
	if count == 0 {
		count = 1
	}

	vertices := make([]float32, count*4)
	normals := make([]float32, count*4)
	ranges := make([]MeshRange, len(shapes))

	o := 0
	for shapeIndex, shape := range shapes {
		if len(shape.Normals) != 0 && len(shape.Normals) != len(shape.Vertices) {
			return nil, fmt.Errorf("shape %q: %w", shape.Name, ErrMissingNormals)
		}
		ranges[shapeIndex] = MeshRange{First: o / 4, Count: len(shape.Indices)}
		for _, vIndex := range shape.Indices {
			if int(vIndex) >= len(shape.Vertices) {
				return nil, fmt.Errorf("shape %q: vertex %d: %w", shape.Name, vIndex, ErrInvalidIndex)
			}
			v := shape.Vertices[vIndex]
			copy(vertices[o:o+3], v[:])
			if len(shape.Normals) != 0 {
				n := shape.Normals[vIndex]
				copy(normals[o:o+3], n[:])
			}
			o += 4
		}
	}

	if _, err := bi.vertices.update(bi.ctx, vertices); err != nil {
		return nil, err
	}
	if _, err := bi.normals.update(bi.ctx, normals); err != nil {
		return nil, err
	}
	return ranges, nil
}

// Vertices returns the vertex buffer.
func (bi *BufferIntersector) Vertices() device.Buffer {
	return bi.vertices.buf
}

// Normals returns the normal buffer.
func (bi *BufferIntersector) Normals() device.Buffer {
	return bi.normals.buf
}

func (bi *BufferIntersector) Release() {
	bi.vertices.release()
	bi.normals.release()
}

// Package compiler maps scene snapshots to device-resident tables and keeps
// them in sync with scene mutations.
package compiler

import (
	"errors"
	"time"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/log"
	"github.com/achilleasa/radiance/scene"
)

// Table record sizes in float32 elements.
const (
	// diffuse rgb, diffuse texture index (-1 = none), emissive rgb,
	// roughness, ior, reserved x3
	MaterialRecordSize = 12

	// first vertex, vertex count, material index, reserved
	ShapeRecordSize = 4

	// width, height, texel offset, reserved
	TextureHeaderSize = 4
)

var logger = log.New("compiler")

// Compiled holds the device tables for one scene on one device.
type Compiled struct {
	tables      tableSet
	intersector Intersector
	ranges      []MeshRange

	// Scene revisions reflected by the tables.
	rev scene.Revisions
}

func (cs *Compiled) Camera() device.Buffer         { return cs.tables.Camera.buf }
func (cs *Compiled) Shapes() device.Buffer         { return cs.tables.Shapes.buf }
func (cs *Compiled) Materials() device.Buffer      { return cs.tables.Materials.buf }
func (cs *Compiled) Lights() device.Buffer         { return cs.tables.Lights.buf }
func (cs *Compiled) TextureHeaders() device.Buffer { return cs.tables.TexHeaders.buf }
func (cs *Compiled) Texels() device.Buffer         { return cs.tables.Texels.buf }
func (cs *Compiled) Environment() device.Buffer    { return cs.tables.Environment.buf }
func (cs *Compiled) Intersector() Intersector      { return cs.intersector }

// Revisions returns the scene revisions the tables were last synced to.
func (cs *Compiled) Revisions() scene.Revisions {
	return cs.rev
}

func (cs *Compiled) release() {
	cs.tables.release()
	if cs.intersector != nil {
		cs.intersector.Release()
	}
}

// Compiler caches compiled scenes for a single device context. It is driven
// by the goroutine that owns the context.
type Compiler struct {
	ctx            device.Context
	newIntersector IntersectorFactory
	cache          map[*scene.Scene]*Compiled
	released       bool
}

// New creates a compiler for ctx. If factory is nil a BufferIntersector is
// used for geometry.
func New(ctx device.Context, factory IntersectorFactory) *Compiler {
	if factory == nil {
		factory = NewBufferIntersector
	}
	return &Compiler{
		ctx:            ctx,
		newIntersector: factory,
		cache:          make(map[*scene.Scene]*Compiled),
	}
}

// Compile returns the device tables for sc, performing a full compile the
// first time a scene is seen and re-running only the updaters of categories
// whose revision changed since the last call. The dirty bits considered are
// cleared before returning.
func (c *Compiler) Compile(sc *scene.Scene) (*Compiled, error) {
	if c.released {
		return nil, ErrReleased
	}

	start := time.Now()
	cs, exists := c.cache[sc]
	if !exists {
		cs = &Compiled{
			tables:      newTableSet(),
			intersector: c.newIntersector(c.ctx),
		}
	}

	var stale scene.DirtyFlags
	err := sc.Read(func(v scene.View) error {
		rev := v.Revisions()
		if exists {
			stale = rev.Stale(cs.rev)
		} else {
			stale = scene.AllDirty
		}
		if stale == 0 {
			return nil
		}

		if err := c.update(cs, v, stale); err != nil {
			return err
		}
		cs.rev = rev
		return nil
	})
	if err != nil {
		if !exists {
			cs.release()
		}
		return nil, err
	}

	if stale != 0 {
		sc.ClearDirty(stale)
		if exists {
			logger.Debugf("device (%s): updated %s in %d ms", c.ctx.Info().Name, stale, time.Since(start).Nanoseconds()/1000000)
		} else {
			c.cache[sc] = cs
			logger.Infof("device (%s): compiled scene in %d ms", c.ctx.Info().Name, time.Since(start).Nanoseconds()/1000000)
		}
	}

	return cs, nil
}

// Run the partial updaters for the stale categories. Material indices
// depend on textures and shape records depend on materials so those tables
// are rebuilt too; unchanged tables are not re-uploaded.
func (c *Compiler) update(cs *Compiled, v scene.View, stale scene.DirtyFlags) error {
	var err error

	textures := newCollector(v.Textures())
	if stale&scene.TexturesDirty != 0 {
		if err = c.updateTextures(cs, textures); err != nil {
			return err
		}
		stale |= scene.MaterialsDirty
	}

	materials := newCollector(v.Materials())
	if stale&scene.MaterialsDirty != 0 {
		if err = c.updateMaterials(cs, materials, textures); err != nil {
			return err
		}
	}

	if stale&scene.ShapesDirty != 0 {
		if cs.ranges, err = cs.intersector.Load(v.Shapes()); err != nil {
			if errors.Is(err, ErrInvalidIndex) || errors.Is(err, ErrMissingNormals) {
				return failure.Config("shapes", "%w", err)
			}
			return failure.Fatal(c.ctx.Info().Name, "geometry upload", err)
		}
	}

	if stale&(scene.ShapesDirty|scene.MaterialsDirty) != 0 {
		if err = c.updateShapes(cs, v.Shapes(), materials); err != nil {
			return err
		}
	}

	if stale&scene.LightsDirty != 0 {
		if err = c.updateLights(cs, v.Lights()); err != nil {
			return err
		}
	}

	if stale&scene.EnvironmentDirty != 0 {
		if err = c.updateEnvironment(cs, v.Environment()); err != nil {
			return err
		}
	}

	if stale&scene.CameraDirty != 0 {
		block := make([]float32, device.CameraBlockSize)
		v.Camera().Encode(block)
		if _, err = cs.tables.Camera.update(c.ctx, block); err != nil {
			return err
		}
	}

	return nil
}

func (c *Compiler) updateTextures(cs *Compiled, textures *collector[*scene.Texture]) error {
	headers := make([]float32, max(1, textures.len())*TextureHeaderSize)
	var texels []float32
	for index, tex := range textures.items {
		if tex.Image == nil {
			return failure.Config("texture", "texture %q has no image data", tex.Name)
		}
		o := index * TextureHeaderSize
		headers[o] = float32(tex.Image.Width)
		headers[o+1] = float32(tex.Image.Height)
		headers[o+2] = float32(len(texels))
		texels = append(texels, tex.Image.Pix...)
	}
	if len(texels) == 0 {
		texels = make([]float32, device.PixelStride)
	}

	if _, err := cs.tables.TexHeaders.update(c.ctx, headers); err != nil {
		return err
	}
	_, err := cs.tables.Texels.update(c.ctx, texels)
	return err
}

func (c *Compiler) updateMaterials(cs *Compiled, materials *collector[*scene.Material], textures *collector[*scene.Texture]) error {
	data := make([]float32, max(1, materials.len())*MaterialRecordSize)
	for index, mat := range materials.items {
		texIndex := -1
		if mat.DiffuseMap != nil {
			var registered bool
			if texIndex, registered = textures.lookup(mat.DiffuseMap); !registered {
				return failure.Config("materials", "material %q references unregistered texture %q", mat.Name, mat.DiffuseMap.Name)
			}
		}

		o := index * MaterialRecordSize
		copy(data[o:o+3], mat.Diffuse[:])
		data[o+3] = float32(texIndex)
		copy(data[o+4:o+7], mat.Emissive[:])
		data[o+7] = mat.Roughness
		data[o+8] = mat.IOR
	}

	_, err := cs.tables.Materials.update(c.ctx, data)
	return err
}

func (c *Compiler) updateShapes(cs *Compiled, shapes []*scene.Shape, materials *collector[*scene.Material]) error {
	data := make([]float32, max(1, len(shapes))*ShapeRecordSize)
	for index, shape := range shapes {
		matIndex, registered := materials.lookup(shape.Material)
		if !registered {
			name := "<nil>"
			if shape.Material != nil {
				name = shape.Material.Name
			}
			return failure.Config("shapes", "shape %q references unregistered material %q", shape.Name, name)
		}

		o := index * ShapeRecordSize
		if index < len(cs.ranges) {
			data[o] = float32(cs.ranges[index].First)
			data[o+1] = float32(cs.ranges[index].Count)
		}
		data[o+2] = float32(matIndex)
	}

	_, err := cs.tables.Shapes.update(c.ctx, data)
	return err
}

func (c *Compiler) updateLights(cs *Compiled, lights []*scene.Light) error {
	data := make([]float32, max(1, len(lights))*device.LightRecordSize)
	for index, light := range lights {
		o := index * device.LightRecordSize
		copy(data[o:o+3], light.Position[:])
		data[o+3] = light.Radius
		copy(data[o+4:o+7], light.Emission[:])
	}

	_, err := cs.tables.Lights.update(c.ctx, data)
	return err
}

func (c *Compiler) updateEnvironment(cs *Compiled, env *scene.Environment) error {
	header := make([]float32, device.EnvHeaderSize)
	header[2] = 1

	var img *asset.Image
	if env != nil {
		header[2] = env.Multiplier
		img = env.Image
	}
	data := header
	if img != nil && img.Width > 0 && img.Height > 0 {
		header[0] = float32(img.Width)
		header[1] = float32(img.Height)
		data = make([]float32, device.EnvHeaderSize+len(img.Pix))
		copy(data, header)
		copy(data[device.EnvHeaderSize:], img.Pix)
	}

	_, err := cs.tables.Environment.update(c.ctx, data)
	return err
}

// UpdateEnvironment replaces the environment image of sc. The change is
// picked up by the next Compile call of every device sharing sc.
func (c *Compiler) UpdateEnvironment(sc *scene.Scene, img *asset.Image) {
	sc.SetEnvironmentImage(img)
}

// Evict releases the compiled tables for sc.
func (c *Compiler) Evict(sc *scene.Scene) {
	if cs, exists := c.cache[sc]; exists {
		cs.release()
		delete(c.cache, sc)
	}
}

// Cached returns the number of cached scenes.
func (c *Compiler) Cached() int {
	return len(c.cache)
}

// Release all compiled scenes. The compiler cannot be used afterwards.
func (c *Compiler) Release() {
	if c.released {
		return
	}
	for sc, cs := range c.cache {
		cs.release()
		delete(c.cache, sc)
	}
	c.released = true
}

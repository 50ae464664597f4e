// Package scene holds the CPU-side scene snapshot shared by every device of
// a render session. Mutations mark per-category dirty bits and bump
// per-category revision counters that scene compilers use to decide which
// GPU tables are stale.
package scene

import (
	"strings"
	"sync"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/types"
)

type DirtyFlags uint8

// Dirty bit categories.
const (
	CameraDirty DirtyFlags = 1 << iota
	ShapesDirty
	LightsDirty
	MaterialsDirty
	TexturesDirty
	EnvironmentDirty

	AllDirty = CameraDirty | ShapesDirty | LightsDirty | MaterialsDirty | TexturesDirty | EnvironmentDirty
)

// Categories lists the dirty bit categories in revision order.
var Categories = []DirtyFlags{CameraDirty, ShapesDirty, LightsDirty, MaterialsDirty, TexturesDirty, EnvironmentDirty}

var categoryNames = []string{"camera", "shapes", "lights", "materials", "textures", "environment"}

func (f DirtyFlags) String() string {
	if f == 0 {
		return "none"
	}
	names := make([]string, 0, len(Categories))
	for index, cat := range Categories {
		if f&cat != 0 {
			names = append(names, categoryNames[index])
		}
	}
	return strings.Join(names, "|")
}

// Revisions holds one mutation counter per dirty bit category.
type Revisions [6]uint64

// Get the revision for a single category.
func (r Revisions) Of(cat DirtyFlags) uint64 {
	for index, c := range Categories {
		if c == cat {
			return r[index]
		}
	}
	return 0
}

// Stale returns the categories whose revision differs from prev.
func (r Revisions) Stale(prev Revisions) DirtyFlags {
	var flags DirtyFlags
	for index, cat := range Categories {
		if r[index] != prev[index] {
			flags |= cat
		}
	}
	return flags
}

// A Texture is a named image referenced by materials.
type Texture struct {
	Name  string
	Image *asset.Image
}

// Defines a scene material.
type Material struct {
	Name      string
	Diffuse   types.Vec3
	Emissive  types.Vec3
	Roughness float32
	IOR       float32

	// Optional diffuse texture; must be registered with the scene.
	DiffuseMap *Texture
}

// A Shape is a triangle mesh with a single material.
type Shape struct {
	Name     string
	Vertices []types.Vec3
	Normals  []types.Vec3
	Indices  []uint32

	// Must be registered with the scene.
	Material *Material
}

// A point light.
type Light struct {
	Name     string
	Position types.Vec3
	Radius   float32
	Emission types.Vec3
}

// Environment radiance map.
type Environment struct {
	Name       string
	Image      *asset.Image
	Multiplier float32
}

// Scene is a mutable snapshot guarded by a RWMutex. It has a single writer
// (the scheduler or an input handler) and many readers (scene compilers).
type Scene struct {
	mu sync.RWMutex

	camera      Camera
	shapes      []*Shape
	materials   []*Material
	textures    []*Texture
	lights      []*Light
	environment *Environment

	dirty DirtyFlags
	rev   Revisions
}

// New creates an empty scene with the given camera. All dirty bits are set.
func New(camera Camera) *Scene {
	s := &Scene{
		camera:      camera,
		environment: &Environment{Multiplier: 1},
	}
	s.mark(AllDirty)
	return s
}

// Must be called with the write lock held.
func (s *Scene) mark(flags DirtyFlags) {
	s.dirty |= flags
	for index, cat := range Categories {
		if flags&cat != 0 {
			s.rev[index]++
		}
	}
}

// Dirty returns the currently set dirty bits.
func (s *Scene) Dirty() DirtyFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// ClearDirty clears the given dirty bits.
func (s *Scene) ClearDirty(flags DirtyFlags) {
	s.mu.Lock()
	s.dirty &^= flags
	s.mu.Unlock()
}

// Revisions returns the current per-category revisions.
func (s *Scene) Revisions() Revisions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Camera returns a copy of the scene camera.
func (s *Scene) Camera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

// SetCamera replaces the scene camera.
func (s *Scene) SetCamera(camera Camera) {
	s.mu.Lock()
	s.camera = camera
	s.mark(CameraDirty)
	s.mu.Unlock()
}

// UpdateCamera applies fn to the scene camera.
func (s *Scene) UpdateCamera(fn func(c *Camera)) {
	s.mu.Lock()
	fn(&s.camera)
	s.mark(CameraDirty)
	s.mu.Unlock()
}

// AddTexture registers a texture.
func (s *Scene) AddTexture(tex *Texture) {
	s.mu.Lock()
	s.textures = append(s.textures, tex)
	s.mark(TexturesDirty)
	s.mu.Unlock()
}

// AddMaterial registers a material.
func (s *Scene) AddMaterial(mat *Material) {
	s.mu.Lock()
	s.materials = append(s.materials, mat)
	s.mark(MaterialsDirty)
	s.mu.Unlock()
}

// UpdateMaterial applies fn to a registered material.
func (s *Scene) UpdateMaterial(mat *Material, fn func(m *Material)) {
	s.mu.Lock()
	fn(mat)
	s.mark(MaterialsDirty)
	s.mu.Unlock()
}

// AddShape adds a shape. Material references are resolved when the scene
// is compiled.
func (s *Scene) AddShape(shape *Shape) {
	s.mu.Lock()
	s.shapes = append(s.shapes, shape)
	s.mark(ShapesDirty)
	s.mu.Unlock()
}

// AddLight adds a light.
func (s *Scene) AddLight(light *Light) {
	s.mu.Lock()
	s.lights = append(s.lights, light)
	s.mark(LightsDirty)
	s.mu.Unlock()
}

// UpdateLight applies fn to a light.
func (s *Scene) UpdateLight(light *Light, fn func(l *Light)) {
	s.mu.Lock()
	fn(light)
	s.mark(LightsDirty)
	s.mu.Unlock()
}

// SetEnvironment replaces the environment map.
func (s *Scene) SetEnvironment(env *Environment) {
	s.mu.Lock()
	s.environment = env
	s.mark(EnvironmentDirty)
	s.mu.Unlock()
}

// SetEnvironmentImage replaces the environment image keeping the rest of
// the environment settings.
func (s *Scene) SetEnvironmentImage(img *asset.Image) {
	s.mu.Lock()
	env := *s.environment
	env.Image = img
	s.environment = &env
	s.mark(EnvironmentDirty)
	s.mu.Unlock()
}

// Read runs fn with the scene read-locked. The view must not escape fn.
func (s *Scene) Read(fn func(v View) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(View{s: s})
}

// View is a read-only accessor to a locked scene.
type View struct {
	s *Scene
}

func (v View) Camera() Camera            { return v.s.camera }
func (v View) Shapes() []*Shape          { return v.s.shapes }
func (v View) Materials() []*Material    { return v.s.materials }
func (v View) Textures() []*Texture      { return v.s.textures }
func (v View) Lights() []*Light          { return v.s.lights }
func (v View) Environment() *Environment { return v.s.environment }
func (v View) Revisions() Revisions      { return v.s.rev }
func (v View) Dirty() DirtyFlags         { return v.s.dirty }

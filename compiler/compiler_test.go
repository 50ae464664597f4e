package compiler

import (
	"errors"
	"testing"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/device/host"
	"github.com/achilleasa/radiance/failure"
	"github.com/achilleasa/radiance/scene"
	"github.com/achilleasa/radiance/types"
)

func openContexts(t *testing.T, count int) []device.Context {
	backend := host.NewBackend(count)
	infos, err := backend.Devices()
	if err != nil {
		t.Fatal(err)
	}

	ctxs := make([]device.Context, count)
	for index := range ctxs {
		if ctxs[index], err = backend.Open(infos[index]); err != nil {
			t.Fatal(err)
		}
	}
	return ctxs
}

type testScene struct {
	sc    *scene.Scene
	tex   *scene.Texture
	mat   *scene.Material
	shape *scene.Shape
	light *scene.Light
}

func newTestScene() testScene {
	ts := testScene{
		sc:  scene.New(scene.DefaultCamera()),
		tex: &scene.Texture{Name: "checker", Image: asset.NewImage(2, 2)},
	}
	ts.mat = &scene.Material{Name: "red", Diffuse: types.XYZ(1, 0, 0), IOR: 1.5, DiffuseMap: ts.tex}
	ts.shape = &scene.Shape{
		Name:     "tri",
		Vertices: []types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:  []uint32{0, 1, 2},
		Material: ts.mat,
	}
	ts.light = &scene.Light{Position: types.XYZ(0, 5, 0), Radius: 1, Emission: types.XYZ(10, 10, 10)}

	ts.sc.AddTexture(ts.tex)
	ts.sc.AddMaterial(ts.mat)
	ts.sc.AddShape(ts.shape)
	ts.sc.AddLight(ts.light)
	return ts
}

func readBuffer(t *testing.T, buf device.Buffer) []float32 {
	data := make([]float32, buf.Size())
	if err := buf.ReadData(0, data); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFullCompile(t *testing.T) {
	ctx := openContexts(t, 1)[0]
	defer ctx.Release()

	ts := newTestScene()
	c := New(ctx, nil)
	defer c.Release()

	cs, err := c.Compile(ts.sc)
	if err != nil {
		t.Fatal(err)
	}

	if ts.sc.Dirty() != 0 {
		t.Fatalf("expected dirty flags to be cleared; got %s", ts.sc.Dirty())
	}

	mats := readBuffer(t, cs.Materials())
	if len(mats) != MaterialRecordSize || mats[0] != 1 || mats[3] != 0 || mats[8] != 1.5 {
		t.Fatalf("unexpected material table %v", mats)
	}

	shapes := readBuffer(t, cs.Shapes())
	if exp := []float32{0, 3, 0, 0}; !sameBits(shapes, exp) {
		t.Fatalf("expected shape table %v; got %v", exp, shapes)
	}

	lights := readBuffer(t, cs.Lights())
	if lights[1] != 5 || lights[3] != 1 || lights[4] != 10 {
		t.Fatalf("unexpected light table %v", lights)
	}

	headers := readBuffer(t, cs.TextureHeaders())
	if headers[0] != 2 || headers[1] != 2 || headers[2] != 0 {
		t.Fatalf("unexpected texture headers %v", headers)
	}
	if cs.Texels().Size() != 2*2*4 {
		t.Fatalf("expected %d texels; got %d", 2*2*4, cs.Texels().Size())
	}

	env := readBuffer(t, cs.Environment())
	if len(env) != device.EnvHeaderSize || env[0] != 0 || env[2] != 1 {
		t.Fatalf("expected sky environment header; got %v", env)
	}

	cam := readBuffer(t, cs.Camera())
	if len(cam) != device.CameraBlockSize || cam[1] != 1 || cam[2] != 4 {
		t.Fatalf("unexpected camera block %v", cam)
	}

	bi := cs.Intersector().(*BufferIntersector)
	if bi.Vertices().Size() != 3*4 || bi.Normals().Size() != 3*4 {
		t.Fatalf("expected 3 float4 vertices; got %d", bi.Vertices().Size())
	}

	again, err := c.Compile(ts.sc)
	if err != nil {
		t.Fatal(err)
	}
	if again != cs {
		t.Fatal("expected cached compiled scene to be returned")
	}
}

func TestSingleCategoryIsolation(t *testing.T) {
	type spec struct {
		mutate  func(ts testScene)
		changed []string
	}

	specs := []spec{
		{
			func(ts testScene) { ts.sc.UpdateCamera(func(c *scene.Camera) { c.MoveForward(2) }) },
			[]string{"camera"},
		},
		{
			func(ts testScene) { ts.sc.UpdateLight(ts.light, func(l *scene.Light) { l.Radius = 3 }) },
			[]string{"lights"},
		},
		{
			func(ts testScene) { ts.sc.UpdateMaterial(ts.mat, func(m *scene.Material) { m.Roughness = 0.5 }) },
			[]string{"materials"},
		},
		{
			func(ts testScene) {
				ts.sc.AddTexture(&scene.Texture{Name: "extra", Image: asset.NewImage(1, 1)})
			},
			[]string{"textureHeaders", "texels"},
		},
		{
			func(ts testScene) {
				ts.sc.AddShape(&scene.Shape{
					Name:     "tri2",
					Vertices: []types.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}},
					Indices:  []uint32{0, 1, 2},
					Material: ts.mat,
				})
			},
			[]string{"shapes"},
		},
		{
			func(ts testScene) { ts.sc.SetEnvironmentImage(asset.NewImage(4, 2)) },
			[]string{"environment"},
		},
	}

	for specIndex, s := range specs {
		ctx := openContexts(t, 1)[0]
		ts := newTestScene()
		c := New(ctx, nil)

		cs, err := c.Compile(ts.sc)
		if err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}

		before := make(map[string][]float32)
		bufs := make(map[string]device.Buffer)
		for name, tbl := range tablesByName(cs) {
			before[name] = readBuffer(t, tbl.buf)
			bufs[name] = tbl.buf
		}

		s.mutate(ts)
		if _, err = c.Compile(ts.sc); err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}

		expChanged := make(map[string]bool)
		for _, name := range s.changed {
			expChanged[name] = true
		}

		for name, tbl := range tablesByName(cs) {
			same := tbl.buf == bufs[name] && sameBits(before[name], readBuffer(t, tbl.buf))
			if expChanged[name] && same {
				t.Fatalf("[spec %d] expected table %s to be updated", specIndex, name)
			}
			if !expChanged[name] && !same {
				t.Fatalf("[spec %d] expected table %s to be byte-identical after the update", specIndex, name)
			}
		}

		c.Release()
		ctx.Release()
	}
}

func tablesByName(cs *Compiled) map[string]*table {
	out := make(map[string]*table)
	for _, tbl := range []*table{
		cs.tables.Camera, cs.tables.Shapes, cs.tables.Materials, cs.tables.Lights,
		cs.tables.TexHeaders, cs.tables.Texels, cs.tables.Environment,
	} {
		out[tbl.name] = tbl
	}
	return out
}

func TestSharedSnapshotAcrossDevices(t *testing.T) {
	ctxs := openContexts(t, 2)
	ts := newTestScene()
	compilers := []*Compiler{New(ctxs[0], nil), New(ctxs[1], nil)}
	defer func() {
		for index, c := range compilers {
			c.Release()
			ctxs[index].Release()
		}
	}()

	for _, c := range compilers {
		if _, err := c.Compile(ts.sc); err != nil {
			t.Fatal(err)
		}
	}

	ts.sc.UpdateCamera(func(c *scene.Camera) { c.Position = types.XYZ(7, 7, 7) })

	// The first compile clears the shared dirty bits; the second device must
	// still observe the change.
	for index, c := range compilers {
		cs, err := c.Compile(ts.sc)
		if err != nil {
			t.Fatal(err)
		}
		if cam := readBuffer(t, cs.Camera()); cam[0] != 7 {
			t.Fatalf("[device %d] expected camera x = 7; got %f", index, cam[0])
		}
	}
}

func TestUnregisteredResources(t *testing.T) {
	type spec struct {
		build func() *scene.Scene
		field string
	}

	specs := []spec{
		{
			func() *scene.Scene {
				sc := scene.New(scene.DefaultCamera())
				sc.AddMaterial(&scene.Material{Name: "m", DiffuseMap: &scene.Texture{Name: "ghost"}})
				return sc
			},
			"materials",
		},
		{
			func() *scene.Scene {
				sc := scene.New(scene.DefaultCamera())
				sc.AddShape(&scene.Shape{Name: "s", Material: &scene.Material{Name: "ghost"}})
				return sc
			},
			"shapes",
		},
		{
			func() *scene.Scene {
				sc := scene.New(scene.DefaultCamera())
				mat := &scene.Material{Name: "m"}
				sc.AddMaterial(mat)
				sc.AddShape(&scene.Shape{Name: "s", Vertices: []types.Vec3{{}}, Indices: []uint32{0, 1, 2}, Material: mat})
				return sc
			},
			"shapes",
		},
	}

	ctx := openContexts(t, 1)[0]
	defer ctx.Release()

	for specIndex, s := range specs {
		c := New(ctx, nil)
		sc := s.build()
		_, err := c.Compile(sc)

		var cErr *failure.ConfigurationError
		if !errors.As(err, &cErr) {
			t.Fatalf("[spec %d] expected a ConfigurationError; got %v", specIndex, err)
		}
		if cErr.Field != s.field {
			t.Fatalf("[spec %d] expected error field %q; got %q", specIndex, s.field, cErr.Field)
		}
		if c.Cached() != 0 {
			t.Fatalf("[spec %d] expected failed compile not to be cached", specIndex)
		}
		if sc.Dirty() != scene.AllDirty {
			t.Fatalf("[spec %d] expected dirty flags to be preserved on failure; got %s", specIndex, sc.Dirty())
		}
		c.Release()
	}
}

func TestUpdateEnvironment(t *testing.T) {
	ctx := openContexts(t, 1)[0]
	defer ctx.Release()

	ts := newTestScene()
	c := New(ctx, nil)
	defer c.Release()

	if _, err := c.Compile(ts.sc); err != nil {
		t.Fatal(err)
	}

	img := asset.NewImage(2, 1)
	img.Pix[0] = 0.25
	c.UpdateEnvironment(ts.sc, img)
	if ts.sc.Dirty() != scene.EnvironmentDirty {
		t.Fatalf("expected environment to be dirty; got %s", ts.sc.Dirty())
	}

	cs, err := c.Compile(ts.sc)
	if err != nil {
		t.Fatal(err)
	}
	env := readBuffer(t, cs.Environment())
	if len(env) != device.EnvHeaderSize+2*4 || env[0] != 2 || env[1] != 1 || env[device.EnvHeaderSize] != 0.25 {
		t.Fatalf("unexpected environment table %v", env)
	}
}

func TestEvictAndRelease(t *testing.T) {
	ctx := openContexts(t, 1)[0]
	defer ctx.Release()

	ts := newTestScene()
	c := New(ctx, nil)

	cs, err := c.Compile(ts.sc)
	if err != nil {
		t.Fatal(err)
	}
	camBuf := cs.Camera()

	c.Evict(ts.sc)
	if c.Cached() != 0 {
		t.Fatalf("expected cache to be empty after evict; got %d", c.Cached())
	}
	if err = camBuf.ReadData(0, make([]float32, 1)); !errors.Is(err, device.ErrReleased) {
		t.Fatalf("expected evicted tables to be released; got %v", err)
	}

	// An evicted scene is recompiled from scratch.
	if _, err = c.Compile(ts.sc); err != nil {
		t.Fatal(err)
	}
	if c.Cached() != 1 {
		t.Fatalf("expected 1 cached scene; got %d", c.Cached())
	}

	c.Release()
	c.Release()
	if _, err = c.Compile(ts.sc); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased; got %v", err)
	}
}

func TestCollector(t *testing.T) {
	a, b, d := &scene.Material{}, &scene.Material{}, &scene.Material{}
	c := newCollector([]*scene.Material{a, b, a})

	if c.len() != 2 {
		t.Fatalf("expected 2 unique items; got %d", c.len())
	}
	if index := c.add(b); index != 1 {
		t.Fatalf("expected stable index 1; got %d", index)
	}
	if _, found := c.lookup(d); found {
		t.Fatal("expected lookup of unknown item to fail")
	}
}

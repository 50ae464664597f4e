package scene

import (
	"math"
	"testing"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/types"
)

func TestDirtyFlagsAndRevisions(t *testing.T) {
	sc := New(DefaultCamera())
	if sc.Dirty() != AllDirty {
		t.Fatalf("expected new scene to be fully dirty; got %s", sc.Dirty())
	}

	sc.ClearDirty(AllDirty)
	before := sc.Revisions()

	type spec struct {
		mutate func()
		exp    DirtyFlags
	}
	mat := &Material{Name: "m"}
	light := &Light{Name: "l"}
	specs := []spec{
		{func() { sc.UpdateCamera(func(c *Camera) { c.MoveForward(1) }) }, CameraDirty},
		{func() { sc.AddShape(&Shape{Name: "s"}) }, ShapesDirty},
		{func() { sc.AddLight(light) }, LightsDirty},
		{func() { sc.UpdateLight(light, func(l *Light) { l.Radius = 2 }) }, LightsDirty},
		{func() { sc.AddMaterial(mat) }, MaterialsDirty},
		{func() { sc.UpdateMaterial(mat, func(m *Material) { m.IOR = 1.5 }) }, MaterialsDirty},
		{func() { sc.AddTexture(&Texture{Name: "t"}) }, TexturesDirty},
		{func() { sc.SetEnvironment(&Environment{Multiplier: 2}) }, EnvironmentDirty},
		{func() { sc.SetEnvironmentImage(nil) }, EnvironmentDirty},
	}

	for specIndex, s := range specs {
		s.mutate()
		if sc.Dirty() != s.exp {
			t.Fatalf("[spec %d] expected dirty flags %s; got %s", specIndex, s.exp, sc.Dirty())
		}
		after := sc.Revisions()
		if stale := after.Stale(before); stale != s.exp {
			t.Fatalf("[spec %d] expected stale categories %s; got %s", specIndex, s.exp, stale)
		}
		sc.ClearDirty(s.exp)
		before = after
	}
}

func TestSetEnvironmentImageKeepsMultiplier(t *testing.T) {
	sc := New(DefaultCamera())
	sc.SetEnvironment(&Environment{Name: "sky", Multiplier: 3})
	sc.SetEnvironmentImage(nil)

	err := sc.Read(func(v View) error {
		if env := v.Environment(); env.Multiplier != 3 || env.Name != "sky" {
			t.Fatalf("expected environment settings to be preserved; got %+v", env)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDirtyFlagsString(t *testing.T) {
	if exp, got := "camera|environment", (CameraDirty | EnvironmentDirty).String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
	if exp, got := "none", DirtyFlags(0).String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}

func TestCameraBasis(t *testing.T) {
	c := DefaultCamera()
	fwd, right, up := c.Basis()

	if !fwd.ApproxEqual(types.XYZ(0, 0, -1)) {
		t.Fatalf("expected forward to be -Z; got %v", fwd)
	}
	if !right.ApproxEqual(types.XYZ(1, 0, 0)) {
		t.Fatalf("expected right to be +X; got %v", right)
	}
	if !up.ApproxEqual(types.XYZ(0, 1, 0)) {
		t.Fatalf("expected up to be +Y; got %v", up)
	}
}

func TestCameraRotateAndLookAt(t *testing.T) {
	c := DefaultCamera()
	c.Rotate(math.Pi/2, 0)
	if fwd := c.Forward(); !fwd.ApproxEqual(types.XYZ(-1, 0, 0)) {
		t.Fatalf("expected forward to be -X after yawing 90 degrees; got %v", fwd)
	}

	c.Position = types.XYZ(0, 0, 0)
	c.LookAt(types.XYZ(0, 0, 5))
	if fwd := c.Forward(); !fwd.ApproxEqual(types.XYZ(0, 0, 1)) {
		t.Fatalf("expected forward to be +Z; got %v", fwd)
	}

	c.Tilt(-10)
	if c.Theta != minPolarAngle {
		t.Fatalf("expected tilt to clamp at %f; got %f", minPolarAngle, c.Theta)
	}
}

func TestCameraEncode(t *testing.T) {
	c := DefaultCamera()
	c.Kind = PerspectiveDOF
	c.Aperture = 0.5
	c.FocusDistance = 3

	block := make([]float32, device.CameraBlockSize)
	c.Encode(block)

	if block[0] != 0 || block[1] != 1 || block[2] != 4 {
		t.Fatalf("expected encoded position (0, 1, 4); got %v", block[0:3])
	}
	if block[3] != float32(PerspectiveDOF) {
		t.Fatalf("expected encoded kind %d; got %f", PerspectiveDOF, block[3])
	}
	if block[7] != 0.036 || block[11] != 0.024 || block[15] != 0.035 {
		t.Fatalf("expected sensor and focal length to be encoded; got %v", block)
	}
	if block[18] != 3 || block[19] != 0.5 {
		t.Fatalf("expected focus distance and aperture to be encoded; got %v", block[16:])
	}

	c.StereoDisplacement = 0.1
	c.Encode(block)
	if math.Abs(float64(block[0]-0.1)) > 1e-5 {
		t.Fatalf("expected stereo displacement to offset the eye along +X; got %v", block[0:3])
	}
}

func TestParseCameraKind(t *testing.T) {
	type spec struct {
		in  string
		exp CameraKind
		err bool
	}
	specs := []spec{
		{"perspective", Perspective, false},
		{"perspective_with_depth_of_field", PerspectiveDOF, false},
		{"spherical_equirectangular", SphericalEquirect, false},
		{"fisheye", Perspective, true},
	}

	for specIndex, s := range specs {
		kind, err := ParseCameraKind(s.in)
		if s.err != (err != nil) {
			t.Fatalf("[spec %d] expected error %t; got %v", specIndex, s.err, err)
		}
		if kind != s.exp {
			t.Fatalf("[spec %d] expected kind %s; got %s", specIndex, s.exp, kind)
		}
	}
}

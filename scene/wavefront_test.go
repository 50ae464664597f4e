package scene

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/types"
)

func writeFile(t *testing.T, path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadWavefront(t *testing.T) {
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	f, err := os.Create(filepath.Join(dir, "checker.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err = png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	writeFile(t, filepath.Join(dir, "scene.mtl"), `
newmtl red
Kd 0.8 0.1 0.1
map_Kd checker.png
newmtl glow
Ke 4 4 4
Ni 1.5
map_Kd missing.png
`)
	writeFile(t, filepath.Join(dir, "scene.obj"), `
# test scene
mtllib scene.mtl
camera_eye 0 2 5
camera_look 0 0 0
light 0 5 0 0.5 10 10 10
v 0 0 0
v 1 0 0
v 0 1 0
v 0 0 1
vn 0 0 1
o tri
usemtl red
f 1//1 2//1 3//1
usemtl glow
f -1 -2 -3
o plain
f 1 2 4
`)

	sc, err := ReadWavefrontFile(filepath.Join(dir, "scene.obj"), DefaultCamera())
	if err != nil {
		t.Fatal(err)
	}

	err = sc.Read(func(v View) error {
		shapes := v.Shapes()
		if len(shapes) != 3 {
			t.Fatalf("expected 3 shapes; got %d", len(shapes))
		}
		if shapes[0].Material.Name != "red" || shapes[1].Material.Name != "glow" {
			t.Fatalf("expected shape materials red and glow; got %s and %s", shapes[0].Material.Name, shapes[1].Material.Name)
		}
		if shapes[2].Material.Name != "glow" {
			t.Fatalf("expected last shape to keep the active material; got %q", shapes[2].Material.Name)
		}
		if len(shapes[0].Indices) != 3 || !shapes[0].Normals[0].ApproxEqual(types.XYZ(0, 0, 1)) {
			t.Fatalf("expected first shape to contain one triangle with normals; got %+v", shapes[0])
		}
		if !shapes[1].Vertices[0].ApproxEqual(types.XYZ(0, 0, 1)) {
			t.Fatalf("expected negative face index to resolve to the last vertex; got %v", shapes[1].Vertices[0])
		}

		mats := v.Materials()
		if len(mats) != 2 {
			t.Fatalf("expected 2 materials; got %d", len(mats))
		}
		if mats[0].DiffuseMap == nil || mats[0].DiffuseMap.Image.Width != 2 {
			t.Fatalf("expected red material to reference the decoded checker texture")
		}
		if mats[1].DiffuseMap != nil {
			t.Fatalf("expected missing texture to be skipped")
		}
		if mats[1].IOR != 1.5 || mats[1].Emissive[0] != 4 {
			t.Fatalf("expected glow material properties to be parsed; got %+v", mats[1])
		}
		if len(v.Textures()) != 1 {
			t.Fatalf("expected 1 texture; got %d", len(v.Textures()))
		}

		lights := v.Lights()
		if len(lights) != 1 || lights[0].Radius != 0.5 || lights[0].Emission[1] != 10 {
			t.Fatalf("expected one parsed light; got %+v", lights)
		}

		cam := v.Camera()
		if !cam.Position.ApproxEqual(types.XYZ(0, 2, 5)) {
			t.Fatalf("expected camera eye (0, 2, 5); got %v", cam.Position)
		}
		if fwd := cam.Forward(); fwd[2] >= 0 || fwd[1] >= 0 {
			t.Fatalf("expected camera to look down towards the origin; got %v", fwd)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadWavefrontErrors(t *testing.T) {
	type spec struct {
		src    string
		expErr string
	}
	specs := []spec{
		{"usemtl foo", "undefined material with name 'foo'"},
		{"v 0 0 0\nv 1 0 0\nv 0 1 0\nv 1 1 0\nf 1 2 3 4", "expected 3 arguments for triangular face"},
		{"v 0 0 0\nf 1 2 3", "index out of bounds"},
		{"v 0 a 0", "invalid syntax"},
		{"light 0 0 0", "expected 7 arguments"},
		{"mtllib", "expected 1 argument"},
	}

	for specIndex, s := range specs {
		res := asset.NewResourceFromStream("test.obj", strings.NewReader(s.src))
		_, err := ReadWavefront(res, DefaultCamera())
		if err == nil || !strings.Contains(err.Error(), s.expErr) {
			t.Fatalf("[spec %d] expected error containing %q; got %v", specIndex, s.expErr, err)
		}
	}
}

func TestReadWavefrontIncludeErrorStack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.mtl"), "Kd 1 1 1\n")
	writeFile(t, filepath.Join(dir, "scene.obj"), "mtllib broken.mtl\n")

	_, err := ReadWavefrontFile(filepath.Join(dir, "scene.obj"), DefaultCamera())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "without a 'newmtl'") || !strings.Contains(err.Error(), "referenced from") {
		t.Fatalf("expected error to include the include stack; got %v", err)
	}
}

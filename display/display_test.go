package display

import (
	"image"
	"image/png"
	"os"
	"testing"

	"github.com/achilleasa/radiance/device/host"
	"github.com/achilleasa/radiance/pipeline"
	"golang.org/x/image/tiff"
)

func TestToRGBA(t *testing.T) {
	type spec struct {
		in    float32
		exp   uint8
		flipY bool
	}

	specs := []spec{
		{0, 0, false},
		{1, 255, false},
		{2, 255, false},
		{-1, 0, false},
		{0.5, 188, false},
		{0.5, 188, true},
	}

	for specIndex, s := range specs {
		// Second row stays black so flipping is observable.
		pix := make([]float32, 2*4)
		pix[0], pix[1], pix[2] = s.in, s.in, s.in
		img := ToRGBA(pix, 1, 2, s.flipY, nil)

		row := 0
		if s.flipY {
			row = 1
		}
		got := img.RGBAAt(0, row)
		if got.R != s.exp || got.G != s.exp || got.B != s.exp || got.A != 255 {
			t.Fatalf("[spec %d] expected channel value %d; got %+v", specIndex, s.exp, got)
		}
	}
}

func TestToGray16(t *testing.T) {
	pix := []float32{0, 0, 0, 1, 0.5, 0, 0, 1, 1, 0, 0, 1, 3, 0, 0, 1}
	img := ToGray16(pix, 2, 2)

	exp := []uint16{0, 32768, 0xffff, 0xffff}
	for i, v := range exp {
		if got := img.Gray16At(i%2, i/2).Y; got != v {
			t.Fatalf("expected pixel %d to be %d; got %d", i, v, got)
		}
	}
}

func TestFrameWriter(t *testing.T) {
	backend := host.NewBackend(1)
	infos, _ := backend.Devices()
	devCtx, err := backend.Open(infos[0])
	if err != nil {
		t.Fatal(err)
	}

	const w, h = 3, 2
	color, err := pipeline.NewImage(devCtx, "color", w, h)
	if err != nil {
		t.Fatal(err)
	}
	depth, err := pipeline.NewImage(devCtx, "depth", w, h)
	if err != nil {
		t.Fatal(err)
	}

	buf, _ := depth.WriteLock()
	data := make([]float32, w*h*4)
	for i := 0; i < w*h; i++ {
		data[i*4] = float32(i) / float32(w*h-1)
	}
	if err = buf.WriteData(data, 0); err != nil {
		t.Fatal(err)
	}
	depth.WriteUnlock()

	fw, err := NewFrameWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err = fw.Flush(3, color, depth); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(fw.ColorPath(3))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	colorImg, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if colorImg.Bounds() != image.Rect(0, 0, w, h) {
		t.Fatalf("expected %dx%d color image; got %v", w, h, colorImg.Bounds())
	}

	df, err := os.Open(fw.DepthPath(3))
	if err != nil {
		t.Fatal(err)
	}
	defer df.Close()
	depthImg, err := tiff.Decode(df)
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := depthImg.(*image.Gray16)
	if !ok {
		t.Fatalf("expected a 16-bit grayscale depth image; got %T", depthImg)
	}
	if gray.Gray16At(w-1, h-1).Y != 0xffff || gray.Gray16At(0, 0).Y != 0 {
		t.Fatalf("expected depth ramp from 0 to 0xffff; got %d..%d", gray.Gray16At(0, 0).Y, gray.Gray16At(w-1, h-1).Y)
	}

	// Released images cannot be flushed.
	color.Release()
	if err = fw.Flush(4, color, depth); err == nil {
		t.Fatal("expected flushing a released image to fail")
	}
}

package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/scene"
)

func TestNodeArityPanics(t *testing.T) {
	ctx := newTestContext(t, 4, 2, true)
	src := newMockSource(t, ctx)
	render := NewRenderNode("render", src)
	if err := render.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer render.Release()

	type spec struct {
		node      Node
		upstreams []Node
	}

	specs := []spec{
		{NewFlipNode("flip"), nil},
		{NewFlipNode("flip"), []Node{render, render}},
		{NewExposureNode("exposure", 1), nil},
		{NewExtractNode("depth", render, DepthChannel, false), nil},
		{NewProjectionNode("projection", FisheyeToEquirect), []Node{render, render}},
		{NewRenderNode("render2", src), []Node{render, render}},
		{NewEnvironmentNodeFromImage("env", asset.NewImage(1, 1)), []Node{render}},
	}

	for specIndex, s := range specs {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, ErrArity) {
					t.Fatalf("[spec %d] expected ErrArity panic; got %v", specIndex, r)
				}
			}()
			_ = s.node.Init(ctx, s.upstreams...)
		}()
	}
}

func TestNodeReleaseIsIdempotent(t *testing.T) {
	ctx := newTestContext(t, 4, 2, true)
	render := NewRenderNode("render", newMockSource(t, ctx))
	if err := render.Init(ctx); err != nil {
		t.Fatal(err)
	}
	flip := NewFlipNode("flip")
	if err := flip.Init(ctx, render); err != nil {
		t.Fatal(err)
	}

	flip.Release()
	flip.Release()
	if !flip.Output().Released() {
		t.Fatal("expected flip output to be released")
	}

	flip.SetRepeat(true)
	if err := flip.Process(); !errors.Is(err, ErrNodeReleased) {
		t.Fatalf("expected ErrNodeReleased; got %v", err)
	}

	render.Release()
	render.Release()
	for _, img := range []*Image{render.Output(), render.Channel(DepthChannel), render.Channel(NormalsChannel)} {
		if !img.Released() {
			t.Fatal("expected render node images to be released")
		}
	}
}

func TestReleasedUpstreamIsReported(t *testing.T) {
	ctx := newTestContext(t, 4, 2, true)
	render := NewRenderNode("render", newMockSource(t, ctx))
	if err := render.Init(ctx); err != nil {
		t.Fatal(err)
	}
	exposure := NewExposureNode("exposure", 1)
	if err := exposure.Init(ctx, render); err != nil {
		t.Fatal(err)
	}
	defer exposure.Release()

	render.Release()
	exposure.SetRepeat(true)
	if err := exposure.Process(); !errors.Is(err, ErrSourceReleased) {
		t.Fatalf("expected ErrSourceReleased; got %v", err)
	}
}

func TestRepeatDisabledLeavesOutputUnchanged(t *testing.T) {
	ctx := newTestContext(t, 4, 2, true)
	src := newMockSource(t, ctx)
	render := NewRenderNode("render", src)
	if err := render.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer render.Release()
	flip := NewFlipNode("flip")
	if err := flip.Init(ctx, render); err != nil {
		t.Fatal(err)
	}
	defer flip.Release()

	if err := render.Process(); err != nil {
		t.Fatal(err)
	}
	if err := flip.Process(); err != nil {
		t.Fatal(err)
	}
	for i, v := range snapshot(t, flip.Output()) {
		if v != 0 {
			t.Fatalf("expected untouched output; got %f at %d", v, i)
		}
	}
	if flip.Stats().Processed != 0 {
		t.Fatalf("expected no processed ticks; got %d", flip.Stats().Processed)
	}
}

func TestRenderNodeOutputPaths(t *testing.T) {
	const w, h = 4, 3

	type spec struct {
		shared bool
	}

	specs := []spec{{true}, {false}}

	for specIndex, s := range specs {
		ctx := newTestContext(t, w, h, s.shared)
		src := newMockSource(t, ctx)
		render := NewRenderNode("render", src)
		if err := render.Init(ctx); err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 3; i++ {
			if err := render.Process(); err != nil {
				t.Fatalf("[spec %d] %v", specIndex, err)
			}
		}
		if render.Samples() != 3 || render.LastResult().Samples != 3 {
			t.Fatalf("[spec %d] expected 3 samples; got %d", specIndex, render.Samples())
		}

		color := snapshot(t, render.Output())
		expColor := []float32{0.5, 0.25, 1, 1}
		for o := 0; o < len(color); o += 4 {
			if !approxPixel(color[o:o+4], expColor) {
				t.Fatalf("[spec %d] expected normalized color (0.5, 0.25, 1, 1); got %v", specIndex, color[o:o+4])
			}
		}

		depth := snapshot(t, render.Channel(DepthChannel))
		for i := 0; i < w*h; i++ {
			exp := 1 - float32(i/w)/float32(h)
			if math.Abs(float64(depth[i*4]-exp)) > 1e-6 || depth[i*4+3] != 1 {
				t.Fatalf("[spec %d] expected depth pixel %d to be %f; got %v", specIndex, i, exp, depth[i*4:i*4+4])
			}
		}

		normals := snapshot(t, render.Channel(NormalsChannel))
		for i := 0; i < w*h; i++ {
			if normals[i*4] != float32(i%w) || normals[i*4+1] != float32(i/w) {
				t.Fatalf("[spec %d] expected normals pixel %d to be (%d, %d); got %v", specIndex, i, i%w, i/w, normals[i*4:i*4+4])
			}
		}
		render.Release()
	}
}

func TestRenderNodeResetsOnSceneChange(t *testing.T) {
	ctx := newTestContext(t, 2, 2, true)
	src := newMockSource(t, ctx)
	render := NewRenderNode("render", src)
	if err := render.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer render.Release()

	step := func() {
		if err := render.Process(); err != nil {
			t.Fatal(err)
		}
	}

	step()
	step()
	ctx.Scene.UpdateCamera(func(c *scene.Camera) { c.Phi = 1 })
	step()
	step()
	render.RequestReset()
	step()

	exp := []bool{true, false, true, false, true}
	for i := range exp {
		if src.resets[i] != exp[i] {
			t.Fatalf("expected resets %v; got %v", exp, src.resets)
		}
	}
}

func TestExtractNodeFlipsRows(t *testing.T) {
	const w, h = 3, 4

	type spec struct {
		channel Channel
		flip    bool
	}

	specs := []spec{
		{DepthChannel, true},
		{DepthChannel, false},
		{NormalsChannel, true},
		{NormalsChannel, false},
	}

	for specIndex, s := range specs {
		ctx := newTestContext(t, w, h, true)
		render := NewRenderNode("render", newMockSource(t, ctx))
		if err := render.Init(ctx); err != nil {
			t.Fatal(err)
		}
		extract := NewExtractNode("extract", render, s.channel, s.flip)
		if err := extract.Init(ctx, render); err != nil {
			t.Fatal(err)
		}

		if err := render.Process(); err != nil {
			t.Fatal(err)
		}
		extract.SetRepeat(true)
		if err := extract.Process(); err != nil {
			t.Fatal(err)
		}

		src := snapshot(t, render.Channel(s.channel))
		got := snapshot(t, extract.Output())
		for y := 0; y < h; y++ {
			srcY := y
			if s.flip {
				srcY = h - 1 - y
			}
			for x := 0; x < w; x++ {
				d, o := (y*w+x)*4, (srcY*w+x)*4
				if got[d] != src[o] || got[d+1] != src[o+1] {
					t.Fatalf("[spec %d] expected pixel (%d, %d) to come from row %d", specIndex, x, y, srcY)
				}
			}
		}

		extract.Release()
		render.Release()
	}
}

func TestExtractNodeRejectsForeignUpstream(t *testing.T) {
	ctx := newTestContext(t, 2, 2, true)
	src := newMockSource(t, ctx)
	a, b := NewRenderNode("a", src), NewRenderNode("b", src)
	for _, n := range []*RenderNode{a, b} {
		if err := n.Init(ctx); err != nil {
			t.Fatal(err)
		}
		defer n.Release()
	}

	extract := NewExtractNode("extract", a, DepthChannel, false)
	if err := extract.Init(ctx, b); !errors.Is(err, ErrUpstreamMismatch) {
		t.Fatalf("expected ErrUpstreamMismatch; got %v", err)
	}
}

func TestExposureNode(t *testing.T) {
	ctx := newTestContext(t, 2, 2, true)
	render := NewRenderNode("render", newMockSource(t, ctx))
	if err := render.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer render.Release()
	exposure := NewExposureNode("exposure", 2)
	if err := exposure.Init(ctx, render); err != nil {
		t.Fatal(err)
	}
	defer exposure.Release()

	if err := render.Process(); err != nil {
		t.Fatal(err)
	}
	exposure.SetRepeat(true)
	if err := exposure.Process(); err != nil {
		t.Fatal(err)
	}

	exp := []float32{
		float32(1 - math.Exp(-0.5*2)),
		float32(1 - math.Exp(-0.25*2)),
		float32(1 - math.Exp(-1*2)),
		1,
	}
	got := snapshot(t, exposure.Output())
	for c := range exp {
		if math.Abs(float64(got[c]-exp[c])) > 1e-6 {
			t.Fatalf("expected exposed pixel %v; got %v", exp, got[:4])
		}
	}
}

func TestEnvironmentNodeSetImage(t *testing.T) {
	ctx := newTestContext(t, 2, 2, true)
	env := NewEnvironmentNodeFromImage("env", asset.NewImage(4, 2))
	if err := env.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer env.Release()

	img := asset.NewImage(8, 4)
	img.Pix[0] = 3
	if err := env.SetImage(img); err != nil {
		t.Fatal(err)
	}

	out := env.Output()
	if out.Width() != 8 || out.Height() != 4 {
		t.Fatalf("expected resized 8x4 output; got %dx%d", out.Width(), out.Height())
	}
	if got := snapshot(t, out); got[0] != 3 {
		t.Fatalf("expected uploaded pixel data; got %f", got[0])
	}
}

func approxPixel(got, exp []float32) bool {
	for c := range exp {
		if math.Abs(float64(got[c]-exp[c])) > 1e-6 {
			return false
		}
	}
	return true
}

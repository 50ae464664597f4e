package pipeline

import (
	"fmt"

	"github.com/achilleasa/radiance/asset"
)

// EnvironmentNode is an image source holding an environment map. Its output
// keeps the dimensions of the decoded map.
type EnvironmentNode struct {
	baseNode
	path string
	img  *asset.Image
}

// NewEnvironmentNode creates a source that decodes the environment map at
// path (a local file or http(s) URL) when initialized.
func NewEnvironmentNode(tag, path string) *EnvironmentNode {
	n := &EnvironmentNode{path: path}
	n.setup(tag, 0, 0, false)
	return n
}

// NewEnvironmentNodeFromImage creates a source serving img.
func NewEnvironmentNodeFromImage(tag string, img *asset.Image) *EnvironmentNode {
	n := &EnvironmentNode{img: img}
	n.setup(tag, 0, 0, false)
	return n
}

func (n *EnvironmentNode) Init(ctx *Context, upstreams ...Node) error {
	if err := n.bind(ctx, upstreams); err != nil {
		return err
	}

	img := n.img
	if img == nil {
		res, err := asset.NewResource(n.path, nil)
		if err != nil {
			return fmt.Errorf("node (%s): %w", n.tag, err)
		}
		defer res.Close()

		if img, err = asset.DecodeImage(res, 0, 0); err != nil {
			return fmt.Errorf("node (%s): %w", n.tag, err)
		}
	}

	out, err := NewImage(ctx.Device, n.tag, img.Width, img.Height)
	if err != nil {
		return fmt.Errorf("node (%s): could not allocate output: %w", n.tag, err)
	}
	if err = out.buf.WriteData(img.Pix, 0); err != nil {
		out.Release()
		return fmt.Errorf("node (%s): %w", n.tag, err)
	}
	n.out = out
	n.img = nil
	logger.Infof("[%s] loaded environment map (%dx%d)", n.tag, img.Width, img.Height)
	return nil
}

// Sources have nothing to process.
func (n *EnvironmentNode) Process() error {
	return nil
}

// SetImage replaces the environment map. The new map is picked up by the
// next environment swap.
func (n *EnvironmentNode) SetImage(img *asset.Image) error {
	if n.out == nil {
		return fmt.Errorf("node (%s): %w", n.tag, ErrNotInitialized)
	}
	n.ctx.deviceMu.Lock()
	defer n.ctx.deviceMu.Unlock()
	if err := n.out.replace(n.ctx.Device, img); err != nil {
		return fmt.Errorf("node (%s): %w", n.tag, err)
	}
	return nil
}

func (n *EnvironmentNode) Release() {
	n.release()
}

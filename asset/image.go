package asset

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a linear RGBA float image with rows stored top to bottom.
type Image struct {
	Width  int
	Height int

	// Four floats per pixel.
	Pix []float32
}

// NewImage allocates a zeroed image.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*4),
	}
}

// At returns the RGBA value of pixel (x, y).
func (img *Image) At(x, y int) [4]float32 {
	o := (y*img.Width + x) * 4
	return [4]float32{img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]}
}

// Decode an image resource (png, jpeg, bmp, tiff or webp) into a linear
// float image. If width and height are both > 0 the image is resampled to
// that size.
func DecodeImage(res *Resource, width, height int) (*Image, error) {
	src, format, err := image.Decode(res)
	if err != nil {
		return nil, fmt.Errorf("resource: could not decode image '%s': %w", res.Path(), err)
	}

	if width > 0 && height > 0 && (src.Bounds().Dx() != width || src.Bounds().Dy() != height) {
		dst := image.NewRGBA64(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		src = dst
	}

	logger.Debugf("decoded %s image %s (%dx%d)", format, res.Path(), src.Bounds().Dx(), src.Bounds().Dy())
	return FromImage(src), nil
}

// FromImage converts an sRGB encoded image into a linear float image.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	img := NewImage(bounds.Dx(), bounds.Dy())

	o := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			img.Pix[o] = srgbToLinear(float32(r) / 0xffff)
			img.Pix[o+1] = srgbToLinear(float32(g) / 0xffff)
			img.Pix[o+2] = srgbToLinear(float32(b) / 0xffff)
			img.Pix[o+3] = float32(a) / 0xffff
			o += 4
		}
	}
	return img
}

func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64((v+0.055)/1.055), 2.4))
}

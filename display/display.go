// Package display shows and stores pipeline output: an optional preview
// window and a frame writer producing PNG color and 16-bit TIFF depth
// images.
package display

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/log"
)

var logger = log.New("display")

var ErrUnavailable = errors.New("display: preview window not available in this build")

// ToRGBA converts a linear float4 image to an sRGB encoded RGBA image. If
// flipY is set, rows are emitted bottom to top.
func ToRGBA(pix []float32, width, height int, flipY bool, dst *image.RGBA) *image.RGBA {
	if dst == nil || dst.Bounds().Dx() != width || dst.Bounds().Dy() != height {
		dst = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	for y := 0; y < height; y++ {
		srcY := y
		if flipY {
			srcY = height - 1 - y
		}
		for x := 0; x < width; x++ {
			so := (srcY*width + x) * device.PixelStride
			do := y*dst.Stride + x*4
			dst.Pix[do] = encode8(linearToSRGB(pix[so]))
			dst.Pix[do+1] = encode8(linearToSRGB(pix[so+1]))
			dst.Pix[do+2] = encode8(linearToSRGB(pix[so+2]))
			dst.Pix[do+3] = 0xff
		}
	}
	return dst
}

// ToGray16 converts the first channel of a float4 image in [0, 1] to a
// 16-bit grayscale image.
func ToGray16(pix []float32, width, height int) *image.Gray16 {
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		v := clamp01(pix[i*device.PixelStride])
		dst.SetGray16(i%width, i/width, color.Gray16{Y: uint16(math.Round(float64(v) * 0xffff))})
	}
	return dst
}

func linearToSRGB(v float32) float32 {
	v = clamp01(v)
	if v <= 0.0031308 {
		return v * 12.92
	}
	return float32(1.055*math.Pow(float64(v), 1/2.4) - 0.055)
}

func encode8(v float32) uint8 {
	return uint8(math.Round(float64(clamp01(v)) * 0xff))
}

func clamp01(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

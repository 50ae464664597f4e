package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/achilleasa/radiance/pipeline"
	"golang.org/x/image/tiff"
)

// FrameWriter stores every flushed frame as a PNG color image and a 16-bit
// TIFF depth image inside a directory.
type FrameWriter struct {
	dir  string
	rgba *image.RGBA
}

// NewFrameWriter creates dir if needed.
func NewFrameWriter(dir string) (*FrameWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("display: could not create output folder: %w", err)
	}
	return &FrameWriter{dir: dir}, nil
}

// ColorPath returns the color image path for frame.
func (w *FrameWriter) ColorPath(frame int) string {
	return filepath.Join(w.dir, fmt.Sprintf("color-%05d.png", frame))
}

// DepthPath returns the depth image path for frame.
func (w *FrameWriter) DepthPath(frame int) string {
	return filepath.Join(w.dir, fmt.Sprintf("depth-%05d.tiff", frame))
}

func (w *FrameWriter) Flush(frame int, color, depth *pipeline.Image) error {
	img, err := color.Snapshot()
	if err != nil {
		return fmt.Errorf("display: color snapshot: %w", err)
	}
	w.rgba = ToRGBA(img.Pix, img.Width, img.Height, false, w.rgba)
	if err = writeFile(w.ColorPath(frame), func(f *os.File) error { return png.Encode(f, w.rgba) }); err != nil {
		return err
	}

	if img, err = depth.Snapshot(); err != nil {
		return fmt.Errorf("display: depth snapshot: %w", err)
	}
	gray := ToGray16(img.Pix, img.Width, img.Height)
	if err = writeFile(w.DepthPath(frame), func(f *os.File) error {
		return tiff.Encode(f, gray, &tiff.Options{Compression: tiff.Deflate})
	}); err != nil {
		return err
	}

	logger.Infof("wrote frame %d to %s", frame, w.dir)
	return nil
}

func writeFile(path string, encode func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	if err = encode(f); err != nil {
		f.Close()
		return fmt.Errorf("display: could not encode %s: %w", path, err)
	}
	return f.Close()
}

package tilecache

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"

	"github.com/disintegration/imaging"
)

// ImageSource lazily wraps an already-decoded image, a file on disk, or an
// in-memory buffer, decoding only when AsImage/AsBuffer is first called and
// caching the result.
//
// Grounded on mapproxy.core.image.ImageSource.
type ImageSource struct {
	img  image.Image
	path string
	buf  []byte
}

// NewImageSource wraps an already-decoded image.
func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{img: img}
}

// NewImageSourceFromFile lazily wraps a file path; nothing is read until
// AsImage is called.
func NewImageSourceFromFile(path string) *ImageSource {
	return &ImageSource{path: path}
}

// NewImageSourceFromBuffer lazily wraps an in-memory encoded image.
func NewImageSourceFromBuffer(buf []byte) *ImageSource {
	return &ImageSource{buf: buf}
}

// AsImage decodes and returns the underlying image, caching the result.
func (s *ImageSource) AsImage() (image.Image, error) {
	if s.img != nil {
		return s.img, nil
	}
	if s.buf != nil {
		img, _, err := image.Decode(bytes.NewReader(s.buf))
		if err != nil {
			return nil, fmt.Errorf("tilecache: decode image buffer: %w", err)
		}
		s.img = img
		return img, nil
	}
	if s.path != "" {
		img, err := imaging.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("tilecache: decode image %s: %w", s.path, err)
		}
		s.img = img
		return img, nil
	}
	return nil, fmt.Errorf("tilecache: empty image source")
}

// AsBuffer returns the source's already-encoded bytes if it was built from
// a buffer or file; for an in-memory decoded image it is an error (callers
// needing bytes from a decoded image should use Encode).
func (s *ImageSource) AsBuffer() ([]byte, error) {
	if s.buf != nil {
		return s.buf, nil
	}
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return nil, err
		}
		s.buf = b
		return b, nil
	}
	return nil, fmt.Errorf("tilecache: no raw buffer available, call Encode")
}

// Encode writes the source's image to w in the given format ("png",
// "jpeg", "gif").
func (s *ImageSource) Encode(w io.Writer, format string) error {
	img, err := s.AsImage()
	if err != nil {
		return err
	}
	return encodeImage(w, img, format)
}

func imagingFormat(format string) (imaging.Format, error) {
	switch format {
	case "png":
		return imaging.PNG, nil
	case "jpeg", "jpg":
		return imaging.JPEG, nil
	case "gif":
		return imaging.GIF, nil
	case "tiff":
		return imaging.TIFF, nil
	case "bmp":
		return imaging.BMP, nil
	default:
		return 0, fmt.Errorf("tilecache: unsupported image format %q", format)
	}
}

func encodeImage(w io.Writer, img image.Image, format string) error {
	f, err := imagingFormat(format)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, f)
}

// LayerMerger composites an ordered stack of image layers (bottom first)
// into a single RGBA image, honoring a background color and transparency.
//
// Grounded on mapproxy.core.image.LayerMerger.
type LayerMerger struct {
	layers []image.Image
}

// Add appends one or more layers, bottom-to-top.
func (m *LayerMerger) Add(layers ...image.Image) {
	m.layers = append(m.layers, layers...)
}

// Merge composites all added layers into an image of size. When
// transparent is false the layers are drawn over a bgColor fill; when it
// is true bgColor is ignored and no background fill is made.
func (m *LayerMerger) Merge(size image.Point, bgColor color.Color, transparent bool) image.Image {
	if len(m.layers) == 1 && m.layers[0].Bounds().Size() == size {
		// Fast path: a single layer that already matches the requested
		// size skips the composite: it is returned as is when transparent,
		// or flattened over bgColor otherwise.
		if !transparent {
			return flattenOverBackground(m.layers[0], bgColor)
		}
		return m.layers[0]
	}

	dst := image.NewRGBA(image.Rectangle{Max: size})
	if !transparent {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)
	}
	for _, layer := range m.layers {
		r := layer.Bounds()
		off := image.Point{X: (size.X - r.Dx()) / 2, Y: (size.Y - r.Dy()) / 2}
		draw.Draw(dst, r.Add(off).Intersect(dst.Bounds()), layer, r.Min, draw.Over)
	}
	return dst
}

func flattenOverBackground(layer image.Image, bg color.Color) image.Image {
	dst := image.NewRGBA(layer.Bounds())
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), layer, layer.Bounds().Min, draw.Over)
	return dst
}

// subImager is satisfied by the concrete image types disintegration/imaging
// decodes into (NRGBA, RGBA); it lets TileSplitter crop without a full
// copy.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

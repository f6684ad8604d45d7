// Package image implements the resize step photo uploads go through: a
// bounded-dimension main rendition plus a fixed-size square thumbnail.
package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Meta carries the pixel dimensions of an encoded image.
type Meta struct {
	Width  int
	Height int
}

// Processor is the image-transform collaborator. All methods are pure over
// their input bytes.
type Processor interface {
	// ResizeMain scales the image down to fit within the configured bound,
	// preserving aspect ratio. Images already within the bound are re-encoded
	// unscaled.
	ResizeMain(data []byte) ([]byte, error)
	// ResizeThumb center-crops to a square and scales to the thumbnail size.
	ResizeThumb(data []byte) ([]byte, error)
	// ReadMeta decodes only as far as needed to report dimensions.
	ReadMeta(data []byte) (Meta, error)
}

// ThumbSize is the square thumbnail edge in pixels.
const ThumbSize = 256

// Resizer implements Processor with x/image scaling. JPEG and WebP inputs
// are encoded as JPEG (the standard library has no WebP encoder), PNG stays
// PNG.
type Resizer struct {
	mainMax int
}

var _ Processor = (*Resizer)(nil)

// NewResizer creates a Resizer bounding main renditions to mainMax pixels on
// the longer edge.
func NewResizer(mainMax int) *Resizer {
	return &Resizer{mainMax: mainMax}
}

// ResizeMain implements Processor.
func (r *Resizer) ResizeMain(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > r.mainMax || h > r.mainMax {
		if w >= h {
			h = h * r.mainMax / w
			w = r.mainMax
		} else {
			w = w * r.mainMax / h
			h = r.mainMax
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		src = scale(src, w, h)
	}
	return encode(src, format)
}

// ResizeThumb implements Processor.
func (r *Resizer) ResizeThumb(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	cropped := cropSquare(src, image.Rect(x0, y0, x0+side, y0+side))

	return encode(scale(cropped, ThumbSize, ThumbSize), format)
}

// ReadMeta implements Processor.
func (r *Resizer) ReadMeta(data []byte) (Meta, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Meta{}, fmt.Errorf("decode image config: %w", err)
	}
	return Meta{Width: cfg.Width, Height: cfg.Height}, nil
}

func scale(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func cropSquare(src image.Image, r image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, src, r, draw.Src, nil)
	return dst
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

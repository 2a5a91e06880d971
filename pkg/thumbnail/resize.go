// Package thumbnail generates fixed-width variants of uploaded images.
//
// The Worker consumes jobs from the queue, loads the original blob, and
// writes one variant per configured width next to it under
// "<localPath>_<width>". Variants keep the source aspect ratio and are never
// upscaled. JPEG sources produce JPEG variants; every other supported
// format produces PNG.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat is returned for payloads that are not a decodable
	// image. Retrying cannot fix it.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrImageTooLarge is returned, wrapped in ErrUnsupportedFormat, when the
	// header declares more pixels than the decode limit.
	ErrImageTooLarge = errors.New("image exceeds pixel limit")
)

const (
	// jpegQuality is the encoder quality for JPEG variants.
	jpegQuality = 85

	// DefaultMaxPixels bounds width*height of a decoded source, about 160 MiB
	// of RGBA.
	DefaultMaxPixels = 40_000_000
)

type codec struct {
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

// codecs maps detected MIME types to the codec for that format.
var codecs = map[string]codec{
	"image/jpeg": {jpeg.Decode, jpeg.DecodeConfig},
	"image/png":  {png.Decode, png.DecodeConfig},
	"image/gif":  {gif.Decode, gif.DecodeConfig},
	"image/webp": {webp.Decode, webp.DecodeConfig},
	"image/bmp":  {bmp.Decode, bmp.DecodeConfig},
}

// Source is a decoded original image.
type Source struct {
	Image image.Image
	MIME  string
}

// Decode sniffs the payload format and decodes it. The header is read first
// and sources over maxPixels are rejected before any pixel buffer is
// allocated; maxPixels <= 0 disables the check.
func Decode(data []byte, maxPixels int64) (*Source, error) {
	mt := mimetype.Detect(data)

	var c codec
	var name string
	for m := mt; m != nil; m = m.Parent() {
		if found, ok := codecs[m.String()]; ok {
			c, name = found, m.String()
			break
		}
	}
	if c.decode == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}

	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s header: %v", ErrUnsupportedFormat, name, err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %w: %dx%d", ErrUnsupportedFormat, ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedFormat, name, err)
	}
	return &Source{Image: img, MIME: name}, nil
}

// TargetSize returns the variant dimensions for a source of the given size:
// width is capped at the source width and height follows the aspect ratio
// (at least 1 pixel).
func TargetSize(srcW, srcH, width int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if width >= srcW {
		return srcW, srcH
	}

	height := (srcH*width + srcW/2) / srcW
	if height < 1 {
		height = 1
	}
	return width, height
}

// Resize scales src to the given width with Catmull-Rom resampling.
func Resize(src image.Image, width int) image.Image {
	b := src.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), width)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Encode writes img in the variant format for a source of type srcMIME.
func Encode(img image.Image, srcMIME string) ([]byte, error) {
	var buf bytes.Buffer

	var err error
	if srcMIME == "image/jpeg" {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

package thumbnail

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), nil))
	return buf.Bytes()
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGBA
// pixels, with no image data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha

	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		width      int
		wantW      int
		wantH      int
	}{
		{"downscale keeps ratio", 1000, 500, 250, 250, 125},
		{"rounds height", 1000, 333, 100, 100, 33},
		{"never upscales", 200, 100, 500, 200, 100},
		{"equal width", 500, 400, 500, 500, 400},
		{"minimum height", 5000, 2, 100, 100, 1},
		{"empty source", 0, 0, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.srcW, tt.srcH, tt.width)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("PNG", func(t *testing.T) {
		src, err := Decode(pngBytes(t, 40, 20), DefaultMaxPixels)
		require.NoError(t, err)
		assert.Equal(t, "image/png", src.MIME)
		assert.Equal(t, 40, src.Image.Bounds().Dx())
	})

	t.Run("JPEG", func(t *testing.T) {
		src, err := Decode(jpegBytes(t, 40, 20), DefaultMaxPixels)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", src.MIME)
	})

	t.Run("RejectsText", func(t *testing.T) {
		_, err := Decode([]byte("definitely not an image"), DefaultMaxPixels)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	})

	t.Run("RejectsOversizedHeader", func(t *testing.T) {
		_, err := Decode(pngHeader(60000, 60000), DefaultMaxPixels)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat))
		assert.True(t, errors.Is(err, ErrImageTooLarge))
	})

	t.Run("PixelLimit", func(t *testing.T) {
		_, err := Decode(pngBytes(t, 40, 20), 40*20-1)
		assert.True(t, errors.Is(err, ErrImageTooLarge))

		src, err := Decode(pngBytes(t, 40, 20), 40*20)
		require.NoError(t, err)
		assert.Equal(t, 20, src.Image.Bounds().Dy())
	})

	t.Run("RejectsTruncatedPNG", func(t *testing.T) {
		data := pngBytes(t, 40, 20)
		_, err := Decode(data[:len(data)/2], DefaultMaxPixels)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	})
}

func TestResizeAndEncode(t *testing.T) {
	src, err := Decode(pngBytes(t, 800, 400), DefaultMaxPixels)
	require.NoError(t, err)

	for _, width := range []int{500, 250, 100} {
		encoded, err := Encode(Resize(src.Image, width), src.MIME)
		require.NoError(t, err)

		out, err := png.Decode(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, width, out.Bounds().Dx())
		assert.Equal(t, width/2, out.Bounds().Dy())
	}
}

func TestEncodeKeepsJPEG(t *testing.T) {
	src, err := Decode(jpegBytes(t, 300, 300), DefaultMaxPixels)
	require.NoError(t, err)

	encoded, err := Encode(Resize(src.Image, 100), src.MIME)
	require.NoError(t, err)

	out, err := jpeg.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
}

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	// DefaultMaxSize bounds the longer dimension of an encoded frame.
	DefaultMaxSize = 800

	// DefaultQuality is the fixed JPEG quality for encoded frames.
	DefaultQuality = 85
)

// Frame is a transient, size-bounded encoded image ready for transmission,
// together with the dimensions it originated from. It is discarded after
// the network call completes.
type Frame struct {
	Data          []byte
	SourceWidth   int
	SourceHeight  int
	EncodedWidth  int
	EncodedHeight int
}

// Codec normalizes arbitrary input images (uploads or camera captures) into
// bounded JPEG payloads. Identical pixel input yields identical output.
type Codec struct {
	MaxSize int
	Quality int
}

// NewCodec creates a codec with the given scaling bound and JPEG quality.
// Non-positive values fall back to the defaults.
func NewCodec(maxSize, quality int) *Codec {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	return &Codec{MaxSize: maxSize, Quality: quality}
}

// Encode decodes the source image, downscales the longer dimension to the
// bound (never upscaling) and re-encodes it as JPEG.
func (c *Codec) Encode(data []byte) (*Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Under the bound: re-encode only, never upscale.
	if width <= c.MaxSize && height <= c.MaxSize {
		payload, err := c.encodeJPEG(img)
		if err != nil {
			return nil, err
		}
		return &Frame{
			Data:          payload,
			SourceWidth:   width,
			SourceHeight:  height,
			EncodedWidth:  width,
			EncodedHeight: height,
		}, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = c.MaxSize
		newHeight = int(float64(height) * float64(c.MaxSize) / float64(width))
	} else {
		newHeight = c.MaxSize
		newWidth = int(float64(width) * float64(c.MaxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	payload, err := c.encodeJPEG(resized)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Data:          payload,
		SourceWidth:   width,
		SourceHeight:  height,
		EncodedWidth:  newWidth,
		EncodedHeight: newHeight,
	}, nil
}

func (c *Codec) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

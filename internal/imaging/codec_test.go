package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// encodePNG renders a deterministic gradient at the given size.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg decode: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestEncodeScalesLongerDimensionToBound(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		wantW      int
		wantH      int
	}{
		{"landscape", 1600, 1200, 800, 600},
		{"portrait", 900, 1800, 400, 800},
		{"square oversized", 1000, 1000, 800, 800},
		{"exactly at bound", 800, 600, 800, 600},
	}

	codec := NewCodec(800, 85)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := codec.Encode(encodePNG(t, tc.srcW, tc.srcH))
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if frame.EncodedWidth != tc.wantW || frame.EncodedHeight != tc.wantH {
				t.Errorf("encoded %dx%d, want %dx%d",
					frame.EncodedWidth, frame.EncodedHeight, tc.wantW, tc.wantH)
			}
			if frame.SourceWidth != tc.srcW || frame.SourceHeight != tc.srcH {
				t.Errorf("source %dx%d, want %dx%d",
					frame.SourceWidth, frame.SourceHeight, tc.srcW, tc.srcH)
			}
			w, h := decodeSize(t, frame.Data)
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("payload decodes to %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestEncodeNeverUpscales(t *testing.T) {
	codec := NewCodec(800, 85)

	frame, err := codec.Encode(encodePNG(t, 320, 240))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if frame.EncodedWidth != 320 || frame.EncodedHeight != 240 {
		t.Errorf("small image was rescaled to %dx%d", frame.EncodedWidth, frame.EncodedHeight)
	}
	w, h := decodeSize(t, frame.Data)
	if w != 320 || h != 240 {
		t.Errorf("payload decodes to %dx%d, want 320x240", w, h)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	codec := NewCodec(800, 85)
	src := encodePNG(t, 1024, 768)

	first, err := codec.Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := codec.Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Errorf("identical input produced differing payloads")
	}
}

func TestEncodeRejectsGarbage(t *testing.T) {
	codec := NewCodec(800, 85)
	if _, err := codec.Encode([]byte("not an image")); err == nil {
		t.Fatal("expected error for undecodable input")
	}
}

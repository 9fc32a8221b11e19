package detect

import (
	"bytes"
	"image"
	"testing"
)

func TestPadBox(t *testing.T) {
	extents := image.Rect(0, 0, 200, 200)

	tests := []struct {
		name   string
		box    image.Rectangle
		margin float64
		want   image.Rectangle
	}{
		{
			name:   "centered box grows on all sides",
			box:    image.Rect(60, 60, 140, 140),
			margin: 0.20,
			want:   image.Rect(44, 44, 156, 156),
		},
		{
			name:   "zero margin keeps the box",
			box:    image.Rect(60, 60, 140, 140),
			margin: 0,
			want:   image.Rect(60, 60, 140, 140),
		},
		{
			name:   "corner box clamps to extents",
			box:    image.Rect(0, 0, 100, 100),
			margin: 0.20,
			want:   image.Rect(0, 0, 120, 120),
		},
		{
			name:   "far edge clamps to extents",
			box:    image.Rect(150, 150, 200, 200),
			margin: 0.5,
			want:   image.Rect(125, 125, 200, 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := padBox(tt.box, extents, tt.margin)
			if got != tt.want {
				t.Errorf("padBox() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropFace(t *testing.T) {
	data := makeTestJPEG(t, 200, 200)

	crop, bounds, err := cropFace(data, image.Rect(60, 60, 140, 140), 0.20)
	if err != nil {
		t.Fatalf("cropFace() unexpected error: %v", err)
	}
	if want := image.Rect(44, 44, 156, 156); bounds != want {
		t.Errorf("bounds = %v, want %v", bounds, want)
	}

	img, format, err := image.Decode(bytes.NewReader(crop))
	if err != nil {
		t.Fatalf("crop is not decodable: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("crop format = %q, want jpeg", format)
	}
	if img.Bounds().Dx() != 112 || img.Bounds().Dy() != 112 {
		t.Errorf("crop size = %dx%d, want 112x112", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestCropFaceDownscalesLargeCrops(t *testing.T) {
	data := makeTestJPEG(t, 800, 800)

	crop, bounds, err := cropFace(data, image.Rect(0, 0, 800, 600), 0)
	if err != nil {
		t.Fatalf("cropFace() unexpected error: %v", err)
	}
	if want := image.Rect(0, 0, 800, 600); bounds != want {
		t.Errorf("bounds = %v, want %v", bounds, want)
	}

	img, _, err := image.Decode(bytes.NewReader(crop))
	if err != nil {
		t.Fatalf("crop is not decodable: %v", err)
	}
	if img.Bounds().Dx() != maxCropSize {
		t.Errorf("crop width = %d, want %d", img.Bounds().Dx(), maxCropSize)
	}
	if img.Bounds().Dy() != 384 {
		t.Errorf("crop height = %d, want 384 to keep aspect ratio", img.Bounds().Dy())
	}
}

func TestCropFaceRejectsOutOfBoundsBox(t *testing.T) {
	data := makeTestJPEG(t, 100, 100)

	if _, _, err := cropFace(data, image.Rect(500, 500, 600, 600), 0.2); err == nil {
		t.Error("cropFace() must fail for a box outside the image")
	}
}

func TestCropFaceRejectsUndecodableInput(t *testing.T) {
	if _, _, err := cropFace([]byte("not an image"), image.Rect(0, 0, 10, 10), 0.2); err == nil {
		t.Error("cropFace() must fail for undecodable input")
	}
}

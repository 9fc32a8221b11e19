package quality

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func solidImage(t *testing.T, width, height int, c color.Color) *image.RGBA {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestAssessOrder(t *testing.T) {
	gate := New(Config{})

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "accepted gray image",
			data:    encodeJPEG(t, solidImage(t, 200, 150, color.Gray{Y: 128})),
			wantErr: nil,
		},
		{
			name:    "all black square is too dark",
			data:    encodeJPEG(t, solidImage(t, 100, 100, color.Black)),
			wantErr: ErrTooDark,
		},
		{
			name:    "one short dimension is too small",
			data:    encodeJPEG(t, solidImage(t, 99, 150, color.Gray{Y: 128})),
			wantErr: ErrTooSmall,
		},
		{
			name:    "exact minimum resolution passes",
			data:    encodeJPEG(t, solidImage(t, 100, 100, color.White)),
			wantErr: nil,
		},
		{
			name:    "garbage bytes are undecodable",
			data:    []byte("definitely not an image"),
			wantErr: ErrUndecodable,
		},
		{
			name:    "empty input is undecodable",
			data:    nil,
			wantErr: ErrUndecodable,
		},
		{
			name:    "resolution checked before brightness",
			data:    encodeJPEG(t, solidImage(t, 99, 99, color.Black)),
			wantErr: ErrTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := gate.Assess(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Assess() unexpected error: %v", err)
				}
				if report == nil {
					t.Fatal("Assess() returned nil report without error")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Assess() error = %v, want %v", err, tt.wantErr)
			}
			if report != nil {
				t.Error("Assess() must not return a report on rejection")
			}
		})
	}
}

func TestAssessSizeCeiling(t *testing.T) {
	gate := New(Config{MaxBytes: 64})
	data := encodeJPEG(t, solidImage(t, 200, 200, color.Gray{Y: 128}))
	if len(data) <= 64 {
		t.Fatalf("test image unexpectedly small: %d bytes", len(data))
	}

	_, err := gate.Assess(data)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Assess() error = %v, want %v", err, ErrTooLarge)
	}
}

func TestAssessReport(t *testing.T) {
	gate := New(Config{})
	data := encodeJPEG(t, solidImage(t, 320, 240, color.Gray{Y: 200}))

	report, err := gate.Assess(data)
	if err != nil {
		t.Fatalf("Assess() unexpected error: %v", err)
	}
	if report.Format != "jpeg" {
		t.Errorf("format = %q, want jpeg", report.Format)
	}
	if report.Width != 320 || report.Height != 240 {
		t.Errorf("dimensions = %dx%d, want 320x240", report.Width, report.Height)
	}
	if report.Bytes != len(data) {
		t.Errorf("bytes = %d, want %d", report.Bytes, len(data))
	}
	if report.MeanLuma < 190 || report.MeanLuma > 210 {
		t.Errorf("mean luma = %.1f, want around 200", report.MeanLuma)
	}
	if report.Contrast > 10 {
		t.Errorf("contrast = %.1f, want near zero for a solid image", report.Contrast)
	}
}

func TestAssessDeterministic(t *testing.T) {
	gate := New(Config{})
	data := encodeJPEG(t, solidImage(t, 150, 150, color.Gray{Y: 90}))

	first, err := gate.Assess(data)
	if err != nil {
		t.Fatalf("Assess() unexpected error: %v", err)
	}
	second, err := gate.Assess(data)
	if err != nil {
		t.Fatalf("Assess() unexpected error: %v", err)
	}
	if *first != *second {
		t.Errorf("Assess() not deterministic: %+v vs %+v", first, second)
	}
}

func TestAssessOtherFormats(t *testing.T) {
	img := solidImage(t, 120, 120, color.Gray{Y: 128})

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, img); err != nil {
		t.Fatalf("failed to encode bmp: %v", err)
	}

	gate := New(Config{})
	tests := []struct {
		format string
		data   []byte
	}{
		{"png", pngBuf.Bytes()},
		{"bmp", bmpBuf.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			report, err := gate.Assess(tt.data)
			if err != nil {
				t.Fatalf("Assess() unexpected error: %v", err)
			}
			if report.Format != tt.format {
				t.Errorf("format = %q, want %q", report.Format, tt.format)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{ErrUndecodable, "undecodable"},
		{ErrTooSmall, "too_small"},
		{ErrTooDark, "too_dark"},
		{ErrTooLarge, "too_large"},
		{errors.New("unrelated"), ""},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.expected {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.expected)
		}
	}
}

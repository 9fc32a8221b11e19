package detect

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxCropSize is the maximum edge length of the crop sent to the embedder.
// Embedding models downscale internally anyway; shipping huge crops only
// costs bandwidth.
const maxCropSize = 512

// cropFace cuts the padded face region out of the source image and re-encodes
// it as JPEG. Returns the crop bytes and the padded bounds in source pixel
// space.
func cropFace(imageData []byte, box image.Rectangle, margin float64) ([]byte, image.Rectangle, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("failed to decode image: %w", err)
	}

	padded := padBox(box, img.Bounds(), margin)
	if padded.Empty() {
		return nil, image.Rectangle{}, fmt.Errorf("face box %v lies outside image bounds %v", box, img.Bounds())
	}

	width := padded.Dx()
	height := padded.Dy()
	if width > maxCropSize || height > maxCropSize {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxCropSize
			newHeight = int(float64(height) * float64(maxCropSize) / float64(width))
		} else {
			newHeight = maxCropSize
			newWidth = int(float64(width) * float64(maxCropSize) / float64(height))
		}
		dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, padded, draw.Over, nil)
		encoded, err := encodeJPEG(dst)
		if err != nil {
			return nil, image.Rectangle{}, err
		}
		return encoded, padded, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Copy(dst, image.Point{}, img, padded, draw.Over, nil)
	encoded, err := encodeJPEG(dst)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	return encoded, padded, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// padBox expands the box by margin (a fraction of its own width and height)
// on every side and clamps the result to the image extents.
func padBox(box image.Rectangle, extents image.Rectangle, margin float64) image.Rectangle {
	padX := int(float64(box.Dx()) * margin)
	padY := int(float64(box.Dy()) * margin)
	padded := image.Rect(box.Min.X-padX, box.Min.Y-padY, box.Max.X+padX, box.Max.Y+padY)
	return padded.Intersect(extents)
}

package adapters

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
)

const jpegQuality = 90

// Frame is an image ready to send to a perception service
type Frame struct {
	Data   []byte
	Width  int
	Height int

	// Scale maps prepared-image pixels back to source pixels
	Scale float64
}

// PrepareFrame decodes an uploaded image, honours EXIF orientation, shrinks it so that its
// longer side is at most maxSide (0 keeps the size) and re-encodes it as JPEG.
func PrepareFrame(data []byte, maxSide int) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("empty image")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode image: %w", err)
	}

	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()
	if srcW == 0 || srcH == 0 {
		return Frame{}, fmt.Errorf("image has no pixels")
	}

	var out image.Image = img
	if maxSide > 0 && (srcW > maxSide || srcH > maxSide) {
		out = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return Frame{}, fmt.Errorf("failed to encode image: %w", err)
	}

	w := out.Bounds().Dx()
	return Frame{
		Data:   buf.Bytes(),
		Width:  w,
		Height: out.Bounds().Dy(),
		Scale:  float64(srcW) / float64(w),
	}, nil
}

// ToSource rescales detection boxes from prepared-image pixels to source pixels
func (f Frame) ToSource(detections []analysis.Detection) []analysis.Detection {
	if f.Scale == 0 || f.Scale == 1 {
		return detections
	}
	out := make([]analysis.Detection, len(detections))
	for i, d := range detections {
		d.Box = d.Box.Scale(f.Scale)
		out[i] = d
	}
	return out
}

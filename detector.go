package ppeprep

import (
	"context"
	"fmt"
	"image"
)

// Detection is a single object found by a Detector.
type Detection struct {
	Box        PixelBox // In the pixel coordinates of the input image.
	Label      string
	Confidence float64
}

func (d Detection) String() string {
	return fmt.Sprintf("%s: %.2f (%.1f, %.1f), (%.1f, %.1f)",
		d.Label, d.Confidence, d.Box.XMin, d.Box.YMin, d.Box.XMax, d.Box.YMax)
}

// Detector finds objects in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

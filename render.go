package ppeprep

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// boxColor is used for all detection boxes and captions.
var boxColor = color.NRGBA{0, 255, 0, 255}

// DrawDetections returns a copy of img with a rectangle around each detection and a
// "label: confidence" caption above it.
func DrawDetections(img image.Image, detections []Detection, lineThickness int) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()
	face := basicfont.Face7x13

	for _, d := range detections {
		r := d.Box.Rect().Intersect(bounds)
		if r.Empty() {
			continue
		}
		drawRect(out, r, lineThickness)

		// Place the caption above the box, or inside it at the top image edge.
		text := fmt.Sprintf("%s: %.2f", d.Label, d.Confidence)
		baseline := r.Min.Y - 5
		if baseline-face.Ascent < bounds.Min.Y {
			baseline = r.Min.Y + face.Ascent + lineThickness
		}
		drawer := &font.Drawer{
			Dst:  out,
			Src:  image.NewUniform(boxColor),
			Face: face,
			Dot:  fixed.P(r.Min.X, baseline),
		}
		drawer.DrawString(text)
	}

	return out
}

// drawRect draws the outline of r with the given thickness, growing inwards.
func drawRect(img draw.Image, r image.Rectangle, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	src := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

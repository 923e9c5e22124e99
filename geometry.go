package ppeprep

// Conversions between normalized center-form and absolute corner-form bounding boxes.

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// ImageSize is the pixel size of an image.
type ImageSize struct {
	Width  int
	Height int
}

// sizeOf returns the size of the rectangle r.
func sizeOf(r image.Rectangle) ImageSize {
	return ImageSize{Width: r.Dx(), Height: r.Dy()}
}

// NormalizedBox is a box in center form, relative to the size of a specific image.
//
// The geometric fields are nominally in [0, 1], but this is not enforced: out of range values from
// annotation errors are clipped away downstream.
type NormalizedBox struct {
	ClassID int
	CX, CY  float64 // Center.
	W, H    float64
}

// PixelBox is a box in corner form, in absolute pixel offsets from the top-left image corner.
type PixelBox struct {
	XMin, YMin, XMax, YMax float64
}

// Width is XMax - XMin.
func (b PixelBox) Width() float64 {
	return b.XMax - b.XMin
}

// Height is YMax - YMin.
func (b PixelBox) Height() float64 {
	return b.YMax - b.YMin
}

// Empty reports whether the box has no positive area. Boxes with non-finite coordinates are empty.
func (b PixelBox) Empty() bool {
	for _, v := range [4]float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return b.XMax <= b.XMin || b.YMax <= b.YMin
}

// Truncate truncates all coordinates toward zero.
//
// This is the only rounding step of the pipeline. It is applied where a box becomes a pixel
// rectangle, i.e. to the crop rectangle of an anchor.
func (b PixelBox) Truncate() PixelBox {
	return PixelBox{math.Trunc(b.XMin), math.Trunc(b.YMin), math.Trunc(b.XMax), math.Trunc(b.YMax)}
}

// Rect converts b to an image.Rectangle. The coordinates are truncated.
func (b PixelBox) Rect() image.Rectangle {
	return image.Rect(int(b.XMin), int(b.YMin), int(b.XMax), int(b.YMax))
}

// Translate shifts the box by (-dx, -dy).
func (b PixelBox) Translate(dx, dy float64) PixelBox {
	return PixelBox{b.XMin - dx, b.YMin - dy, b.XMax - dx, b.YMax - dy}
}

// ToPixel converts the normalized box to absolute corner form for an image of the given size.
func ToPixel(b NormalizedBox, size ImageSize) PixelBox {
	w, h := float64(size.Width), float64(size.Height)
	return PixelBox{
		XMin: (b.CX - b.W/2) * w,
		YMin: (b.CY - b.H/2) * h,
		XMax: (b.CX + b.W/2) * w,
		YMax: (b.CY + b.H/2) * h,
	}
}

// ClipToImage clamps the minimum corner to >= 0 and the maximum corner to <= the image size.
//
// A box lying entirely outside the image is not made consistent, i.e. XMin > XMax is possible
// afterwards. Check the result with Empty.
func ClipToImage(b PixelBox, size ImageSize) PixelBox {
	return PixelBox{
		XMin: math.Max(b.XMin, 0),
		YMin: math.Max(b.YMin, 0),
		XMax: math.Min(b.XMax, float64(size.Width)),
		YMax: math.Min(b.YMax, float64(size.Height)),
	}
}

// clampToImage clamps both corners into [0, width] x [0, height].
func clampToImage(b PixelBox, size ImageSize) PixelBox {
	w, h := float64(size.Width), float64(size.Height)
	return PixelBox{
		XMin: clamp(b.XMin, 0, w),
		YMin: clamp(b.YMin, 0, h),
		XMax: clamp(b.XMax, 0, w),
		YMax: clamp(b.YMax, 0, h),
	}
}

// ToNormalized converts the pixel box to center form relative to an image of the given size. The
// class ID of the result is zero.
func ToNormalized(b PixelBox, size ImageSize) (NormalizedBox, error) {
	if size.Width == 0 || size.Height == 0 {
		return NormalizedBox{}, errors.Wrapf(ErrZeroSize, "normalizing against %dx%d",
			size.Width, size.Height)
	}

	w, h := float64(size.Width), float64(size.Height)
	return NormalizedBox{
		CX: (b.XMin + b.XMax) / 2 / w,
		CY: (b.YMin + b.YMax) / 2 / h,
		W:  (b.XMax - b.XMin) / w,
		H:  (b.YMax - b.YMin) / h,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

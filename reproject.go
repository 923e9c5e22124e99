package ppeprep

import (
	"github.com/pkg/errors"
)

// Reproject derives the crop rectangle of anchor within an image of size parent and re-expresses
// the dependent boxes in the normalized coordinate frame of that crop.
//
// The crop rectangle is the anchor in pixel form, truncated to whole pixels and clipped to the
// image. If it has no area, ErrDegenerateGeometry is returned.
//
// Dependents are translated into the crop, clamped to its bounds and dropped if nothing with a
// positive width and height remains. Survivors keep their original class ID and input order.
func Reproject(anchor NormalizedBox, parent ImageSize, dependents []NormalizedBox) (
		PixelBox, []NormalizedBox, error) {

	cropRect := ClipToImage(ToPixel(anchor, parent).Truncate(), parent)
	if cropRect.Empty() {
		return cropRect, nil, errors.Wrapf(ErrDegenerateGeometry,
			"anchor (%.6f, %.6f, %.6f, %.6f) in %dx%d image",
			anchor.CX, anchor.CY, anchor.W, anchor.H, parent.Width, parent.Height)
	}
	cropSize := ImageSize{Width: int(cropRect.Width()), Height: int(cropRect.Height())}

	reprojected := make([]NormalizedBox, 0, len(dependents))
	for _, d := range dependents {
		b := ToPixel(d, parent).Translate(cropRect.XMin, cropRect.YMin)
		b = clampToImage(b, cropSize)
		if b.Empty() {
			continue
		}

		// cropSize has a positive area, so normalizing cannot fail.
		n, err := ToNormalized(b, cropSize)
		if err != nil {
			return cropRect, nil, err
		}
		n.ClassID = d.ClassID
		reprojected = append(reprojected, n)
	}

	return cropRect, reprojected, nil
}

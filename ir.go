package ppeprep

// The intermediate annotation metadata representation used by the format converters.

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Annotation is the intermediate representation of an object label.
type Annotation struct {
	Coords [4]float64 // Absolute x1, y1, x2, y2 offsets from the top-left corner.
	Label  string
}

// Width is the object width from a.Coords.
func (a Annotation) Width() float64 {
	return a.Coords[2] - a.Coords[0]
}

// Height is the object height from a.Coords.
func (a Annotation) Height() float64 {
	return a.Coords[3] - a.Coords[1]
}

// PixelBox returns a.Coords as a PixelBox.
func (a Annotation) PixelBox() PixelBox {
	return PixelBox{a.Coords[0], a.Coords[1], a.Coords[2], a.Coords[3]}
}

// AnnotatedFile is the intermediate representation of file metadata.
type AnnotatedFile struct {
	Annotations []Annotation // The annotations.
	FilePath    string       // The annotated file.
	Width       int          // Image width in pixels.
	Height      int          // Image height in pixels.
}

// AnnotatedFiles is the annotation metadata for a list of files.
type AnnotatedFiles []AnnotatedFile

// MapLabels replaces label (sub-)strings with substitution values, as specified in mappings.
//
// The format of mappings is old=new.
func (data AnnotatedFiles) MapLabels(mappings []string, logger *zap.Logger) error {
	if len(mappings) == 0 {
		return nil
	}

	// Extract the individual old and new strings to map between.
	replacements := make([]*strings.Replacer, len(mappings))
	for i, v := range mappings {
		a := strings.Split(v, "=")
		if len(a) != 2 || a[0] == "" {
			return errors.Errorf("invalid mapping: %v", v)
		}
		replacements[i] = strings.NewReplacer(a[0], a[1])
	}

	// Apply the replacements, in order, to all labels.
	count := 0
	for _, f := range data {
		for i := range f.Annotations {
			a := &f.Annotations[i]

			oldLabel := a.Label
			for _, r := range replacements {
				a.Label = r.Replace(a.Label)
			}
			if a.Label != oldLabel {
				count++
			}
		}
	}

	loggerOrNop(logger).Info("Mapped labels", zap.Int("changed", count))
	return nil
}

// Filter removes annotations with a bounding box narrower than minBboxWidth or lower than
// minBboxHeight pixels. Annotations are filtered in place and keep their order.
func (data AnnotatedFiles) Filter(minBboxWidth, minBboxHeight float64, logger *zap.Logger) {
	if minBboxWidth <= 0 && minBboxHeight <= 0 {
		return
	}

	before, after := 0, 0
	for dataIdx := range data {
		d := &data[dataIdx]
		before += len(d.Annotations)

		kept := d.Annotations[:0]
		for _, a := range d.Annotations {
			if a.Width() < minBboxWidth || a.Height() < minBboxHeight {
				continue
			}
			kept = append(kept, a)
		}
		d.Annotations = kept
		after += len(kept)
	}

	loggerOrNop(logger).Info("Filtered labels", zap.Int("removed", before-after))
}

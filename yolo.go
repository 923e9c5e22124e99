package ppeprep

// YOLO text label specific functionality.

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// yoloFields is the number of fields on a YOLO label line.
const yoloFields = 5

// ParseYOLOLine parses a single "class cx cy w h" label line.
func ParseYOLOLine(line string) (NormalizedBox, error) {
	tokens := strings.Fields(line)
	if len(tokens) != yoloFields {
		return NormalizedBox{}, errors.Errorf("expected %d fields, found %d in %q",
			yoloFields, len(tokens), line)
	}

	classID, err := parseClassID(tokens[0])
	if err != nil {
		return NormalizedBox{}, errors.Wrapf(err, "invalid class ID in %q", line)
	}

	var v [4]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(tokens[i+1], 64); err != nil {
			return NormalizedBox{}, errors.Wrapf(err, "unexpected values in %q", line)
		}
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return NormalizedBox{}, errors.Errorf("non-finite value in %q", line)
		}
	}

	return NormalizedBox{ClassID: classID, CX: v[0], CY: v[1], W: v[2], H: v[3]}, nil
}

// parseClassID accepts non-negative integers, also when written as integral floats ("1.0").
func parseClassID(s string) (int, error) {
	if id, err := strconv.Atoi(s); err == nil {
		if id < 0 {
			return 0, errors.Errorf("negative class ID %d", id)
		}
		return id, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, errors.Errorf("class ID %q is not a non-negative integer", s)
	}
	return int(f), nil
}

// FormatYOLOLine formats b as a label line without the trailing newline.
func FormatYOLOLine(b NormalizedBox) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", b.ClassID, b.CX, b.CY, b.W, b.H)
}

// ReadYOLOLabels reads the label file at path.
//
// Malformed lines are skipped and returned as ItemParseErrors alongside the boxes parsed from the
// remaining lines. Blank lines are ignored. The returned error is only set if the file could not be
// read.
func ReadYOLOLabels(path string) ([]NormalizedBox, []*ItemError, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, err
	}

	var lineErrs []*ItemError
	boxes := make([]NormalizedBox, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b, err := ParseYOLOLine(line)
		if err != nil {
			lineErrs = append(lineErrs, newItemError(ItemParseError, path, i+1, err))
			continue
		}
		boxes = append(boxes, b)
	}

	return boxes, lineErrs, nil
}

// encodeYOLOLabels formats boxes as label file content, one line per box.
func encodeYOLOLabels(boxes []NormalizedBox) []byte {
	var buf bytes.Buffer
	for _, b := range boxes {
		buf.WriteString(FormatYOLOLine(b))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ToYOLO converts the intermediate representation for one file to normalized YOLO boxes.
//
// Annotations with labels not in vocab are skipped and returned as ItemParseErrors.
func ToYOLO(f AnnotatedFile, vocab Vocabulary) ([]NormalizedBox, []*ItemError, error) {
	size := ImageSize{Width: f.Width, Height: f.Height}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, nil, errors.Wrapf(ErrZeroSize, "image size of %q", f.FilePath)
	}

	var skipped []*ItemError
	boxes := make([]NormalizedBox, 0, len(f.Annotations))
	for i, a := range f.Annotations {
		id, ok := vocab.ID(a.Label)
		if !ok {
			skipped = append(skipped, newItemError(ItemParseError, f.FilePath, i+1,
				errors.Errorf("class %q not found in the vocabulary", a.Label)))
			continue
		}

		b, err := ToNormalized(a.PixelBox(), size)
		if err != nil {
			return nil, nil, err
		}
		b.ClassID = id
		boxes = append(boxes, b)
	}

	return boxes, skipped, nil
}

// WriteYOLO writes one label file per element of data to dirPath, named after the image with a
// ".txt" extension.
//
// Files that cannot be converted or written are logged, skipped and reported.
func WriteYOLO(dirPath string, data []AnnotatedFile, vocab Vocabulary, logger *zap.Logger) (
		written int, skipped []*ItemError, err error) {

	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return 0, nil, configError(err, "cannot create the label output directory %q", dirPath)
	}
	logger = loggerOrNop(logger)

	for _, fileData := range data {
		boxes, unknown, err := ToYOLO(fileData, vocab)
		for _, e := range unknown {
			logger.Warn("Skipping object", zap.String("file", e.Path), zap.Int("object", e.Line),
				zap.Error(e.Err))
		}
		skipped = append(skipped, unknown...)
		if err != nil {
			logger.Warn("Skipping file", zap.String("file", fileData.FilePath), zap.Error(err))
			skipped = append(skipped, newItemError(ItemParseError, fileData.FilePath, 0, err))
			continue
		}

		_, baseNoExt, _, err := splitPath(fileData.FilePath)
		if err != nil {
			skipped = append(skipped, newItemError(ItemParseError, fileData.FilePath, 0, err))
			continue
		}
		outPath := filepath.Join(dirPath, baseNoExt+".txt")
		if err := ioutil.WriteFile(outPath, encodeYOLOLabels(boxes), 0644); err != nil {
			logger.Warn("Failed to write labels", zap.String("file", outPath), zap.Error(err))
			skipped = append(skipped, newItemError(IOError, outPath, 0, err))
			continue
		}

		logger.Debug("Converted", zap.String("file", fileData.FilePath), zap.Int("boxes", len(boxes)))
		written++
	}

	return written, skipped, nil
}

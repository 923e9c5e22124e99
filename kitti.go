package ppeprep

// KITTI specific functionality.

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// kittiMinTokens is the number of leading tokens up to and including the 2D bounding box.
const kittiMinTokens = 8

// FromKitti reads and parses KITTI annotations from labelDir and matches them to the images in
// imageDir, from which the image sizes are read.
//
// Unparseable lines and label files without an image are logged, skipped and reported.
func FromKitti(labelDir, imageDir string, logger *zap.Logger) (
		[]AnnotatedFile, []*ItemError, error) {

	labelFiles, err := filesByExtInDir(labelDir, ".txt")
	if err != nil {
		return nil, nil, configError(err, "cannot list KITTI labels")
	}
	imageFiles, err := filesByExtInDir(imageDir, "")
	if err != nil {
		return nil, nil, configError(err, "cannot list images")
	}
	imageNamesToExt := mapFileNamesToExtensions(imageFiles)

	logger = loggerOrNop(logger)
	logger.Info("Parsing KITTI labels", zap.Int("files", len(labelFiles)))

	var skipped []*ItemError
	data := make([]AnnotatedFile, 0, len(labelFiles))
	for _, path := range labelFiles {
		// Find the corresponding image.
		_, baseNoExt, _, err := splitPath(path)
		if err != nil {
			skipped = append(skipped, newItemError(ItemParseError, path, 0, err))
			continue
		}
		imageExt, found := imageNamesToExt[baseNoExt]
		if !found {
			logger.Warn("No corresponding image file, skipping", zap.String("file", path))
			skipped = append(skipped, newItemError(IOError, path, 0,
				errors.New("no corresponding image file")))
			continue
		}
		imagePath := filepath.Join(imageDir, baseNoExt+"."+imageExt)

		cfg, _, err := decodeImageConfig(imagePath)
		if err != nil {
			logger.Warn("Unreadable image, skipping", zap.String("image", imagePath), zap.Error(err))
			skipped = append(skipped, newItemError(IOError, imagePath, 0, err))
			continue
		}

		// Parse the file.
		lines, err := readLines(path)
		if err != nil {
			logger.Warn("Error while parsing, skipping", zap.String("file", path), zap.Error(err))
			skipped = append(skipped, newItemError(IOError, path, 0, err))
			continue
		}

		annotations := make([]Annotation, 0, len(lines))
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			a, err := parseKittiAnnotation(line)
			if err != nil {
				logger.Warn("Skipping line", zap.String("file", path), zap.Int("line", i+1),
					zap.Error(err))
				skipped = append(skipped, newItemError(ItemParseError, path, i+1, err))
				continue
			}
			annotations = append(annotations, a)
		}

		data = append(data, AnnotatedFile{
			Annotations: annotations,
			FilePath:    path,
			Width:       cfg.Width,
			Height:      cfg.Height,
		})
	}

	return data, skipped, nil
}

// parseKittiAnnotation parses the label and 2D bounding box of a single KITTI line.
func parseKittiAnnotation(line string) (Annotation, error) {
	a := Annotation{}

	tokens := strings.Fields(line)
	if len(tokens) < kittiMinTokens {
		return a, errors.Errorf("insufficient tokens in %q", line)
	}

	a.Label = tokens[0]
	var err error
	for i := 4; i < kittiMinTokens && err == nil; i++ {
		a.Coords[i-4], err = strconv.ParseFloat(tokens[i], 64)
	}
	if err != nil {
		return a, errors.Wrapf(err, "unexpected values in %q", line)
	}

	return a, nil
}

package ppeprep

// The person crop pass: derives one training image per anchor box, with the dependent boxes
// reprojected into the crop.

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AnnotatedImage is the size of an image and its boxes, in label file order.
type AnnotatedImage struct {
	Size  ImageSize
	Boxes []NormalizedBox
}

// Partition splits the boxes into anchors and dependents. Both keep the file order.
func (a AnnotatedImage) Partition(vocab Vocabulary) (anchors, dependents []NormalizedBox) {
	for _, b := range a.Boxes {
		if vocab.IsAnchor(b.ClassID) {
			anchors = append(anchors, b)
		} else {
			dependents = append(dependents, b)
		}
	}
	return anchors, dependents
}

// CropResult is the crop rectangle of one anchor in its parent image and the dependent boxes in the
// crop's frame, renumbered to the dependent-only vocabulary and ordered by distance to the crop
// center.
type CropResult struct {
	Rect  PixelBox
	Boxes []RankedBox
}

// Labels returns the label file content for the crop.
func (r CropResult) Labels() []byte {
	boxes := make([]NormalizedBox, len(r.Boxes))
	for i, rb := range r.Boxes {
		boxes[i] = rb.Box
	}
	return encodeYOLOLabels(boxes)
}

// CropAnchor reprojects the dependents into the crop of anchor, ranks the survivors and renumbers
// their classes with vocab.DependentID.
func CropAnchor(anchor NormalizedBox, parent ImageSize, dependents []NormalizedBox,
		vocab Vocabulary) (CropResult, error) {

	rect, boxes, err := Reproject(anchor, parent, dependents)
	if err != nil {
		return CropResult{}, err
	}

	ranked := Rank(boxes)
	for i := range ranked {
		ranked[i].Box.ClassID = vocab.DependentID(ranked[i].Box.ClassID)
	}

	return CropResult{Rect: rect, Boxes: ranked}, nil
}

// CropConfig configures CropPersons.
type CropConfig struct {
	ImageDir    string // The full-scene images.
	LabelDir    string // YOLO label files named after the images.
	ImageOutDir string // Receives the crops.
	LabelOutDir string // Receives the crop label files.

	Vocabulary Vocabulary
	Encoding   ImageEncoding
	Workers    int // Concurrently processed images; 0 selects 2*runtime.NumCPU().
	Logger     *zap.Logger
}

// CropReport summarizes a crop pass.
type CropReport struct {
	Images int          // Images with labels that were processed.
	Crops  int          // Crops written.
	Errors []*ItemError // Recovered errors, sorted by path and line.
}

// imageResult is the outcome of processing one image.
type imageResult struct {
	processed bool
	crops     int
	errs      []*ItemError
}

// CropPersons crops every anchor box out of the images in cfg.ImageDir and writes the crops and
// their reprojected dependent labels to the output directories.
//
// Outputs are named "<image>_<anchor class>_<n>", where n is the 1-based index of the anchor in
// its label file. Per-item failures are logged, skipped and returned in the report. Only
// ConfigurationErrors, or cancellation of ctx, cause an error return. Outputs written before
// cancellation remain valid.
func CropPersons(ctx context.Context, cfg CropConfig) (*CropReport, error) {
	logger := loggerOrNop(cfg.Logger)

	if cfg.Vocabulary.Len() == 0 {
		return nil, configError(ErrMissingVocabulary, "crop pass")
	}
	if err := cfg.Encoding.Validate(); err != nil {
		return nil, configError(err, "crop pass")
	}
	imageFiles, err := filesByExtsInDir(cfg.ImageDir, imageExts)
	if err != nil {
		return nil, configError(err, "cannot list images")
	}
	if info, err := os.Stat(cfg.LabelDir); err != nil {
		return nil, configError(err, "cannot access the label directory")
	} else if !info.IsDir() {
		return nil, configError(errors.Errorf("%q is not a directory", cfg.LabelDir),
			"cannot access the label directory")
	}
	for _, dir := range []string{cfg.ImageOutDir, cfg.LabelOutDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, configError(err, "cannot create output directory %q", dir)
		}
	}

	logger.Info("Cropping anchors", zap.Int("images", len(imageFiles)),
		zap.String("anchor", cfg.Vocabulary.Name(cfg.Vocabulary.Anchor())))

	// Limit the number of goroutines in flight, as they load potentially large images into memory.
	numTasks := cfg.Workers
	if numTasks <= 0 {
		numTasks = 2 * runtime.NumCPU()
	}
	if len(imageFiles) < numTasks {
		numTasks = len(imageFiles)
	}
	workQueue := make(chan string, 2*numTasks)
	results := make(chan imageResult, 2*numTasks)

	var wg sync.WaitGroup
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		go func() {
			defer wg.Done()
			for path := range workQueue {
				results <- cropImageAnchors(path, &cfg, logger)
			}
		}()
	}

	// Collect the per-image results.
	report := &CropReport{}
	var wgCollect sync.WaitGroup
	wgCollect.Add(1)
	go func() {
		defer wgCollect.Done()
		for r := range results {
			if r.processed {
				report.Images++
			}
			report.Crops += r.crops
			report.Errors = append(report.Errors, r.errs...)
		}
	}()

	// Feed the work queue until done or cancelled.
feed:
	for _, path := range imageFiles {
		select {
		case workQueue <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(workQueue)

	wg.Wait()
	close(results)
	wgCollect.Wait()

	sort.SliceStable(report.Errors, func(i, j int) bool {
		a, b := report.Errors[i], report.Errors[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})

	logger.Info("Crop pass finished", zap.Int("images", report.Images),
		zap.Int("crops", report.Crops), zap.Int("errors", len(report.Errors)))

	if err := ctx.Err(); err != nil {
		return report, errors.Wrap(err, "crop pass cancelled")
	}
	return report, nil
}

// cropImageAnchors processes all anchors of the image at imagePath.
func cropImageAnchors(imagePath string, cfg *CropConfig, logger *zap.Logger) imageResult {
	var res imageResult
	fail := func(kind ErrorKind, path string, line int, err error, msg string) {
		logger.Warn(msg, zap.String("file", path), zap.Int("line", line), zap.Error(err))
		res.errs = append(res.errs, newItemError(kind, path, line, err))
	}

	_, baseNoExt, _, err := splitPath(imagePath)
	if err != nil {
		fail(IOError, imagePath, 0, err, "Skipping image")
		return res
	}

	// Read the labels.
	labelPath := filepath.Join(cfg.LabelDir, baseNoExt+".txt")
	if _, err := os.Stat(labelPath); err != nil {
		fail(IOError, imagePath, 0, errors.Wrap(err, "no label file"), "No label file, skipping image")
		return res
	}
	boxes, lineErrs, err := ReadYOLOLabels(labelPath)
	if err != nil {
		fail(IOError, labelPath, 0, err, "Unreadable label file, skipping image")
		return res
	}
	for _, e := range lineErrs {
		fail(e.Kind, e.Path, e.Line, e.Err, "Skipping malformed label line")
	}

	// Read the image.
	img, err := loadImage(imagePath)
	if err != nil {
		fail(IOError, imagePath, 0, err, "Unreadable image, skipping")
		return res
	}
	res.processed = true

	annotated := AnnotatedImage{Size: sizeOf(img.Bounds()), Boxes: boxes}
	anchors, dependents := annotated.Partition(cfg.Vocabulary)
	anchorName := cfg.Vocabulary.Name(cfg.Vocabulary.Anchor())

	for i, anchor := range anchors {
		idx := i + 1
		crop, err := CropAnchor(anchor, annotated.Size, dependents, cfg.Vocabulary)
		if err != nil {
			fail(DegenerateGeometryError, labelPath, idx, err, "Skipping anchor")
			continue
		}

		// Compute both outputs in memory before writing either.
		encoded, err := cfg.Encoding.encode(cropImage(img, crop.Rect.Rect()))
		if err != nil {
			fail(IOError, imagePath, idx, err, "Failed to encode crop")
			continue
		}
		labels := crop.Labels()

		name := fmt.Sprintf("%s_%s_%d", baseNoExt, anchorName, idx)
		outImagePath := filepath.Join(cfg.ImageOutDir, name+cfg.Encoding.Ext())
		outLabelPath := filepath.Join(cfg.LabelOutDir, name+".txt")
		if err := ioutil.WriteFile(outImagePath, encoded, 0644); err != nil {
			fail(IOError, outImagePath, idx, err, "Failed to write crop")
			continue
		}
		if err := ioutil.WriteFile(outLabelPath, labels, 0644); err != nil {
			fail(IOError, outLabelPath, idx, err, "Failed to write crop labels")
			// A crop without its label file is not a training sample.
			if err := os.Remove(outImagePath); err != nil {
				logger.Warn("Failed to remove crop", zap.String("file", outImagePath), zap.Error(err))
			}
			continue
		}

		logger.Debug("Saved crop", zap.String("image", outImagePath),
			zap.String("labels", outLabelPath), zap.Int("boxes", len(crop.Boxes)))
		res.crops++
	}

	logger.Info("Processed image", zap.String("image", imagePath), zap.Int("anchors", len(anchors)),
		zap.Int("crops", res.crops))
	return res
}

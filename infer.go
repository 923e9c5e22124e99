package ppeprep

// The inference driver: runs a Detector over a directory of images and saves annotated copies.

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// InferConfig configures Annotate.
type InferConfig struct {
	ImageDir      string
	OutDir        string // Receives the annotated images, under their original names.
	Detector      Detector
	JPEGQuality   int // For JPEG outputs; 0 selects the default.
	LineThickness int
	Logger        *zap.Logger
}

// InferReport summarizes an inference pass.
type InferReport struct {
	Images     int // Annotated images written.
	Detections int
	Errors     []*ItemError
}

// Annotate runs cfg.Detector on every image in cfg.ImageDir and writes a copy with the detections
// drawn on it to cfg.OutDir. Failing images are logged, skipped and reported.
func Annotate(ctx context.Context, cfg InferConfig) (*InferReport, error) {
	if cfg.Detector == nil {
		return nil, configError(errors.New("no detector"), "inference")
	}
	imageFiles, err := filesByExtsInDir(cfg.ImageDir, imageExts)
	if err != nil {
		return nil, configError(err, "cannot list images")
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, configError(err, "cannot create output directory %q", cfg.OutDir)
	}
	logger := loggerOrNop(cfg.Logger)
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = DefaultImageEncoding.JPEGQuality
	}
	if cfg.LineThickness <= 0 {
		cfg.LineThickness = 2
	}

	report := &InferReport{}
	for i, path := range imageFiles {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(err, "inference cancelled")
		}
		logger.Info("Processing image", zap.Int("index", i+1), zap.Int("total", len(imageFiles)),
			zap.String("image", path))

		n, err := annotateImage(ctx, path, &cfg)
		if err != nil {
			logger.Error("Failed to process image", zap.String("image", path), zap.Error(err))
			report.Errors = append(report.Errors, newItemError(IOError, path, 0, err))
			continue
		}
		report.Images++
		report.Detections += n
	}

	logger.Info("Inference finished", zap.Int("images", report.Images),
		zap.Int("detections", report.Detections), zap.String("out", cfg.OutDir))
	return report, nil
}

// annotateImage detects, draws and saves a single image. It returns the number of detections.
func annotateImage(ctx context.Context, path string, cfg *InferConfig) (int, error) {
	img, err := loadImage(path)
	if err != nil {
		return 0, err
	}

	detections, err := cfg.Detector.Detect(ctx, img)
	if err != nil {
		return 0, errors.Wrap(err, "detection failed")
	}
	annotated := DrawDetections(img, detections, cfg.LineThickness)

	name := filepath.Base(path)
	enc := ImageEncoding{
		Format:       strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		JPEGQuality:  cfg.JPEGQuality,
		WebPLossless: true,
	}
	if err := enc.Validate(); err != nil {
		// Formats that cannot be encoded are written as PNG.
		enc.Format = "png"
		name = strings.TrimSuffix(name, filepath.Ext(name)) + enc.Ext()
	}
	encoded, err := enc.encode(annotated)
	if err != nil {
		return 0, err
	}

	outPath := filepath.Join(cfg.OutDir, name)
	if err := ioutil.WriteFile(outPath, encoded, 0644); err != nil {
		return 0, errors.Wrapf(err, "failed to write %q", outPath)
	}
	return len(detections), nil
}

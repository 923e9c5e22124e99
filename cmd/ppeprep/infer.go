package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/sensorable/ppeprep"
	"go.uber.org/zap"
)

func runInfer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("infer", flag.ContinueOnError)
	common := registerCommonFlags(fs)

	imageDir := fs.String("images", "", "The image `path`")
	outDir := fs.String("out", "", "The annotated image output `path` (default <images>_annotated)")
	modelPath := fs.String("model", "", "The YOLOv8 ONNX model `file`")
	classesPath := fs.String("classes", "",
		"The class vocabulary `file`; the model predicts its non-anchor classes")
	anchorClass := fs.String("anchor-class", "", "The anchor class `name` (default person)")
	confidence := fs.Float64("confidence", 0, "The min. detection confidence [0.0, 1.0)")
	iou := fs.Float64("iou", 0, "The IoU threshold of the non-max suppression (0.0, 1.0]")
	libPath := fs.String("onnxruntime-lib", "", "The onnxruntime shared library `path`")
	jpegQuality := fs.Int("jpeg-quality", 0, "The JPEG encoding `quality` [1, 100]")

	cfg, logger, set, err := setup(fs, common, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if set["anchor-class"] {
		cfg.Crop.AnchorClass = *anchorClass
	}
	if set["confidence"] {
		cfg.Infer.Confidence = *confidence
	}
	if set["iou"] {
		cfg.Infer.IoU = *iou
	}
	if set["onnxruntime-lib"] {
		cfg.Infer.LibraryPath = *libPath
	}
	if set["jpeg-quality"] {
		cfg.Crop.JPEGQuality = *jpegQuality
	}
	if err := cfg.Validate(ppeprep.InferSection); err != nil {
		return err
	}

	if err := requireDir("images", *imageDir); err != nil {
		return err
	}
	if err := requireArg("model", *modelPath); err != nil {
		return err
	}
	if err := requireArg("classes", *classesPath); err != nil {
		return err
	}
	if *outDir == "" {
		*outDir = filepath.Clean(*imageDir) + "_annotated"
	}

	vocab, err := ppeprep.LoadVocabulary(*classesPath, cfg.Crop.AnchorClass)
	if err != nil {
		return ppeprep.NewConfigurationError(err, "failed to load the class vocabulary")
	}

	detector, err := ppeprep.NewONNXDetector(ppeprep.ONNXDetectorConfig{
		ModelPath:   *modelPath,
		LibraryPath: cfg.Infer.LibraryPath,
		Labels:      vocab.DependentNames(),
		Confidence:  float32(cfg.Infer.Confidence),
		IoU:         float32(cfg.Infer.IoU),
	})
	if err != nil {
		return ppeprep.NewConfigurationError(err, "failed to load the model")
	}
	defer func() {
		if err := detector.Close(); err != nil {
			logger.Warn("Failed to release the model", zap.Error(err))
		}
	}()

	report, err := ppeprep.Annotate(ctx, ppeprep.InferConfig{
		ImageDir:    *imageDir,
		OutDir:      *outDir,
		Detector:    detector,
		JPEGQuality: cfg.Crop.JPEGQuality,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Successfully annotated images", zap.Int("images", report.Images),
		zap.Int("detections", report.Detections), zap.Int("errors", len(report.Errors)),
		zap.String("out", *outDir))
	return nil
}

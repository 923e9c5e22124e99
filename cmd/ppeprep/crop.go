package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/sensorable/ppeprep"
	"go.uber.org/zap"
)

func runCrop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("crop", flag.ContinueOnError)
	common := registerCommonFlags(fs)

	imageDir := fs.String("images", "", "The full-scene image `path`")
	labelDir := fs.String("labels", "", "The YOLO label `path` (default <images>/../labels)")
	classesPath := fs.String("classes", "",
		"The class vocabulary `file` (default <labels>/classes.txt)")
	imageOutDir := fs.String("images-out", "cropped_images", "The crop output `path`")
	labelOutDir := fs.String("labels-out", "",
		"The crop label output `path` (default <images-out>/cropped_labels)")
	anchorClass := fs.String("anchor-class", "", "The anchor class `name` (default person)")
	workers := fs.Int("workers", 0, "The number of concurrently processed images (default 2*NumCPU)")
	imageEnc := fs.String("image-enc", "", "The crop image `format` {jpg, png, webp}")
	jpegQuality := fs.Int("jpeg-quality", 0, "The JPEG encoding `quality` [1, 100]")
	webpLossless := fs.Bool("webp-lossless", false, "Encode WebP crops losslessly")

	cfg, logger, set, err := setup(fs, common, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if set["anchor-class"] {
		cfg.Crop.AnchorClass = *anchorClass
	}
	if set["workers"] {
		cfg.Crop.Workers = *workers
	}
	if set["image-enc"] {
		cfg.Crop.ImageEncoding = *imageEnc
	}
	if set["jpeg-quality"] {
		cfg.Crop.JPEGQuality = *jpegQuality
	}
	if set["webp-lossless"] {
		cfg.Crop.WebPLossless = *webpLossless
	}
	if err := cfg.Validate(ppeprep.CropSection); err != nil {
		return err
	}

	if err := requireDir("images", *imageDir); err != nil {
		return err
	}
	if *labelDir == "" {
		*labelDir = filepath.Join(filepath.Dir(filepath.Clean(*imageDir)), "labels")
	}
	if err := requireDir("labels", *labelDir); err != nil {
		return err
	}
	if *classesPath == "" {
		*classesPath = filepath.Join(*labelDir, "classes.txt")
	}
	if *labelOutDir == "" {
		*labelOutDir = filepath.Join(*imageOutDir, "cropped_labels")
	}

	vocab, err := ppeprep.LoadVocabulary(*classesPath, cfg.Crop.AnchorClass)
	if err != nil {
		return ppeprep.NewConfigurationError(err, "failed to load the class vocabulary")
	}

	report, err := ppeprep.CropPersons(ctx, ppeprep.CropConfig{
		ImageDir:    *imageDir,
		LabelDir:    *labelDir,
		ImageOutDir: *imageOutDir,
		LabelOutDir: *labelOutDir,
		Vocabulary:  vocab,
		Encoding:    cfg.Crop.Encoding(),
		Workers:     cfg.Crop.Workers,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Successfully cropped images", zap.Int("images", report.Images),
		zap.Int("crops", report.Crops), zap.Int("errors", len(report.Errors)),
		zap.String("images_out", *imageOutDir), zap.String("labels_out", *labelOutDir))
	return nil
}

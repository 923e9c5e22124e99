package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/sensorable/ppeprep"
	"go.uber.org/zap"
)

func runConvert(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	common := registerCommonFlags(fs)

	inputDir := fs.String("input-dir", "datasets",
		"The dataset `path`; labels are read from <path>/labels and classes from <path>/classes.txt")
	labelDir := fs.String("labels", "", "The label input `path` (default <input-dir>/labels)")
	classesPath := fs.String("classes", "", "The class vocabulary `file` (default <input-dir>/classes.txt)")
	imageDir := fs.String("images", "",
		"The image `path` (required for kitti input and tfrecord output)")
	outPath := fs.String("output-dir", "yolo_annotations",
		"The label output directory (yolo) or record file (tfrecord) `path`")
	labelMapPath := fs.String("tfrecord-label-map-file", "",
		"The TFRecord label map file `path` (default <output-dir>.pbtxt)")
	from := fs.String("from", "", "The source `format` {voc, kitti}")
	to := fs.String("to", "", "The target `format` {yolo, tfrecord}")
	numShards := fs.Int("num-shards", 0, "The number of TFRecord shard files")
	mapLabels := fs.String("map-labels", "",
		"Comma-separated list of old=new label (sub-)string replacements")
	minWidth := fs.Float64("min-bbox-width", 0, "The min. bounding box width in `pixels`")
	minHeight := fs.Float64("min-bbox-height", 0, "The min. bounding box height in `pixels`")
	anchorClass := fs.String("anchor-class", "", "The anchor class `name` (default person)")

	cfg, logger, set, err := setup(fs, common, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Flags take precedence over the configuration file.
	if set["from"] {
		cfg.Convert.From = *from
	}
	if set["to"] {
		cfg.Convert.To = *to
	}
	if set["num-shards"] {
		cfg.Convert.NumShards = *numShards
	}
	if set["map-labels"] {
		cfg.Convert.MapLabels = splitList(*mapLabels)
	}
	if set["min-bbox-width"] {
		cfg.Convert.MinBboxWidth = *minWidth
	}
	if set["min-bbox-height"] {
		cfg.Convert.MinBboxHeight = *minHeight
	}
	if set["anchor-class"] {
		cfg.Crop.AnchorClass = *anchorClass
	}
	if err := cfg.Validate(ppeprep.ConvertSection); err != nil {
		return err
	}

	if *labelDir == "" {
		*labelDir = filepath.Join(*inputDir, "labels")
	}
	if *classesPath == "" {
		*classesPath = filepath.Join(*inputDir, "classes.txt")
	}
	if *labelMapPath == "" {
		*labelMapPath = filepath.Clean(*outPath) + ".pbtxt"
	}
	if err := requireDir("labels", *labelDir); err != nil {
		return err
	}
	if cfg.Convert.From == "kitti" || cfg.Convert.To == "tfrecord" {
		if err := requireDir("images", *imageDir); err != nil {
			return err
		}
	}

	vocab, err := ppeprep.LoadVocabulary(*classesPath, cfg.Crop.AnchorClass)
	if err != nil {
		return ppeprep.NewConfigurationError(err, "failed to load the class vocabulary")
	}

	report, err := ppeprep.Convert(ppeprep.ConvertOptions{
		From:          cfg.Convert.From,
		To:            cfg.Convert.To,
		LabelDir:      *labelDir,
		ImageDir:      *imageDir,
		OutPath:       *outPath,
		LabelMapPath:  *labelMapPath,
		NumShards:     cfg.Convert.NumShards,
		Vocabulary:    vocab,
		MapLabels:     cfg.Convert.MapLabels,
		MinBboxWidth:  cfg.Convert.MinBboxWidth,
		MinBboxHeight: cfg.Convert.MinBboxHeight,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Successfully converted labels", zap.Int("files", report.Files),
		zap.Int("skipped", len(report.Errors)), zap.String("out", *outPath))
	return nil
}

package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/sensorable/ppeprep"
	"go.uber.org/zap"
)

func runSeparate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("separate", flag.ContinueOnError)
	common := registerCommonFlags(fs)

	labelDir := fs.String("labels", "", "The YOLO label `path`, holding classes.txt")
	classesPath := fs.String("classes", "",
		"The class vocabulary `file` (default <labels>/classes.txt)")
	outDir := fs.String("out", "", "The output `path`; receives <anchor-class>/ and ppe/")
	anchorClass := fs.String("anchor-class", "", "The anchor class `name` (default person)")

	cfg, logger, set, err := setup(fs, common, args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if set["anchor-class"] {
		cfg.Crop.AnchorClass = *anchorClass
	}
	if err := cfg.Validate(ppeprep.LogSection); err != nil {
		return err
	}
	if err := requireDir("labels", *labelDir); err != nil {
		return err
	}
	if *outDir == "" {
		*outDir = filepath.Dir(filepath.Clean(*labelDir))
	}
	if *classesPath == "" {
		*classesPath = filepath.Join(*labelDir, "classes.txt")
	}

	vocab, err := ppeprep.LoadVocabulary(*classesPath, cfg.Crop.AnchorClass)
	if err != nil {
		return ppeprep.NewConfigurationError(err, "failed to load the class vocabulary")
	}

	anchorDir := filepath.Join(*outDir, cfg.Crop.AnchorClass)
	dependentDir := filepath.Join(*outDir, "ppe")
	report, err := ppeprep.SeparateLabels(*labelDir, anchorDir, dependentDir, vocab, logger)
	if err != nil {
		return err
	}

	logger.Info("Successfully separated labels", zap.Int("files", report.Files),
		zap.Int("anchors", report.Anchors), zap.Int("dependents", report.Dependents),
		zap.Int("errors", len(report.Errors)), zap.String("out", *outDir))
	return nil
}

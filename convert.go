package ppeprep

// Conversion of annotations from an input dialect to YOLO text labels or TFRecords.

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConvertOptions configures Convert.
type ConvertOptions struct {
	From     string // "voc" or "kitti".
	To       string // "yolo" or "tfrecord".
	LabelDir string // The input label directory.
	ImageDir string // The images; required for kitti input and tfrecord output.

	OutPath      string // The label output directory (yolo) or record file (tfrecord).
	LabelMapPath string // The label map output file (tfrecord).
	NumShards    int    // The number of TFRecord shard files.

	Vocabulary    Vocabulary
	MapLabels     []string // old=new label (sub-)string replacements, applied before lookup.
	MinBboxWidth  float64
	MinBboxHeight float64

	Logger *zap.Logger
}

// ConvertReport summarizes a conversion.
type ConvertReport struct {
	Files  int // Files written (yolo) or records written (tfrecord).
	Errors []*ItemError
}

// Convert parses all annotations in opts.LabelDir, applies the label mappings and the size filter,
// and writes them in the output format. Unparseable files and objects with unknown classes are
// logged, skipped and reported.
func Convert(opts ConvertOptions) (*ConvertReport, error) {
	if opts.Vocabulary.Len() == 0 {
		return nil, configError(ErrMissingVocabulary, "conversion")
	}
	logger := loggerOrNop(opts.Logger)

	var data []AnnotatedFile
	var skipped []*ItemError
	var err error
	switch opts.From {
	case "voc":
		data, skipped, err = FromVOC(opts.LabelDir, logger)
	case "kitti":
		data, skipped, err = FromKitti(opts.LabelDir, opts.ImageDir, logger)
	default:
		err = configError(errors.Errorf("%q", opts.From), "unsupported input format")
	}
	if err != nil {
		return nil, err
	}

	af := AnnotatedFiles(data)
	if err := af.MapLabels(opts.MapLabels, logger); err != nil {
		return nil, configError(err, "failed to map labels")
	}
	af.Filter(opts.MinBboxWidth, opts.MinBboxHeight, logger)

	report := &ConvertReport{Errors: skipped}
	var written int
	var writeSkipped []*ItemError
	switch opts.To {
	case "yolo":
		written, writeSkipped, err = WriteYOLO(opts.OutPath, af, opts.Vocabulary, logger)
	case "tfrecord":
		written, writeSkipped, err = WriteTFRecord(opts.OutPath, opts.LabelMapPath, opts.ImageDir,
			af, opts.Vocabulary, opts.NumShards, logger)
	default:
		err = configError(errors.Errorf("%q", opts.To), "unsupported output format")
	}
	report.Files = written
	report.Errors = append(report.Errors, writeSkipped...)
	if err != nil {
		return report, err
	}

	logger.Info("Conversion finished", zap.String("from", opts.From), zap.String("to", opts.To),
		zap.Int("files", report.Files), zap.Int("errors", len(report.Errors)))
	return report, nil
}

package ppeprep

// Separation of full-scene labels into anchor-only and dependent-only label sets, for training the
// two detector stages independently.

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SeparateReport summarizes a separation pass.
type SeparateReport struct {
	Files      int // Label files written to both output directories.
	Anchors    int // Lines written to the anchor directory.
	Dependents int // Lines written to the dependent directory.
	Errors     []*ItemError
}

// SeparateLabels splits each YOLO label file in labelDir into two files with the same name, one in
// anchorDir holding the anchor boxes and one in dependentDir holding all other boxes, renumbered
// with vocab.DependentID. The file "classes.txt" is not a label file and is skipped.
//
// Anchor lines are copied verbatim. Malformed lines are logged and dropped from both outputs.
func SeparateLabels(labelDir, anchorDir, dependentDir string, vocab Vocabulary,
		logger *zap.Logger) (*SeparateReport, error) {

	if vocab.Len() == 0 {
		return nil, configError(ErrMissingVocabulary, "label separation")
	}
	labelFiles, err := filesByExtInDir(labelDir, ".txt")
	if err != nil {
		return nil, configError(err, "cannot list labels")
	}
	for _, dir := range []string{anchorDir, dependentDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, configError(err, "cannot create output directory %q", dir)
		}
	}
	logger = loggerOrNop(logger)

	report := &SeparateReport{}
	for _, path := range labelFiles {
		name := filepath.Base(path)
		if name == "classes.txt" {
			continue
		}

		lines, err := readLines(path)
		if err != nil {
			logger.Warn("Skipping label file", zap.String("file", path), zap.Error(err))
			report.Errors = append(report.Errors, newItemError(IOError, path, 0, err))
			continue
		}

		var anchorOut []byte
		var anchors int
		var dependents []NormalizedBox
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			b, err := ParseYOLOLine(line)
			if err == nil && b.ClassID >= vocab.Len() {
				err = errors.Errorf("class %d is not in the vocabulary", b.ClassID)
			}
			if err != nil {
				logger.Warn("Skipping malformed label line", zap.String("file", path),
					zap.Int("line", i+1), zap.Error(err))
				report.Errors = append(report.Errors, newItemError(ItemParseError, path, i+1, err))
				continue
			}

			if vocab.IsAnchor(b.ClassID) {
				anchorOut = append(anchorOut, line...)
				anchorOut = append(anchorOut, '\n')
				anchors++
				continue
			}
			b.ClassID = vocab.DependentID(b.ClassID)
			dependents = append(dependents, b)
		}

		anchorPath := filepath.Join(anchorDir, name)
		dependentPath := filepath.Join(dependentDir, name)
		if err := ioutil.WriteFile(anchorPath, anchorOut, 0644); err != nil {
			logger.Warn("Failed to write labels", zap.String("file", anchorPath), zap.Error(err))
			report.Errors = append(report.Errors, newItemError(IOError, anchorPath, 0, err))
			continue
		}
		if err := ioutil.WriteFile(dependentPath, encodeYOLOLabels(dependents), 0644); err != nil {
			logger.Warn("Failed to write labels", zap.String("file", dependentPath), zap.Error(err))
			report.Errors = append(report.Errors, newItemError(IOError, dependentPath, 0, err))
			continue
		}

		report.Files++
		report.Anchors += anchors
		report.Dependents += len(dependents)
	}

	logger.Info("Label separation finished", zap.Int("files", report.Files),
		zap.Int("anchors", report.Anchors), zap.Int("dependents", report.Dependents))
	return report, nil
}

package ppeprep

// Pascal VOC XML specific functionality.

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// VOCObject is a single object annotation within a VOC file.
type VOCObject struct {
	Name   string `xml:"name"`
	BndBox struct {
		XMin float64 `xml:"xmin"`
		YMin float64 `xml:"ymin"`
		XMax float64 `xml:"xmax"`
		YMax float64 `xml:"ymax"`
	} `xml:"bndbox"`
}

// VOCAnnotatedFile defines the VOC annotation structure for a single file.
type VOCAnnotatedFile struct {
	XMLName  xml.Name `xml:"annotation"`
	FileName string   `xml:"filename"`
	Size     struct {
		Width  int `xml:"width"`
		Height int `xml:"height"`
	} `xml:"size"`
	Objects []VOCObject `xml:"object"`
}

// FromVOC reads and parses the VOC annotation files in labelDir (extension ".xml").
//
// Files that cannot be parsed are logged, skipped and returned as ItemParseErrors.
func FromVOC(labelDir string, logger *zap.Logger) ([]AnnotatedFile, []*ItemError, error) {
	labelFiles, err := filesByExtInDir(labelDir, ".xml")
	if err != nil {
		return nil, nil, configError(err, "cannot list VOC labels")
	}
	logger = loggerOrNop(logger)
	logger.Info("Parsing VOC labels", zap.Int("files", len(labelFiles)))

	var skipped []*ItemError
	data := make([]AnnotatedFile, 0, len(labelFiles))
	for _, path := range labelFiles {
		fileData, err := parseVOCFile(path)
		if err != nil {
			logger.Warn("Error while parsing, skipping", zap.String("file", path), zap.Error(err))
			skipped = append(skipped, newItemError(ItemParseError, path, 0, err))
			continue
		}
		data = append(data, fileData)
	}

	return data, skipped, nil
}

// parseVOCFile parses the VOC annotation file at path. The FilePath of the result is path, so that
// output files are named after the annotation file.
func parseVOCFile(path string) (f AnnotatedFile, err error) {
	file, err := os.Open(path)
	if err != nil {
		return AnnotatedFile{}, err
	}
	defer closeWithErrCheck(file, &err)

	var voc VOCAnnotatedFile
	if err := xml.NewDecoder(file).Decode(&voc); err != nil {
		return AnnotatedFile{}, errors.Wrap(err, "unable to parse XML")
	}
	if voc.Size.Width <= 0 || voc.Size.Height <= 0 {
		return AnnotatedFile{}, errors.Errorf("invalid image size %dx%d",
			voc.Size.Width, voc.Size.Height)
	}

	// Convert to the intermediate representation.
	f = AnnotatedFile{
		Annotations: make([]Annotation, len(voc.Objects)),
		FilePath:    filepath.Clean(path),
		Width:       voc.Size.Width,
		Height:      voc.Size.Height,
	}
	for i, o := range voc.Objects {
		f.Annotations[i] = Annotation{
			Coords: [4]float64{o.BndBox.XMin, o.BndBox.YMin, o.BndBox.XMax, o.BndBox.YMax},
			Label:  o.Name,
		}
	}

	return f, nil
}

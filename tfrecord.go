package ppeprep

// TFRecord object detection specific functionality.

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	"go.uber.org/zap"
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// toTFFeatures converts the intermediate representation for a single file to the features of a
// tf.Example. imagePath is the annotated image, which is embedded in the record.
//
// Class IDs are the vocabulary IDs plus one, as ID zero is reserved for the background class.
func toTFFeatures(fileData AnnotatedFile, imagePath string, vocab Vocabulary) (
		TFFeatureMap, []*ItemError, error) {

	imgData, err := ioutil.ReadFile(imagePath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read the image")
	}
	_, _, format, err := splitPath(imagePath)
	if err != nil {
		return nil, nil, err
	}

	boxes, skipped, err := ToYOLO(fileData, vocab)
	if err != nil {
		return nil, nil, err
	}

	// Prepare the feature map for the per file data.
	f := make(TFFeatureMap, 16)
	f["image/height"] = fileData.Height
	f["image/width"] = fileData.Width
	f["image/filename"] = filepath.Base(imagePath)
	f["image/source_id"] = filepath.Base(imagePath)
	f["image/encoded"] = imgData
	f["image/format"] = format

	// Prepare the per label data.
	xmins := make([]float32, len(boxes))
	ymins := make([]float32, len(boxes))
	xmaxs := make([]float32, len(boxes))
	ymaxs := make([]float32, len(boxes))
	classes := make([]string, len(boxes))
	classIDs := make([]int64, len(boxes))
	for i, b := range boxes {
		xmins[i] = float32(b.CX - b.W/2)
		ymins[i] = float32(b.CY - b.H/2)
		xmaxs[i] = float32(b.CX + b.W/2)
		ymaxs[i] = float32(b.CY + b.H/2)
		classes[i] = vocab.Name(b.ClassID)
		classIDs[i] = int64(b.ClassID + 1)
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs

	return f, skipped, nil
}

// WriteTFRecord does a streaming conversion, serialisation and file write for the annotation data
// to one or more TFRecord files stored under recordFilePath (with suffixes added when numShards>1).
// The images are looked up by base name in imageDir.
//
// The label map for vocab is written to labelMapPath. Files that cannot be converted are logged,
// skipped and reported.
func WriteTFRecord(recordFilePath, labelMapPath, imageDir string, data []AnnotatedFile,
		vocab Vocabulary, numShards int, logger *zap.Logger) (
		written int, skipped []*ItemError, err error) {

	if numShards <= 0 {
		numShards = 1
	}
	logger = loggerOrNop(logger)

	imageFiles, err := filesByExtsInDir(imageDir, imageExts)
	if err != nil {
		return 0, nil, configError(err, "cannot list images")
	}
	imageNamesToExt := mapFileNamesToExtensions(imageFiles)

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	var shardFile *os.File
	defer func() {
		if shardFile != nil {
			closeWithErrCheck(shardFile, &err)
		}
	}()
	shardSize := int(math.Ceil(float64(len(data)) / float64(numShards)))
	shardIdx := -1

	// Convert and serialise one data element at a time.
	for i, fileData := range data {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++

			if shardFile != nil {
				if err := shardFile.Close(); err != nil {
					return written, skipped, errors.Wrap(err, "failed to close shard")
				}
				shardFile = nil
			}

			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return written, skipped, configError(err, "failed to create shard at %q", shardPath)
			}
			shardFile = f
		}

		_, baseNoExt, _, err := splitPath(fileData.FilePath)
		if err != nil {
			skipped = append(skipped, newItemError(ItemParseError, fileData.FilePath, 0, err))
			continue
		}
		imageExt, found := imageNamesToExt[baseNoExt]
		if !found {
			logger.Warn("No corresponding image file, skipping", zap.String("file", fileData.FilePath))
			skipped = append(skipped, newItemError(IOError, fileData.FilePath, 0,
				errors.New("no corresponding image file")))
			continue
		}
		imagePath := filepath.Join(imageDir, baseNoExt+"."+imageExt)

		// Convert the file data to an example.
		features, unknown, err := toTFFeatures(fileData, imagePath, vocab)
		skipped = append(skipped, unknown...)
		if err != nil {
			logger.Warn("Failed to convert", zap.String("file", fileData.FilePath), zap.Error(err))
			skipped = append(skipped, newItemError(IOError, fileData.FilePath, 0, err))
			continue
		}

		if err := writeTFRecordExample(shardFile, example.New(features)); err != nil {
			return written, skipped, errors.Wrap(err, "failed to write example")
		}
		written++
	}

	return written, skipped, saveTFRecordLabelMap(labelMapPath, vocab)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// saveTFRecordLabelMap writes the label map for vocab in prototxt format to path.
func saveTFRecordLabelMap(path string, vocab Vocabulary) error {
	var buf bytes.Buffer
	for i, name := range vocab.Names() {
		fmt.Fprintf(&buf, "item {\n  id: %d\n  name: %q\n}\n", i+1, name)
	}

	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write the label map %q", path)
	}
	return nil
}

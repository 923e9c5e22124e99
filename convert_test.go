package ppeprep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVOCFile = `<annotation>
	<folder>images</folder>
	<filename>site1.jpg</filename>
	<size>
		<width>200</width>
		<height>100</height>
		<depth>3</depth>
	</size>
	<object>
		<name>worker</name>
		<bndbox><xmin>50</xmin><ymin>0</ymin><xmax>150</xmax><ymax>100</ymax></bndbox>
	</object>
	<object>
		<name>helmet</name>
		<bndbox><xmin>90</xmin><ymin>0</ymin><xmax>110</xmax><ymax>10</ymax></bndbox>
	</object>
	<object>
		<name>goggles</name>
		<bndbox><xmin>95</xmin><ymin>5</ymin><xmax>105</xmax><ymax>10</ymax></bndbox>
	</object>
	<object>
		<name>vest</name>
		<bndbox><xmin>80.5</xmin><ymin>30</ymin><xmax>81.5</xmax><ymax>60</ymax></bndbox>
	</object>
</annotation>
`

func convertVocabulary(t *testing.T) Vocabulary {
	t.Helper()
	vocab, err := NewVocabulary([]string{"person", "helmet", "vest"}, 0)
	require.NoError(t, err)
	return vocab
}

func TestFromVOC(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "site1.xml"), testVOCFile)
	writeFile(t, filepath.Join(dir, "broken.xml"), "<annotation><size>")
	writeFile(t, filepath.Join(dir, "nosize.xml"), "<annotation><filename>x.jpg</filename></annotation>")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	data, skipped, err := FromVOC(dir, nil)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, filepath.Join(dir, "site1.xml"), data[0].FilePath)
	assert.Equal(t, 200, data[0].Width)
	assert.Equal(t, 100, data[0].Height)
	require.Len(t, data[0].Annotations, 4)
	assert.Equal(t, Annotation{Coords: [4]float64{80.5, 30, 81.5, 60}, Label: "vest"},
		data[0].Annotations[3])

	require.Len(t, skipped, 2)
	assert.Equal(t, filepath.Join(dir, "broken.xml"), skipped[0].Path)
	assert.Equal(t, filepath.Join(dir, "nosize.xml"), skipped[1].Path)

	_, _, err = FromVOC(filepath.Join(dir, "missing"), nil)
	assert.True(t, IsConfigurationError(err))
}

func TestParseKittiAnnotation(t *testing.T) {
	a, err := parseKittiAnnotation("Pedestrian 0.00 0 -0.20 712.40 143.00 810.73 307.92 1.89 0.48 " +
		"1.20 1.84 1.47 8.41 0.01")
	require.NoError(t, err)
	assert.Equal(t, "Pedestrian", a.Label)
	assert.Equal(t, [4]float64{712.40, 143.00, 810.73, 307.92}, a.Coords)

	_, err = parseKittiAnnotation("Pedestrian 0.00 0 -0.20 712.40")
	assert.Error(t, err)
	_, err = parseKittiAnnotation("Pedestrian 0.00 0 -0.20 712.40 x 810.73 307.92")
	assert.Error(t, err)
}

func TestConvertVOCToYOLO(t *testing.T) {
	root := t.TempDir()
	labelDir := filepath.Join(root, "annotations")
	writeFile(t, filepath.Join(labelDir, "site1.xml"), testVOCFile)
	outDir := filepath.Join(root, "yolo")

	report, err := Convert(ConvertOptions{
		From:         "voc",
		To:           "yolo",
		LabelDir:     labelDir,
		OutPath:      outDir,
		Vocabulary:   convertVocabulary(t),
		MapLabels:    []string{"worker=person"},
		MinBboxWidth: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	// goggles are not in the vocabulary.
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ItemParseError, report.Errors[0].Kind)

	content, err := os.ReadFile(filepath.Join(outDir, "site1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.500000 0.500000 0.500000 1.000000\n"+
		"1 0.500000 0.050000 0.100000 0.100000\n", string(content))
}

func TestConvertKittiToYOLO(t *testing.T) {
	root := t.TempDir()
	labelDir := filepath.Join(root, "label_2")
	imageDir := filepath.Join(root, "image_2")
	require.NoError(t, os.MkdirAll(imageDir, 0755))
	require.NoError(t, imaging.Save(gradientImage(100, 50), filepath.Join(imageDir, "000001.png")))
	writeFile(t, filepath.Join(labelDir, "000001.txt"),
		"person 0 0 0 25 0 75 50 0 0 0 0 0 0 0\nvest 0 0 0 40\n")
	writeFile(t, filepath.Join(labelDir, "000002.txt"), "person 0 0 0 25 0 75 50\n")
	outDir := filepath.Join(root, "yolo")

	report, err := Convert(ConvertOptions{
		From:       "kitti",
		To:         "yolo",
		LabelDir:   labelDir,
		ImageDir:   imageDir,
		OutPath:    outDir,
		Vocabulary: convertVocabulary(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	// One malformed line and one label file without an image.
	assert.Len(t, report.Errors, 2)

	content, err := os.ReadFile(filepath.Join(outDir, "000001.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.500000 0.500000 0.500000 1.000000\n", string(content))
	assert.NoFileExists(t, filepath.Join(outDir, "000002.txt"))
}

func TestConvertVOCToTFRecord(t *testing.T) {
	root := t.TempDir()
	labelDir := filepath.Join(root, "annotations")
	imageDir := filepath.Join(root, "images")
	writeFile(t, filepath.Join(labelDir, "site1.xml"), testVOCFile)
	writeFile(t, filepath.Join(labelDir, "site2.xml"), testVOCFile)
	require.NoError(t, os.MkdirAll(imageDir, 0755))
	require.NoError(t, imaging.Save(gradientImage(200, 100), filepath.Join(imageDir, "site1.png")))
	require.NoError(t, imaging.Save(gradientImage(200, 100), filepath.Join(imageDir, "site2.png")))

	recordPath := filepath.Join(root, "train.record")
	labelMapPath := filepath.Join(root, "label_map.pbtxt")
	report, err := Convert(ConvertOptions{
		From:         "voc",
		To:           "tfrecord",
		LabelDir:     labelDir,
		ImageDir:     imageDir,
		OutPath:      recordPath,
		LabelMapPath: labelMapPath,
		NumShards:    2,
		Vocabulary:   convertVocabulary(t),
		MapLabels:    []string{"worker=person"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Files)

	for _, suffix := range []string{"-00000-of-00002", "-00001-of-00002"} {
		info, err := os.Stat(recordPath + suffix)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	labelMap, err := os.ReadFile(labelMapPath)
	require.NoError(t, err)
	assert.Equal(t, "item {\n  id: 1\n  name: \"person\"\n}\n"+
		"item {\n  id: 2\n  name: \"helmet\"\n}\n"+
		"item {\n  id: 3\n  name: \"vest\"\n}\n", string(labelMap))
}

func TestToTFFeatures(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "site1.png")
	require.NoError(t, imaging.Save(gradientImage(200, 100), imagePath))
	f := AnnotatedFile{FilePath: "site1.xml", Width: 200, Height: 100, Annotations: []Annotation{
		{Coords: [4]float64{50, 0, 150, 100}, Label: "person"},
		{Coords: [4]float64{90, 0, 110, 10}, Label: "vest"},
	}}

	features, skipped, err := toTFFeatures(f, imagePath, convertVocabulary(t))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, "png", features["image/format"])
	assert.Equal(t, "site1.png", features["image/filename"])
	assert.Equal(t, []int64{1, 3}, features["image/object/class/label"])
	assert.Equal(t, []string{"person", "vest"}, features["image/object/class/text"])
	assert.InDeltaSlice(t, []float32{0.25, 0.45}, features["image/object/bbox/xmin"], 1e-6)
	assert.InDeltaSlice(t, []float32{1, 0.1}, features["image/object/bbox/ymax"], 1e-6)
}

func TestConvertConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Convert(ConvertOptions{From: "voc", To: "yolo", LabelDir: dir, OutPath: dir})
	assert.True(t, IsConfigurationError(err))

	_, err = Convert(ConvertOptions{From: "sloth", To: "yolo", LabelDir: dir, OutPath: dir,
		Vocabulary: convertVocabulary(t)})
	assert.True(t, IsConfigurationError(err))

	_, err = Convert(ConvertOptions{From: "voc", To: "coco", LabelDir: dir, OutPath: dir,
		Vocabulary: convertVocabulary(t)})
	assert.True(t, IsConfigurationError(err))

	_, err = Convert(ConvertOptions{From: "voc", To: "yolo", LabelDir: dir, OutPath: dir,
		Vocabulary: convertVocabulary(t), MapLabels: []string{"broken"}})
	assert.True(t, IsConfigurationError(err))
}

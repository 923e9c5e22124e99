package ppeprep

// YOLOv8 object detection with ONNX Runtime.

import (
	"context"
	"image"
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// The model input is a square RGB image of yoloInputSize pixels, the output holds yoloNumAnchors
// candidate boxes.
const (
	yoloInputSize  = 640
	yoloNumAnchors = 8400
)

// ONNXDetectorConfig configures an ONNXDetector.
type ONNXDetectorConfig struct {
	ModelPath   string   // An ONNX export of a YOLOv8 detection model.
	LibraryPath string   // The onnxruntime shared library; empty uses the platform default.
	Labels      []string // Class names in model output order.
	Confidence  float32  // Minimum class score of a detection.
	IoU         float32  // Overlap above which the weaker of two same-class detections is dropped.
	InputName   string   // Defaults to "images".
	OutputName  string   // Defaults to "output0".
}

// ONNXDetector runs a YOLOv8 model exported to ONNX. It is safe for concurrent use, but runs one
// inference at a time.
type ONNXDetector struct {
	cfg     ONNXDetectorConfig
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var ortInitOnce sync.Once
var ortInitErr error

// NewONNXDetector loads the model. Close the detector to release the runtime resources.
func NewONNXDetector(cfg ONNXDetectorConfig) (*ONNXDetector, error) {
	if len(cfg.Labels) == 0 {
		return nil, errors.Wrap(ErrMissingVocabulary, "detector labels")
	}
	if cfg.InputName == "" {
		cfg.InputName = "images"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output0"
	}

	ortInitOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, errors.Wrap(ortInitErr, "error initializing the ONNX Runtime environment")
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, yoloInputSize, yoloInputSize))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](
		ort.NewShape(1, int64(4+len(cfg.Labels)), yoloNumAnchors))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "error creating session for %q", cfg.ModelPath)
	}

	return &ONNXDetector{cfg: cfg, session: session, input: input, output: output}, nil
}

// Close releases the session and its tensors.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.session != nil {
		err = d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	return err
}

// Detect implements Detector.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, errors.New("detector is closed")
	}

	fillInputTensor(img, d.input.GetData())
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	return decodeYOLOv8(d.output.GetData(), d.cfg.Labels, sizeOf(img.Bounds()),
		d.cfg.Confidence, d.cfg.IoU), nil
}

// fillInputTensor stretches img to the model input size and writes it to dst as planar RGB in
// [0, 1].
func fillInputTensor(img image.Image, dst []float32) {
	const channelSize = yoloInputSize * yoloInputSize
	red := dst[0:channelSize]
	green := dst[channelSize : 2*channelSize]
	blue := dst[2*channelSize : 3*channelSize]

	resized := resize.Resize(yoloInputSize, yoloInputSize, img, resize.Bilinear)
	min := resized.Bounds().Min

	i := 0
	for y := 0; y < yoloInputSize; y++ {
		for x := 0; x < yoloInputSize; x++ {
			r, g, b, _ := resized.At(min.X+x, min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255
			green[i] = float32(g>>8) / 255
			blue[i] = float32(b>>8) / 255
			i++
		}
	}
}

// candidate is a decoded detection before suppression.
type candidate struct {
	classID        int
	score          float32
	x1, y1, x2, y2 float32
}

func (c candidate) area() float32 {
	return math32.Max(0, c.x2-c.x1) * math32.Max(0, c.y2-c.y1)
}

func (c candidate) iou(o candidate) float32 {
	w := math32.Max(0, math32.Min(c.x2, o.x2)-math32.Max(c.x1, o.x1))
	h := math32.Max(0, math32.Min(c.y2, o.y2)-math32.Max(c.y1, o.y1))
	inter := w * h
	union := c.area() + o.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// decodeYOLOv8 decodes the (1, 4+len(labels), 8400) output of a YOLOv8 model into detections
// scaled to an image of the given size, suppressing same-class overlaps above iouThreshold.
//
// The result is ordered by descending confidence.
func decodeYOLOv8(output []float32, labels []string, size ImageSize, confThreshold,
		iouThreshold float32) []Detection {

	numClasses := len(labels)
	if len(output) < (4+numClasses)*yoloNumAnchors {
		return nil
	}
	scaleX := float32(size.Width) / yoloInputSize
	scaleY := float32(size.Height) / yoloInputSize

	candidates := make([]candidate, 0, 64)
	for idx := 0; idx < yoloNumAnchors; idx++ {
		// Find the class with the highest score.
		best, score := 0, float32(-1)
		for c := 0; c < numClasses; c++ {
			if s := output[yoloNumAnchors*(c+4)+idx]; s > score {
				best, score = c, s
			}
		}
		if score < confThreshold {
			continue
		}

		xc, yc := output[idx], output[yoloNumAnchors+idx]
		w, h := output[2*yoloNumAnchors+idx], output[3*yoloNumAnchors+idx]
		candidates = append(candidates, candidate{
			classID: best,
			score:   score,
			x1:      (xc - w/2) * scaleX,
			y1:      (yc - h/2) * scaleY,
			x2:      (xc + w/2) * scaleX,
			y2:      (yc + h/2) * scaleY,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		suppressed := false
		for _, k := range kept {
			if k.classID == c.classID && c.iou(k) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}

	detections := make([]Detection, len(kept))
	for i, k := range kept {
		box := PixelBox{float64(k.x1), float64(k.y1), float64(k.x2), float64(k.y2)}
		detections[i] = Detection{
			Box:        ClipToImage(box, size),
			Label:      labels[k.classID],
			Confidence: float64(k.score),
		}
	}
	return detections
}

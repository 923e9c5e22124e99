package ppeprep

import (
	"bytes"
	"image"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp" // Registers the WebP decoder with package image.
)

// imageExts are the file extensions of images read by the passes.
var imageExts = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif", ".tif", ".tiff"}

// ImageEncoding selects the output image format and its options.
type ImageEncoding struct {
	Format       string // One of "jpg", "png" or "webp".
	JPEGQuality  int    // [1, 100], for JPEG outputs.
	WebPLossless bool   // Lossless WebP for WebP outputs.
}

// DefaultImageEncoding is JPEG at quality 90.
var DefaultImageEncoding = ImageEncoding{Format: "jpg", JPEGQuality: 90}

// Validate normalizes the format name and checks the options.
func (e *ImageEncoding) Validate() error {
	switch strings.ToLower(e.Format) {
	case "jpg", "jpeg":
		e.Format = "jpg"
	case "png":
		e.Format = "png"
	case "webp":
		e.Format = "webp"
	default:
		return errors.Errorf("unsupported output encoding %q", e.Format)
	}
	if e.JPEGQuality < 1 || e.JPEGQuality > 100 {
		return errors.Errorf("invalid JPEG quality %d, must be in [1, 100]", e.JPEGQuality)
	}
	return nil
}

// Ext is the file extension for the encoding, including the dot.
func (e ImageEncoding) Ext() string {
	return "." + e.Format
}

// encode encodes img in memory.
func (e ImageEncoding) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch e.Format {
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{
			Lossless: e.WebPLossless,
			Quality:  float32(e.JPEGQuality),
		})
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.JPEGQuality))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", e.Format)
	}
	return buf.Bytes(), nil
}

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}

// loadImage reads and decodes the image at path. The EXIF orientation is ignored, so that pixel
// coordinates match those of the annotation tools.
func loadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode image %q", path)
	}
	return img, nil
}

// cropImage returns a copy of the pixels of img inside r, without any resampling. r is relative to
// the top-left corner of img.
func cropImage(img image.Image, r image.Rectangle) *image.NRGBA {
	min := img.Bounds().Min
	return imaging.Crop(img, r.Add(min))
}

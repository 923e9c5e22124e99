package ppeprep

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the settings shared by the ppeprep commands. It is read from an optional YAML file
// and from PPEPREP_* environment variables.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Crop    CropSettings  `mapstructure:"crop"`
	Convert ConvertConfig `mapstructure:"convert"`
	Infer   InferSettings `mapstructure:"infer"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Mode string `mapstructure:"mode"` // "debug" or "release".
}

// CropSettings are the file-configurable settings of the person crop pass.
type CropSettings struct {
	AnchorClass   string `mapstructure:"anchor_class"`
	Workers       int    `mapstructure:"workers"`
	ImageEncoding string `mapstructure:"image_encoding"`
	JPEGQuality   int    `mapstructure:"jpeg_quality"`
	WebPLossless  bool   `mapstructure:"webp_lossless"`
}

// ConvertConfig are the settings of the annotation converter.
type ConvertConfig struct {
	From          string   `mapstructure:"from"` // "voc" or "kitti".
	To            string   `mapstructure:"to"`   // "yolo" or "tfrecord".
	MapLabels     []string `mapstructure:"map_labels"`
	MinBboxWidth  float64  `mapstructure:"min_bbox_width"`
	MinBboxHeight float64  `mapstructure:"min_bbox_height"`
	NumShards     int      `mapstructure:"num_shards"`
}

// InferSettings are the settings of the inference driver.
type InferSettings struct {
	Confidence  float64 `mapstructure:"confidence"`
	IoU         float64 `mapstructure:"iou"`
	LibraryPath string  `mapstructure:"library_path"` // The onnxruntime shared library.
}

// LoadConfig loads the configuration from the YAML file at path. An empty path only applies the
// defaults and environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ppeprep")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, configError(err, "failed to read config file %q", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configError(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "debug")

	v.SetDefault("crop.anchor_class", DefaultAnchorClass)
	v.SetDefault("crop.workers", 0)
	v.SetDefault("crop.image_encoding", DefaultImageEncoding.Format)
	v.SetDefault("crop.jpeg_quality", DefaultImageEncoding.JPEGQuality)
	v.SetDefault("crop.webp_lossless", false)

	v.SetDefault("convert.from", "voc")
	v.SetDefault("convert.to", "yolo")
	v.SetDefault("convert.map_labels", []string{})
	v.SetDefault("convert.min_bbox_width", 0.0)
	v.SetDefault("convert.min_bbox_height", 0.0)
	v.SetDefault("convert.num_shards", 1)

	v.SetDefault("infer.confidence", 0.5)
	v.SetDefault("infer.iou", 0.7)
	v.SetDefault("infer.library_path", "")
}

// Config sections that can be validated on their own. The log mode and the anchor class are used
// by every command and are always validated; LogSection selects only those.
const (
	LogSection     = "log"
	CropSection    = "crop"
	ConvertSection = "convert"
	InferSection   = "infer"
)

// Validate checks the configuration values of the given sections, or of all sections if none are
// given. Settings of other sections are not checked, so that a command is not stopped by a bad
// value it never uses.
func (c *Config) Validate(sections ...string) error {
	if len(sections) == 0 {
		sections = []string{CropSection, ConvertSection, InferSection}
	}

	var err error
	switch {
	case c.Log.Mode != "debug" && c.Log.Mode != "release":
		err = errors.Errorf("log.mode must be debug or release, not %q", c.Log.Mode)
	case c.Crop.AnchorClass == "":
		err = errors.New("crop.anchor_class cannot be empty")
	}
	for _, section := range sections {
		if err != nil {
			break
		}
		switch section {
		case LogSection:
		case CropSection:
			err = c.Crop.validate()
		case ConvertSection:
			err = c.Convert.validate()
		case InferSection:
			err = c.Infer.validate()
			if err == nil && (c.Crop.JPEGQuality < 1 || c.Crop.JPEGQuality > 100) {
				err = errors.Errorf("crop.jpeg_quality %d must be in [1, 100]", c.Crop.JPEGQuality)
			}
		default:
			err = errors.Errorf("unknown config section %q", section)
		}
	}
	if err != nil {
		return configError(err, "invalid configuration")
	}
	return nil
}

func (s CropSettings) validate() error {
	if s.Workers < 0 {
		return errors.New("crop.workers cannot be negative")
	}
	enc := s.Encoding()
	return enc.Validate()
}

func (s ConvertConfig) validate() error {
	switch {
	case s.From != "voc" && s.From != "kitti":
		return errors.Errorf("unsupported input format %q", s.From)
	case s.To != "yolo" && s.To != "tfrecord":
		return errors.Errorf("unsupported output format %q", s.To)
	case s.NumShards < 1:
		return errors.New("convert.num_shards must be positive")
	}
	return nil
}

func (s InferSettings) validate() error {
	switch {
	case s.Confidence < 0 || s.Confidence >= 1:
		return errors.New("infer.confidence must be in [0.0, 1.0)")
	case s.IoU <= 0 || s.IoU > 1:
		return errors.New("infer.iou must be in (0.0, 1.0]")
	}
	return nil
}

// Encoding returns the crop image encoding.
func (s CropSettings) Encoding() ImageEncoding {
	return ImageEncoding{Format: s.ImageEncoding, JPEGQuality: s.JPEGQuality,
		WebPLossless: s.WebPLossless}
}

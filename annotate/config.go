// Package annotate reprojects a solved object model into every frame of
// every scene and derives per-frame training labels: 2D keypoints, a crop
// center and scale, and a bounding box under one of two pluggable box
// policies.
package annotate

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries the generation parameters. The defaults are the values the
// exploratory tooling hard-coded; a YAML file can override any of them.
type Config struct {
	// Width and Height are the output frame size; input frames are resized.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// BBoxScale grows the bounding box to avoid excessive cropping.
	BBoxScale float64 `yaml:"bbox_scale"`
	// FrameStride labels every n-th frame of a scene.
	FrameStride int `yaml:"frame_stride"`
	// DepthScale divides raw depth readings into metric units.
	DepthScale float64 `yaml:"depth_scale"`
	// MaxScenes truncates the scene list; 0 means derive it from the
	// solver archive.
	MaxScenes int `yaml:"max_scenes"`
	// ClassID is the object class written to the YOLO bbox files.
	ClassID int `yaml:"class_id"`
}

// DefaultConfig returns the observed defaults of the original pipeline.
func DefaultConfig() Config {
	return Config{
		Width:       640,
		Height:      480,
		BBoxScale:   1.5,
		FrameStride: 10,
		DepthScale:  1000,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "cannot read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "cannot parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the generator cannot run with.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.FrameStride <= 0 {
		return errors.Errorf("frame stride must be positive, got %d", c.FrameStride)
	}
	if c.DepthScale <= 0 {
		return errors.Errorf("depth scale must be positive, got %v", c.DepthScale)
	}
	if c.BBoxScale <= 0 {
		return errors.Errorf("bbox scale must be positive, got %v", c.BBoxScale)
	}
	return nil
}

// Package config defines the configuration of a stereo extraction run.
package config

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/stereobag/rimage"
	"go.viam.com/stereobag/ros"
	"go.viam.com/stereobag/timesync"
)

// Defaults for a Config.
const (
	DefaultRGBTopic      = "/camera/color/image_raw"
	DefaultIRTopic       = "/camera/ir/image_raw"
	DefaultOutputDir     = "output"
	DefaultTimeThreshold = 0.03
	DefaultFrameInterval = 1
	DefaultFormat        = "png"
	DefaultWorkers       = 1
)

// Config describes how two image topics are paired and written out.
type Config struct {
	RGBTopic string `json:"rgb_topic"`
	IRTopic  string `json:"ir_topic"`
	// OutputDir receives rgb/ and ir/ subdirectories.
	OutputDir string `json:"output_dir"`
	// TimeThreshold is the largest accepted skew between paired frames, in seconds.
	TimeThreshold float64 `json:"time_threshold"`
	FlipRGB       bool    `json:"flip_rgb"`
	FlipIR        bool    `json:"flip_ir"`
	// FrameInterval keeps every Nth synchronized pair.
	FrameInterval int `json:"frame_interval"`
	// Format is the output file extension.
	Format string `json:"format"`
	// Workers bounds how many pairs are decoded concurrently.
	Workers         int                 `json:"workers"`
	LookBack        int                 `json:"look_back"`
	TimestampSource ros.TimestampSource `json:"timestamp_source"`
}

// Default returns a Config with every field at its default.
func Default() Config {
	return Config{
		RGBTopic:        DefaultRGBTopic,
		IRTopic:         DefaultIRTopic,
		OutputDir:       DefaultOutputDir,
		TimeThreshold:   DefaultTimeThreshold,
		FrameInterval:   DefaultFrameInterval,
		Format:          DefaultFormat,
		Workers:         DefaultWorkers,
		LookBack:        timesync.DefaultLookBack,
		TimestampSource: ros.TimestampBag,
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.RGBTopic == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "rgb_topic")
	}
	if c.IRTopic == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "ir_topic")
	}
	if c.RGBTopic == c.IRTopic {
		return utils.NewConfigValidationError(path, errors.Errorf("rgb_topic and ir_topic must differ, both are %q", c.RGBTopic))
	}
	if c.OutputDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "output_dir")
	}
	if c.TimeThreshold < 0 || math.IsNaN(c.TimeThreshold) || math.IsInf(c.TimeThreshold, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("time_threshold must be a non-negative number, got %v", c.TimeThreshold))
	}
	if c.FrameInterval < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("frame_interval must be at least 1, got %d", c.FrameInterval))
	}
	if c.Workers < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.LookBack < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("look_back must not be negative, got %d", c.LookBack))
	}
	if !rimage.IsSupportedFormat(c.Format) {
		return utils.NewConfigValidationError(path, errors.Errorf("format %q is not one of %s",
			c.Format, strings.Join(rimage.Formats, ", ")))
	}
	switch c.TimestampSource {
	case ros.TimestampBag, ros.TimestampHeader:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("timestamp_source must be %q or %q, got %q",
			ros.TimestampBag, ros.TimestampHeader, c.TimestampSource))
	}
	return nil
}

// RGBDir is where RGB images are written.
func (c *Config) RGBDir() string {
	return filepath.Join(c.OutputDir, "rgb")
}

// IRDir is where IR images are written.
func (c *Config) IRDir() string {
	return filepath.Join(c.OutputDir, "ir")
}

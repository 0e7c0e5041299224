package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/stereobag/rimage"
)

// A PairWriter persists one synchronized image pair under a shared name.
type PairWriter interface {
	WritePair(name string, rgb, ir *rimage.DecodedImage) error
}

// DirWriter writes RGB and IR images into two directories as <dir>/<name>.<format>.
type DirWriter struct {
	RGBDir string
	IRDir  string
	Format string
}

// NewDirWriter creates both output directories.
func NewDirWriter(rgbDir, irDir, format string) (*DirWriter, error) {
	if !rimage.IsSupportedFormat(format) {
		return nil, errors.Errorf("unsupported image format %q", format)
	}
	for _, dir := range []string{rgbDir, irDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrapf(err, "creating %s", dir)
		}
	}
	return &DirWriter{RGBDir: rgbDir, IRDir: irDir, Format: format}, nil
}

// WritePair writes rgb then ir. If the IR write fails the RGB file is removed so that both
// directories hold the same names.
func (w *DirWriter) WritePair(name string, rgb, ir *rimage.DecodedImage) error {
	rgbImg, err := rgb.ToImage()
	if err != nil {
		return errors.Wrap(err, "rgb image")
	}
	irImg, err := ir.ToImage()
	if err != nil {
		return errors.Wrap(err, "ir image")
	}

	rgbPath := w.path(w.RGBDir, name)
	if err := rimage.WriteImageToFile(rgbPath, rgbImg); err != nil {
		return errors.Wrap(err, "writing rgb image")
	}
	if err := rimage.WriteImageToFile(w.path(w.IRDir, name), irImg); err != nil {
		//nolint:errcheck
		os.Remove(rgbPath)
		return errors.Wrap(err, "writing ir image")
	}
	return nil
}

func (w *DirWriter) path(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s", name, w.Format))
}

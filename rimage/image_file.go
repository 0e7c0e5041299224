package rimage

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"
)

// Formats lists the lossless raster formats WriteImageToFile can produce, by file extension.
var Formats = []string{"png", "bmp", "tif", "tiff", "ppm", "qoi"}

// IsSupportedFormat reports whether format (an extension without the dot) can be written.
func IsSupportedFormat(format string) bool {
	for _, f := range Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// WriteImageToFile writes img to fn, choosing the format from fn's extension.
func WriteImageToFile(fn string, img image.Image) (err error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(fn), "."))
	switch format {
	case "png", "bmp", "tif", "tiff":
		return imaging.Save(img, fn)
	case "ppm", "qoi":
		//nolint:gosec
		f, createErr := os.Create(fn)
		if createErr != nil {
			return createErr
		}
		defer multierr.AppendInvoke(&err, multierr.Close(f))
		if format == "ppm" {
			return ppm.Encode(f, img)
		}
		return qoi.Encode(f, img)
	default:
		return errors.Errorf("unsupported image format %q for %s", format, fn)
	}
}

package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrUnsupportedChannels means an image's channel count has no raster representation.
var ErrUnsupportedChannels = errors.New("unsupported channel count")

// DecodedImage is an 8 bit per channel, row-major, interleaved pixel buffer. Color images use
// B, G, R order (B, G, R, A for four channels). len(Pix) == Width*Height*Channels.
type DecodedImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
	// Guessed is set when the layout was inferred from the payload length of an unrecognized
	// encoding.
	Guessed bool
}

func newDecodedImage(width, height, channels int) *DecodedImage {
	return &DecodedImage{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// ToImage returns the image as an *image.Gray (one channel) or *image.NRGBA (three or four).
// A gray result shares Pix with img.
func (img *DecodedImage) ToImage() (image.Image, error) {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.Channels {
	case 1:
		return &image.Gray{Pix: img.Pix, Stride: img.Width, Rect: rect}, nil
	case 3, 4:
		out := image.NewNRGBA(rect)
		for src, dst := 0, 0; dst < len(out.Pix); src, dst = src+img.Channels, dst+4 {
			out.Pix[dst] = img.Pix[src+2]
			out.Pix[dst+1] = img.Pix[src+1]
			out.Pix[dst+2] = img.Pix[src]
			if img.Channels == 4 {
				out.Pix[dst+3] = img.Pix[src+3]
			} else {
				out.Pix[dst+3] = 0xff
			}
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedChannels, "%d channels", img.Channels)
	}
}

// FromImage converts any image into a DecodedImage with the given channel count (1, 3 or 4).
// One channel keeps the red component, which is exact for gray sources.
func FromImage(std image.Image, channels int) (*DecodedImage, error) {
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, errors.Wrapf(ErrUnsupportedChannels, "%d channels", channels)
	}
	nrgba := imaging.Clone(std)
	bounds := nrgba.Bounds()
	img := newDecodedImage(bounds.Dx(), bounds.Dy(), channels)
	for src, dst := 0, 0; dst < len(img.Pix); src, dst = src+4, dst+channels {
		if channels == 1 {
			img.Pix[dst] = nrgba.Pix[src]
			continue
		}
		img.Pix[dst] = nrgba.Pix[src+2]
		img.Pix[dst+1] = nrgba.Pix[src+1]
		img.Pix[dst+2] = nrgba.Pix[src]
		if channels == 4 {
			img.Pix[dst+3] = nrgba.Pix[src+3]
		}
	}
	return img, nil
}

// FlipHorizontal returns a left-right mirrored copy of img.
func FlipHorizontal(img *DecodedImage) (*DecodedImage, error) {
	std, err := img.ToImage()
	if err != nil {
		return nil, err
	}
	flipped, err := FromImage(imaging.FlipH(std), img.Channels)
	if err != nil {
		return nil, err
	}
	flipped.Guessed = img.Guessed
	return flipped, nil
}

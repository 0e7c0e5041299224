package rimage

import (
	"image"

	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pkg/errors"
)

var (
	// ErrLengthMismatch means a payload does not hold width*height pixels of its encoding.
	ErrLengthMismatch = errors.New("payload length does not match image dimensions")
	// ErrUnknownLayout means the payload cannot be reshaped into an image.
	ErrUnknownLayout = errors.New("unknown image layout")
)

// Decode converts a raw sensor frame into a DecodedImage with canonical BGR channel order.
// It does not modify or retain data.
func Decode(data []byte, encoding string, width, height int) (*DecodedImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrUnknownLayout, "invalid dimensions %dx%d", width, height)
	}

	enc := ParseEncoding(encoding)
	if enc == EncodingUnknown {
		return decodeGuessed(data, width, height)
	}

	if expected := width * height * enc.BytesPerPixel(); len(data) != expected {
		return nil, errors.Wrapf(ErrLengthMismatch, "%s %dx%d needs %d bytes but got %d",
			encoding, width, height, expected, len(data))
	}

	switch enc {
	case EncodingRGB8:
		img := newDecodedImage(width, height, 3)
		swapRedBlue(img.Pix, data, 3)
		return img, nil
	case EncodingBGR8, EncodingMono8:
		img := newDecodedImage(width, height, enc.Channels())
		copy(img.Pix, data)
		return img, nil
	case EncodingMono16:
		img := newDecodedImage(width, height, 1)
		for i := range img.Pix {
			// little-endian sample / 256 is its high byte.
			img.Pix[i] = data[2*i+1]
		}
		return img, nil
	case EncodingYUYV:
		return decodeYUYV(data, width, height)
	case EncodingUnknown:
	}
	return nil, errors.Wrapf(ErrUnknownLayout, "unhandled encoding %q", encoding)
}

// decodeGuessed infers the channel count from the payload length. Three channels are assumed
// to be RGB, anything else is passed through.
func decodeGuessed(data []byte, width, height int) (*DecodedImage, error) {
	pixels := width * height
	if len(data) == 0 || len(data)%pixels != 0 {
		return nil, errors.Wrapf(ErrUnknownLayout, "%d bytes is not a whole number of channels for %dx%d",
			len(data), width, height)
	}
	channels := len(data) / pixels
	img := newDecodedImage(width, height, channels)
	img.Guessed = true
	if channels == 3 {
		swapRedBlue(img.Pix, data, 3)
	} else {
		copy(img.Pix, data)
	}
	return img, nil
}

func decodeYUYV(data []byte, width, height int) (*DecodedImage, error) {
	if width%2 != 0 {
		return nil, errors.Wrapf(ErrUnknownLayout, "yuyv needs an even width, got %d", width)
	}
	decoder, err := frame.NewDecoder(frame.FormatYUY2)
	if err != nil {
		return nil, err
	}
	decoded, release, err := decoder.Decode(data, width, height)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownLayout, "yuyv: %v", err)
	}
	if release != nil {
		defer release()
	}

	ycc, ok := decoded.(*image.YCbCr)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLayout, "yuyv decoder produced %T", decoded)
	}

	img := newDecodedImage(width, height, 3)
	bounds := ycc.Bounds()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ci := ycc.COffset(x, y)
			b, g, r := yuvToBGR(ycc.Y[ycc.YOffset(x, y)], ycc.Cb[ci], ycc.Cr[ci])
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = b, g, r
			i += 3
		}
	}
	return img, nil
}

// Limited range BT.601 coefficients in 20 bit fixed point: Y in [16, 235], chroma centered on 128.
const (
	yuvShift = 20
	yuvCY    = 1220542 // 1.164
	yuvCVR   = 1673527 // 1.596
	yuvCVG   = -852492 // -0.813
	yuvCUG   = -409993 // -0.391
	yuvCUB   = 2116026 // 2.018
)

func yuvToBGR(y, u, v uint8) (b, g, r uint8) {
	yy := max(int(y)-16, 0) * yuvCY
	uu := int(u) - 128
	vv := int(v) - 128
	const round = 1 << (yuvShift - 1)
	r = clampByte((yy + yuvCVR*vv + round) >> yuvShift)
	g = clampByte((yy + yuvCVG*vv + yuvCUG*uu + round) >> yuvShift)
	b = clampByte((yy + yuvCUB*uu + round) >> yuvShift)
	return b, g, r
}

func clampByte(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}

// swapRedBlue copies src into dst exchanging the first and third byte of every pixel.
func swapRedBlue(dst, src []byte, channels int) {
	for i := 0; i+channels <= len(src); i += channels {
		dst[i], dst[i+1], dst[i+2] = src[i+2], src[i+1], src[i]
	}
}

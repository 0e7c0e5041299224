package rimage

// Encoding is the byte layout of a raw sensor frame. The set is closed; tags that match none of
// the known layouts parse to EncodingUnknown and go through the guessing fallback in Decode.
type Encoding int

const (
	// EncodingUnknown is any unrecognized tag.
	EncodingUnknown Encoding = iota
	// EncodingRGB8 is 3 bytes per pixel in R, G, B order.
	EncodingRGB8
	// EncodingBGR8 is 3 bytes per pixel in B, G, R order.
	EncodingBGR8
	// EncodingYUYV is packed 4:2:2, Y0 U Y1 V per pixel pair.
	EncodingYUYV
	// EncodingMono8 is 1 byte per pixel.
	EncodingMono8
	// EncodingMono16 is one little-endian 16 bit sample per pixel.
	EncodingMono16
)

var encodingTags = map[string]Encoding{
	"rgb8":   EncodingRGB8,
	"bgr8":   EncodingBGR8,
	"yuyv":   EncodingYUYV,
	"yuv422": EncodingYUYV,
	"mono8":  EncodingMono8,
	"8UC1":   EncodingMono8,
	"mono16": EncodingMono16,
	"16UC1":  EncodingMono16,
}

// ParseEncoding maps a ROS encoding tag to its Encoding. Tags are case sensitive.
func ParseEncoding(tag string) Encoding {
	if enc, ok := encodingTags[tag]; ok {
		return enc
	}
	return EncodingUnknown
}

func (e Encoding) String() string {
	switch e {
	case EncodingRGB8:
		return "rgb8"
	case EncodingBGR8:
		return "bgr8"
	case EncodingYUYV:
		return "yuyv"
	case EncodingMono8:
		return "mono8"
	case EncodingMono16:
		return "mono16"
	case EncodingUnknown:
	}
	return "unknown"
}

// BytesPerPixel is the input size of one pixel, or 0 for EncodingUnknown.
func (e Encoding) BytesPerPixel() int {
	switch e {
	case EncodingRGB8, EncodingBGR8:
		return 3
	case EncodingYUYV, EncodingMono16:
		return 2
	case EncodingMono8:
		return 1
	case EncodingUnknown:
	}
	return 0
}

// Channels is the channel count of the decoded image, or 0 for EncodingUnknown.
func (e Encoding) Channels() int {
	switch e {
	case EncodingRGB8, EncodingBGR8, EncodingYUYV:
		return 3
	case EncodingMono8, EncodingMono16:
		return 1
	case EncodingUnknown:
	}
	return 0
}

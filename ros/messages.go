package ros

import (
	"github.com/pkg/errors"

	"go.viam.com/stereobag/rimage"
	"go.viam.com/stereobag/timesync"
)

// TimestampSource selects which clock a record's timestamp is taken from.
type TimestampSource string

const (
	// TimestampBag is the time the recorder received the message.
	TimestampBag TimestampSource = "bag"
	// TimestampHeader is the message's header.stamp, set by the driver.
	TimestampHeader TimestampSource = "header"
)

// Stamp is a ROS time.
type Stamp struct {
	Secs  int64
	Nsecs int64
}

// Seconds returns the stamp in floating point seconds.
func (s Stamp) Seconds() float64 {
	return float64(s.Secs) + float64(s.Nsecs)*1e-9
}

// ImageMessage is a sensor_msgs/Image as gobag renders it to JSON.
type ImageMessage struct {
	Meta Stamp
	Data struct {
		Header struct {
			Seq     int
			Stamp   Stamp
			FrameID string `json:"frame_id"`
		}
		Height      int
		Width       int
		Encoding    string
		IsBigendian int `json:"is_bigendian"`
		Step        int
		Data        []byte
	}
}

// Record converts the message into a timesync.Record. Row padding is removed and big-endian
// 16 bit samples are swapped to little-endian, so Data holds exactly Width*Height pixels for the
// known encodings.
func (m *ImageMessage) Record(source TimestampSource) (timesync.Record, error) {
	var ts float64
	switch source {
	case TimestampBag, "":
		ts = m.Meta.Seconds()
	case TimestampHeader:
		ts = m.Data.Header.Stamp.Seconds()
	default:
		return timesync.Record{}, errors.Errorf("unknown timestamp source %q", source)
	}

	return timesync.Record{
		Timestamp: ts,
		Encoding:  m.Data.Encoding,
		Width:     m.Data.Width,
		Height:    m.Data.Height,
		Data:      normalizeImageData(m.Data.Data, m.Data.Encoding, m.Data.Width, m.Data.Height, m.Data.Step, m.Data.IsBigendian != 0),
	}, nil
}

// normalizeImageData returns data unchanged unless the encoding is known and the rows are
// padded, or the samples are big-endian 16 bit.
func normalizeImageData(data []byte, encoding string, width, height, step int, bigEndian bool) []byte {
	enc := rimage.ParseEncoding(encoding)
	bpp := enc.BytesPerPixel()
	if bpp == 0 || width <= 0 || height <= 0 {
		return data
	}

	rowBytes := width * bpp
	if step > rowBytes && len(data) == step*height {
		compact := make([]byte, 0, rowBytes*height)
		for row := 0; row < height; row++ {
			compact = append(compact, data[row*step:row*step+rowBytes]...)
		}
		data = compact
	}

	if bigEndian && enc == rimage.EncodingMono16 {
		swapped := make([]byte, len(data))
		for i := 0; i+1 < len(data); i += 2 {
			swapped[i], swapped[i+1] = data[i+1], data[i]
		}
		data = swapped
	}
	return data
}

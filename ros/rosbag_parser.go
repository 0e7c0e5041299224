// Package ros reads ROS 1 bag files into timestamped image records.
package ros

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/stereobag/timesync"
)

// lineReader is satisfied by the per-topic JSON buffers gobag fills.
type lineReader interface {
	ReadBytes(delim byte) ([]byte, error)
}

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read ros bag %s", filename)
	}

	return rb, nil
}

// topicKey is the key gobag files a topic's messages under: lower case, no leading slash,
// remaining slashes replaced by underscores.
func topicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// parseTopics converts every message of the given topics to JSON lines inside rb. The lines are
// consumed as they are read, so a bag can be parsed again afterwards.
func parseTopics(rb *rosbag.RosBag, topics ...string) error {
	if err := rb.ParseTopicsToJSON("", func(int64) bool { return true }, topicFilter(topics...), false); err != nil {
		return errors.Wrapf(err, "error while parsing bag to JSON")
	}
	return nil
}

// topicFilter accepts the given topics, compared by topicKey, or every topic if none are given.
func topicFilter(topics ...string) func(string) bool {
	if len(topics) == 0 {
		return func(string) bool { return true }
	}
	wanted := make(map[string]bool, len(topics))
	for _, topic := range topics {
		wanted[topicKey(topic)] = true
	}
	return func(topic string) bool {
		return wanted[topicKey(topic)]
	}
}

// topicLines returns the JSON lines parsed for topic, or nil if there are none.
func topicLines(rb *rosbag.RosBag, topic string) lineReader {
	buf, ok := rb.TopicsAsJSON[topicKey(topic)]
	if !ok || buf == nil {
		return nil
	}
	return buf
}

// eachLine calls fn with every line of r until io.EOF.
func eachLine(r lineReader, fn func(line []byte) error) error {
	if r == nil {
		return nil
	}
	for {
		line, err := r.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			if fnErr := fn(line); fnErr != nil {
				return fnErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// ImageRecords reads the sensor_msgs/Image messages of two topics, in bag order.
// A topic without messages yields an empty slice, not an error.
func ImageRecords(
	rb *rosbag.RosBag,
	rgbTopic, irTopic string,
	source TimestampSource,
) (rgb, ir []timesync.Record, err error) {
	if topicKey(rgbTopic) == topicKey(irTopic) {
		return nil, nil, errors.Errorf("topics %q and %q refer to the same stream", rgbTopic, irTopic)
	}
	if err := parseTopics(rb, rgbTopic, irTopic); err != nil {
		return nil, nil, err
	}

	rgb, err = readImageRecords(topicLines(rb, rgbTopic), source)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading topic %s", rgbTopic)
	}
	ir, err = readImageRecords(topicLines(rb, irTopic), source)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading topic %s", irTopic)
	}
	return rgb, ir, nil
}

func readImageRecords(lines lineReader, source TimestampSource) ([]timesync.Record, error) {
	var records []timesync.Record
	err := eachLine(lines, func(line []byte) error {
		var msg ImageMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return errors.Wrapf(err, "decoding message %d", len(records))
		}
		record, err := msg.Record(source)
		if err != nil {
			return errors.Wrapf(err, "message %d", len(records))
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

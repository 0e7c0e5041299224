package ros

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// TopicInfo describes one topic of a bag.
type TopicInfo struct {
	Topic    string
	Type     string
	Messages int
	// Start and End are the first and last record times in seconds.
	Start float64
	End   float64
}

// IsImage reports whether the topic carries image messages.
func (t TopicInfo) IsImage() bool {
	return strings.Contains(t.Type, "Image")
}

// BagInfo summarizes the topics of a bag.
type BagInfo struct {
	Topics []TopicInfo
	Start  float64
	End    float64
}

// Duration is the time between the first and last message in seconds.
func (b *BagInfo) Duration() float64 {
	if len(b.Topics) == 0 {
		return 0
	}
	return b.End - b.Start
}

// Messages is the total message count.
func (b *BagInfo) Messages() int {
	return lo.SumBy(b.Topics, func(t TopicInfo) int { return t.Messages })
}

// Frequency is a topic's average message rate over the bag's duration, 0 if unknown.
func (b *BagInfo) Frequency(t TopicInfo) float64 {
	if d := b.Duration(); d > 0 {
		return float64(t.Messages) / d
	}
	return 0
}

// ImageTopics returns the topics carrying images, in topic order.
func (b *BagInfo) ImageTopics() []TopicInfo {
	return lo.Filter(b.Topics, func(t TopicInfo, _ int) bool { return t.IsImage() })
}

// Inspect lists the topics of a bag with their message types and counts.
func Inspect(rb *rosbag.RosBag) (*BagInfo, error) {
	types := map[string]string{}
	for _, conn := range rb.Connections {
		types[conn.HeaderTopic] = conn.ConnectionType
	}

	if err := parseTopics(rb); err != nil {
		return nil, err
	}

	info := &BagInfo{Start: math.Inf(1), End: math.Inf(-1)}
	for topic, msgType := range types {
		ti, err := inspectTopic(topicLines(rb, topic), topic, msgType)
		if err != nil {
			return nil, errors.Wrapf(err, "reading topic %s", topic)
		}
		if ti.Messages > 0 {
			info.Start = math.Min(info.Start, ti.Start)
			info.End = math.Max(info.End, ti.End)
		}
		info.Topics = append(info.Topics, ti)
	}
	if info.Messages() == 0 {
		info.Start, info.End = 0, 0
	}
	sort.Slice(info.Topics, func(i, j int) bool { return info.Topics[i].Topic < info.Topics[j].Topic })
	return info, nil
}

func inspectTopic(lines lineReader, topic, msgType string) (TopicInfo, error) {
	ti := TopicInfo{Topic: topic, Type: msgType}
	err := eachLine(lines, func(line []byte) error {
		var msg struct {
			Meta Stamp
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			return err
		}
		ts := msg.Meta.Seconds()
		if ti.Messages == 0 || ts < ti.Start {
			ti.Start = ts
		}
		if ti.Messages == 0 || ts > ti.End {
			ti.End = ts
		}
		ti.Messages++
		return nil
	})
	return ti, err
}

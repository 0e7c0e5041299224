package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/stereobag/ros"
)

// InspectAction is the corresponding Action for 'inspect'.
func InspectAction(c *cli.Context) error {
	bagPath, err := bagPathArg(c)
	if err != nil {
		return err
	}
	stat, err := os.Stat(bagPath)
	if err != nil {
		return errors.Wrap(err, "cannot open bag")
	}
	rb, err := ros.ReadBag(bagPath)
	if err != nil {
		return err
	}
	info, err := ros.Inspect(rb)
	if err != nil {
		return err
	}

	printf(c.App.Writer, "Bag:      %s", bagPath)
	printf(c.App.Writer, "Size:     %s", units.HumanSize(float64(stat.Size())))
	printf(c.App.Writer, "Duration: %.2fs", info.Duration())
	printf(c.App.Writer, "Messages: %d", info.Messages())
	printf(c.App.Writer, "%s", topicTable(info))

	images := info.ImageTopics()
	if len(images) == 0 {
		warningf(c.App.ErrWriter, "no image topics found")
		return nil
	}
	printf(c.App.Writer, "Image topics:")
	for _, t := range images {
		printf(c.App.Writer, "  %s (%d messages)", t.Topic, t.Messages)
	}
	rgbTopic, irTopic, ok := suggestTopics(images)
	if !ok {
		return nil
	}
	printf(c.App.Writer, "")
	printf(c.App.Writer, "Suggested command:")
	printf(c.App.Writer, "  stereobag extract %s --%s %s --%s %s",
		bagPath, flagRGBTopic, rgbTopic, flagIRTopic, irTopic)
	return nil
}

func topicTable(info *ros.BagInfo) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Topic", "Type", "Messages", "Frequency"})
	for _, topic := range info.Topics {
		t.AppendRow(table.Row{
			topic.Topic,
			topic.Type,
			topic.Messages,
			fmt.Sprintf("%.1f Hz", info.Frequency(topic)),
		})
	}
	return t.Render()
}

var (
	rgbTopicHints = []string{"color", "rgb"}
	irTopicHints  = []string{"infra", "ir"}
)

// suggestTopics picks an RGB and an IR topic by name, falling back to the first two image
// topics.
func suggestTopics(images []ros.TopicInfo) (rgb, ir string, ok bool) {
	names := lo.Map(images, func(t ros.TopicInfo, _ int) string { return t.Topic })
	rgb, rgbOK := lo.Find(names, func(name string) bool { return containsAny(name, rgbTopicHints) })
	ir, irOK := lo.Find(names, func(name string) bool {
		return name != rgb && containsAny(name, irTopicHints)
	})
	if rgbOK && irOK {
		return rgb, ir, true
	}
	if len(names) < 2 {
		return "", "", false
	}
	return names[0], names[1], true
}

func containsAny(s string, hints []string) bool {
	s = strings.ToLower(s)
	return lo.SomeBy(hints, func(hint string) bool { return strings.Contains(s, hint) })
}

package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/stereobag/config"
	"go.viam.com/stereobag/extract"
	"go.viam.com/stereobag/logging"
	"go.viam.com/stereobag/ros"
	"go.viam.com/stereobag/timesync"
)

const (
	stepRead = "read"
	stepSync = "sync"
	stepSave = "save"
)

func extractSteps() []*Step {
	return []*Step{
		{ID: stepRead, Message: "Reading bag"},
		{ID: stepSync, Message: "Synchronizing frames"},
		{ID: stepSave, Message: "Writing image pairs"},
	}
}

// ExtractAction is the corresponding Action for 'extract'.
func ExtractAction(c *cli.Context) error {
	bagPath, err := bagPathArg(c)
	if err != nil {
		return err
	}
	cfg, err := extractConfig(c)
	if err != nil {
		return err
	}
	logger := loggerFromContext(c)

	pm := NewProgressManager(extractSteps(), WithProgressOutput(!c.Bool(flagQuiet) && isTerminal(c.App.Writer)))
	defer pm.Stop()

	if err := pm.Start(stepRead); err != nil {
		return err
	}
	rgb, ir, err := readStreams(bagPath, cfg)
	if err != nil {
		utils.UncheckedError(pm.Fail(stepRead, err))
		return err
	}
	utils.UncheckedError(pm.Complete(stepRead, fmt.Sprintf("Read %d RGB and %d IR frames", len(rgb), len(ir))))

	writer, err := extract.NewDirWriter(cfg.RGBDir(), cfg.IRDir(), cfg.Format)
	if err != nil {
		return err
	}
	extractor := &extract.Extractor{
		Config:   cfg,
		Writer:   writer,
		Listener: newProgressListener(logger, pm, len(rgb)),
		Logger:   logger,
	}

	if err := pm.Start(stepSync); err != nil {
		return err
	}
	summary, err := extractor.Run(c.Context, rgb, ir)
	if err != nil {
		for _, id := range []string{stepSync, stepSave} {
			if pm.Running(id) {
				utils.UncheckedError(pm.Fail(id, err))
			}
		}
		return err
	}
	utils.UncheckedError(pm.Complete(stepSave, fmt.Sprintf("Wrote %d image pairs to %s", summary.Saved, cfg.OutputDir)))
	pm.Stop()

	printf(c.App.Writer, "%s", summaryTable(summary, cfg))
	if summary.Skipped > 0 {
		warningf(c.App.ErrWriter, "%d pairs could not be decoded or written, run with --debug for details", summary.Skipped)
	}
	return nil
}

// extractConfig starts from the config file, if any, and applies the flags given on the
// command line.
func extractConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	path := "flags"
	if file := c.String(flagConfig); file != "" {
		fromFile, err := config.Read(file)
		if err != nil {
			return config.Config{}, err
		}
		cfg = *fromFile
		path = file
	}

	if c.IsSet(flagRGBTopic) {
		cfg.RGBTopic = c.String(flagRGBTopic)
	}
	if c.IsSet(flagIRTopic) {
		cfg.IRTopic = c.String(flagIRTopic)
	}
	if c.IsSet(flagOutputDir) {
		cfg.OutputDir = c.String(flagOutputDir)
	}
	if c.IsSet(flagTimeThreshold) {
		cfg.TimeThreshold = c.Float64(flagTimeThreshold)
	}
	if c.IsSet(flagFlipRGB) {
		cfg.FlipRGB = c.Bool(flagFlipRGB)
	}
	if c.IsSet(flagFlipIR) {
		cfg.FlipIR = c.Bool(flagFlipIR)
	}
	if c.IsSet(flagFrameInterval) {
		cfg.FrameInterval = c.Int(flagFrameInterval)
	}
	if c.IsSet(flagFormat) {
		cfg.Format = strings.ToLower(c.String(flagFormat))
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagTimestampSource) {
		cfg.TimestampSource = ros.TimestampSource(c.String(flagTimestampSource))
	}
	if err := cfg.Validate(path); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func readStreams(bagPath string, cfg config.Config) (rgb, ir []timesync.Record, err error) {
	rb, err := ros.ReadBag(bagPath)
	if err != nil {
		return nil, nil, err
	}
	return ros.ImageRecords(rb, cfg.RGBTopic, cfg.IRTopic, cfg.TimestampSource)
}

func summaryTable(s *extract.Summary, cfg config.Config) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Extraction", ""})
	t.AppendRows([]table.Row{
		{"RGB frames", s.RGBFrames},
		{"IR frames", s.IRFrames},
		{"Synchronized pairs", s.Pairs},
		{fmt.Sprintf("Selected (every %d)", cfg.FrameInterval), s.Selected},
		{"Saved", s.Saved},
		{"Skipped", s.Skipped},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate()*100)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Mean skew", fmt.Sprintf("%.2f ms", s.Stats.Mean*1000)},
		{"Median skew", fmt.Sprintf("%.2f ms", s.Stats.Median*1000)},
		{"Max skew", fmt.Sprintf("%.2f ms", s.Stats.Max*1000)},
	})
	t.AppendFooter(table.Row{"Output", cfg.OutputDir})
	return t.Render()
}

// progressListener logs extraction events and mirrors them on the progress spinners.
type progressListener struct {
	*extract.LogListener
	pm *ProgressManager

	matched int
	written int
	saving  bool
}

func newProgressListener(logger logging.Logger, pm *ProgressManager, rgbFrames int) *progressListener {
	return &progressListener{LogListener: extract.NewLogListener(logger, rgbFrames), pm: pm}
}

func (l *progressListener) synced(rgbIndex int) {
	if (rgbIndex+1)%extract.DefaultProgressEvery == 0 {
		l.pm.UpdateText(fmt.Sprintf("Synchronizing frames (%d/%d)", rgbIndex+1, l.Total))
	}
}

func (l *progressListener) Matched(rgbIndex int, pair timesync.Pair) {
	l.LogListener.Matched(rgbIndex, pair)
	l.matched++
	l.synced(rgbIndex)
}

func (l *progressListener) Unmatched(rgbIndex int, rec timesync.Record, bestSkew float64) {
	l.LogListener.Unmatched(rgbIndex, rec, bestSkew)
	l.synced(rgbIndex)
}

// startSaving moves the display from synchronizing to writing on the first pair outcome.
func (l *progressListener) startSaving() {
	if l.saving {
		return
	}
	l.saving = true
	utils.UncheckedError(l.pm.Complete(stepSync,
		fmt.Sprintf("Synchronized %d of %d RGB frames", l.matched, l.Total)))
	utils.UncheckedError(l.pm.Start(stepSave))
}

func (l *progressListener) Saved(index int, name string) {
	l.LogListener.Saved(index, name)
	l.startSaving()
	l.written++
	l.pm.UpdateText(fmt.Sprintf("Writing image pairs (%d written)", l.written))
}

func (l *progressListener) Skipped(index int, err error) {
	l.LogListener.Skipped(index, err)
	l.startSaving()
}

// Package cli contains the stereobag command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/stereobag/config"
	"go.viam.com/stereobag/logging"
	"go.viam.com/stereobag/ros"
)

// Flags.
const (
	flagDebug           = "debug"
	flagLogFile         = "log-file"
	flagConfig          = "config"
	flagRGBTopic        = "rgb-topic"
	flagIRTopic         = "ir-topic"
	flagOutputDir       = "output-dir"
	flagTimeThreshold   = "time-threshold"
	flagFlipRGB         = "flip-rgb"
	flagFlipIR          = "flip-ir"
	flagFrameInterval   = "frame-interval"
	flagFormat          = "format"
	flagWorkers         = "workers"
	flagTimestampSource = "timestamp-source"
	flagQuiet           = "quiet"
)

const (
	loggerMetadataKey  = "logger"
	logFileMetadataKey = "log-file"
	logFileMaxSizeMB   = 100
)

var app = &cli.App{
	Name:            "stereobag",
	Usage:           "extract synchronized RGB and IR image pairs from ROS bags",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  flagLogFile,
			Usage: "also write logs to `FILE`, rotated every 100MB",
		},
	},
	Before: setupLogger,
	After:  closeLogFile,
	Commands: []*cli.Command{
		{
			Name:      "extract",
			Usage:     "write time synchronized RGB and IR frames of a bag as numbered image pairs",
			UsageText: "stereobag extract <BAG_FILE> [other options]",
			ArgsUsage: "BAG_FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagConfig,
					Aliases: []string{"c"},
					Usage:   "load extraction settings from `FILE`; flags given here override it",
				},
				&cli.StringFlag{
					Name:  flagRGBTopic,
					Value: config.DefaultRGBTopic,
					Usage: "RGB image topic",
				},
				&cli.StringFlag{
					Name:  flagIRTopic,
					Value: config.DefaultIRTopic,
					Usage: "IR image topic",
				},
				&cli.StringFlag{
					Name:    flagOutputDir,
					Aliases: []string{"o"},
					Value:   config.DefaultOutputDir,
					Usage:   "directory receiving rgb/ and ir/",
				},
				&cli.Float64Flag{
					Name:  flagTimeThreshold,
					Value: config.DefaultTimeThreshold,
					Usage: "largest accepted RGB/IR skew in seconds",
				},
				&cli.BoolFlag{
					Name:  flagFlipRGB,
					Usage: "mirror RGB images horizontally",
				},
				&cli.BoolFlag{
					Name:  flagFlipIR,
					Usage: "mirror IR images horizontally",
				},
				&cli.IntFlag{
					Name:  flagFrameInterval,
					Value: config.DefaultFrameInterval,
					Usage: "keep every Nth synchronized pair",
				},
				&cli.StringFlag{
					Name:  flagFormat,
					Value: config.DefaultFormat,
					Usage: "output image format (png, bmp, tif, tiff, ppm, qoi)",
				},
				&cli.IntFlag{
					Name:  flagWorkers,
					Value: config.DefaultWorkers,
					Usage: "number of pairs decoded concurrently",
				},
				&cli.StringFlag{
					Name:  flagTimestampSource,
					Value: string(ros.TimestampBag),
					Usage: "use bag record times (bag) or message header stamps (header)",
				},
				&cli.BoolFlag{
					Name:    flagQuiet,
					Aliases: []string{"q"},
					Usage:   "hide progress output",
				},
			},
			Action: ExtractAction,
		},
		{
			Name:      "inspect",
			Usage:     "list the topics of a bag and suggest an extract command",
			UsageText: "stereobag inspect <BAG_FILE>",
			ArgsUsage: "BAG_FILE",
			Action:    InspectAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func setupLogger(c *cli.Context) error {
	logger := logging.NewBlankLogger("stereobag")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(logging.WARN)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	if path := c.String(flagLogFile); path != "" {
		fileAppender := logging.NewFileAppender(path, logFileMaxSizeMB)
		logger.AddAppender(fileAppender)
		c.App.Metadata[logFileMetadataKey] = fileAppender
	}
	c.App.Metadata[loggerMetadataKey] = logger
	return nil
}

func closeLogFile(c *cli.Context) error {
	fileAppender, ok := c.App.Metadata[logFileMetadataKey].(*logging.FileAppender)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, logFileMetadataKey)
	return fileAppender.Close()
}

func loggerFromContext(c *cli.Context) logging.Logger {
	if logger, ok := c.App.Metadata[loggerMetadataKey].(logging.Logger); ok {
		return logger
	}
	return logging.Global()
}

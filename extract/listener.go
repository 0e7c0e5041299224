package extract

import (
	"go.viam.com/stereobag/logging"
	"go.viam.com/stereobag/timesync"
)

// DefaultProgressEvery is how many events pass between progress lines.
const DefaultProgressEvery = 50

// LogListener logs every event at debug level and progress at info level.
type LogListener struct {
	Logger logging.Logger
	// Total is the number of RGB frames, used in progress lines. Every defaults to
	// DefaultProgressEvery.
	Total int
	Every int

	saved int
}

// NewLogListener returns a LogListener reporting progress out of total RGB frames.
func NewLogListener(logger logging.Logger, total int) *LogListener {
	return &LogListener{Logger: logger, Total: total, Every: DefaultProgressEvery}
}

func (l *LogListener) every() int {
	if l.Every <= 0 {
		return DefaultProgressEvery
	}
	return l.Every
}

func (l *LogListener) progress(rgbIndex int) {
	if (rgbIndex+1)%l.every() == 0 {
		l.Logger.Infof("synchronized %d/%d rgb frames", rgbIndex+1, l.Total)
	}
}

// Matched implements timesync.Listener.
func (l *LogListener) Matched(rgbIndex int, pair timesync.Pair) {
	l.Logger.Debugw("matched",
		"rgb_index", rgbIndex, "ir_index", pair.IRIndex, "skew_ms", pair.Skew*1000)
	l.progress(rgbIndex)
}

// Unmatched implements timesync.Listener.
func (l *LogListener) Unmatched(rgbIndex int, rec timesync.Record, bestSkew float64) {
	l.Logger.Debugw("no ir frame within threshold",
		"rgb_index", rgbIndex, "timestamp", rec.Timestamp, "best_skew_ms", bestSkew*1000)
	l.progress(rgbIndex)
}

// Saved implements Listener.
func (l *LogListener) Saved(index int, name string) {
	l.saved++
	l.Logger.Debugw("saved pair", "pair", index, "name", name)
	if l.saved%l.every() == 0 {
		l.Logger.Infof("saved %d image pairs", l.saved)
	}
}

// Skipped implements Listener.
func (l *LogListener) Skipped(index int, err error) {
	l.Logger.Debugw("skipped pair", "pair", index, "error", err)
}

// Package extract turns two image streams into numbered, co-registered image pairs.
//
// An Extractor synchronizes the streams, keeps every Nth pair, decodes and optionally mirrors
// both images of each kept pair, and hands them to a PairWriter under a shared four digit name.
// Names count saved pairs only, so pairs that fail to decode or write leave no gaps.
package extract

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/stereobag/config"
	"go.viam.com/stereobag/logging"
	"go.viam.com/stereobag/rimage"
	"go.viam.com/stereobag/timesync"
)

var (
	// ErrEmptyStream is returned when either input stream has no records.
	ErrEmptyStream = errors.New("no messages found in one or both topics")
	// ErrNoPairs is returned when no RGB record has an IR record within the threshold.
	ErrNoPairs = errors.New("no synchronized pairs found")
)

// A Listener receives synchronization events followed by one Saved or Skipped event per
// selected pair, in order.
type Listener interface {
	timesync.Listener
	// Saved reports that the pair at position index of the synchronized sequence was written
	// as name.
	Saved(index int, name string)
	// Skipped reports that the pair at position index could not be decoded or written.
	Skipped(index int, err error)
}

// Summary describes a finished run.
type Summary struct {
	RGBFrames int
	IRFrames  int
	// Pairs is the number of synchronized pairs, Selected those kept by the frame interval.
	Pairs    int
	Selected int
	Saved    int
	Skipped  int
	Stats    timesync.Stats
}

// SuccessRate is the fraction of RGB frames that ended up in a saved pair.
func (s *Summary) SuccessRate() float64 {
	if s.RGBFrames == 0 {
		return 0
	}
	return float64(s.Saved) / float64(s.RGBFrames)
}

// An Extractor runs one extraction.
type Extractor struct {
	Config   config.Config
	Writer   PairWriter
	Listener Listener
	// Logger is optional; a nil Logger discards output.
	Logger logging.Logger
}

func (e *Extractor) logger() logging.Logger {
	if e.Logger == nil {
		return logging.NewBlankLogger("extract")
	}
	return e.Logger
}

// Subsample keeps the pairs whose position is a multiple of interval.
func Subsample(pairs []timesync.Pair, interval int) []timesync.Pair {
	if interval <= 1 {
		return pairs
	}
	selected := make([]timesync.Pair, 0, (len(pairs)+interval-1)/interval)
	for i := 0; i < len(pairs); i += interval {
		selected = append(selected, pairs[i])
	}
	return selected
}

// PairName is the file name, without extension, of the nth saved pair (starting at 1).
func PairName(n int) string {
	return fmt.Sprintf("%04d", n)
}

type decodedPair struct {
	rgb *rimage.DecodedImage
	ir  *rimage.DecodedImage
	err error
}

// Run synchronizes rgb with ir and writes the selected pairs. Per-pair failures are logged and
// skipped; an error is returned only when the whole run cannot produce output or ctx is done.
func (e *Extractor) Run(ctx context.Context, rgb, ir []timesync.Record) (*Summary, error) {
	summary := &Summary{RGBFrames: len(rgb), IRFrames: len(ir)}
	logger := e.logger()
	if len(rgb) == 0 || len(ir) == 0 {
		return summary, errors.Wrapf(ErrEmptyStream, "%d rgb and %d ir frames", len(rgb), len(ir))
	}
	if !timesync.Sorted(rgb) {
		logger.Warn("rgb timestamps are not in order; matches may be missed")
	}
	if !timesync.Sorted(ir) {
		logger.Warn("ir timestamps are not in order; matches may be missed")
	}

	syncer := timesync.Synchronizer{
		Threshold: e.Config.TimeThreshold,
		LookBack:  e.Config.LookBack,
	}
	if e.Listener != nil {
		syncer.Listener = e.Listener
	}
	pairs := syncer.Synchronize(rgb, ir)
	summary.Pairs = len(pairs)
	if len(pairs) == 0 {
		return summary, errors.Wrapf(ErrNoPairs, "within %vs; try a larger time threshold", e.Config.TimeThreshold)
	}
	skew, err := timesync.SkewStats(pairs)
	if err != nil {
		return summary, err
	}
	summary.Stats = skew
	logger.Infow("synchronized",
		"pairs", len(pairs), "mean_skew_ms", skew.Mean*1000, "max_skew_ms", skew.Max*1000)

	interval := max(e.Config.FrameInterval, 1)
	selected := Subsample(pairs, interval)
	summary.Selected = len(selected)

	workers := max(e.Config.Workers, 1)
	batchSize := workers * 4
	warned := map[string]bool{}
	next := 1
	for start := 0; start < len(selected); start += batchSize {
		batch := selected[start:min(start+batchSize, len(selected))]
		decoded, err := e.decodeBatch(ctx, batch, workers)
		if err != nil {
			return summary, err
		}

		for i, result := range decoded {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			index := (start + i) * interval
			if result.err == nil {
				warnGuessed(logger, warned, batch[i].RGB.Encoding, result.rgb)
				warnGuessed(logger, warned, batch[i].IR.Encoding, result.ir)
				name := PairName(next)
				result.err = e.Writer.WritePair(name, result.rgb, result.ir)
				if result.err == nil {
					next++
					summary.Saved++
					if e.Listener != nil {
						e.Listener.Saved(index, name)
					}
					continue
				}
			}

			summary.Skipped++
			logger.Warnw("skipping image pair", "pair", index, "error", result.err)
			if e.Listener != nil {
				e.Listener.Skipped(index, result.err)
			}
		}
	}
	return summary, nil
}

// decodeBatch decodes pairs concurrently. Results keep the order of pairs.
func (e *Extractor) decodeBatch(ctx context.Context, pairs []timesync.Pair, workers int) ([]decodedPair, error) {
	results := make([]decodedPair, len(pairs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := range pairs {
		i := i
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = e.decodePair(pairs[i])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func (e *Extractor) decodePair(pair timesync.Pair) decodedPair {
	rgb, err := decodeRecord(pair.RGB, e.Config.FlipRGB)
	if err != nil {
		return decodedPair{err: errors.Wrapf(err, "rgb frame %d", pair.RGBIndex)}
	}
	ir, err := decodeRecord(pair.IR, e.Config.FlipIR)
	if err != nil {
		return decodedPair{err: errors.Wrapf(err, "ir frame %d", pair.IRIndex)}
	}
	return decodedPair{rgb: rgb, ir: ir}
}

func decodeRecord(rec timesync.Record, flip bool) (*rimage.DecodedImage, error) {
	img, err := rimage.Decode(rec.Data, rec.Encoding, rec.Width, rec.Height)
	if err != nil {
		return nil, err
	}
	if !flip {
		return img, nil
	}
	return rimage.FlipHorizontal(img)
}

func warnGuessed(logger logging.Logger, warned map[string]bool, encoding string, img *rimage.DecodedImage) {
	if !img.Guessed || warned[encoding] {
		return
	}
	warned[encoding] = true
	logger.Warnw("unrecognized encoding, guessed layout from payload size",
		"encoding", encoding, "channels", img.Channels)
}

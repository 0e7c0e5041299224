package extract

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/stereobag/config"
	"go.viam.com/stereobag/logging"
	"go.viam.com/stereobag/rimage"
	"go.viam.com/stereobag/timesync"
)

type writtenPair struct {
	name string
	rgb  *rimage.DecodedImage
	ir   *rimage.DecodedImage
}

type memWriter struct {
	pairs  []writtenPair
	failOn map[int]bool
	calls  int
}

func (w *memWriter) WritePair(name string, rgb, ir *rimage.DecodedImage) error {
	call := w.calls
	w.calls++
	if w.failOn[call] {
		return errors.New("disk full")
	}
	w.pairs = append(w.pairs, writtenPair{name, rgb, ir})
	return nil
}

func (w *memWriter) names() []string {
	names := make([]string, 0, len(w.pairs))
	for _, p := range w.pairs {
		names = append(names, p.name)
	}
	return names
}

type recordingListener struct {
	matched   []int
	unmatched []int
	saved     []string
	skipped   []int
}

func (l *recordingListener) Matched(rgbIndex int, _ timesync.Pair) {
	l.matched = append(l.matched, rgbIndex)
}

func (l *recordingListener) Unmatched(rgbIndex int, _ timesync.Record, _ float64) {
	l.unmatched = append(l.unmatched, rgbIndex)
}

func (l *recordingListener) Saved(_ int, name string) {
	l.saved = append(l.saved, name)
}

func (l *recordingListener) Skipped(index int, _ error) {
	l.skipped = append(l.skipped, index)
}

// monoStreams returns n RGB and n IR 2x1 mono8 frames 100ms apart, IR trailing by 5ms. Each
// frame's pixels are {i, i+100}.
func monoStreams(n int) ([]timesync.Record, []timesync.Record) {
	rgb := make([]timesync.Record, 0, n)
	ir := make([]timesync.Record, 0, n)
	for i := 0; i < n; i++ {
		ts := float64(i) * 0.1
		data := []byte{byte(i), byte(i + 100)}
		rgb = append(rgb, timesync.Record{Timestamp: ts, Encoding: "mono8", Width: 2, Height: 1, Data: data})
		ir = append(ir, timesync.Record{Timestamp: ts + 0.005, Encoding: "mono8", Width: 2, Height: 1, Data: data})
	}
	return rgb, ir
}

func newExtractor(t *testing.T, cfg config.Config) (*Extractor, *memWriter, *recordingListener) {
	t.Helper()
	w := &memWriter{}
	l := &recordingListener{}
	return &Extractor{Config: cfg, Writer: w, Listener: l, Logger: logging.NewTestLogger(t)}, w, l
}

func TestRunFrameInterval(t *testing.T) {
	cfg := config.Default()
	cfg.FrameInterval = 3
	e, w, l := newExtractor(t, cfg)
	rgb, ir := monoStreams(10)

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.RGBFrames, test.ShouldEqual, 10)
	test.That(t, summary.IRFrames, test.ShouldEqual, 10)
	test.That(t, summary.Pairs, test.ShouldEqual, 10)
	test.That(t, summary.Selected, test.ShouldEqual, 4)
	test.That(t, summary.Saved, test.ShouldEqual, 4)
	test.That(t, summary.Skipped, test.ShouldEqual, 0)
	test.That(t, summary.SuccessRate(), test.ShouldAlmostEqual, 0.4)
	test.That(t, summary.Stats.Count, test.ShouldEqual, 10)
	test.That(t, summary.Stats.Max, test.ShouldAlmostEqual, 0.005, 1e-9)

	test.That(t, w.names(), test.ShouldResemble, []string{"0001", "0002", "0003", "0004"})
	for i, p := range w.pairs {
		test.That(t, p.rgb.Pix[0], test.ShouldEqual, byte(i*3))
	}
	test.That(t, l.matched, test.ShouldHaveLength, 10)
	test.That(t, l.saved, test.ShouldResemble, w.names())
}

func TestRunSkipsUndecodablePairWithoutGap(t *testing.T) {
	e, w, l := newExtractor(t, config.Default())
	rgb, ir := monoStreams(5)
	rgb[1].Data = []byte{1, 2, 3}

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Pairs, test.ShouldEqual, 5)
	test.That(t, summary.Saved, test.ShouldEqual, 4)
	test.That(t, summary.Skipped, test.ShouldEqual, 1)
	test.That(t, w.names(), test.ShouldResemble, []string{"0001", "0002", "0003", "0004"})
	test.That(t, w.pairs[1].rgb.Pix[0], test.ShouldEqual, byte(2))
	test.That(t, l.skipped, test.ShouldResemble, []int{1})
}

func TestRunSkipsFailedWrite(t *testing.T) {
	e, w, l := newExtractor(t, config.Default())
	w.failOn = map[int]bool{0: true}
	rgb, ir := monoStreams(3)

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Saved, test.ShouldEqual, 2)
	test.That(t, summary.Skipped, test.ShouldEqual, 1)
	// the name is reused by the next pair that is written
	test.That(t, w.names(), test.ShouldResemble, []string{"0001", "0002"})
	test.That(t, w.pairs[0].rgb.Pix[0], test.ShouldEqual, byte(1))
	test.That(t, l.skipped, test.ShouldResemble, []int{0})
}

func TestRunFlips(t *testing.T) {
	cfg := config.Default()
	cfg.FlipIR = true
	e, w, _ := newExtractor(t, cfg)
	rgb, ir := monoStreams(1)

	_, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.pairs, test.ShouldHaveLength, 1)
	test.That(t, w.pairs[0].rgb.Pix, test.ShouldResemble, []byte{0, 100})
	test.That(t, w.pairs[0].ir.Pix, test.ShouldResemble, []byte{100, 0})
}

func TestRunParallelKeepsOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 4
	e, w, _ := newExtractor(t, cfg)
	rgb, ir := monoStreams(37)

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Saved, test.ShouldEqual, 37)
	for i, p := range w.pairs {
		test.That(t, p.name, test.ShouldEqual, PairName(i+1))
		test.That(t, p.rgb.Pix[0], test.ShouldEqual, byte(i))
		test.That(t, p.ir.Pix[0], test.ShouldEqual, byte(i))
	}
}

func TestRunWarnsOncePerGuessedEncoding(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	w := &memWriter{}
	e := &Extractor{Config: config.Default(), Writer: w, Logger: logger}
	rgb, ir := monoStreams(3)
	for i := range rgb {
		rgb[i].Encoding = "8UC3-ish"
	}

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Saved, test.ShouldEqual, 3)
	test.That(t, w.pairs[0].rgb.Guessed, test.ShouldBeTrue)
	test.That(t, logs.FilterMessage("unrecognized encoding, guessed layout from payload size").Len(), test.ShouldEqual, 1)
}

func TestRunWithoutLoggerOrListener(t *testing.T) {
	w := &memWriter{}
	e := &Extractor{Config: config.Default(), Writer: w}
	rgb, ir := monoStreams(4)
	// out of order so the unsorted warning is logged too
	rgb[0], rgb[1] = rgb[1], rgb[0]

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Saved, test.ShouldBeGreaterThan, 0)
	test.That(t, w.pairs, test.ShouldHaveLength, summary.Saved)
	test.That(t, e.Logger, test.ShouldBeNil)
}

func TestRunEmptyStream(t *testing.T) {
	e, w, _ := newExtractor(t, config.Default())
	rgb, _ := monoStreams(3)

	summary, err := e.Run(context.Background(), rgb, nil)
	test.That(t, errors.Is(err, ErrEmptyStream), test.ShouldBeTrue)
	test.That(t, summary.RGBFrames, test.ShouldEqual, 3)
	test.That(t, w.pairs, test.ShouldBeEmpty)

	_, err = e.Run(context.Background(), nil, rgb)
	test.That(t, errors.Is(err, ErrEmptyStream), test.ShouldBeTrue)
}

func TestRunNoPairs(t *testing.T) {
	e, w, l := newExtractor(t, config.Default())
	rgb, ir := monoStreams(3)
	for i := range ir {
		ir[i].Timestamp += 100
	}

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, errors.Is(err, ErrNoPairs), test.ShouldBeTrue)
	test.That(t, summary.Pairs, test.ShouldEqual, 0)
	test.That(t, w.pairs, test.ShouldBeEmpty)
	test.That(t, l.unmatched, test.ShouldResemble, []int{0, 1, 2})
}

func TestRunCanceled(t *testing.T) {
	e, w, _ := newExtractor(t, config.Default())
	rgb, ir := monoStreams(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, rgb, ir)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, w.pairs, test.ShouldBeEmpty)
}

func TestRunUnsortedStillPairs(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	e := &Extractor{Config: config.Default(), Writer: &memWriter{}, Logger: logger}
	rgb, ir := monoStreams(3)
	rgb[0], rgb[2] = rgb[2], rgb[0]

	summary, err := e.Run(context.Background(), rgb, ir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Pairs, test.ShouldBeGreaterThan, 0)
	test.That(t, logs.FilterMessage("rgb timestamps are not in order; matches may be missed").Len(), test.ShouldEqual, 1)
}

func TestSubsample(t *testing.T) {
	pairs := make([]timesync.Pair, 7)
	for i := range pairs {
		pairs[i].RGBIndex = i
	}
	selected := Subsample(pairs, 3)
	test.That(t, selected, test.ShouldHaveLength, 3)
	test.That(t, selected[2].RGBIndex, test.ShouldEqual, 6)
	test.That(t, Subsample(pairs, 1), test.ShouldHaveLength, 7)
	test.That(t, PairName(12), test.ShouldEqual, "0012")
}

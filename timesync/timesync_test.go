package timesync

import (
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"
)

func records(timestamps ...float64) []Record {
	out := make([]Record, 0, len(timestamps))
	for _, ts := range timestamps {
		out = append(out, Record{Timestamp: ts, Encoding: "mono8", Width: 1, Height: 1, Data: []byte{0}})
	}
	return out
}

type recordingListener struct {
	matched   []int
	unmatched []int
	bestSkews []float64
}

func (l *recordingListener) Matched(rgbIndex int, _ Pair) {
	l.matched = append(l.matched, rgbIndex)
}

func (l *recordingListener) Unmatched(rgbIndex int, _ Record, bestSkew float64) {
	l.unmatched = append(l.unmatched, rgbIndex)
	l.bestSkews = append(l.bestSkews, bestSkew)
}

func TestSynchronizeEndToEnd(t *testing.T) {
	rgb := records(0.000, 0.100, 0.200)
	ir := records(0.001, 0.099, 0.500)

	listener := &recordingListener{}
	s := Synchronizer{Threshold: 0.03, LookBack: DefaultLookBack, Listener: listener}
	pairs := s.Synchronize(rgb, ir)

	test.That(t, pairs, test.ShouldHaveLength, 2)
	test.That(t, pairs[0].RGB.Timestamp, test.ShouldEqual, 0.000)
	test.That(t, pairs[0].IR.Timestamp, test.ShouldEqual, 0.001)
	test.That(t, pairs[0].Skew, test.ShouldAlmostEqual, 0.001)
	test.That(t, pairs[1].RGB.Timestamp, test.ShouldEqual, 0.100)
	test.That(t, pairs[1].IR.Timestamp, test.ShouldEqual, 0.099)
	test.That(t, pairs[1].Skew, test.ShouldAlmostEqual, 0.001)
	test.That(t, pairs[1].IRIndex, test.ShouldEqual, 1)

	test.That(t, listener.matched, test.ShouldResemble, []int{0, 1})
	test.That(t, listener.unmatched, test.ShouldResemble, []int{2})
	test.That(t, listener.bestSkews[0], test.ShouldAlmostEqual, 0.101)
}

func TestSynchronizeEmpty(t *testing.T) {
	test.That(t, Synchronize(nil, records(1), 0.03), test.ShouldBeEmpty)

	listener := &recordingListener{}
	s := Synchronizer{Threshold: 0.03, LookBack: DefaultLookBack, Listener: listener}
	test.That(t, s.Synchronize(records(1, 2), nil), test.ShouldBeEmpty)
	test.That(t, listener.unmatched, test.ShouldResemble, []int{0, 1})
	test.That(t, math.IsInf(listener.bestSkews[0], 1), test.ShouldBeTrue)
}

func TestSynchronizeIRReuse(t *testing.T) {
	// A slow IR stream: both RGB frames are nearest to the same IR frame.
	rgb := records(1.00, 1.01)
	ir := records(0.50, 1.005, 1.60)

	pairs := Synchronize(rgb, ir, 0.03)
	test.That(t, pairs, test.ShouldHaveLength, 2)
	test.That(t, pairs[0].IRIndex, test.ShouldEqual, 1)
	test.That(t, pairs[1].IRIndex, test.ShouldEqual, 1)
}

func TestSynchronizeTieBreak(t *testing.T) {
	// 1.0 is equally far from 0.75 and 1.25; the earlier IR record wins.
	rgb := records(1.0)
	ir := records(0.75, 1.25)

	pairs := Synchronize(rgb, ir, 0.5)
	test.That(t, pairs, test.ShouldHaveLength, 1)
	test.That(t, pairs[0].IRIndex, test.ShouldEqual, 0)

	// Duplicate IR timestamps: first one wins.
	pairs = Synchronize(records(2.0), records(2.0, 2.0, 2.0), 0)
	test.That(t, pairs, test.ShouldHaveLength, 1)
	test.That(t, pairs[0].IRIndex, test.ShouldEqual, 0)
	test.That(t, pairs[0].Skew, test.ShouldEqual, 0.0)
}

func TestSynchronizeLookBack(t *testing.T) {
	// The second RGB frame is nearest to an IR frame behind the first frame's best match.
	rgb := records(1.00, 0.901)
	ir := records(0.90, 0.91, 0.92, 0.93, 0.94, 1.00)

	pairs := Synchronize(rgb, ir, 0.01)
	test.That(t, pairs, test.ShouldHaveLength, 2)
	test.That(t, pairs[0].IRIndex, test.ShouldEqual, 5)
	// The scan restarts at index 0 (5 - 5).
	test.That(t, pairs[1].IRIndex, test.ShouldEqual, 0)

	// Without look back the scan starts at the previous best and only finds 1.00.
	s := Synchronizer{Threshold: 0.01, LookBack: 0}
	pairs = s.Synchronize(rgb, ir)
	test.That(t, pairs, test.ShouldHaveLength, 1)
	test.That(t, pairs[0].RGBIndex, test.ShouldEqual, 0)
}

func TestSynchronizeZeroThreshold(t *testing.T) {
	pairs := Synchronize(records(1, 2, 3), records(1, 2.5, 3), 0)
	test.That(t, pairs, test.ShouldHaveLength, 2)
	test.That(t, pairs[0].RGBIndex, test.ShouldEqual, 0)
	test.That(t, pairs[1].RGBIndex, test.ShouldEqual, 2)
}

func randomStream(rng *rand.Rand, n int, period, jitter float64) []Record {
	timestamps := make([]float64, n)
	ts := rng.Float64() * period
	for i := range timestamps {
		ts += period + (rng.Float64()-0.5)*jitter
		timestamps[i] = ts
	}
	return records(timestamps...)
}

func TestSynchronizeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		rgb := randomStream(rng, 200, 1.0/30, 0.005)
		ir := randomStream(rng, 150, 1.0/25, 0.005)
		threshold := rng.Float64() * 0.03

		pairs := Synchronize(rgb, ir, threshold)
		for i, p := range pairs {
			test.That(t, p.Skew, test.ShouldBeLessThanOrEqualTo, threshold)
			test.That(t, p.Skew, test.ShouldEqual, math.Abs(p.RGB.Timestamp-p.IR.Timestamp))
			test.That(t, p.RGB.Timestamp, test.ShouldEqual, rgb[p.RGBIndex].Timestamp)
			test.That(t, p.IR.Timestamp, test.ShouldEqual, ir[p.IRIndex].Timestamp)
			if i > 0 {
				test.That(t, p.RGB.Timestamp, test.ShouldBeGreaterThanOrEqualTo, pairs[i-1].RGB.Timestamp)
			}
		}

		again := Synchronize(rgb, ir, threshold)
		test.That(t, again, test.ShouldResemble, pairs)
	}
}

func TestSorted(t *testing.T) {
	test.That(t, Sorted(nil), test.ShouldBeTrue)
	test.That(t, Sorted(records(1, 1, 2)), test.ShouldBeTrue)
	test.That(t, Sorted(records(1, 3, 2)), test.ShouldBeFalse)
}

func TestSkewStats(t *testing.T) {
	_, err := SkewStats(nil)
	test.That(t, err, test.ShouldNotBeNil)

	st, err := SkewStats([]Pair{{Skew: 0.001}, {Skew: 0.003}, {Skew: 0.002}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.Count, test.ShouldEqual, 3)
	test.That(t, st.Mean, test.ShouldAlmostEqual, 0.002)
	test.That(t, st.Median, test.ShouldAlmostEqual, 0.002)
	test.That(t, st.Max, test.ShouldEqual, 0.003)
}

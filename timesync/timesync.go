// Package timesync pairs frames from two independently clocked image streams by nearest timestamp.
//
// Matching is a two cursor merge over streams sorted by timestamp. For every RGB record the IR
// cursor restarts a few records behind the previous best match and scans forward until IR
// timestamps pass the skew threshold. The same IR record may be chosen for several RGB records;
// no one-to-one assignment is attempted.
package timesync

import (
	"math"
)

// DefaultLookBack is how many IR records behind the last best match a scan starts.
const DefaultLookBack = 5

// Record is one captured frame of one topic.
type Record struct {
	// Timestamp in seconds on the stream's own clock.
	Timestamp float64
	Encoding  string
	Width     int
	Height    int
	Data      []byte
}

// Pair is an RGB record matched with its nearest IR record.
type Pair struct {
	RGB Record
	IR  Record
	// RGBIndex and IRIndex are the positions of the records in their input sequences.
	RGBIndex int
	IRIndex  int
	// Skew is |RGB.Timestamp - IR.Timestamp| in seconds.
	Skew float64
}

// A Listener is told about every RGB record's outcome, in RGB order.
type Listener interface {
	Matched(rgbIndex int, pair Pair)
	// Unmatched reports an RGB record with no IR record within the threshold. bestSkew is the
	// smallest skew seen during the scan, or +Inf if there was nothing to scan.
	Unmatched(rgbIndex int, rgb Record, bestSkew float64)
}

// A Synchronizer matches RGB records to IR records.
type Synchronizer struct {
	// Threshold is the largest accepted skew in seconds.
	Threshold float64
	// LookBack is how far behind the previous best IR index each scan begins.
	LookBack int
	// Listener, when set, receives an event per RGB record.
	Listener Listener
}

// Synchronize matches rgb against ir with the default look back.
func Synchronize(rgb, ir []Record, threshold float64) []Pair {
	s := Synchronizer{Threshold: threshold, LookBack: DefaultLookBack}
	return s.Synchronize(rgb, ir)
}

// Synchronize returns the matched pairs in RGB order. Both inputs must be sorted by
// non-decreasing timestamp; they are not re-sorted.
func (s *Synchronizer) Synchronize(rgb, ir []Record) []Pair {
	var pairs []Pair
	best := 0
	for rgbIdx, rgbRec := range rgb {
		found := -1
		minSkew := math.Inf(1)
		limit := rgbRec.Timestamp + s.Threshold

		for irIdx := max(0, best-s.LookBack); irIdx < len(ir); irIdx++ {
			irTime := ir[irIdx].Timestamp
			if skew := math.Abs(rgbRec.Timestamp - irTime); skew < minSkew {
				minSkew = skew
				found = irIdx
				best = irIdx
			}
			if irTime > limit {
				break
			}
		}

		if found < 0 || minSkew > s.Threshold {
			if s.Listener != nil {
				s.Listener.Unmatched(rgbIdx, rgbRec, minSkew)
			}
			continue
		}

		pair := Pair{
			RGB:      rgbRec,
			IR:       ir[found],
			RGBIndex: rgbIdx,
			IRIndex:  found,
			Skew:     minSkew,
		}
		pairs = append(pairs, pair)
		if s.Listener != nil {
			s.Listener.Matched(rgbIdx, pair)
		}
	}
	return pairs
}

// Sorted reports whether records are in non-decreasing timestamp order.
func Sorted(records []Record) bool {
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp < records[i-1].Timestamp {
			return false
		}
	}
	return true
}

package timesync

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Stats summarizes the skews of a set of pairs, in seconds.
type Stats struct {
	Count  int
	Mean   float64
	Median float64
	Max    float64
}

// SkewStats computes skew statistics over pairs. It errors on an empty input.
func SkewStats(pairs []Pair) (Stats, error) {
	if len(pairs) == 0 {
		return Stats{}, errors.New("no pairs to compute skew statistics over")
	}
	skews := make(stats.Float64Data, 0, len(pairs))
	for _, p := range pairs {
		skews = append(skews, p.Skew)
	}

	mean, err := skews.Mean()
	if err != nil {
		return Stats{}, errors.Wrap(err, "mean skew")
	}
	median, err := skews.Median()
	if err != nil {
		return Stats{}, errors.Wrap(err, "median skew")
	}
	maxSkew, err := skews.Max()
	if err != nil {
		return Stats{}, errors.Wrap(err, "max skew")
	}
	return Stats{Count: len(pairs), Mean: mean, Median: median, Max: maxSkew}, nil
}

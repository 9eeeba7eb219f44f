package metrics

import "errors"

// ErrNoSamples is returned by Compute when nothing has been accumulated.
var ErrNoSamples = errors.New("metric has no accumulated samples")

// Accumulator is the running state of a metric: a statistic summed over
// samples and the number of samples seen. Two accumulators from different
// workers combine with Merge.
type Accumulator struct {
	Sum   float64 `json:"sum"`
	Count int64   `json:"count"`
}

// Add folds a batch contribution into the accumulator.
func (a *Accumulator) Add(sum float64, count int) {
	a.Sum += sum
	a.Count += int64(count)
}

// Compute returns Sum/Count, or ErrNoSamples when Count is zero.
func (a Accumulator) Compute() (float64, error) {
	if a.Count == 0 {
		return 0, ErrNoSamples
	}
	return a.Sum / float64(a.Count), nil
}

// Reset clears the accumulator for a new epoch.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Merge returns the sum-reduction of two accumulators.
func Merge(a, b Accumulator) Accumulator {
	return Accumulator{Sum: a.Sum + b.Sum, Count: a.Count + b.Count}
}

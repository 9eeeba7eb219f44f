package metrics

import "github.com/Noofbiz/forecasteval/forecast"

// ValidFilter drops the samples that cannot be scored. A sample is kept when
// at least one of its steps is valid; when keepInvalidFinalStep is false its
// final step must be valid as well. A nil mask keeps every sample. The
// result may hold zero samples.
func ValidFilter(b *forecast.Batch, keepInvalidFinalStep bool) *forecast.Batch {
	if b.Mask == nil {
		return b
	}
	keep := make([]bool, b.Mask.Samples)
	for s := range keep {
		last := b.Mask.LastValid(s, b.Mask.Steps)
		if last < 0 {
			continue
		}
		keep[s] = keepInvalidFinalStep || last == b.Mask.Steps-1
	}
	return b.Select(keep)
}

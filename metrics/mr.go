package metrics

import (
	"fmt"
	"math"

	"github.com/Noofbiz/forecasteval/forecast"

	"gonum.org/v1/gonum/floats"
)

// DefaultMissThreshold is the distance used when MROptions.Threshold is zero.
const DefaultMissThreshold = 2.0

// MROptions controls one miss-rate update.
type MROptions struct {
	// DropInvalidFinalStep discards samples whose final step is invalid.
	// The zero value keeps them.
	DropInvalidFinalStep bool

	// Criterion picks the error compared against Threshold. The zero value
	// is MissFDE.
	Criterion MissCriterion

	// Threshold is the distance above which a sample is a miss. Zero means
	// DefaultMissThreshold; negative or NaN values are rejected.
	Threshold float64
}

// MR accumulates the number of samples whose best kept mode still misses the
// target by more than the threshold, and reports the miss rate.
type MR struct {
	maxGuesses int
	state      Accumulator
}

// NewMR creates a miss-rate metric scoring the maxGuesses most probable modes.
func NewMR(maxGuesses int) (*MR, error) {
	k, err := resolveMaxGuesses(maxGuesses)
	if err != nil {
		return nil, err
	}
	return &MR{maxGuesses: k}, nil
}

// Update scores b and folds the result into the running state. A sample
// whose error equals the threshold exactly is not a miss.
func (m *MR) Update(b *forecast.Batch, opts MROptions) error {
	switch opts.Criterion {
	case MissFDE, MissMAXDE:
	default:
		return &forecast.ConfigError{Option: "criterion", Value: opts.Criterion.String()}
	}
	threshold := opts.Threshold
	switch {
	case threshold == 0:
		threshold = DefaultMissThreshold
	case threshold < 0 || math.IsNaN(threshold):
		return fmt.Errorf("miss threshold must be positive, got %g", threshold)
	}
	fb, predK, _, err := prepare(b, !opts.DropInvalidFinalStep, m.maxGuesses)
	if err != nil {
		return err
	}

	misses := 0
	for s := 0; s < predK.Samples; s++ {
		var bestErr float64
		switch opts.Criterion {
		case MissFDE:
			bestErr = floats.Min(finalDisplacements(predK, fb.Target, fb.Mask, s))
		case MissMAXDE:
			dist := maskedDisplacements(predK, fb.Target, fb.Mask, s)
			worst := make([]float64, len(dist))
			for mode, row := range dist {
				worst[mode] = floats.Max(row)
			}
			bestErr = floats.Min(worst)
		}
		if bestErr > threshold {
			misses++
		}
	}
	m.state.Add(float64(misses), predK.Samples)
	return nil
}

// Compute returns the accumulated miss rate in [0, 1].
func (m *MR) Compute() (float64, error) { return m.state.Compute() }

// Reset clears the running state.
func (m *MR) Reset() { m.state.Reset() }

// State returns a copy of the running state.
func (m *MR) State() Accumulator { return m.state }

// Merge folds another worker's state into this metric.
func (m *MR) Merge(other Accumulator) { m.state = Merge(m.state, other) }

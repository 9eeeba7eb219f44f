package metrics

import (
	"fmt"

	"github.com/Noofbiz/forecasteval/forecast"

	"gonum.org/v1/gonum/floats"
)

// DefaultMaxGuesses is the number of modes scored when a metric is built
// with maxGuesses zero.
const DefaultMaxGuesses = 6

// BrierOptions controls one Brier update.
type BrierOptions struct {
	// DropInvalidFinalStep discards samples whose final step is invalid.
	// The zero value keeps them.
	DropInvalidFinalStep bool

	// Criterion picks the best mode. The zero value is MinFDE.
	Criterion MinCriterion
}

// Brier accumulates (1 - p_best)^2, where p_best is the probability of the
// mode closest to the target, and reports its mean over samples.
type Brier struct {
	maxGuesses int
	state      Accumulator
}

// NewBrier creates a Brier metric scoring the maxGuesses most probable modes.
func NewBrier(maxGuesses int) (*Brier, error) {
	k, err := resolveMaxGuesses(maxGuesses)
	if err != nil {
		return nil, err
	}
	return &Brier{maxGuesses: k}, nil
}

// Update scores b and folds the result into the running state.
func (m *Brier) Update(b *forecast.Batch, opts BrierOptions) error {
	switch opts.Criterion {
	case MinFDE, MinADE:
	default:
		return &forecast.ConfigError{Option: "criterion", Value: opts.Criterion.String()}
	}
	fb, predK, probK, err := prepare(b, !opts.DropInvalidFinalStep, m.maxGuesses)
	if err != nil {
		return err
	}

	var sum float64
	for s := 0; s < predK.Samples; s++ {
		var best int
		switch opts.Criterion {
		case MinFDE:
			best = floats.MinIdx(finalDisplacements(predK, fb.Target, fb.Mask, s))
		case MinADE:
			dist := maskedDisplacements(predK, fb.Target, fb.Mask, s)
			totals := make([]float64, len(dist))
			for mode, row := range dist {
				totals[mode] = floats.Sum(row)
			}
			best = floats.MinIdx(totals)
		}
		d := 1 - probK.Row(s)[best]
		sum += d * d
	}
	m.state.Add(sum, predK.Samples)
	return nil
}

// Compute returns the mean accumulated Brier score.
func (m *Brier) Compute() (float64, error) { return m.state.Compute() }

// Reset clears the running state.
func (m *Brier) Reset() { m.state.Reset() }

// State returns a copy of the running state.
func (m *Brier) State() Accumulator { return m.state }

// Merge folds another worker's state into this metric.
func (m *Brier) Merge(other Accumulator) { m.state = Merge(m.state, other) }

func resolveMaxGuesses(k int) (int, error) {
	if k == 0 {
		return DefaultMaxGuesses, nil
	}
	if k < 0 {
		return 0, fmt.Errorf("max guesses must be positive, got %d", k)
	}
	return k, nil
}

// prepare validates b, drops unscorable samples and keeps the top modes.
func prepare(b *forecast.Batch, keepInvalidFinalStep bool, k int) (*forecast.Batch, *forecast.Prediction, *forecast.ModeProbability, error) {
	if err := b.Validate(); err != nil {
		return nil, nil, nil, err
	}
	fb := ValidFilter(b, keepInvalidFinalStep)
	predK, probK := TopK(k, fb.Pred, fb.Prob)
	return fb, predK, probK, nil
}

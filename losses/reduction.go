package losses

import (
	"github.com/Noofbiz/forecasteval/forecast"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reduction selects how a vector of per-element losses is collapsed.
type Reduction string

const (
	// ReductionMean averages the losses into a single value.
	ReductionMean Reduction = "mean"
	// ReductionSum adds the losses into a single value.
	ReductionSum Reduction = "sum"
	// ReductionNone returns the losses unchanged.
	ReductionNone Reduction = "none"
)

// ParseReduction validates s as a Reduction.
func ParseReduction(s string) (Reduction, error) {
	r := Reduction(s)
	if err := r.validate(); err != nil {
		return "", err
	}
	return r, nil
}

func (r Reduction) validate() error {
	switch r {
	case ReductionMean, ReductionSum, ReductionNone:
		return nil
	}
	return &forecast.ConfigError{Option: "reduction", Value: string(r)}
}

// Reduce applies r to values. Mean and sum return a one-element slice; none
// returns values itself. The mean of an empty vector is NaN.
func Reduce(values []float64, r Reduction) ([]float64, error) {
	switch r {
	case ReductionMean:
		return []float64{stat.Mean(values, nil)}, nil
	case ReductionSum:
		return []float64{floats.Sum(values)}, nil
	case ReductionNone:
		return values, nil
	}
	return nil, &forecast.ConfigError{Option: "reduction", Value: string(r)}
}

package losses

import (
	"math"

	"github.com/Noofbiz/forecasteval/forecast"
)

// DefaultEps is the variance floor used when GaussianNLLConfig.Eps is zero.
const DefaultEps = 1e-6

// halfLog2Pi is the constant added per element when Full is set.
var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

// GaussianNLLConfig configures a GaussianNLLLoss.
type GaussianNLLConfig struct {
	// Full adds the 0.5*log(2*pi) normalization constant to every element.
	Full bool

	// Eps is the lower clamp applied to variances. Zero means DefaultEps.
	Eps float64

	// Reduction applied by Forward. Empty means ReductionMean.
	Reduction Reduction
}

// GaussianNLLLoss is the per-coordinate negative log-likelihood of a target
// under an axis-aligned Gaussian with predicted location and variance.
type GaussianNLLLoss struct {
	full      bool
	eps       float64
	reduction Reduction
}

// NewGaussianNLLLoss builds the loss, filling defaults and rejecting an
// unknown reduction.
func NewGaussianNLLLoss(cfg GaussianNLLConfig) (*GaussianNLLLoss, error) {
	if cfg.Eps <= 0 {
		cfg.Eps = DefaultEps
	}
	if cfg.Reduction == "" {
		cfg.Reduction = ReductionMean
	}
	if err := cfg.Reduction.validate(); err != nil {
		return nil, err
	}
	return &GaussianNLLLoss{full: cfg.Full, eps: cfg.Eps, reduction: cfg.Reduction}, nil
}

// Eps returns the variance floor in use.
func (l *GaussianNLLLoss) Eps() float64 { return l.eps }

// Elementwise returns 0.5*(log(v) + (target-loc)^2/v) with v = max(variance, eps),
// plus 0.5*log(2*pi) when the loss is full.
func (l *GaussianNLLLoss) Elementwise(loc, variance, target float64) float64 {
	v := math.Max(variance, l.eps)
	d := target - loc
	nll := 0.5 * (math.Log(v) + d*d/v)
	if l.full {
		nll += halfLog2Pi
	}
	return nll
}

// Forward evaluates the loss for every (sample, mode, step, coord) element,
// broadcasting target over the mode axis, and applies the configured
// reduction. With ReductionNone the result keeps the prediction's
// (samples, modes, steps, coords) layout.
func (l *GaussianNLLLoss) Forward(pred *forecast.Prediction, target *forecast.Target) ([]float64, error) {
	out, err := l.elementwise(pred, target)
	if err != nil {
		return nil, err
	}
	return Reduce(out, l.reduction)
}

func (l *GaussianNLLLoss) elementwise(pred *forecast.Prediction, target *forecast.Target) ([]float64, error) {
	if err := (&forecast.Batch{Pred: pred, Target: target}).Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(pred.Loc))
	for s := 0; s < pred.Samples; s++ {
		for m := 0; m < pred.Modes; m++ {
			for t := 0; t < pred.Steps; t++ {
				for c := 0; c < pred.Coords; c++ {
					out = append(out, l.Elementwise(pred.LocAt(s, m, t, c), pred.VarAt(s, m, t, c), target.At(s, t, c)))
				}
			}
		}
	}
	return out, nil
}

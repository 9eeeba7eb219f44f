package losses

import (
	"fmt"

	"github.com/Noofbiz/forecasteval/forecast"

	"gonum.org/v1/gonum/floats"
)

// MixtureConfig configures a MixtureOfGaussianNLLLoss.
type MixtureConfig struct {
	// Full and Eps are forwarded to the per-element Gaussian NLL.
	Full bool
	Eps  float64

	// Reduction applied to the per-sample (or per-group) losses. Empty
	// means ReductionMean.
	Reduction Reduction
}

// MixtureOfGaussianNLLLoss is the negative log-likelihood of a target under
// a mixture whose components are the predicted modes, each an axis-aligned
// Gaussian per step, weighted by softmax(prob).
type MixtureOfGaussianNLLLoss struct {
	nll       *GaussianNLLLoss
	reduction Reduction
}

// NewMixtureOfGaussianNLLLoss builds the loss, filling defaults and
// rejecting an unknown reduction.
func NewMixtureOfGaussianNLLLoss(cfg MixtureConfig) (*MixtureOfGaussianNLLLoss, error) {
	if cfg.Reduction == "" {
		cfg.Reduction = ReductionMean
	}
	if err := cfg.Reduction.validate(); err != nil {
		return nil, err
	}
	nll, err := NewGaussianNLLLoss(GaussianNLLConfig{Full: cfg.Full, Eps: cfg.Eps, Reduction: ReductionNone})
	if err != nil {
		return nil, err
	}
	return &MixtureOfGaussianNLLLoss{nll: nll, reduction: cfg.Reduction}, nil
}

// Forward computes the mixture loss for b.
//
// b.Pred, b.Target and b.Prob are required; b.Prob holds mixture logits and
// must not be normalized by the caller. b.Mask (nil means all valid) weights
// each step's contribution. When joint is set the per-mode NLLs are summed
// over the whole batch, or over each group of b.Ptr when present, before
// the mixture is formed, so the result has one row per group.
//
// The rows of b.Prob broadcast against the NLL rows: they must either match
// in count or one side must have a single row.
func (l *MixtureOfGaussianNLLLoss) Forward(b *forecast.Batch, joint bool) ([]float64, error) {
	if b.Prob == nil {
		return nil, fmt.Errorf("mixture loss requires mode logits")
	}
	if err := (&forecast.Batch{Pred: b.Pred, Target: b.Target, Mask: b.Mask}).Validate(); err != nil {
		return nil, err
	}
	pred := b.Pred
	if b.Prob.Modes != pred.Modes {
		return nil, fmt.Errorf("%w: logits have %d modes, prediction has %d", forecast.ErrShapeMismatch, b.Prob.Modes, pred.Modes)
	}

	elems, err := l.nll.elementwise(pred, b.Target)
	if err != nil {
		return nil, err
	}
	nll := maskedModeSum(elems, pred, b.Mask)

	if joint {
		if b.Ptr == nil {
			nll = SumRows(nll, pred.Modes)
		} else if nll, err = SegmentSum(nll, pred.Modes, b.Ptr); err != nil {
			return nil, err
		}
	}

	loss, err := mixtureNLL(nll, b.Prob, pred.Modes)
	if err != nil {
		return nil, err
	}
	return Reduce(loss, l.reduction)
}

// maskedModeSum sums the elementwise NLL over steps and coordinates,
// weighting each step by the mask, giving a (samples, modes) matrix.
func maskedModeSum(elems []float64, pred *forecast.Prediction, mask *forecast.ValidityMask) []float64 {
	out := make([]float64, pred.Samples*pred.Modes)
	i := 0
	for s := 0; s < pred.Samples; s++ {
		for m := 0; m < pred.Modes; m++ {
			var sum float64
			for t := 0; t < pred.Steps; t++ {
				w := mask.Weight(s, t)
				for c := 0; c < pred.Coords; c++ {
					sum += elems[i] * w
					i++
				}
			}
			out[s*pred.Modes+m] = sum
		}
	}
	return out
}

// mixtureNLL returns -logsumexp(log_softmax(logits) - nll) per row, in log
// space so that large NLLs never get exponentiated directly.
func mixtureNLL(nll []float64, prob *forecast.ModeProbability, modes int) ([]float64, error) {
	nllRows := len(nll) / modes
	rows, err := broadcastRows(nllRows, prob.Samples)
	if err != nil {
		return nil, err
	}
	logPi := make([][]float64, prob.Samples)
	for r := range logPi {
		logPi[r] = LogSoftmax(prob.Row(r))
	}

	out := make([]float64, rows)
	buf := make([]float64, modes)
	for r := 0; r < rows; r++ {
		lp := logPi[min(r, prob.Samples-1)]
		n := nll[min(r, nllRows-1)*modes:]
		floats.SubTo(buf, lp, n[:modes])
		out[r] = -floats.LogSumExp(buf)
	}
	return out, nil
}

func broadcastRows(a, b int) (int, error) {
	switch {
	case a == b:
		return a, nil
	case a == 1:
		return b, nil
	case b == 1:
		return a, nil
	}
	return 0, fmt.Errorf("%w: cannot broadcast %d loss rows against %d logit rows", forecast.ErrShapeMismatch, a, b)
}

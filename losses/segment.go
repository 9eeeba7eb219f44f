package losses

import (
	"math"

	"github.com/Noofbiz/forecasteval/forecast"

	"gonum.org/v1/gonum/floats"
)

// SegmentSum reduces the rows of src (a row-major matrix with cols columns)
// over the contiguous groups described by ptr, returning one summed row per
// group. An empty group yields a row of zeros. ptr is validated against the
// row count before use.
func SegmentSum(src []float64, cols int, ptr forecast.GroupPointer) ([]float64, error) {
	rows := 0
	if cols > 0 {
		rows = len(src) / cols
	}
	if err := ptr.Validate(rows); err != nil {
		return nil, err
	}
	out := make([]float64, ptr.NumGroups()*cols)
	for g := 0; g < ptr.NumGroups(); g++ {
		dst := out[g*cols : (g+1)*cols]
		start, end := ptr.Span(g)
		for r := start; r < end; r++ {
			floats.Add(dst, src[r*cols:(r+1)*cols])
		}
	}
	return out, nil
}

// SumRows collapses every row of src into a single row of cols values.
func SumRows(src []float64, cols int) []float64 {
	out := make([]float64, cols)
	for r := 0; r+cols <= len(src); r += cols {
		floats.Add(out, src[r:r+cols])
	}
	return out
}

// LogSoftmax returns log(softmax(logits)) computed as logits - logsumexp(logits).
func LogSoftmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	copy(out, logits)
	floats.AddConst(-floats.LogSumExp(logits), out)
	return out
}

// Softmax returns the normalized exponentials of logits, computed through
// LogSoftmax so large logits do not overflow.
func Softmax(logits []float64) []float64 {
	out := LogSoftmax(logits)
	for i, v := range out {
		out[i] = math.Exp(v)
	}
	return out
}

// Probabilities converts per-sample mode logits into per-sample mode
// probabilities. A nil input yields nil.
func Probabilities(logits *forecast.ModeProbability) *forecast.ModeProbability {
	if logits == nil {
		return nil
	}
	out := &forecast.ModeProbability{
		Samples: logits.Samples,
		Modes:   logits.Modes,
		Data:    make([]float64, 0, len(logits.Data)),
	}
	for s := 0; s < logits.Samples; s++ {
		out.Data = append(out.Data, Softmax(logits.Row(s))...)
	}
	return out
}

package metrics

import (
	"math"
	"sort"

	"github.com/Noofbiz/forecasteval/forecast"

	"gonum.org/v1/gonum/floats"
)

// TopK keeps the k most probable modes of every sample, ordered by
// descending probability. Ties keep the original mode order and NaN values
// sort after every number. When the prediction has fewer than k modes all of
// them are returned, reordered.
// The returned probabilities are the raw selected values, not renormalized.
//
// Without prob the first k modes are kept and each is given probability 1/k.
// k below 1 is treated as 1.
func TopK(k int, pred *forecast.Prediction, prob *forecast.ModeProbability) (*forecast.Prediction, *forecast.ModeProbability) {
	k = max(1, min(k, pred.Modes))

	idx := make([][]int, pred.Samples)
	out := &forecast.ModeProbability{Samples: pred.Samples, Modes: k, Data: make([]float64, 0, pred.Samples*k)}
	for s := range idx {
		order := make([]int, pred.Modes)
		for m := range order {
			order[m] = m
		}
		if prob == nil {
			idx[s] = order[:k]
			for range k {
				out.Data = append(out.Data, 1/float64(k))
			}
			continue
		}
		row := prob.Row(s)
		sort.SliceStable(order, func(i, j int) bool {
			a, b := row[order[i]], row[order[j]]
			return a > b || (!math.IsNaN(a) && math.IsNaN(b))
		})
		idx[s] = order[:k]
		for _, m := range idx[s] {
			out.Data = append(out.Data, row[m])
		}
	}
	return pred.GatherModes(idx), out
}

// TopKNormalized is TopK followed by rescaling each sample's selected
// probabilities to sum to one. Rows summing to zero are left untouched.
func TopKNormalized(k int, pred *forecast.Prediction, prob *forecast.ModeProbability) (*forecast.Prediction, *forecast.ModeProbability) {
	predK, probK := TopK(k, pred, prob)
	for s := 0; s < probK.Samples; s++ {
		row := probK.Row(s)
		if total := floats.Sum(row); total != 0 {
			floats.Scale(1/total, row)
		}
	}
	return predK, probK
}

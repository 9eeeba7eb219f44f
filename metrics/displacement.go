package metrics

import (
	"github.com/Noofbiz/forecasteval/forecast"

	"gonum.org/v1/gonum/floats"
)

// finalDisplacements returns, per mode, the Euclidean distance between the
// prediction and the target at the sample's last valid step.
func finalDisplacements(pred *forecast.Prediction, target *forecast.Target, mask *forecast.ValidityMask, s int) []float64 {
	last := mask.LastValid(s, pred.Steps)
	out := make([]float64, pred.Modes)
	for m := range out {
		out[m] = floats.Distance(pred.Point(s, m, last), target.Point(s, last), 2)
	}
	return out
}

// maskedDisplacements returns, per mode, the Euclidean distance at every step
// multiplied by the step's mask weight, laid out as (modes, steps).
func maskedDisplacements(pred *forecast.Prediction, target *forecast.Target, mask *forecast.ValidityMask, s int) [][]float64 {
	out := make([][]float64, pred.Modes)
	for m := range out {
		row := make([]float64, pred.Steps)
		for t := range row {
			row[t] = floats.Distance(pred.Point(s, m, t), target.Point(s, t), 2) * mask.Weight(s, t)
		}
		out[m] = row
	}
	return out
}

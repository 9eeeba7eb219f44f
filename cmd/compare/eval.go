package main

import (
	"errors"
	"math"
	"strings"

	"github.com/Noofbiz/forecasteval/config"
	"github.com/Noofbiz/forecasteval/forecast"
	"github.com/Noofbiz/forecasteval/losses"
	"github.com/Noofbiz/forecasteval/metrics"

	"gonum.org/v1/gonum/floats"
)

// metric is one Brier or MR instance: a per-batch state that is folded into
// a running total after every batch.
type metric struct {
	name   string
	update func(b *forecast.Batch) error
	batch  interface {
		Compute() (float64, error)
		Reset()
		State() metrics.Accumulator
	}
	total metrics.Accumulator
}

// evaluator scores batches with the mixture loss and every configured
// metric, keeping per-run totals.
type evaluator struct {
	loss      *losses.MixtureOfGaussianNLLLoss
	reduction losses.Reduction
	joint     bool
	metrics   []*metric

	lossTotal metrics.Accumulator
	samples   int
	scenes    int
}

// batchResult is one row of the evaluation CSV.
type batchResult struct {
	Batch   int
	Samples int
	Scenes  int
	Loss    float64
	Metrics []float64
}

func newEvaluator(cfg *config.EvalConfig) (*evaluator, error) {
	mc, err := cfg.MixtureConfig()
	if err != nil {
		return nil, err
	}
	reduction := mc.Reduction
	// Rows are reduced here so that the run total can be formed from them.
	mc.Reduction = losses.ReductionNone
	loss, err := losses.NewMixtureOfGaussianNLLLoss(mc)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{loss: loss, reduction: reduction, joint: *cfg.Loss.Joint}

	mins, err := cfg.MinCriteria()
	if err != nil {
		return nil, err
	}
	misses, err := cfg.MissCriteria()
	if err != nil {
		return nil, err
	}
	k := *cfg.Metrics.MaxGuesses
	keep := *cfg.Metrics.KeepInvalidFinalStep

	for _, c := range mins {
		m, err := metrics.NewBrier(k)
		if err != nil {
			return nil, err
		}
		opts := metrics.BrierOptions{DropInvalidFinalStep: !keep, Criterion: c}
		ev.metrics = append(ev.metrics, &metric{
			name:   "brier_" + strings.ToLower(c.String()),
			update: func(b *forecast.Batch) error { return m.Update(b, opts) },
			batch:  m,
		})
	}
	for _, c := range misses {
		m, err := metrics.NewMR(k)
		if err != nil {
			return nil, err
		}
		opts := metrics.MROptions{DropInvalidFinalStep: !keep, Criterion: c, Threshold: *cfg.Metrics.MissThreshold}
		ev.metrics = append(ev.metrics, &metric{
			name:   "mr_" + strings.ToLower(c.String()),
			update: func(b *forecast.Batch) error { return m.Update(b, opts) },
			batch:  m,
		})
	}
	return ev, nil
}

// names returns the metric column names in evaluation order.
func (ev *evaluator) names() []string {
	out := make([]string, len(ev.metrics))
	for i, m := range ev.metrics {
		out[i] = m.name
	}
	return out
}

// evaluate scores one batch. Metrics with no scorable sample report NaN for
// the batch and leave the run total unchanged.
func (ev *evaluator) evaluate(idx int, b *forecast.Batch) (batchResult, error) {
	res := batchResult{Batch: idx, Samples: b.Len(), Scenes: b.Ptr.NumGroups()}

	rows, err := ev.lossRows(b)
	if err != nil {
		return res, err
	}
	res.Loss = ev.reduce(rows)
	ev.lossTotal.Add(floats.Sum(rows), len(rows))

	// The metrics read mode probabilities; the dataset carries logits.
	mb := *b
	mb.Prob = losses.Probabilities(b.Prob)
	for _, m := range ev.metrics {
		if err := m.update(&mb); err != nil {
			return res, err
		}
		v, err := m.batch.Compute()
		if errors.Is(err, metrics.ErrNoSamples) {
			v = math.NaN()
		} else if err != nil {
			return res, err
		}
		res.Metrics = append(res.Metrics, v)
		m.total = metrics.Merge(m.total, m.batch.State())
		m.batch.Reset()
	}
	ev.samples += res.Samples
	ev.scenes += res.Scenes
	return res, nil
}

// lossRows returns the unreduced mixture loss: one row per sample, or one
// per scene when joint. Joint scenes use the logits of their first agent as
// the scene's mode weights.
func (ev *evaluator) lossRows(b *forecast.Batch) ([]float64, error) {
	if !ev.joint {
		return ev.loss.Forward(b, false)
	}
	if b.Ptr == nil || b.Prob == nil {
		return ev.loss.Forward(b, true)
	}
	prob, err := sceneLogits(b)
	if err != nil {
		return nil, err
	}
	scene := *b
	scene.Prob = prob
	return ev.loss.Forward(&scene, true)
}

func sceneLogits(b *forecast.Batch) (*forecast.ModeProbability, error) {
	if err := b.Ptr.Validate(b.Len()); err != nil {
		return nil, err
	}
	data := make([]float64, 0, b.Ptr.NumGroups()*b.Prob.Modes)
	for g := 0; g < b.Ptr.NumGroups(); g++ {
		start, end := b.Ptr.Span(g)
		if start == end {
			// An empty scene contributes zero NLL; any weights will do.
			data = append(data, make([]float64, b.Prob.Modes)...)
			continue
		}
		data = append(data, b.Prob.Row(start)...)
	}
	return forecast.NewModeProbability(b.Ptr.NumGroups(), b.Prob.Modes, data)
}

// reduce applies the configured reduction to a batch's loss rows. Under
// "none" the batch is summarized by its mean.
func (ev *evaluator) reduce(rows []float64) float64 {
	r := ev.reduction
	if r == losses.ReductionNone {
		r = losses.ReductionMean
	}
	out, err := losses.Reduce(rows, r)
	if err != nil || len(out) == 0 {
		return math.NaN()
	}
	return out[0]
}

// summary returns the run totals in batchResult form.
func (ev *evaluator) summary() batchResult {
	res := batchResult{Batch: -1, Samples: ev.samples, Scenes: ev.scenes}
	res.Loss = math.NaN()
	if ev.reduction == losses.ReductionSum {
		res.Loss = ev.lossTotal.Sum
	} else if v, err := ev.lossTotal.Compute(); err == nil {
		res.Loss = v
	}
	for _, m := range ev.metrics {
		v, err := m.total.Compute()
		if err != nil {
			v = math.NaN()
		}
		res.Metrics = append(res.Metrics, v)
	}
	return res
}

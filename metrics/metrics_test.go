package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/Noofbiz/forecasteval/forecast"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// point is an (x, y) position.
type point [2]float64

// makeBatch builds a 2D batch from per-sample, per-mode trajectories, the
// per-sample targets, probabilities (nil to omit) and masks (nil to omit).
func makeBatch(t *testing.T, modes [][][]point, targets [][]point, prob [][]float64, mask [][]bool) *forecast.Batch {
	t.Helper()
	samples := len(modes)
	numModes, steps := len(modes[0]), len(targets[0])

	loc := make([]float64, 0, samples*numModes*steps*2)
	for _, sample := range modes {
		for _, traj := range sample {
			for _, p := range traj {
				loc = append(loc, p[0], p[1])
			}
		}
	}
	pred, err := forecast.NewPrediction(samples, numModes, steps, 2, loc, nil)
	require.NoError(t, err)

	tdata := make([]float64, 0, samples*steps*2)
	for _, traj := range targets {
		for _, p := range traj {
			tdata = append(tdata, p[0], p[1])
		}
	}
	target, err := forecast.NewTarget(samples, steps, 2, tdata)
	require.NoError(t, err)

	b := &forecast.Batch{Pred: pred, Target: target}
	if prob != nil {
		data := make([]float64, 0, samples*numModes)
		for _, row := range prob {
			data = append(data, row...)
		}
		b.Prob, err = forecast.NewModeProbability(samples, numModes, data)
		require.NoError(t, err)
	}
	if mask != nil {
		data := make([]bool, 0, samples*steps)
		for _, row := range mask {
			data = append(data, row...)
		}
		b.Mask, err = forecast.NewValidityMask(samples, steps, data)
		require.NoError(t, err)
	}
	return b
}

// constTraj repeats p for n steps.
func constTraj(p point, n int) []point {
	out := make([]point, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func TestValidFilter(t *testing.T) {
	t.Parallel()
	zero := constTraj(point{}, 3)
	b := makeBatch(t,
		[][][]point{{zero}, {zero}, {zero}},
		[][]point{zero, zero, zero},
		[][]float64{{0.1}, {0.2}, {0.3}},
		[][]bool{{true, true, true}, {false, false, false}, {true, true, false}},
	)
	b.Extra, _ = forecast.NewFeatures(3, 1, []float64{10, 20, 30})
	b.Ptr = forecast.GroupPointer{0, 2, 3}

	t.Run("keep invalid final step", func(t *testing.T) {
		got := ValidFilter(b, true)
		require.Equal(t, 2, got.Len())
		assert.Equal(t, []float64{0.1, 0.3}, got.Prob.Data)
		assert.Equal(t, []float64{10, 30}, got.Extra.Data)
		assert.Equal(t, forecast.GroupPointer{0, 1, 2}, got.Ptr)
	})

	t.Run("drop invalid final step", func(t *testing.T) {
		got := ValidFilter(b, false)
		require.Equal(t, 1, got.Len())
		assert.Equal(t, []float64{0.1}, got.Prob.Data)
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, keep := range []bool{true, false} {
			once := ValidFilter(b, keep)
			twice := ValidFilter(once, keep)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("second filter changed the batch (-once +twice):\n%s", diff)
			}
		}
	})

	t.Run("absent arrays stay absent", func(t *testing.T) {
		bare := makeBatch(t, [][][]point{{zero}}, [][]point{zero}, nil, [][]bool{{true, false, false}})
		got := ValidFilter(bare, true)
		assert.Nil(t, got.Prob)
		assert.Nil(t, got.Extra)
		assert.Equal(t, 1, got.Len())
	})

	t.Run("nil mask keeps everything", func(t *testing.T) {
		bare := makeBatch(t, [][][]point{{zero}, {zero}}, [][]point{zero, zero}, nil, nil)
		assert.Equal(t, 2, ValidFilter(bare, false).Len())
	})

	t.Run("everything filtered", func(t *testing.T) {
		bare := makeBatch(t, [][][]point{{zero}}, [][]point{zero}, nil, [][]bool{{false, false, false}})
		assert.Equal(t, 0, ValidFilter(bare, true).Len())
	})
}

func TestTopK(t *testing.T) {
	t.Parallel()
	// Mode m sits at x = m for both steps.
	traj := func(m int) []point { return constTraj(point{float64(m), 0}, 2) }
	modes := [][][]point{{traj(0), traj(1), traj(2), traj(3)}}
	target := [][]point{constTraj(point{}, 2)}

	t.Run("k=1 picks the most probable mode", func(t *testing.T) {
		b := makeBatch(t, modes, target, [][]float64{{0.1, 0.2, 0.6, 0.1}}, nil)
		pred, prob := TopK(1, b.Pred, b.Prob)
		require.Equal(t, 1, pred.Modes)
		assert.Equal(t, 2.0, pred.LocAt(0, 0, 0, 0))
		assert.Equal(t, []float64{0.6}, prob.Data)
	})

	t.Run("sorted descending and not renormalized", func(t *testing.T) {
		b := makeBatch(t, modes, target, [][]float64{{0.1, 0.2, 0.6, 0.05}}, nil)
		pred, prob := TopK(2, b.Pred, b.Prob)
		assert.Equal(t, []float64{0.6, 0.2}, prob.Data)
		assert.Equal(t, 2.0, pred.LocAt(0, 0, 1, 0))
		assert.Equal(t, 1.0, pred.LocAt(0, 1, 1, 0))
	})

	t.Run("NaN sorts last", func(t *testing.T) {
		b := makeBatch(t, modes, target, [][]float64{{math.NaN(), 0.2, math.NaN(), 0.5}}, nil)
		pred, prob := TopK(3, b.Pred, b.Prob)
		assert.Equal(t, 3.0, pred.LocAt(0, 0, 0, 0))
		assert.Equal(t, 1.0, pred.LocAt(0, 1, 0, 0))
		assert.Equal(t, 0.0, pred.LocAt(0, 2, 0, 0))
		assert.Equal(t, []float64{0.5, 0.2}, prob.Data[:2])
		assert.True(t, math.IsNaN(prob.Data[2]))
	})

	t.Run("ties keep mode order", func(t *testing.T) {
		b := makeBatch(t, modes, target, [][]float64{{0.25, 0.25, 0.25, 0.25}}, nil)
		pred, _ := TopK(3, b.Pred, b.Prob)
		for m := 0; m < 3; m++ {
			assert.Equal(t, float64(m), pred.LocAt(0, m, 0, 0))
		}
	})

	t.Run("k beyond mode count returns every mode", func(t *testing.T) {
		b := makeBatch(t, modes, target, [][]float64{{0.1, 0.4, 0.3, 0.2}}, nil)
		pred, prob := TopK(10, b.Pred, b.Prob)
		require.Equal(t, 4, pred.Modes)
		assert.ElementsMatch(t, []float64{0.1, 0.4, 0.3, 0.2}, prob.Data)
		seen := map[float64]bool{}
		for m := 0; m < 4; m++ {
			seen[pred.LocAt(0, m, 0, 0)] = true
		}
		assert.Len(t, seen, 4)
	})

	t.Run("absent probability keeps the first k uniformly", func(t *testing.T) {
		b := makeBatch(t, modes, target, nil, nil)
		pred, prob := TopK(2, b.Pred, nil)
		assert.Equal(t, 0.0, pred.LocAt(0, 0, 0, 0))
		assert.Equal(t, 1.0, pred.LocAt(0, 1, 0, 0))
		assert.Equal(t, []float64{0.5, 0.5}, prob.Data)
	})

	t.Run("normalized variant", func(t *testing.T) {
		b := makeBatch(t, modes, target, [][]float64{{0.1, 0.2, 0.6, 0.1}}, nil)
		_, prob := TopKNormalized(2, b.Pred, b.Prob)
		assert.InDeltaSlice(t, []float64{0.75, 0.25}, prob.Data, 1e-12)
	})
}

func TestAccumulator(t *testing.T) {
	t.Parallel()
	var a Accumulator
	_, err := a.Compute()
	assert.ErrorIs(t, err, ErrNoSamples)

	a.Add(3, 4)
	got, err := a.Compute()
	require.NoError(t, err)
	assert.Equal(t, 0.75, got)

	merged := Merge(a, Accumulator{Sum: 1, Count: 4})
	assert.Equal(t, Accumulator{Sum: 4, Count: 8}, merged)

	a.Reset()
	assert.Equal(t, Accumulator{}, a)
}

func TestParseCriteria(t *testing.T) {
	t.Parallel()
	c, err := ParseMinCriterion("ADE")
	require.NoError(t, err)
	assert.Equal(t, MinADE, c)
	_, err = ParseMinCriterion("MAXDE")
	assert.ErrorIs(t, err, forecast.ErrConfiguration)

	mc, err := ParseMissCriterion("MAXDE")
	require.NoError(t, err)
	assert.Equal(t, MissMAXDE, mc)
	_, err = ParseMissCriterion("ADE")
	assert.ErrorIs(t, err, forecast.ErrConfiguration)

	assert.Equal(t, "FDE", MinFDE.String())
	assert.Equal(t, "MAXDE", MissMAXDE.String())
}

func TestBrier(t *testing.T) {
	t.Parallel()
	target := [][]point{constTraj(point{}, 3)}
	near := constTraj(point{}, 3)
	far := constTraj(point{10, 0}, 3)

	t.Run("best mode with probability one scores zero", func(t *testing.T) {
		m, err := NewBrier(2)
		require.NoError(t, err)
		require.NoError(t, m.Update(makeBatch(t, [][][]point{{near, far}}, target, [][]float64{{1, 0}}, nil), BrierOptions{}))
		got, err := m.Compute()
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("best mode with probability zero scores one", func(t *testing.T) {
		m, err := NewBrier(2)
		require.NoError(t, err)
		require.NoError(t, m.Update(makeBatch(t, [][][]point{{far, near}}, target, [][]float64{{1, 0}}, nil), BrierOptions{}))
		got, err := m.Compute()
		require.NoError(t, err)
		assert.Equal(t, 1.0, got)
	})

	t.Run("FDE and ADE disagree", func(t *testing.T) {
		// Mode 0 ends on target but wanders; mode 1 tracks then drifts at the end.
		wander := []point{{5, 0}, {5, 0}, {0, 0}}
		drift := []point{{0, 0}, {0, 0}, {1, 0}}
		b := makeBatch(t, [][][]point{{wander, drift}}, target, [][]float64{{0.7, 0.3}}, nil)

		fde, _ := NewBrier(2)
		require.NoError(t, fde.Update(b, BrierOptions{Criterion: MinFDE}))
		got, _ := fde.Compute()
		assert.InDelta(t, 0.09, got, 1e-12)

		ade, _ := NewBrier(2)
		require.NoError(t, ade.Update(b, BrierOptions{Criterion: MinADE}))
		got, _ = ade.Compute()
		assert.InDelta(t, 0.49, got, 1e-12)
	})

	t.Run("FDE uses the last valid step", func(t *testing.T) {
		early := []point{{0, 0}, {0, 0}, {9, 0}}
		late := []point{{9, 0}, {9, 0}, {0, 0}}
		b := makeBatch(t, [][][]point{{early, late}}, target, [][]float64{{0.8, 0.2}}, [][]bool{{true, true, false}})
		m, _ := NewBrier(2)
		require.NoError(t, m.Update(b, BrierOptions{}))
		got, _ := m.Compute()
		assert.InDelta(t, 0.04, got, 1e-12)
	})

	t.Run("filtered batch leaves the state unchanged", func(t *testing.T) {
		m, _ := NewBrier(2)
		b := makeBatch(t, [][][]point{{near, far}}, target, [][]float64{{1, 0}}, [][]bool{{true, true, false}})
		require.NoError(t, m.Update(b, BrierOptions{DropInvalidFinalStep: true}))
		assert.Equal(t, Accumulator{}, m.State())
		_, err := m.Compute()
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("unknown criterion", func(t *testing.T) {
		m, _ := NewBrier(2)
		err := m.Update(makeBatch(t, [][][]point{{near, far}}, target, nil, nil), BrierOptions{Criterion: MinCriterion(9)})
		assert.ErrorIs(t, err, forecast.ErrConfiguration)
	})

	t.Run("merge and reset", func(t *testing.T) {
		a, _ := NewBrier(2)
		b, _ := NewBrier(2)
		require.NoError(t, a.Update(makeBatch(t, [][][]point{{near, far}}, target, [][]float64{{1, 0}}, nil), BrierOptions{}))
		require.NoError(t, b.Update(makeBatch(t, [][][]point{{far, near}}, target, [][]float64{{1, 0}}, nil), BrierOptions{}))
		a.Merge(b.State())
		got, err := a.Compute()
		require.NoError(t, err)
		assert.Equal(t, 0.5, got)
		a.Reset()
		assert.Equal(t, Accumulator{}, a.State())
	})

	t.Run("negative max guesses", func(t *testing.T) {
		_, err := NewBrier(-1)
		assert.Error(t, err)
	})
}

func TestMR(t *testing.T) {
	t.Parallel()
	target := [][]point{constTraj(point{}, 2)}

	t.Run("threshold boundary", func(t *testing.T) {
		at := constTraj(point{2, 0}, 2)
		above := constTraj(point{3, 0}, 2)

		m, err := NewMR(1)
		require.NoError(t, err)
		require.NoError(t, m.Update(makeBatch(t, [][][]point{{at}}, target, nil, nil), MROptions{Threshold: 2}))
		require.NoError(t, m.Update(makeBatch(t, [][][]point{{above}}, target, nil, nil), MROptions{Threshold: 2}))
		assert.Equal(t, Accumulator{Sum: 1, Count: 2}, m.State())
	})

	t.Run("threshold zero means default, negative is rejected", func(t *testing.T) {
		// Best error is 3: a miss at the default 2.0.
		b := makeBatch(t, [][][]point{{constTraj(point{3, 0}, 2)}}, target, nil, nil)
		m, _ := NewMR(1)
		require.NoError(t, m.Update(b, MROptions{}))
		assert.Equal(t, Accumulator{Sum: 1, Count: 1}, m.State())

		for _, bad := range []float64{-2, math.NaN()} {
			require.Error(t, m.Update(b, MROptions{Threshold: bad}))
		}
		assert.Equal(t, Accumulator{Sum: 1, Count: 1}, m.State())
	})

	t.Run("FDE takes the best kept mode", func(t *testing.T) {
		m, _ := NewMR(2)
		b := makeBatch(t, [][][]point{{constTraj(point{5, 0}, 2), constTraj(point{1, 0}, 2)}}, target, nil, nil)
		require.NoError(t, m.Update(b, MROptions{}))
		got, err := m.Compute()
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("top-k can exclude the only close mode", func(t *testing.T) {
		m, _ := NewMR(1)
		b := makeBatch(t, [][][]point{{constTraj(point{5, 0}, 2), constTraj(point{1, 0}, 2)}}, target, [][]float64{{0.9, 0.1}}, nil)
		require.NoError(t, m.Update(b, MROptions{}))
		got, _ := m.Compute()
		assert.Equal(t, 1.0, got)
	})

	t.Run("MAXDE uses the worst step", func(t *testing.T) {
		// Ends on target but is 3 away at step 0.
		spike := []point{{3, 0}, {0, 0}}
		b := makeBatch(t, [][][]point{{spike}}, target, nil, nil)

		fde, _ := NewMR(1)
		require.NoError(t, fde.Update(b, MROptions{Criterion: MissFDE, Threshold: 2}))
		got, _ := fde.Compute()
		assert.Equal(t, 0.0, got)

		maxde, _ := NewMR(1)
		require.NoError(t, maxde.Update(b, MROptions{Criterion: MissMAXDE, Threshold: 2}))
		got, _ = maxde.Compute()
		assert.Equal(t, 1.0, got)
	})

	t.Run("MAXDE ignores masked steps", func(t *testing.T) {
		spike := []point{{3, 0}, {0, 0}}
		b := makeBatch(t, [][][]point{{spike}}, target, nil, [][]bool{{false, true}})
		m, _ := NewMR(1)
		require.NoError(t, m.Update(b, MROptions{Criterion: MissMAXDE, Threshold: 2}))
		got, _ := m.Compute()
		assert.Equal(t, 0.0, got)
	})

	t.Run("unknown criterion", func(t *testing.T) {
		m, _ := NewMR(1)
		err := m.Update(makeBatch(t, [][][]point{{constTraj(point{}, 2)}}, target, nil, nil), MROptions{Criterion: MissCriterion(4)})
		assert.ErrorIs(t, err, forecast.ErrConfiguration)
	})
}

func TestUpdateRejectsMalformedLiterals(t *testing.T) {
	t.Parallel()
	b := &forecast.Batch{
		Pred:   &forecast.Prediction{Samples: 1, Modes: 0, Steps: 2, Coords: 2},
		Target: &forecast.Target{Samples: 1, Steps: 2, Coords: 2, Data: make([]float64, 4)},
	}
	brier, err := NewBrier(6)
	require.NoError(t, err)
	assert.ErrorIs(t, brier.Update(b, BrierOptions{}), forecast.ErrShapeMismatch)

	mr, err := NewMR(6)
	require.NoError(t, err)
	assert.ErrorIs(t, mr.Update(b, MROptions{}), forecast.ErrShapeMismatch)
	assert.Equal(t, Accumulator{}, mr.State())
}

func TestEndToEndDominantMode(t *testing.T) {
	t.Parallel()
	zeros := constTraj(point{}, 3)
	shifted := constTraj(point{5, 5}, 3)
	modes := [][][]point{{zeros, shifted}, {zeros, shifted}}
	targets := [][]point{zeros, zeros}
	logits := [][]float64{{0, -100}, {0, -100}}
	mask := [][]bool{{true, true, true}, {true, true, true}}
	b := makeBatch(t, modes, targets, logits, mask)

	for _, c := range []MinCriterion{MinFDE, MinADE} {
		m, err := NewBrier(2)
		require.NoError(t, err)
		require.NoError(t, m.Update(b, BrierOptions{Criterion: c}))
		got, err := m.Compute()
		require.NoError(t, err)
		// Mode 0 carries the raw value 0, so its term is exactly 1.
		assert.Equal(t, 1.0, got, "criterion %s", c)
	}

	for _, c := range []MissCriterion{MissFDE, MissMAXDE} {
		m, err := NewMR(2)
		require.NoError(t, err)
		require.NoError(t, m.Update(b, MROptions{Criterion: c}))
		got, err := m.Compute()
		require.NoError(t, err)
		assert.Equal(t, 0.0, got, "criterion %s", c)
	}
}

func TestUpdateRejectsShapeMismatch(t *testing.T) {
	t.Parallel()
	b := makeBatch(t, [][][]point{{constTraj(point{}, 2)}}, [][]point{constTraj(point{}, 2)}, nil, nil)
	b.Mask = forecast.AllValid(2, 2)
	m, _ := NewMR(1)
	assert.True(t, errors.Is(m.Update(b, MROptions{}), forecast.ErrShapeMismatch))
}

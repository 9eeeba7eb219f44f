package forecast

// This file holds the per-batch arrays consumed by the losses and metrics
// packages. Every array is a flat row-major float64 buffer plus its named
// extents; accessors take indices in the documented axis order so callers
// never have to reason about strides.
//
// Axis orders:
//   - Prediction:      (samples, modes, steps, coords)
//   - Target:          (samples, steps, coords)
//   - ModeProbability: (samples, modes)
//   - ValidityMask:    (samples, steps)
//   - Features:        (samples, width)

// Prediction holds the candidate trajectories produced for each sample.
// Var holds one variance per coordinate and is nil when the model only
// emits locations, in which case unit variance is assumed.
type Prediction struct {
	Samples int
	Modes   int
	Steps   int
	Coords  int

	Loc []float64
	Var []float64
}

// NewPrediction wraps loc (and optionally variance) as a Prediction after
// checking both buffers against the extents. variance may be nil.
func NewPrediction(samples, modes, steps, coords int, loc, variance []float64) (*Prediction, error) {
	if samples < 0 || modes < 1 || steps < 1 || coords < 1 {
		return nil, shapeErrorf("prediction extents must be positive, got (%d, %d, %d, %d)", samples, modes, steps, coords)
	}
	n := samples * modes * steps * coords
	if len(loc) != n {
		return nil, shapeErrorf("prediction loc has %d values, want %d", len(loc), n)
	}
	if variance != nil && len(variance) != n {
		return nil, shapeErrorf("prediction var has %d values, want %d", len(variance), n)
	}
	return &Prediction{
		Samples: samples,
		Modes:   modes,
		Steps:   steps,
		Coords:  coords,
		Loc:     loc,
		Var:     variance,
	}, nil
}

func (p *Prediction) index(s, m, t, c int) int {
	return ((s*p.Modes+m)*p.Steps+t)*p.Coords + c
}

// LocAt returns the predicted location of coordinate c.
func (p *Prediction) LocAt(s, m, t, c int) float64 {
	return p.Loc[p.index(s, m, t, c)]
}

// VarAt returns the predicted variance of coordinate c, or 1 when the
// prediction carries no variances.
func (p *Prediction) VarAt(s, m, t, c int) float64 {
	if p.Var == nil {
		return 1
	}
	return p.Var[p.index(s, m, t, c)]
}

// Point returns the location vector of mode m at step t. The slice aliases
// the underlying buffer.
func (p *Prediction) Point(s, m, t int) []float64 {
	i := p.index(s, m, t, 0)
	return p.Loc[i : i+p.Coords]
}

// modeBlock is the number of values belonging to one (sample, mode) pair.
func (p *Prediction) modeBlock() int {
	return p.Steps * p.Coords
}

// GatherModes returns a new prediction holding, for every sample s, the
// modes listed in idx[s] in that order. All idx rows must have the same
// length.
func (p *Prediction) GatherModes(idx [][]int) *Prediction {
	k := 0
	if len(idx) > 0 {
		k = len(idx[0])
	}
	block := p.modeBlock()
	out := &Prediction{
		Samples: p.Samples,
		Modes:   k,
		Steps:   p.Steps,
		Coords:  p.Coords,
		Loc:     make([]float64, 0, p.Samples*k*block),
	}
	if p.Var != nil {
		out.Var = make([]float64, 0, p.Samples*k*block)
	}
	for s, modes := range idx {
		for _, m := range modes {
			i := p.index(s, m, 0, 0)
			out.Loc = append(out.Loc, p.Loc[i:i+block]...)
			if p.Var != nil {
				out.Var = append(out.Var, p.Var[i:i+block]...)
			}
		}
	}
	return out
}

// Target is the observed trajectory for each sample.
type Target struct {
	Samples int
	Steps   int
	Coords  int

	Data []float64
}

// NewTarget wraps data as a Target after checking its length.
func NewTarget(samples, steps, coords int, data []float64) (*Target, error) {
	if samples < 0 || steps < 1 || coords < 1 {
		return nil, shapeErrorf("target extents must be positive, got (%d, %d, %d)", samples, steps, coords)
	}
	if n := samples * steps * coords; len(data) != n {
		return nil, shapeErrorf("target has %d values, want %d", len(data), n)
	}
	return &Target{Samples: samples, Steps: steps, Coords: coords, Data: data}, nil
}

// At returns coordinate c of sample s at step t.
func (g *Target) At(s, t, c int) float64 {
	return g.Data[(s*g.Steps+t)*g.Coords+c]
}

// Point returns the location vector of sample s at step t.
func (g *Target) Point(s, t int) []float64 {
	i := (s*g.Steps + t) * g.Coords
	return g.Data[i : i+g.Coords]
}

// ModeProbability holds one value per (sample, mode). The mixture loss reads
// it as unnormalized logits; the metrics read it as probabilities.
type ModeProbability struct {
	Samples int
	Modes   int

	Data []float64
}

// NewModeProbability wraps data as a ModeProbability after checking its length.
func NewModeProbability(samples, modes int, data []float64) (*ModeProbability, error) {
	if samples < 0 || modes < 1 {
		return nil, shapeErrorf("probability extents must be positive, got (%d, %d)", samples, modes)
	}
	if n := samples * modes; len(data) != n {
		return nil, shapeErrorf("probability has %d values, want %d", len(data), n)
	}
	return &ModeProbability{Samples: samples, Modes: modes, Data: data}, nil
}

// Row returns the per-mode values of sample s.
func (p *ModeProbability) Row(s int) []float64 {
	return p.Data[s*p.Modes : (s+1)*p.Modes]
}

// ValidityMask flags the observable target steps. A nil *ValidityMask is a
// valid receiver and reports every step as valid.
type ValidityMask struct {
	Samples int
	Steps   int

	Data []bool
}

// NewValidityMask wraps data as a ValidityMask after checking its length.
func NewValidityMask(samples, steps int, data []bool) (*ValidityMask, error) {
	if samples < 0 || steps < 1 {
		return nil, shapeErrorf("mask extents must be positive, got (%d, %d)", samples, steps)
	}
	if n := samples * steps; len(data) != n {
		return nil, shapeErrorf("mask has %d values, want %d", len(data), n)
	}
	return &ValidityMask{Samples: samples, Steps: steps, Data: data}, nil
}

// AllValid builds a mask with every step set.
func AllValid(samples, steps int) *ValidityMask {
	data := make([]bool, samples*steps)
	for i := range data {
		data[i] = true
	}
	return &ValidityMask{Samples: samples, Steps: steps, Data: data}
}

// Valid reports whether step t of sample s is observable.
func (v *ValidityMask) Valid(s, t int) bool {
	if v == nil {
		return true
	}
	return v.Data[s*v.Steps+t]
}

// Weight is Valid as a 0/1 multiplier.
func (v *ValidityMask) Weight(s, t int) float64 {
	if v.Valid(s, t) {
		return 1
	}
	return 0
}

// LastValid returns the highest valid step of sample s, or -1 when the
// sample has no valid step. steps is used when the mask is nil.
func (v *ValidityMask) LastValid(s, steps int) int {
	if v == nil {
		return steps - 1
	}
	for t := v.Steps - 1; t >= 0; t-- {
		if v.Data[s*v.Steps+t] {
			return t
		}
	}
	return -1
}

// Features is optional per-sample side data carried through filtering, such
// as agent identifiers or headings.
type Features struct {
	Samples int
	Width   int

	Data []float64
}

// NewFeatures wraps data as Features after checking its length.
func NewFeatures(samples, width int, data []float64) (*Features, error) {
	if samples < 0 || width < 1 {
		return nil, shapeErrorf("feature extents must be positive, got (%d, %d)", samples, width)
	}
	if n := samples * width; len(data) != n {
		return nil, shapeErrorf("features have %d values, want %d", len(data), n)
	}
	return &Features{Samples: samples, Width: width, Data: data}, nil
}

// Row returns the features of sample s.
func (f *Features) Row(s int) []float64 {
	return f.Data[s*f.Width : (s+1)*f.Width]
}

// gatherRows copies the rows of data (each rowLen long) whose keep flag is set.
func gatherRows[T any](data []T, rowLen int, keep []bool) []T {
	out := make([]T, 0, len(data))
	for i, k := range keep {
		if k {
			out = append(out, data[i*rowLen:(i+1)*rowLen]...)
		}
	}
	return out
}

package forecast

// Batch bundles the arrays of one loss or metric call. Pred and Target are
// required; Prob, Mask, Extra and Ptr are optional and may be nil.
type Batch struct {
	Pred   *Prediction
	Target *Target
	Prob   *ModeProbability
	Mask   *ValidityMask
	Extra  *Features
	Ptr    GroupPointer
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	if b == nil || b.Pred == nil {
		return 0
	}
	return b.Pred.Samples
}

// Validate checks that every present array has positive extents matching
// its buffer length, that it agrees with Pred on the sample, mode, step and
// coordinate extents, and that Ptr (if any) is well formed.
func (b *Batch) Validate() error {
	if b.Pred == nil || b.Target == nil {
		return shapeErrorf("batch requires both prediction and target")
	}
	if err := b.checkBuffers(); err != nil {
		return err
	}
	p, g := b.Pred, b.Target
	if g.Samples != p.Samples || g.Steps != p.Steps || g.Coords != p.Coords {
		return shapeErrorf("target (%d, %d, %d) does not match prediction (%d, _, %d, %d)",
			g.Samples, g.Steps, g.Coords, p.Samples, p.Steps, p.Coords)
	}
	if b.Prob != nil && (b.Prob.Samples != p.Samples || b.Prob.Modes != p.Modes) {
		return shapeErrorf("probability (%d, %d) does not match prediction (%d, %d)",
			b.Prob.Samples, b.Prob.Modes, p.Samples, p.Modes)
	}
	if b.Mask != nil && (b.Mask.Samples != p.Samples || b.Mask.Steps != p.Steps) {
		return shapeErrorf("mask (%d, %d) does not match prediction (%d, %d)",
			b.Mask.Samples, b.Mask.Steps, p.Samples, p.Steps)
	}
	if b.Extra != nil && b.Extra.Samples != p.Samples {
		return shapeErrorf("extra has %d samples, prediction has %d", b.Extra.Samples, p.Samples)
	}
	if b.Ptr != nil {
		if err := b.Ptr.Validate(p.Samples); err != nil {
			return err
		}
	}
	return nil
}

// checkBuffers applies the constructor checks to arrays built as literals.
func (b *Batch) checkBuffers() error {
	p := b.Pred
	if _, err := NewPrediction(p.Samples, p.Modes, p.Steps, p.Coords, p.Loc, p.Var); err != nil {
		return err
	}
	g := b.Target
	if _, err := NewTarget(g.Samples, g.Steps, g.Coords, g.Data); err != nil {
		return err
	}
	if b.Prob != nil {
		if _, err := NewModeProbability(b.Prob.Samples, b.Prob.Modes, b.Prob.Data); err != nil {
			return err
		}
	}
	if b.Mask != nil {
		if _, err := NewValidityMask(b.Mask.Samples, b.Mask.Steps, b.Mask.Data); err != nil {
			return err
		}
	}
	if b.Extra != nil {
		if _, err := NewFeatures(b.Extra.Samples, b.Extra.Width, b.Extra.Data); err != nil {
			return err
		}
	}
	return nil
}

// Select gathers the samples whose keep flag is set into a new batch.
// Absent arrays stay absent. The group pointer is rebuilt so that each group
// keeps only its surviving samples.
func (b *Batch) Select(keep []bool) *Batch {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}

	p := b.Pred
	out := &Batch{
		Pred: &Prediction{
			Samples: n,
			Modes:   p.Modes,
			Steps:   p.Steps,
			Coords:  p.Coords,
			Loc:     gatherRows(p.Loc, p.Modes*p.modeBlock(), keep),
		},
		Target: &Target{
			Samples: n,
			Steps:   b.Target.Steps,
			Coords:  b.Target.Coords,
			Data:    gatherRows(b.Target.Data, b.Target.Steps*b.Target.Coords, keep),
		},
	}
	if p.Var != nil {
		out.Pred.Var = gatherRows(p.Var, p.Modes*p.modeBlock(), keep)
	}
	if b.Prob != nil {
		out.Prob = &ModeProbability{Samples: n, Modes: b.Prob.Modes, Data: gatherRows(b.Prob.Data, b.Prob.Modes, keep)}
	}
	if b.Mask != nil {
		out.Mask = &ValidityMask{Samples: n, Steps: b.Mask.Steps, Data: gatherRows(b.Mask.Data, b.Mask.Steps, keep)}
	}
	if b.Extra != nil {
		out.Extra = &Features{Samples: n, Width: b.Extra.Width, Data: gatherRows(b.Extra.Data, b.Extra.Width, keep)}
	}
	if b.Ptr != nil {
		out.Ptr = b.Ptr.selectGroups(keep)
	}
	return out
}

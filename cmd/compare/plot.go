package main

import (
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/Noofbiz/forecasteval/forecast"
	"github.com/Noofbiz/forecasteval/metrics"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotSamples writes one PNG per sample of b (up to n) showing every
// predicted mode (faint), the most probable mode (blue) and the observed
// steps of the target (grey).
func plotSamples(outDir string, b *forecast.Batch, ids []string, n int) error {
	if err := ensureDir(outDir); err != nil {
		return err
	}
	top, _ := metrics.TopK(1, b.Pred, b.Prob)
	for s := 0; s < min(n, b.Len()); s++ {
		path := filepath.Join(outDir, fmt.Sprintf("sample_%s.png", ids[s]))
		if err := plotSample(path, b, top, s, ids[s]); err != nil {
			return fmt.Errorf("plot %s: %w", ids[s], err)
		}
	}
	return nil
}

func plotSample(path string, b *forecast.Batch, top *forecast.Prediction, s int, id string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Sample %s: target (grey), top mode (blue), other modes", id)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	var all plotter.XYs
	for m := 0; m < b.Pred.Modes; m++ {
		xys := modePath(b.Pred, s, m)
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 40, G: 120, B: 40, A: uint8(90 + (m%3)*30)}
		line.Width = vg.Points(0.8)
		p.Add(line)
		if m == 0 {
			p.Legend.Add("modes", line)
		}
		all = append(all, xys...)
	}

	best, err := plotter.NewLine(modePath(top, s, 0))
	if err != nil {
		return err
	}
	best.Color = color.RGBA{R: 20, G: 80, B: 200, A: 230}
	best.Width = vg.Points(1.6)
	p.Add(best)
	p.Legend.Add("top mode", best)

	var truth plotter.XYs
	for t := 0; t < b.Target.Steps; t++ {
		if b.Mask.Valid(s, t) {
			pt := b.Target.Point(s, t)
			truth = append(truth, plotter.XY{X: pt[0], Y: pt[1]})
		}
	}
	if len(truth) > 0 {
		sc, err := plotter.NewScatter(truth)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 200}
		sc.GlyphStyle.Radius = vg.Points(2.2)
		p.Add(sc)
		p.Legend.Add("target", sc)
		all = append(all, truth...)
	}

	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = autoRange(all)
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// modePath returns the first two coordinates of mode m of sample s.
func modePath(pred *forecast.Prediction, s, m int) plotter.XYs {
	xys := make(plotter.XYs, pred.Steps)
	for t := range xys {
		pt := pred.Point(s, m, t)
		xys[t].X, xys[t].Y = pt[0], pt[1]
	}
	return xys
}

// autoRange pads the bounding box of xys by 6%, or by 1 along an axis with
// no extent.
func autoRange(xys plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xys) == 0 {
		return -1, 1, -1, 1
	}
	xs := make([]float64, len(xys))
	ys := make([]float64, len(xys))
	for i, pt := range xys {
		xs[i], ys[i] = pt.X, pt.Y
	}
	xmin, xmax = floats.Min(xs), floats.Max(xs)
	ymin, ymax = floats.Min(ys), floats.Max(ys)
	padx, pady := (xmax-xmin)*0.06, (ymax-ymin)*0.06
	if padx == 0 {
		padx = 1
	}
	if pady == 0 {
		pady = 1
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

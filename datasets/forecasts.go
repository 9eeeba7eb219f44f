package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Noofbiz/forecasteval/forecast"
	"github.com/Noofbiz/forecasteval/log"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Prediction and target CSV columns. Prediction files hold one row per
// (sample, mode, step); target files one row per observed (sample, step).
// var_x/var_y and valid are optional.
var (
	predictionColumns = []string{"sample_id", "scene_id", "mode", "step", "x", "y", "logit"}
	targetColumns     = []string{"sample_id", "scene_id", "step", "x", "y"}
)

// ForecastDataset lazily joins predicted trajectories with ground truth read
// from CSV files. Only an index of row locations is kept in memory; the
// values are read when a batch is requested.
//
// Samples are ordered by scene so that a run of consecutive samples forms
// whole scenes, and every batch carries a forecast.GroupPointer over them.
// A target step with no row, or whose valid column is false, is invalid.
type ForecastDataset struct {
	// Patterns used to find the CSV files (e.g. "out/preds/*.csv").
	PredictionPattern string
	TargetPattern     string

	// ScenesPerBatch is the number of scenes yielded per batch by Yield.
	ScenesPerBatch int

	pred   csvSource
	target csvSource

	samples []*sampleIndex
	scenes  forecast.GroupPointer

	modes  int
	steps  int
	hasVar bool

	// next scene yielded by Yield
	cursor int
}

// csvSource is a set of CSV files sharing one header layout.
type csvSource struct {
	paths    []string
	colIndex map[string]int
}

type rowRef struct {
	file, row int
}

type sampleIndex struct {
	id, scene string
	pred      []rowRef
	target    []rowRef
}

// NewForecastDataset indexes the prediction and target files matching the
// given patterns.
func NewForecastDataset(predictionPattern, targetPattern string) (*ForecastDataset, error) {
	d := &ForecastDataset{
		PredictionPattern: predictionPattern,
		TargetPattern:     targetPattern,
		ScenesPerBatch:    32,
	}
	var err error
	if d.pred, err = openSource(predictionPattern, predictionColumns); err != nil {
		return nil, fmt.Errorf("predictions: %w", err)
	}
	if d.target, err = openSource(targetPattern, targetColumns); err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	_, vx := d.pred.colIndex["var_x"]
	_, vy := d.pred.colIndex["var_y"]
	if vx != vy {
		return nil, fmt.Errorf("predictions: var_x and var_y must be given together")
	}
	d.hasVar = vx

	if err := d.buildIndex(); err != nil {
		return nil, err
	}
	log.Debugf("indexed %d samples in %d scenes (%d modes, %d steps) from %d prediction and %d target files",
		len(d.samples), d.NumScenes(), d.modes, d.steps, len(d.pred.paths), len(d.target.paths))
	return d, nil
}

// openSource globs pattern and checks the header of every file for the
// required columns. All files must share the first file's layout.
func openSource(pattern string, required []string) (csvSource, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return csvSource{}, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return csvSource{}, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}
	src := csvSource{paths: paths}
	for i, path := range paths {
		idx, err := readHeader(path)
		if err != nil {
			return csvSource{}, err
		}
		for _, col := range required {
			if _, ok := idx[col]; !ok {
				return csvSource{}, fmt.Errorf("required column %q not found in %s", col, path)
			}
		}
		if i == 0 {
			src.colIndex = idx
			continue
		}
		if !sameLayout(src.colIndex, idx) {
			return csvSource{}, fmt.Errorf("%s does not share the column layout of %s", path, paths[0])
		}
	}
	return src, nil
}

// buildIndex scans every file once, recording where each sample's rows live
// and the mode and step extents.
func (d *ForecastDataset) buildIndex() error {
	byID := make(map[string]*sampleIndex)
	order := make([]*sampleIndex, 0)

	maxMode, maxStep := -1, -1
	err := d.pred.scan(func(file, row int, rec []string) error {
		id, scene := rec[d.pred.colIndex["sample_id"]], rec[d.pred.colIndex["scene_id"]]
		mode, err := parseIndex(rec[d.pred.colIndex["mode"]])
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		step, err := parseIndex(rec[d.pred.colIndex["step"]])
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		s, ok := byID[id]
		if !ok {
			s = &sampleIndex{id: id, scene: scene}
			byID[id] = s
			order = append(order, s)
		} else if s.scene != scene {
			return fmt.Errorf("sample %q appears in scenes %q and %q", id, s.scene, scene)
		}
		s.pred = append(s.pred, rowRef{file, row})
		maxMode, maxStep = max(maxMode, mode), max(maxStep, step)
		return nil
	})
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return fmt.Errorf("prediction files hold no rows")
	}
	d.modes, d.steps = maxMode+1, maxStep+1

	err = d.target.scan(func(file, row int, rec []string) error {
		id := rec[d.target.colIndex["sample_id"]]
		s, ok := byID[id]
		if !ok {
			log.Warnf("skipping target row %d of %s: sample %q has no predictions", row, d.target.paths[file], id)
			return nil
		}
		step, err := parseIndex(rec[d.target.colIndex["step"]])
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		if step >= d.steps {
			return fmt.Errorf("target step %d of sample %q is beyond the predicted horizon %d", step, id, d.steps)
		}
		s.target = append(s.target, rowRef{file, row})
		return nil
	})
	if err != nil {
		return err
	}

	for _, s := range order {
		if want := d.modes * d.steps; len(s.pred) != want {
			return fmt.Errorf("sample %q has %d prediction rows, want %d (modes x steps)", s.id, len(s.pred), want)
		}
	}

	// Stable so samples keep file order within a scene.
	sort.SliceStable(order, func(i, j int) bool { return order[i].scene < order[j].scene })
	keys := make([]string, len(order))
	for i, s := range order {
		keys[i] = s.scene
	}
	d.samples = order
	d.scenes = forecast.PointerFromKeys(keys)
	return nil
}

// Len returns the number of samples.
func (d *ForecastDataset) Len() int { return len(d.samples) }

// NumScenes returns the number of distinct scenes.
func (d *ForecastDataset) NumScenes() int { return d.scenes.NumGroups() }

// Modes returns the number of predicted modes per sample.
func (d *ForecastDataset) Modes() int { return d.modes }

// Steps returns the prediction horizon.
func (d *ForecastDataset) Steps() int { return d.steps }

// SceneBatches partitions the sample indices into batches of up to
// scenesPerBatch whole scenes, in dataset order.
func (d *ForecastDataset) SceneBatches(scenesPerBatch int) [][]int {
	scenesPerBatch = max(1, scenesPerBatch)
	var out [][]int
	for g := 0; g < d.NumScenes(); g += scenesPerBatch {
		start, _ := d.scenes.Span(g)
		_, end := d.scenes.Span(min(g+scenesPerBatch, d.NumScenes()) - 1)
		idx := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			idx = append(idx, i)
		}
		out = append(out, idx)
	}
	return out
}

// Batch reads the samples at indices into a forecast.Batch. The group
// pointer is built from the samples' scenes, so indices should list each
// scene's samples contiguously (SceneBatches does). Each index may appear
// only once.
func (d *ForecastDataset) Batch(indices []int) (*forecast.Batch, error) {
	n := len(indices)
	block := d.modes * d.steps * 2

	loc := make([]float64, n*block)
	var variance []float64
	if d.hasVar {
		variance = make([]float64, n*block)
	}
	logits := make([]float64, n*d.modes)
	targets := make([]float64, n*d.steps*2)
	valid := make([]bool, n*d.steps)

	predRows := make(map[int]map[int]int)
	targetRows := make(map[int]map[int]int)
	keys := make([]string, n)
	seen := make(map[int]bool, n)
	for pos, idx := range indices {
		if idx < 0 || idx >= len(d.samples) {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.samples))
		}
		if seen[idx] {
			return nil, fmt.Errorf("index %d requested more than once", idx)
		}
		seen[idx] = true
		s := d.samples[idx]
		keys[pos] = s.scene
		addRows(predRows, s.pred, pos)
		addRows(targetRows, s.target, pos)
	}

	err := d.pred.readRows(predRows, func(pos int, rec []string) error {
		ci := d.pred.colIndex
		mode, err := parseIndex(rec[ci["mode"]])
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		step, err := parseIndex(rec[ci["step"]])
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		i := pos*block + (mode*d.steps+step)*2
		if err := parseInto(loc[i:i+2], rec, ci, "x", "y"); err != nil {
			return err
		}
		if d.hasVar {
			if err := parseInto(variance[i:i+2], rec, ci, "var_x", "var_y"); err != nil {
				return err
			}
		}
		return parseInto(logits[pos*d.modes+mode:pos*d.modes+mode+1], rec, ci, "logit")
	})
	if err != nil {
		return nil, err
	}

	err = d.target.readRows(targetRows, func(pos int, rec []string) error {
		ci := d.target.colIndex
		step, err := parseIndex(rec[ci["step"]])
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		i := pos*d.steps + step
		if err := parseInto(targets[2*i:2*i+2], rec, ci, "x", "y"); err != nil {
			return err
		}
		valid[i] = true
		if col, ok := ci["valid"]; ok {
			if valid[i], err = parseValid(rec[col]); err != nil {
				return fmt.Errorf("valid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pred, err := forecast.NewPrediction(n, d.modes, d.steps, 2, loc, variance)
	if err != nil {
		return nil, err
	}
	target, err := forecast.NewTarget(n, d.steps, 2, targets)
	if err != nil {
		return nil, err
	}
	prob, err := forecast.NewModeProbability(n, d.modes, logits)
	if err != nil {
		return nil, err
	}
	mask, err := forecast.NewValidityMask(n, d.steps, valid)
	if err != nil {
		return nil, err
	}
	return &forecast.Batch{
		Pred:   pred,
		Target: target,
		Prob:   prob,
		Mask:   mask,
		Ptr:    forecast.PointerFromKeys(keys),
	}, nil
}

// SampleIDs returns the sample identifiers at indices.
func (d *ForecastDataset) SampleIDs(indices []int) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = d.samples[idx].id
	}
	return out
}

// Tensors reads a batch and returns it as gomlx tensors keyed by the
// forecast.Tensor* names.
func (d *ForecastDataset) Tensors(indices []int) (map[string]*tensors.Tensor, error) {
	b, err := d.Batch(indices)
	if err != nil {
		return nil, err
	}
	return b.ToTensors(), nil
}

// Name returns the name of the dataset.
func (d *ForecastDataset) Name() string {
	return "ForecastDataset"
}

// Yield returns the next ScenesPerBatch scenes in the gomlx train.Dataset
// shape: inputs are the prediction tensors (pred_loc, prob and pred_var when
// present) and labels are target and valid_mask. spec is the
// *forecast.Batch the tensors were built from. io.EOF marks the end of the
// epoch.
func (d *ForecastDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= d.NumScenes() {
		return nil, nil, nil, io.EOF
	}
	last := min(d.cursor+max(1, d.ScenesPerBatch), d.NumScenes())
	start, _ := d.scenes.Span(d.cursor)
	_, end := d.scenes.Span(last - 1)
	d.cursor = last

	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	b, err := d.Batch(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	ts := b.ToTensors()
	inputs = []*tensors.Tensor{ts[forecast.TensorPredLoc], ts[forecast.TensorProb]}
	if v, ok := ts[forecast.TensorPredVar]; ok {
		inputs = append(inputs, v)
	}
	labels = []*tensors.Tensor{ts[forecast.TensorTarget], ts[forecast.TensorMask]}
	return b, inputs, labels, nil
}

// Restart rewinds Yield to the first scene.
func (d *ForecastDataset) Restart() error {
	d.cursor = 0
	return nil
}

func addRows(byFile map[int]map[int]int, refs []rowRef, pos int) {
	for _, r := range refs {
		rows, ok := byFile[r.file]
		if !ok {
			rows = make(map[int]int)
			byFile[r.file] = rows
		}
		rows[r.row] = pos
	}
}

// scan calls fn for every data row of every file in the source.
func (src csvSource) scan(fn func(file, row int, rec []string) error) error {
	for file, path := range src.paths {
		if err := scanFile(path, func(row int, rec []string) error { return fn(file, row, rec) }); err != nil {
			return err
		}
	}
	return nil
}

// readRows visits only the rows listed in byFile (file -> row -> batch
// position), reading each file at most once.
func (src csvSource) readRows(byFile map[int]map[int]int, fn func(pos int, rec []string) error) error {
	for file, rows := range byFile {
		remaining := len(rows)
		err := scanFile(src.paths[file], func(row int, rec []string) error {
			pos, ok := rows[row]
			if !ok {
				return nil
			}
			remaining--
			if err := fn(pos, rec); err != nil {
				return err
			}
			if remaining == 0 {
				return errStopScan
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// scanFile streams the data rows of path, skipping the header. Errors from
// fn are wrapped with the file and row; errStopScan ends the scan early.
func scanFile(path string, fn func(row int, rec []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for row := 0; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d of %s: %w", row, path, err)
		}
		if err := fn(row, rec); err != nil {
			if err == errStopScan {
				return nil
			}
			return fmt.Errorf("%s row %d: %w", path, row, err)
		}
	}
}

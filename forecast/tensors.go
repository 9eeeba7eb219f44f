package forecast

import (
	"fmt"
	"reflect"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Tensor names used by ToTensors and BatchFromTensors.
const (
	TensorPredLoc = "pred_loc"
	TensorPredVar = "pred_var"
	TensorTarget  = "target"
	TensorProb    = "prob"
	TensorMask    = "valid_mask"
	TensorExtra   = "extra"
	TensorPtr     = "ptr"
)

// ToTensors converts the batch into gomlx tensors keyed by the Tensor*
// names. Absent arrays are omitted from the map.
func (b *Batch) ToTensors() map[string]*tensors.Tensor {
	p := b.Pred
	out := map[string]*tensors.Tensor{
		TensorPredLoc: tensors.FromFlatDataAndDimensions(p.Loc, p.Samples, p.Modes, p.Steps, p.Coords),
		TensorTarget:  tensors.FromFlatDataAndDimensions(b.Target.Data, b.Target.Samples, b.Target.Steps, b.Target.Coords),
	}
	if p.Var != nil {
		out[TensorPredVar] = tensors.FromFlatDataAndDimensions(p.Var, p.Samples, p.Modes, p.Steps, p.Coords)
	}
	if b.Prob != nil {
		out[TensorProb] = tensors.FromFlatDataAndDimensions(b.Prob.Data, b.Prob.Samples, b.Prob.Modes)
	}
	if b.Mask != nil {
		out[TensorMask] = tensors.FromFlatDataAndDimensions(b.Mask.Data, b.Mask.Samples, b.Mask.Steps)
	}
	if b.Extra != nil {
		out[TensorExtra] = tensors.FromFlatDataAndDimensions(b.Extra.Data, b.Extra.Samples, b.Extra.Width)
	}
	if b.Ptr != nil {
		ptr := make([]int64, len(b.Ptr))
		for i, v := range b.Ptr {
			ptr[i] = int64(v)
		}
		out[TensorPtr] = tensors.FromFlatDataAndDimensions(ptr, len(ptr))
	}
	return out
}

// BatchFromTensors rebuilds a Batch from tensors keyed by the Tensor* names,
// e.g. the outputs of a gomlx model execution. pred_loc and target are
// required; every other entry is optional. Float32, float64, integer and
// bool tensors are accepted and widened to float64.
func BatchFromTensors(ts map[string]*tensors.Tensor) (*Batch, error) {
	loc, dims, err := readTensor(ts, TensorPredLoc, 4)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmt.Errorf("tensor %q is required", TensorPredLoc)
	}
	var variance []float64
	if v, _, err := readTensor(ts, TensorPredVar, 4); err != nil {
		return nil, err
	} else if v != nil {
		variance = v
	}
	pred, err := NewPrediction(dims[0], dims[1], dims[2], dims[3], loc, variance)
	if err != nil {
		return nil, err
	}

	data, tdims, err := readTensor(ts, TensorTarget, 3)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("tensor %q is required", TensorTarget)
	}
	target, err := NewTarget(tdims[0], tdims[1], tdims[2], data)
	if err != nil {
		return nil, err
	}
	b := &Batch{Pred: pred, Target: target}

	if data, d, err := readTensor(ts, TensorProb, 2); err != nil {
		return nil, err
	} else if data != nil {
		if b.Prob, err = NewModeProbability(d[0], d[1], data); err != nil {
			return nil, err
		}
	}
	if data, d, err := readTensor(ts, TensorMask, 2); err != nil {
		return nil, err
	} else if data != nil {
		flags := make([]bool, len(data))
		for i, v := range data {
			flags[i] = v != 0
		}
		if b.Mask, err = NewValidityMask(d[0], d[1], flags); err != nil {
			return nil, err
		}
	}
	if data, d, err := readTensor(ts, TensorExtra, 2); err != nil {
		return nil, err
	} else if data != nil {
		if b.Extra, err = NewFeatures(d[0], d[1], data); err != nil {
			return nil, err
		}
	}
	if data, _, err := readTensor(ts, TensorPtr, 1); err != nil {
		return nil, err
	} else if data != nil {
		b.Ptr = make(GroupPointer, len(data))
		for i, v := range data {
			b.Ptr[i] = int(v)
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// readTensor flattens ts[name] into float64 values. It returns nil values
// without error when the tensor is absent.
func readTensor(ts map[string]*tensors.Tensor, name string, rank int) ([]float64, []int, error) {
	t, ok := ts[name]
	if !ok || t == nil {
		return nil, nil, nil
	}
	dims := t.Shape().Dimensions
	if len(dims) != rank {
		return nil, nil, shapeErrorf("tensor %q has rank %d, want %d", name, len(dims), rank)
	}
	size := 1
	for _, d := range dims {
		size *= d
	}
	flat := make([]float64, 0, size)
	flat, err := appendFlat(flat, t.Value())
	if err != nil {
		return nil, nil, fmt.Errorf("tensor %q: %w", name, err)
	}
	if len(flat) != size {
		return nil, nil, shapeErrorf("tensor %q holds %d values, shape wants %d", name, len(flat), size)
	}
	return flat, dims, nil
}

// appendFlat walks the nested slices returned by Tensor.Value.
func appendFlat(dst []float64, v any) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return append(dst, x...), nil
	case []float32:
		for _, f := range x {
			dst = append(dst, float64(f))
		}
		return dst, nil
	case []int64:
		for _, f := range x {
			dst = append(dst, float64(f))
		}
		return dst, nil
	case []int32:
		for _, f := range x {
			dst = append(dst, float64(f))
		}
		return dst, nil
	case []bool:
		for _, f := range x {
			if f {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		}
		return dst, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unsupported tensor value of type %T", v)
	}
	var err error
	for i := 0; i < rv.Len(); i++ {
		if dst, err = appendFlat(dst, rv.Index(i).Interface()); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

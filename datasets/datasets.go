package datasets

import (
	"github.com/Noofbiz/forecasteval/forecast"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// This package loads trajectory forecasts and their ground truth from CSV
// files and presents them as forecast.Batch values ready for the losses and
// metrics packages, or as gomlx tensors.
//
// Files are loaded lazily: the constructor only records where each sample's
// rows live, and the values are read when a batch is built, so prediction
// dumps larger than memory can be evaluated scene by scene.
//
// Layout:
//
//	predictions: sample_id,scene_id,mode,step,x,y[,var_x,var_y],logit
//	targets:     sample_id,scene_id,step,x,y[,valid]
//
// The logit column is repeated on every row of a (sample, mode) pair.

// Dataset is implemented by ForecastDataset. The Name, Yield and Restart
// methods match gomlx's train.Dataset so a dataset can feed a gomlx loop.
type Dataset interface {
	Len() int
	Batch(indices []int) (*forecast.Batch, error)
	Tensors(indices []int) (map[string]*tensors.Tensor, error)

	Name() string
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Restart() error
}

var _ Dataset = (*ForecastDataset)(nil)

package layers

import (
	"github.com/voxseg/voxseg/tensor"
)

// ReLU is the elementwise rectified-linear activation.
type ReLU struct{}

func NewReLU() *ReLU {
	return &ReLU{}
}

func (r *ReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if _, err := x.Float32s(); err != nil {
		return nil, err
	}

	result := x.Clone()
	out := result.Data.([]float32)

	for i, v := range out {
		if v < 0 {
			out[i] = 0
		}
	}

	return result, nil
}

package layers

import (
	"fmt"
	"math"

	"github.com/voxseg/voxseg/tensor"
)

// BatchNorm3D normalizes each channel over the batch and spatial axes.
// Training mode uses batch statistics and updates the running estimates;
// evaluation mode uses the running estimates. The mode is owned by the
// surrounding harness.
type BatchNorm3D struct {
	NumFeatures int
	Eps         float32
	Momentum    float32
	Training    bool

	Gamma       []float32
	Beta        []float32
	RunningMean []float32
	RunningVar  []float32
}

func NewBatchNorm3D(numFeatures int) (*BatchNorm3D, error) {
	if numFeatures <= 0 {
		return nil, fmt.Errorf("batchnorm3d: numFeatures must be positive, got %d", numFeatures)
	}

	gamma := make([]float32, numFeatures)
	runningVar := make([]float32, numFeatures)
	for i := range gamma {
		gamma[i] = 1
		runningVar[i] = 1
	}

	return &BatchNorm3D{
		NumFeatures: numFeatures,
		Eps:         1e-5,
		Momentum:    0.1,
		Training:    true,
		Gamma:       gamma,
		Beta:        make([]float32, numFeatures),
		RunningMean: make([]float32, numFeatures),
		RunningVar:  runningVar,
	}, nil
}

func (bn *BatchNorm3D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	input, err := volumeInput("batchnorm3d", x, bn.NumFeatures)
	if err != nil {
		return nil, err
	}

	batch, channels := x.Shape[0], x.Shape[1]
	spatial := x.Shape[2] * x.Shape[3] * x.Shape[4]

	result, err := tensor.Zeros(x.Shape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	out := result.Data.([]float32)

	for c := 0; c < channels; c++ {
		var mean, variance float32

		if bn.Training {
			n := float64(batch * spatial)
			var sum float64
			for b := 0; b < batch; b++ {
				base := (b*channels + c) * spatial
				for i := 0; i < spatial; i++ {
					sum += float64(input[base+i])
				}
			}
			m := sum / n

			var sq float64
			for b := 0; b < batch; b++ {
				base := (b*channels + c) * spatial
				for i := 0; i < spatial; i++ {
					d := float64(input[base+i]) - m
					sq += d * d
				}
			}
			mean = float32(m)
			variance = float32(sq / n)

			// Running stats track the unbiased variance estimate.
			unbiased := variance
			if n > 1 {
				unbiased = float32(sq / (n - 1))
			}
			bn.RunningMean[c] = (1-bn.Momentum)*bn.RunningMean[c] + bn.Momentum*mean
			bn.RunningVar[c] = (1-bn.Momentum)*bn.RunningVar[c] + bn.Momentum*unbiased
		} else {
			mean = bn.RunningMean[c]
			variance = bn.RunningVar[c]
		}

		invStd := float32(1.0 / math.Sqrt(float64(variance)+float64(bn.Eps)))
		scale := bn.Gamma[c] * invStd
		shift := bn.Beta[c] - mean*scale

		for b := 0; b < batch; b++ {
			base := (b*channels + c) * spatial
			for i := 0; i < spatial; i++ {
				out[base+i] = input[base+i]*scale + shift
			}
		}
	}

	return result, nil
}

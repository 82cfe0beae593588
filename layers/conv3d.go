package layers

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/voxseg/voxseg/tensor"
)

// Conv3D is a 3D convolution over (batch, channel, depth, height, width)
// tensors with a cubic kernel and symmetric padding.
type Conv3D struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int
	Padding     int

	// Weight layout: [outChannels][inChannels][kD][kH][kW], flattened.
	Weight []float32
	Bias   []float32
}

// NewConv3D creates a Conv3D with He-initialized weights and zero biases.
func NewConv3D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) (*Conv3D, error) {
	if inChannels <= 0 || outChannels <= 0 {
		return nil, fmt.Errorf("conv3d: channel counts must be positive, got in=%d out=%d", inChannels, outChannels)
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		return nil, fmt.Errorf("conv3d: invalid geometry kernel=%d stride=%d padding=%d", kernelSize, stride, padding)
	}
	if rng == nil {
		return nil, fmt.Errorf("conv3d: rng must not be nil")
	}

	fanIn := inChannels * kernelSize * kernelSize * kernelSize
	stddev := float32(math.Sqrt(2.0 / float64(fanIn)))

	weight := make([]float32, outChannels*fanIn)
	for i := range weight {
		weight[i] = float32(rng.NormFloat64()) * stddev
	}

	return &Conv3D{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelSize:  kernelSize,
		Stride:      stride,
		Padding:     padding,
		Weight:      weight,
		Bias:        make([]float32, outChannels),
	}, nil
}

// OutputDim returns the spatial output size for one axis.
func (c *Conv3D) OutputDim(in int) int {
	return (in+2*c.Padding-c.KernelSize)/c.Stride + 1
}

func (c *Conv3D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	input, err := volumeInput("conv3d", x, c.InChannels)
	if err != nil {
		return nil, err
	}

	batch := x.Shape[0]
	inD, inH, inW := x.Shape[2], x.Shape[3], x.Shape[4]
	outD, outH, outW := c.OutputDim(inD), c.OutputDim(inH), c.OutputDim(inW)
	if outD <= 0 || outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("conv3d: input %v too small for kernel=%d stride=%d padding=%d",
			x.Shape[2:], c.KernelSize, c.Stride, c.Padding)
	}

	result, err := tensor.Zeros([]int{batch, c.OutChannels, outD, outH, outW}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	out := result.Data.([]float32)

	k := c.KernelSize
	inC := c.InChannels

	for b := 0; b < batch; b++ {
		for f := 0; f < c.OutChannels; f++ {
			for od := 0; od < outD; od++ {
				for oh := 0; oh < outH; oh++ {
					for ow := 0; ow < outW; ow++ {
						sum := c.Bias[f]

						for ic := 0; ic < inC; ic++ {
							for kd := 0; kd < k; kd++ {
								id := od*c.Stride + kd - c.Padding
								if id < 0 || id >= inD {
									continue
								}
								for kh := 0; kh < k; kh++ {
									ih := oh*c.Stride + kh - c.Padding
									if ih < 0 || ih >= inH {
										continue
									}
									for kw := 0; kw < k; kw++ {
										iw := ow*c.Stride + kw - c.Padding
										if iw < 0 || iw >= inW {
											continue
										}
										inputIdx := ((b*inC+ic)*inD+id)*inH*inW + ih*inW + iw
										kernelIdx := ((f*inC+ic)*k+kd)*k*k + kh*k + kw
										sum += input[inputIdx] * c.Weight[kernelIdx]
									}
								}
							}
						}

						out[((b*c.OutChannels+f)*outD+od)*outH*outW+oh*outW+ow] = sum
					}
				}
			}
		}
	}

	return result, nil
}

// volumeInput validates a 5-D Float32 input and returns its data slice.
func volumeInput(op string, x *tensor.Tensor, wantChannels int) ([]float32, error) {
	if len(x.Shape) != 5 {
		return nil, fmt.Errorf("%s: input must be 5-dimensional (N,C,D,H,W), got shape %v", op, x.Shape)
	}
	if wantChannels > 0 && x.Shape[1] != wantChannels {
		return nil, fmt.Errorf("%s: input has %d channels, layer expects %d", op, x.Shape[1], wantChannels)
	}
	return x.Float32s()
}

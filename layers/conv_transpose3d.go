package layers

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/voxseg/voxseg/tensor"
)

// ConvTranspose3D is a 3D transposed convolution used for learned 2x
// upsampling in the decoder path.
type ConvTranspose3D struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int

	// Weight layout: [inChannels][outChannels][kD][kH][kW], flattened.
	Weight []float32
	Bias   []float32
}

func NewConvTranspose3D(inChannels, outChannels, kernelSize, stride int, rng *rand.Rand) (*ConvTranspose3D, error) {
	if inChannels <= 0 || outChannels <= 0 {
		return nil, fmt.Errorf("conv_transpose3d: channel counts must be positive, got in=%d out=%d", inChannels, outChannels)
	}
	if kernelSize <= 0 || stride <= 0 {
		return nil, fmt.Errorf("conv_transpose3d: invalid geometry kernel=%d stride=%d", kernelSize, stride)
	}
	if rng == nil {
		return nil, fmt.Errorf("conv_transpose3d: rng must not be nil")
	}

	k3 := kernelSize * kernelSize * kernelSize
	fanIn := inChannels * k3
	stddev := float32(math.Sqrt(2.0 / float64(fanIn)))

	weight := make([]float32, inChannels*outChannels*k3)
	for i := range weight {
		weight[i] = float32(rng.NormFloat64()) * stddev
	}

	return &ConvTranspose3D{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelSize:  kernelSize,
		Stride:      stride,
		Weight:      weight,
		Bias:        make([]float32, outChannels),
	}, nil
}

// OutputDim returns the spatial output size for one axis.
func (c *ConvTranspose3D) OutputDim(in int) int {
	return (in-1)*c.Stride + c.KernelSize
}

func (c *ConvTranspose3D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	input, err := volumeInput("conv_transpose3d", x, c.InChannels)
	if err != nil {
		return nil, err
	}

	batch := x.Shape[0]
	inD, inH, inW := x.Shape[2], x.Shape[3], x.Shape[4]
	outD, outH, outW := c.OutputDim(inD), c.OutputDim(inH), c.OutputDim(inW)

	result, err := tensor.Zeros([]int{batch, c.OutChannels, outD, outH, outW}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	out := result.Data.([]float32)

	k := c.KernelSize
	k3 := k * k * k
	inC := c.InChannels

	// Scatter each input voxel into the stride-spaced output window it
	// contributes to, then add the bias in a final pass.
	for b := 0; b < batch; b++ {
		for ic := 0; ic < inC; ic++ {
			for id := 0; id < inD; id++ {
				for ih := 0; ih < inH; ih++ {
					for iw := 0; iw < inW; iw++ {
						v := input[((b*inC+ic)*inD+id)*inH*inW+ih*inW+iw]
						for f := 0; f < c.OutChannels; f++ {
							wBase := (ic*c.OutChannels + f) * k3
							for kd := 0; kd < k; kd++ {
								od := id*c.Stride + kd
								for kh := 0; kh < k; kh++ {
									oh := ih*c.Stride + kh
									for kw := 0; kw < k; kw++ {
										ow := iw*c.Stride + kw
										outIdx := ((b*c.OutChannels+f)*outD+od)*outH*outW + oh*outW + ow
										out[outIdx] += v * c.Weight[wBase+kd*k*k+kh*k+kw]
									}
								}
							}
						}
					}
				}
			}
		}

		for f := 0; f < c.OutChannels; f++ {
			base := (b*c.OutChannels + f) * outD * outH * outW
			for i := 0; i < outD*outH*outW; i++ {
				out[base+i] += c.Bias[f]
			}
		}
	}

	return result, nil
}

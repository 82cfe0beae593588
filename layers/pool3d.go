package layers

import (
	"fmt"
	"math"

	"github.com/voxseg/voxseg/tensor"
)

// MaxPool3D downsamples by taking the maximum over non-overlapping windows.
// Output dims use truncating division, so trailing elements of odd-sized
// axes are dropped.
type MaxPool3D struct {
	KernelSize int
	Stride     int
}

func NewMaxPool3D(kernelSize, stride int) (*MaxPool3D, error) {
	if kernelSize <= 0 || stride <= 0 {
		return nil, fmt.Errorf("maxpool3d: invalid geometry kernel=%d stride=%d", kernelSize, stride)
	}
	return &MaxPool3D{KernelSize: kernelSize, Stride: stride}, nil
}

// OutputDim returns the spatial output size for one axis.
func (p *MaxPool3D) OutputDim(in int) int {
	return (in-p.KernelSize)/p.Stride + 1
}

func (p *MaxPool3D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	input, err := volumeInput("maxpool3d", x, 0)
	if err != nil {
		return nil, err
	}

	batch, channels := x.Shape[0], x.Shape[1]
	inD, inH, inW := x.Shape[2], x.Shape[3], x.Shape[4]
	outD, outH, outW := p.OutputDim(inD), p.OutputDim(inH), p.OutputDim(inW)
	if outD <= 0 || outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("maxpool3d: input %v too small for kernel=%d", x.Shape[2:], p.KernelSize)
	}

	result, err := tensor.Full([]int{batch, channels, outD, outH, outW}, tensor.Float32, math.Inf(-1))
	if err != nil {
		return nil, err
	}
	out := result.Data.([]float32)

	k := p.KernelSize

	for bc := 0; bc < batch*channels; bc++ {
		inBase := bc * inD * inH * inW
		outBase := bc * outD * outH * outW
		for od := 0; od < outD; od++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					outIdx := outBase + (od*outH+oh)*outW + ow
					for kd := 0; kd < k; kd++ {
						id := od*p.Stride + kd
						for kh := 0; kh < k; kh++ {
							ih := oh*p.Stride + kh
							for kw := 0; kw < k; kw++ {
								iw := ow*p.Stride + kw
								v := input[inBase+(id*inH+ih)*inW+iw]
								if v > out[outIdx] {
									out[outIdx] = v
								}
							}
						}
					}
				}
			}
		}
	}

	return result, nil
}

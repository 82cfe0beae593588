package unet

import (
	"math/rand"

	"github.com/voxseg/voxseg/layers"
	"github.com/voxseg/voxseg/tensor"
)

// ResidualBlock is two 3x3x3 conv+batchnorm pairs with a shortcut added
// before the final activation. The shortcut is the identity unless the
// channel count or stride changes, in which case it is a strided 1x1x1
// convolution.
type ResidualBlock struct {
	conv1    *layers.Conv3D
	bn1      *layers.BatchNorm3D
	conv2    *layers.Conv3D
	bn2      *layers.BatchNorm3D
	relu     *layers.ReLU
	shortcut *layers.Conv3D // nil means identity
}

func NewResidualBlock(inChannels, outChannels, stride int, rng *rand.Rand) (*ResidualBlock, error) {
	conv1, err := layers.NewConv3D(inChannels, outChannels, 3, stride, 1, rng)
	if err != nil {
		return nil, err
	}
	bn1, err := layers.NewBatchNorm3D(outChannels)
	if err != nil {
		return nil, err
	}
	conv2, err := layers.NewConv3D(outChannels, outChannels, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	bn2, err := layers.NewBatchNorm3D(outChannels)
	if err != nil {
		return nil, err
	}

	block := &ResidualBlock{
		conv1: conv1,
		bn1:   bn1,
		conv2: conv2,
		bn2:   bn2,
		relu:  layers.NewReLU(),
	}

	if stride != 1 || inChannels != outChannels {
		block.shortcut, err = layers.NewConv3D(inChannels, outChannels, 1, stride, 0, rng)
		if err != nil {
			return nil, err
		}
	}

	return block, nil
}

func (rb *ResidualBlock) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := rb.conv1.Forward(x)
	if err != nil {
		return nil, err
	}
	out, err = rb.bn1.Forward(out)
	if err != nil {
		return nil, err
	}
	out, err = rb.relu.Forward(out)
	if err != nil {
		return nil, err
	}
	out, err = rb.conv2.Forward(out)
	if err != nil {
		return nil, err
	}
	out, err = rb.bn2.Forward(out)
	if err != nil {
		return nil, err
	}

	skip := x
	if rb.shortcut != nil {
		skip, err = rb.shortcut.Forward(x)
		if err != nil {
			return nil, err
		}
	}
	out, err = tensor.Add(out, skip)
	if err != nil {
		return nil, err
	}

	return rb.relu.Forward(out)
}

func (rb *ResidualBlock) setTraining(training bool) {
	rb.bn1.Training = training
	rb.bn2.Training = training
}

// DoubleConv is two 3x3x3 conv+batchnorm+relu pairs at constant channel
// count, used to refine decoder features after upsampling.
type DoubleConv struct {
	conv1 *layers.Conv3D
	bn1   *layers.BatchNorm3D
	conv2 *layers.Conv3D
	bn2   *layers.BatchNorm3D
	relu  *layers.ReLU
}

func NewDoubleConv(inChannels, outChannels int, rng *rand.Rand) (*DoubleConv, error) {
	conv1, err := layers.NewConv3D(inChannels, outChannels, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	bn1, err := layers.NewBatchNorm3D(outChannels)
	if err != nil {
		return nil, err
	}
	conv2, err := layers.NewConv3D(outChannels, outChannels, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	bn2, err := layers.NewBatchNorm3D(outChannels)
	if err != nil {
		return nil, err
	}

	return &DoubleConv{
		conv1: conv1,
		bn1:   bn1,
		conv2: conv2,
		bn2:   bn2,
		relu:  layers.NewReLU(),
	}, nil
}

func (dc *DoubleConv) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := dc.conv1.Forward(x)
	if err != nil {
		return nil, err
	}
	out, err = dc.bn1.Forward(out)
	if err != nil {
		return nil, err
	}
	out, err = dc.relu.Forward(out)
	if err != nil {
		return nil, err
	}
	out, err = dc.conv2.Forward(out)
	if err != nil {
		return nil, err
	}
	out, err = dc.bn2.Forward(out)
	if err != nil {
		return nil, err
	}
	return dc.relu.Forward(out)
}

func (dc *DoubleConv) setTraining(training bool) {
	dc.bn1.Training = training
	dc.bn2.Training = training
}

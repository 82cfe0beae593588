// Package unet implements a 3D encoder-decoder segmentation network with
// residual contracting blocks and transposed-convolution expansion, in the
// shape of the classic U-Net.
package unet

import (
	"fmt"
	"math/rand"

	"github.com/voxseg/voxseg/layers"
	"github.com/voxseg/voxseg/tensor"
)

// encoderChannels drives construction of the contracting path; the decoder
// mirrors it in reverse. The bottleneck doubles the deepest entry.
var encoderChannels = []int{64, 128, 256, 512}

type encoderStage struct {
	block *ResidualBlock
	pool  *layers.MaxPool3D
}

type decoderStage struct {
	up     *layers.ConvTranspose3D
	refine *DoubleConv
}

// UNet3D maps (batch, inChannels, D, H, W) volumes to per-voxel class
// logits. Spatial dims should be divisible by 16 (four 2x poolings); other
// sizes are accepted but produce a smaller output because pooling truncates
// odd dims and skip tensors are cropped to the common minimum.
type UNet3D struct {
	InChannels int
	NumClasses int

	encoder    []encoderStage
	bottleneck *ResidualBlock
	decoder    []decoderStage
	final      *layers.Conv3D
}

// New builds a UNet3D with freshly initialized weights drawn from rng.
// Channel-count misconfiguration fails here, not at the first Forward.
func New(inChannels, numClasses int, rng *rand.Rand) (*UNet3D, error) {
	if inChannels <= 0 {
		return nil, fmt.Errorf("unet: inChannels must be positive, got %d", inChannels)
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("unet: numClasses must be positive, got %d", numClasses)
	}
	if rng == nil {
		return nil, fmt.Errorf("unet: rng must not be nil")
	}

	n := &UNet3D{InChannels: inChannels, NumClasses: numClasses}

	in := inChannels
	for _, out := range encoderChannels {
		block, err := NewResidualBlock(in, out, 1, rng)
		if err != nil {
			return nil, err
		}
		pool, err := layers.NewMaxPool3D(2, 2)
		if err != nil {
			return nil, err
		}
		n.encoder = append(n.encoder, encoderStage{block: block, pool: pool})
		in = out
	}

	bottleneckOut := 2 * encoderChannels[len(encoderChannels)-1]
	bottleneck, err := NewResidualBlock(in, bottleneckOut, 1, rng)
	if err != nil {
		return nil, err
	}
	n.bottleneck = bottleneck

	// Each decoder stage consumes the previous stage's output concatenated
	// with the matching encoder output, upsamples 2x, and refines.
	prev := bottleneckOut
	for i := len(encoderChannels) - 1; i >= 0; i-- {
		skip := encoderChannels[i]
		out := encoderChannels[i]
		up, err := layers.NewConvTranspose3D(prev+skip, out, 2, 2, rng)
		if err != nil {
			return nil, err
		}
		refine, err := NewDoubleConv(out, out, rng)
		if err != nil {
			return nil, err
		}
		n.decoder = append(n.decoder, decoderStage{up: up, refine: refine})
		prev = out
	}

	n.final, err = layers.NewConv3D(encoderChannels[0], numClasses, 1, 1, 0, rng)
	if err != nil {
		return nil, err
	}

	return n, nil
}

// SetTraining switches every normalization layer between batch statistics
// (training) and running statistics (evaluation).
func (n *UNet3D) SetTraining(training bool) {
	for _, stage := range n.encoder {
		stage.block.setTraining(training)
	}
	n.bottleneck.setTraining(training)
	for _, stage := range n.decoder {
		stage.refine.setTraining(training)
	}
}

// Forward runs the full encoder-decoder pass and returns unnormalized class
// scores. Softmax/argmax is the caller's concern.
func (n *UNet3D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 5 {
		return nil, fmt.Errorf("unet: input must be 5-dimensional (N,C,D,H,W), got shape %v", x.Shape)
	}
	if x.Shape[1] != n.InChannels {
		return nil, fmt.Errorf("unet: input has %d channels, network expects %d", x.Shape[1], n.InChannels)
	}

	skips := make([]*tensor.Tensor, len(n.encoder))
	h := x
	var err error
	for i, stage := range n.encoder {
		h, err = stage.block.Forward(h)
		if err != nil {
			return nil, err
		}
		h, err = stage.pool.Forward(h)
		if err != nil {
			return nil, err
		}
		skips[i] = h
	}

	h, err = n.bottleneck.Forward(h)
	if err != nil {
		return nil, err
	}

	for i, stage := range n.decoder {
		skip := skips[len(skips)-1-i]
		a, b, err := cropToMatch(h, skip)
		if err != nil {
			return nil, err
		}
		h, err = tensor.Concat(a, b, 1)
		if err != nil {
			return nil, err
		}
		h, err = stage.up.Forward(h)
		if err != nil {
			return nil, err
		}
		h, err = stage.refine.Forward(h)
		if err != nil {
			return nil, err
		}
	}

	return n.final.Forward(h)
}

// CenterCrop trims t's trailing spatial dims down to target's. Despite the
// conventional name it is a 0-origin prefix slice, not a centered window;
// which voxels feed the skip connections depends on this anchoring.
func CenterCrop(t, target *tensor.Tensor) (*tensor.Tensor, error) {
	if len(t.Shape) != 5 || len(target.Shape) != 5 {
		return nil, fmt.Errorf("unet: CenterCrop requires 5-dimensional tensors, got %v and %v", t.Shape, target.Shape)
	}
	want := []int{t.Shape[0], t.Shape[1], target.Shape[2], target.Shape[3], target.Shape[4]}
	if tensor.SameShape(t.Shape, want) {
		return t, nil
	}
	return tensor.Prefix(t, want)
}

// cropToMatch trims both tensors to their common minimum spatial extent so
// they can be concatenated along the channel axis.
func cropToMatch(a, b *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	minShape := func(t *tensor.Tensor) []int {
		s := append([]int(nil), t.Shape...)
		for axis := 2; axis < 5; axis++ {
			if b.Shape[axis] < s[axis] {
				s[axis] = b.Shape[axis]
			}
			if a.Shape[axis] < s[axis] {
				s[axis] = a.Shape[axis]
			}
		}
		return s
	}

	ca := a
	if sa := minShape(a); !tensor.SameShape(a.Shape, sa) {
		var err error
		ca, err = tensor.Prefix(a, sa)
		if err != nil {
			return nil, nil, err
		}
	}
	cb := b
	if sb := minShape(b); !tensor.SameShape(b.Shape, sb) {
		var err error
		cb, err = tensor.Prefix(b, sb)
		if err != nil {
			return nil, nil, err
		}
	}
	return ca, cb, nil
}

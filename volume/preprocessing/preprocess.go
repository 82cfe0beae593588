// Package preprocessing prepares raw volumes for the network: deterministic
// cropping, min-max normalization, tensor conversion, and random
// augmentation.
package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/voxseg/voxseg/tensor"
	"github.com/voxseg/voxseg/volume"
)

// CropPrefix crops the trailing three spatial axes to a fixed (d, h, w)
// window anchored at index 0, keeping any leading axes. Volumes smaller
// than the window are an error rather than a silent truncation.
func CropPrefix(v *volume.Volume, d, h, w int) (*volume.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	vd, vh, vw := v.Spatial()
	if vd < d || vh < h || vw < w {
		return nil, fmt.Errorf("%w: have %dx%dx%d, need %dx%dx%d", volume.ErrShape, vd, vh, vw, d, h, w)
	}

	channels := v.Channels()
	out := &volume.Volume{
		Data:  make([]float64, channels*d*h*w),
		Shape: []int{channels, d, h, w},
	}

	for c := 0; c < channels; c++ {
		for id := 0; id < d; id++ {
			for ih := 0; ih < h; ih++ {
				src := ((c*vd+id)*vh + ih) * vw
				dst := ((c*d+id)*h + ih) * w
				copy(out.Data[dst:dst+w], v.Data[src:src+w])
			}
		}
	}

	return out, nil
}

// NormalizeMinMax rescales the volume's values into [0, 1] in place using
// its own minimum and maximum. A constant volume is passed through
// unchanged to avoid dividing by zero.
func NormalizeMinMax(v *volume.Volume) {
	if len(v.Data) == 0 {
		return
	}

	min := floats.Min(v.Data)
	max := floats.Max(v.Data)
	if max == min {
		return
	}

	scale := 1.0 / (max - min)
	for i, val := range v.Data {
		v.Data[i] = (val - min) * scale
	}
}

// ImageTensor converts a cropped volume into a float32 (C, D, H, W) tensor.
func ImageTensor(v *volume.Volume) (*tensor.Tensor, error) {
	d, h, w := v.Spatial()
	data := make([]float32, len(v.Data))
	for i, val := range v.Data {
		data[i] = float32(val)
	}
	return tensor.New([]int{v.Channels(), d, h, w}, tensor.Float32, data)
}

// MaskTensor converts a cropped label volume into an int64 (1, D, H, W)
// tensor, coercing negative label codes to 0.
func MaskTensor(v *volume.Volume) (*tensor.Tensor, error) {
	if v.Channels() != 1 {
		return nil, fmt.Errorf("mask must be single-channel, got %d channels (shape %v)", v.Channels(), v.Shape)
	}

	d, h, w := v.Spatial()
	data := make([]int64, len(v.Data))
	for i, val := range v.Data {
		label := int64(val)
		if label < 0 {
			label = 0
		}
		data[i] = label
	}
	return tensor.New([]int{1, d, h, w}, tensor.Int64, data)
}

package preprocessing

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/voxseg/voxseg/tensor"
)

// Interp selects the resampling order for rotation and zoom. Images use
// Linear; masks must use Nearest so discrete label identities survive
// resampling instead of being blended into fractional class values.
type Interp int

const (
	Nearest Interp = iota
	Linear
)

// Axes of a (C, D, H, W) sample tensor.
const (
	axisDepth  = 1
	axisHeight = 2
	axisWidth  = 3
)

// Augmenter applies the random augmentation chain to a co-registered
// image/mask pair. All randomness comes from the injected rng, consumed in
// a fixed, documented order so augmented samples are reproducible from a
// seed: one gate draw per step (flip depth, flip width, flip height,
// rotate, zoom), plus one parameter draw immediately after a taken rotate
// or zoom gate.
type Augmenter struct {
	rng    *rand.Rand
	window [3]int
}

func NewAugmenter(rng *rand.Rand, d, h, w int) (*Augmenter, error) {
	if rng == nil {
		return nil, fmt.Errorf("augmenter: rng must not be nil")
	}
	if d <= 0 || h <= 0 || w <= 0 {
		return nil, fmt.Errorf("augmenter: invalid crop window %dx%dx%d", d, h, w)
	}
	return &Augmenter{rng: rng, window: [3]int{d, h, w}}, nil
}

// Apply transforms image and mask identically and re-crops to the fixed
// window. Each step fires with probability 0.5, in order, so later steps
// see the results of earlier ones.
func (a *Augmenter) Apply(image, mask *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	var err error

	for _, axis := range []int{axisDepth, axisWidth, axisHeight} {
		if a.rng.Float64() > 0.5 {
			image, err = tensor.Flip(image, axis)
			if err != nil {
				return nil, nil, err
			}
			mask, err = tensor.Flip(mask, axis)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if a.rng.Float64() > 0.5 {
		angle := a.rng.Float64()*60 - 30
		image, err = RotateHW(image, angle, Linear)
		if err != nil {
			return nil, nil, err
		}
		mask, err = RotateHW(mask, angle, Nearest)
		if err != nil {
			return nil, nil, err
		}
	}

	if a.rng.Float64() > 0.5 {
		factor := a.rng.Float64()*0.2 + 0.9
		image, err = Zoom(image, factor, Linear)
		if err != nil {
			return nil, nil, err
		}
		mask, err = Zoom(mask, factor, Nearest)
		if err != nil {
			return nil, nil, err
		}
	}

	image, err = a.recrop(image)
	if err != nil {
		return nil, nil, err
	}
	mask, err = a.recrop(mask)
	if err != nil {
		return nil, nil, err
	}

	return image, mask, nil
}

func (a *Augmenter) recrop(t *tensor.Tensor) (*tensor.Tensor, error) {
	want := []int{t.Shape[0], a.window[0], a.window[1], a.window[2]}
	if tensor.SameShape(t.Shape, want) {
		return t, nil
	}
	return tensor.Prefix(t, want)
}

// RotateHW rotates a (C, D, H, W) tensor by angleDeg degrees in the
// (height, width) plane about the plane's center, sampling out-of-range
// coordinates from the nearest edge.
func RotateHW(t *tensor.Tensor, angleDeg float64, order Interp) (*tensor.Tensor, error) {
	if len(t.Shape) != 4 {
		return nil, fmt.Errorf("rotate: tensor must be 4-dimensional (C,D,H,W), got shape %v", t.Shape)
	}

	c, d, h, w := t.Dim(0), t.Dim(axisDepth), t.Dim(axisHeight), t.Dim(axisWidth)
	theta := angleDeg * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	ch, cw := float64(h-1)/2, float64(w-1)/2

	result, err := tensor.Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	for cd := 0; cd < c*d; cd++ {
		base := cd * h * w
		for oh := 0; oh < h; oh++ {
			for ow := 0; ow < w; ow++ {
				// Inverse mapping: where in the source does this
				// output position come from.
				dh := float64(oh) - ch
				dw := float64(ow) - cw
				sh := cos*dh - sin*dw + ch
				sw := sin*dh + cos*dw + cw

				dst := base + oh*w + ow
				if err := sample2D(t, result, base, sh, sw, h, w, dst, order); err != nil {
					return nil, err
				}
			}
		}
	}

	return result, nil
}

// Zoom rescales all three spatial axes of a (C, D, H, W) tensor by the
// same factor onto the original grid, anchored at index 0. Factors above 1
// magnify the 0-origin corner; factors below 1 shrink the content and fill
// the remainder from the nearest edge.
func Zoom(t *tensor.Tensor, factor float64, order Interp) (*tensor.Tensor, error) {
	if len(t.Shape) != 4 {
		return nil, fmt.Errorf("zoom: tensor must be 4-dimensional (C,D,H,W), got shape %v", t.Shape)
	}
	if factor <= 0 {
		return nil, fmt.Errorf("zoom: factor must be positive, got %v", factor)
	}

	c, d, h, w := t.Dim(0), t.Dim(axisDepth), t.Dim(axisHeight), t.Dim(axisWidth)
	inv := 1 / factor

	result, err := tensor.Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	for ci := 0; ci < c; ci++ {
		for od := 0; od < d; od++ {
			sd := float64(od) * inv
			for oh := 0; oh < h; oh++ {
				sh := float64(oh) * inv
				for ow := 0; ow < w; ow++ {
					sw := float64(ow) * inv
					dst := ((ci*d+od)*h+oh)*w + ow
					if err := sample3D(t, result, ci, sd, sh, sw, d, h, w, dst, order); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return result, nil
}

func clampf(v float64, max int) float64 {
	if v < 0 {
		return 0
	}
	if v > float64(max) {
		return float64(max)
	}
	return v
}

func clampi(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// sample2D reads source coordinates (sh, sw) within one (H, W) slice at
// offset base and writes the interpolated value to out[dst].
func sample2D(t, out *tensor.Tensor, base int, sh, sw float64, h, w, dst int, order Interp) error {
	switch src := t.Data.(type) {
	case []float32:
		res := out.Data.([]float32)
		if order == Nearest {
			ih := clampi(int(math.Round(sh)), h-1)
			iw := clampi(int(math.Round(sw)), w-1)
			res[dst] = src[base+ih*w+iw]
			return nil
		}
		sh = clampf(sh, h-1)
		sw = clampf(sw, w-1)
		h0, w0 := int(sh), int(sw)
		h1, w1 := clampi(h0+1, h-1), clampi(w0+1, w-1)
		fh, fw := float32(sh-float64(h0)), float32(sw-float64(w0))

		top := src[base+h0*w+w0]*(1-fw) + src[base+h0*w+w1]*fw
		bot := src[base+h1*w+w0]*(1-fw) + src[base+h1*w+w1]*fw
		res[dst] = top*(1-fh) + bot*fh
		return nil
	case []int64:
		if order != Nearest {
			return fmt.Errorf("linear interpolation is invalid for Int64 label tensors")
		}
		res := out.Data.([]int64)
		ih := clampi(int(math.Round(sh)), h-1)
		iw := clampi(int(math.Round(sw)), w-1)
		res[dst] = src[base+ih*w+iw]
		return nil
	default:
		return fmt.Errorf("unsupported dtype for resampling: %s", t.DType)
	}
}

// sample3D reads source coordinates (sd, sh, sw) within channel ci and
// writes the interpolated value to out[dst].
func sample3D(t, out *tensor.Tensor, ci int, sd, sh, sw float64, d, h, w, dst int, order Interp) error {
	base := ci * d * h * w
	at := func(id, ih, iw int) int { return base + (id*h+ih)*w + iw }

	switch src := t.Data.(type) {
	case []float32:
		res := out.Data.([]float32)
		if order == Nearest {
			id := clampi(int(math.Round(sd)), d-1)
			ih := clampi(int(math.Round(sh)), h-1)
			iw := clampi(int(math.Round(sw)), w-1)
			res[dst] = src[at(id, ih, iw)]
			return nil
		}
		sd = clampf(sd, d-1)
		sh = clampf(sh, h-1)
		sw = clampf(sw, w-1)
		d0, h0, w0 := int(sd), int(sh), int(sw)
		d1 := clampi(d0+1, d-1)
		h1 := clampi(h0+1, h-1)
		w1 := clampi(w0+1, w-1)
		fd := float32(sd - float64(d0))
		fh := float32(sh - float64(h0))
		fw := float32(sw - float64(w0))

		lerp := func(a, b, f float32) float32 { return a*(1-f) + b*f }
		front := lerp(
			lerp(src[at(d0, h0, w0)], src[at(d0, h0, w1)], fw),
			lerp(src[at(d0, h1, w0)], src[at(d0, h1, w1)], fw), fh)
		back := lerp(
			lerp(src[at(d1, h0, w0)], src[at(d1, h0, w1)], fw),
			lerp(src[at(d1, h1, w0)], src[at(d1, h1, w1)], fw), fh)
		res[dst] = lerp(front, back, fd)
		return nil
	case []int64:
		if order != Nearest {
			return fmt.Errorf("linear interpolation is invalid for Int64 label tensors")
		}
		res := out.Data.([]int64)
		id := clampi(int(math.Round(sd)), d-1)
		ih := clampi(int(math.Round(sh)), h-1)
		iw := clampi(int(math.Round(sw)), w-1)
		res[dst] = src[at(id, ih, iw)]
		return nil
	default:
		return fmt.Errorf("unsupported dtype for resampling: %s", t.DType)
	}
}

package tensor

import (
	"fmt"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.DType != t2.DType {
		return fmt.Errorf("tensors must have same dtype: %s vs %s", t1.DType, t2.DType)
	}
	return nil
}

// Add returns the elementwise sum of two same-shaped tensors.
func Add(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if !SameShape(t1.Shape, t2.Shape) {
		return nil, fmt.Errorf("tensor shapes must match for Add: %v vs %v", t1.Shape, t2.Shape)
	}

	result, err := Zeros(t1.Shape, t1.DType)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		d1 := t1.Data.([]float32)
		d2 := t2.Data.([]float32)
		out := result.Data.([]float32)
		for i := 0; i < t1.NumElems; i++ {
			out[i] = d1[i] + d2[i]
		}
	case Int64:
		d1 := t1.Data.([]int64)
		d2 := t2.Data.([]int64)
		out := result.Data.([]int64)
		for i := 0; i < t1.NumElems; i++ {
			out[i] = d1[i] + d2[i]
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Add: %s", t1.DType)
	}

	return result, nil
}

// Concat joins two tensors along the given axis. All other axes must match.
func Concat(t1, t2 *Tensor, axis int) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if len(t1.Shape) != len(t2.Shape) {
		return nil, fmt.Errorf("tensor ranks must match for Concat: %v vs %v", t1.Shape, t2.Shape)
	}
	if axis < 0 || axis >= len(t1.Shape) {
		return nil, fmt.Errorf("concat axis %d out of range for rank %d", axis, len(t1.Shape))
	}
	for i := range t1.Shape {
		if i != axis && t1.Shape[i] != t2.Shape[i] {
			return nil, fmt.Errorf("tensor shapes must match except on axis %d: %v vs %v", axis, t1.Shape, t2.Shape)
		}
	}

	outShape := append([]int(nil), t1.Shape...)
	outShape[axis] += t2.Shape[axis]

	result, err := Zeros(outShape, t1.DType)
	if err != nil {
		return nil, err
	}

	outer := 1
	for i := 0; i < axis; i++ {
		outer *= t1.Shape[i]
	}
	inner := 1
	for i := axis + 1; i < len(t1.Shape); i++ {
		inner *= t1.Shape[i]
	}

	chunk1 := t1.Shape[axis] * inner
	chunk2 := t2.Shape[axis] * inner

	switch t1.DType {
	case Float32:
		d1 := t1.Data.([]float32)
		d2 := t2.Data.([]float32)
		out := result.Data.([]float32)
		for o := 0; o < outer; o++ {
			dst := o * (chunk1 + chunk2)
			copy(out[dst:dst+chunk1], d1[o*chunk1:(o+1)*chunk1])
			copy(out[dst+chunk1:dst+chunk1+chunk2], d2[o*chunk2:(o+1)*chunk2])
		}
	case Int64:
		d1 := t1.Data.([]int64)
		d2 := t2.Data.([]int64)
		out := result.Data.([]int64)
		for o := 0; o < outer; o++ {
			dst := o * (chunk1 + chunk2)
			copy(out[dst:dst+chunk1], d1[o*chunk1:(o+1)*chunk1])
			copy(out[dst+chunk1:dst+chunk1+chunk2], d2[o*chunk2:(o+1)*chunk2])
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Concat: %s", t1.DType)
	}

	return result, nil
}

// Prefix slices the tensor down to the target shape, anchored at index 0 on
// every axis. The target may not exceed the source on any axis.
func Prefix(t *Tensor, shape []int) (*Tensor, error) {
	if len(shape) != len(t.Shape) {
		return nil, fmt.Errorf("prefix rank %d does not match tensor rank %d", len(shape), len(t.Shape))
	}
	for i, dim := range shape {
		if dim > t.Shape[i] {
			return nil, fmt.Errorf("prefix dimension %d is %d, exceeds source size %d", i, dim, t.Shape[i])
		}
	}

	result, err := Zeros(shape, t.DType)
	if err != nil {
		return nil, err
	}

	// Walk the target index space, copying one innermost run at a time.
	rank := len(shape)
	rows := result.NumElems / shape[rank-1]
	idx := make([]int, rank)

	for r := 0; r < rows; r++ {
		srcOff := 0
		for a := 0; a < rank-1; a++ {
			srcOff += idx[a] * t.Strides[a]
		}
		dstOff := r * shape[rank-1]

		switch src := t.Data.(type) {
		case []float32:
			out := result.Data.([]float32)
			copy(out[dstOff:dstOff+shape[rank-1]], src[srcOff:srcOff+shape[rank-1]])
		case []int64:
			out := result.Data.([]int64)
			copy(out[dstOff:dstOff+shape[rank-1]], src[srcOff:srcOff+shape[rank-1]])
		}

		for a := rank - 2; a >= 0; a-- {
			idx[a]++
			if idx[a] < shape[a] {
				break
			}
			idx[a] = 0
		}
	}

	return result, nil
}

// Flip reverses the tensor along one axis.
func Flip(t *Tensor, axis int) (*Tensor, error) {
	if axis < 0 || axis >= len(t.Shape) {
		return nil, fmt.Errorf("flip axis %d out of range for rank %d", axis, len(t.Shape))
	}

	result, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	outer := 1
	for i := 0; i < axis; i++ {
		outer *= t.Shape[i]
	}
	n := t.Shape[axis]
	inner := 1
	for i := axis + 1; i < len(t.Shape); i++ {
		inner *= t.Shape[i]
	}

	switch src := t.Data.(type) {
	case []float32:
		out := result.Data.([]float32)
		for o := 0; o < outer; o++ {
			for i := 0; i < n; i++ {
				s := (o*n + i) * inner
				d := (o*n + (n - 1 - i)) * inner
				copy(out[d:d+inner], src[s:s+inner])
			}
		}
	case []int64:
		out := result.Data.([]int64)
		for o := 0; o < outer; o++ {
			for i := 0; i < n; i++ {
				s := (o*n + i) * inner
				d := (o*n + (n - 1 - i)) * inner
				copy(out[d:d+inner], src[s:s+inner])
			}
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Flip: %s", t.DType)
	}

	return result, nil
}

package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int64
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int64:
		return "Int64"
	default:
		return "Unknown"
	}
}

// Tensor is a dense, CPU-resident n-dimensional array. Data holds a flat
// []float32 or []int64 in row-major order according to Strides.
type Tensor struct {
	Shape    []int
	Strides  []int
	DType    DType
	Data     interface{}
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, elements=%d)", t.Shape, t.DType, t.NumElems)
}

// Float32s returns the underlying data slice of a Float32 tensor.
func (t *Tensor) Float32s() ([]float32, error) {
	data, ok := t.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("tensor dtype is %s, not Float32", t.DType)
	}
	return data, nil
}

// Int64s returns the underlying data slice of an Int64 tensor.
func (t *Tensor) Int64s() ([]int64, error) {
	data, ok := t.Data.([]int64)
	if !ok {
		return nil, fmt.Errorf("tensor dtype is %s, not Int64", t.DType)
	}
	return data, nil
}

// Dim returns the size of the given axis, or 0 if the axis does not exist.
func (t *Tensor) Dim(axis int) int {
	if axis < 0 || axis >= len(t.Shape) {
		return 0
	}
	return t.Shape[axis]
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("invalid shape: must have at least one dimension")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

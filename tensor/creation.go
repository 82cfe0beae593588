package tensor

import (
	"fmt"
)

func New(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	strides := calculateStrides(shape)

	t := &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  strides,
		DType:    dtype,
		NumElems: numElems,
	}

	if data != nil {
		if err := t.setData(data); err != nil {
			return nil, err
		}
	} else {
		t.Data = allocate(dtype, numElems)
	}

	return t, nil
}

func (t *Tensor) setData(data interface{}) error {
	switch t.DType {
	case Float32:
		d, ok := data.([]float32)
		if !ok {
			return fmt.Errorf("unsupported data type for Float32 tensor: %T", data)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
		}
		t.Data = d
	case Int64:
		d, ok := data.([]int64)
		if !ok {
			return fmt.Errorf("unsupported data type for Int64 tensor: %T", data)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match tensor size %d", len(d), t.NumElems)
		}
		t.Data = d
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

func allocate(dtype DType, numElems int) interface{} {
	switch dtype {
	case Int64:
		return make([]int64, numElems)
	default:
		return make([]float32, numElems)
	}
}

func Zeros(shape []int, dtype DType) (*Tensor, error) {
	return New(shape, dtype, nil)
}

func Full(shape []int, dtype DType, value float64) (*Tensor, error) {
	t, err := New(shape, dtype, nil)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		data := t.Data.([]float32)
		v := float32(value)
		for i := range data {
			data[i] = v
		}
	case Int64:
		data := t.Data.([]int64)
		v := int64(value)
		for i := range data {
			data[i] = v
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Full: %s", dtype)
	}

	return t, nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{
		Shape:    append([]int(nil), t.Shape...),
		Strides:  append([]int(nil), t.Strides...),
		DType:    t.DType,
		NumElems: t.NumElems,
	}

	switch data := t.Data.(type) {
	case []float32:
		cp := make([]float32, len(data))
		copy(cp, data)
		out.Data = cp
	case []int64:
		cp := make([]int64, len(data))
		copy(cp, data)
		out.Data = cp
	}

	return out
}

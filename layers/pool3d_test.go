package layers

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/voxseg/voxseg/tensor"
)

func TestMaxPool3DForward(t *testing.T) {
	t.Run("Takes window maximum", func(t *testing.T) {
		pool, err := NewMaxPool3D(2, 2)
		if err != nil {
			t.Fatalf("NewMaxPool3D failed: %v", err)
		}

		data := make([]float32, 2*2*2)
		for i := range data {
			data[i] = float32(i)
		}
		x, _ := tensor.New([]int{1, 1, 2, 2, 2}, tensor.Float32, data)

		out, err := pool.Forward(x)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		if diff := cmp.Diff([]int{1, 1, 1, 1, 1}, out.Shape); diff != "" {
			t.Fatalf("shape mismatch (-want +got):\n%s", diff)
		}
		got, _ := out.Float32s()
		if got[0] != 7 {
			t.Errorf("max = %v, expected 7", got[0])
		}
	})

	t.Run("Handles negative values", func(t *testing.T) {
		pool, _ := NewMaxPool3D(2, 2)
		x, _ := tensor.Full([]int{1, 1, 2, 2, 2}, tensor.Float32, -3)
		out, err := pool.Forward(x)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		got, _ := out.Float32s()
		if got[0] != -3 {
			t.Errorf("max = %v, expected -3", got[0])
		}
	})

	t.Run("Truncates odd dims", func(t *testing.T) {
		pool, _ := NewMaxPool3D(2, 2)
		x, _ := tensor.Zeros([]int{1, 2, 5, 7, 9}, tensor.Float32)
		out, err := pool.Forward(x)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		if diff := cmp.Diff([]int{1, 2, 2, 3, 4}, out.Shape); diff != "" {
			t.Errorf("shape mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Rejects undersized input", func(t *testing.T) {
		pool, _ := NewMaxPool3D(4, 4)
		x, _ := tensor.Zeros([]int{1, 1, 2, 2, 2}, tensor.Float32)
		if _, err := pool.Forward(x); err == nil {
			t.Error("expected error for input smaller than kernel")
		}
	})
}

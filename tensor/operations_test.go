package tensor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAdd(t *testing.T) {
	a, _ := New([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	b, _ := New([]int{2, 2}, Float32, []float32{10, 20, 30, 40})

	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	got, _ := sum.Float32s()
	if diff := cmp.Diff([]float32{11, 22, 33, 44}, got); diff != "" {
		t.Errorf("Add mismatch (-want +got):\n%s", diff)
	}

	c, _ := New([]int{4}, Float32, []float32{1, 2, 3, 4})
	if _, err := Add(a, c); err == nil {
		t.Error("expected error for mismatched shapes")
	}

	d, _ := New([]int{2, 2}, Int64, []int64{1, 2, 3, 4})
	if _, err := Add(a, d); err == nil {
		t.Error("expected error for mismatched dtypes")
	}
}

func TestConcat(t *testing.T) {
	t.Run("Channel axis of NCDHW tensors", func(t *testing.T) {
		a, _ := Full([]int{1, 2, 2, 2, 2}, Float32, 1)
		b, _ := Full([]int{1, 3, 2, 2, 2}, Float32, 2)

		cat, err := Concat(a, b, 1)
		if err != nil {
			t.Fatalf("Concat failed: %v", err)
		}
		if diff := cmp.Diff([]int{1, 5, 2, 2, 2}, cat.Shape); diff != "" {
			t.Fatalf("shape mismatch (-want +got):\n%s", diff)
		}

		data, _ := cat.Float32s()
		for i := 0; i < 2*8; i++ {
			if data[i] != 1 {
				t.Fatalf("element %d = %v, expected 1 (from first tensor)", i, data[i])
			}
		}
		for i := 2 * 8; i < 5*8; i++ {
			if data[i] != 2 {
				t.Fatalf("element %d = %v, expected 2 (from second tensor)", i, data[i])
			}
		}
	})

	t.Run("Interleaves outer dimension", func(t *testing.T) {
		a, _ := New([]int{2, 1, 2}, Float32, []float32{1, 2, 3, 4})
		b, _ := New([]int{2, 2, 2}, Float32, []float32{5, 6, 7, 8, 9, 10, 11, 12})

		cat, err := Concat(a, b, 1)
		if err != nil {
			t.Fatalf("Concat failed: %v", err)
		}
		got, _ := cat.Float32s()
		want := []float32{1, 2, 5, 6, 7, 8, 3, 4, 9, 10, 11, 12}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Rejects mismatched other axes", func(t *testing.T) {
		a, _ := Zeros([]int{1, 2, 4}, Float32)
		b, _ := Zeros([]int{1, 2, 5}, Float32)
		if _, err := Concat(a, b, 1); err == nil {
			t.Error("expected error for mismatched non-concat axes")
		}
	})
}

func TestPrefix(t *testing.T) {
	t.Run("Selects 0-origin block", func(t *testing.T) {
		data := make([]float32, 3*4)
		for i := range data {
			data[i] = float32(i)
		}
		src, _ := New([]int{3, 4}, Float32, data)

		got, err := Prefix(src, []int{2, 2})
		if err != nil {
			t.Fatalf("Prefix failed: %v", err)
		}
		gotData, _ := got.Float32s()
		want := []float32{0, 1, 4, 5}
		if diff := cmp.Diff(want, gotData); diff != "" {
			t.Errorf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Full shape is a copy", func(t *testing.T) {
		src, _ := New([]int{2, 2}, Int64, []int64{1, 2, 3, 4})
		got, err := Prefix(src, []int{2, 2})
		if err != nil {
			t.Fatalf("Prefix failed: %v", err)
		}
		gotData, _ := got.Int64s()
		if diff := cmp.Diff([]int64{1, 2, 3, 4}, gotData); diff != "" {
			t.Errorf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Rejects oversize target", func(t *testing.T) {
		src, _ := Zeros([]int{2, 2}, Float32)
		if _, err := Prefix(src, []int{2, 3}); err == nil {
			t.Error("expected error for target exceeding source")
		}
		if _, err := Prefix(src, []int{2}); err == nil {
			t.Error("expected error for rank mismatch")
		}
	})
}

func TestFlip(t *testing.T) {
	t.Run("Reverses along axis", func(t *testing.T) {
		src, _ := New([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})

		rows, err := Flip(src, 0)
		if err != nil {
			t.Fatalf("Flip failed: %v", err)
		}
		got, _ := rows.Float32s()
		if diff := cmp.Diff([]float32{4, 5, 6, 1, 2, 3}, got); diff != "" {
			t.Errorf("axis 0 mismatch (-want +got):\n%s", diff)
		}

		cols, err := Flip(src, 1)
		if err != nil {
			t.Fatalf("Flip failed: %v", err)
		}
		got, _ = cols.Float32s()
		if diff := cmp.Diff([]float32{3, 2, 1, 6, 5, 4}, got); diff != "" {
			t.Errorf("axis 1 mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Double flip is the identity", func(t *testing.T) {
		data := []int64{9, 8, 7, 6, 5, 4, 3, 2}
		src, _ := New([]int{2, 2, 2}, Int64, data)

		for axis := 0; axis < 3; axis++ {
			once, err := Flip(src, axis)
			if err != nil {
				t.Fatalf("Flip failed: %v", err)
			}
			twice, err := Flip(once, axis)
			if err != nil {
				t.Fatalf("Flip failed: %v", err)
			}
			got, _ := twice.Int64s()
			if diff := cmp.Diff(data, got); diff != "" {
				t.Errorf("axis %d double flip mismatch (-want +got):\n%s", axis, diff)
			}
		}
	})

	t.Run("Rejects bad axis", func(t *testing.T) {
		src, _ := Zeros([]int{2, 2}, Float32)
		if _, err := Flip(src, 2); err == nil {
			t.Error("expected error for out-of-range axis")
		}
	})
}

package tensor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	t.Run("Valid Float32 tensor", func(t *testing.T) {
		shape := []int{2, 3}
		data := []float32{1, 2, 3, 4, 5, 6}

		tn, err := New(shape, Float32, data)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		if diff := cmp.Diff(shape, tn.Shape); diff != "" {
			t.Errorf("Shape mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int{3, 1}, tn.Strides); diff != "" {
			t.Errorf("Strides mismatch (-want +got):\n%s", diff)
		}
		if tn.NumElems != 6 {
			t.Errorf("NumElems = %d, expected 6", tn.NumElems)
		}

		got, err := tn.Float32s()
		if err != nil {
			t.Fatalf("Float32s failed: %v", err)
		}
		if diff := cmp.Diff(data, got); diff != "" {
			t.Errorf("Data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Valid Int64 tensor", func(t *testing.T) {
		tn, err := New([]int{2, 2}, Int64, []int64{1, -2, 3, -4})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if tn.DType != Int64 {
			t.Errorf("DType = %v, expected Int64", tn.DType)
		}
		if _, err := tn.Float32s(); err == nil {
			t.Error("Float32s on Int64 tensor should fail")
		}
	})

	t.Run("Data length mismatch", func(t *testing.T) {
		if _, err := New([]int{2, 2}, Float32, []float32{1, 2}); err == nil {
			t.Error("expected error for short data")
		}
	})

	t.Run("Wrong slice type", func(t *testing.T) {
		if _, err := New([]int{2}, Float32, []int64{1, 2}); err == nil {
			t.Error("expected error for int64 data in Float32 tensor")
		}
	})

	t.Run("Invalid shapes", func(t *testing.T) {
		for _, shape := range [][]int{{}, {0}, {2, -1}} {
			if _, err := New(shape, Float32, nil); err == nil {
				t.Errorf("expected error for shape %v", shape)
			}
		}
	})
}

func TestZerosAndFull(t *testing.T) {
	z, err := Zeros([]int{2, 3, 4}, Float32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	data, _ := z.Float32s()
	for i, v := range data {
		if v != 0 {
			t.Fatalf("Zeros element %d = %v, expected 0", i, v)
		}
	}

	f, err := Full([]int{2, 2}, Int64, 7)
	if err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	ints, _ := f.Int64s()
	for i, v := range ints {
		if v != 7 {
			t.Fatalf("Full element %d = %v, expected 7", i, v)
		}
	}
}

func TestClone(t *testing.T) {
	orig, err := New([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	clone := orig.Clone()
	cloneData, _ := clone.Float32s()
	cloneData[0] = 99

	origData, _ := orig.Float32s()
	if origData[0] != 1 {
		t.Error("mutating a clone changed the original")
	}
	if !SameShape(orig.Shape, clone.Shape) {
		t.Errorf("clone shape %v differs from original %v", clone.Shape, orig.Shape)
	}
}

func TestSameShape(t *testing.T) {
	cases := []struct {
		a, b []int
		want bool
	}{
		{[]int{1, 2, 3}, []int{1, 2, 3}, true},
		{[]int{1, 2, 3}, []int{1, 2}, false},
		{[]int{1, 2, 3}, []int{1, 2, 4}, false},
		{nil, nil, true},
	}
	for _, tc := range cases {
		if got := SameShape(tc.a, tc.b); got != tc.want {
			t.Errorf("SameShape(%v, %v) = %v, expected %v", tc.a, tc.b, got, tc.want)
		}
	}
}

package dataloader

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/voxseg/voxseg/tensor"
)

// fakeDataset serves tiny tensors whose values encode the sample index, so
// tests can check which samples landed in which batch.
type fakeDataset struct {
	n       int
	visited []int
	failAt  int
}

func newFakeDataset(n int) *fakeDataset {
	return &fakeDataset{n: n, failAt: -1}
}

func (d *fakeDataset) Len() int { return d.n }

func (d *fakeDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	if idx == d.failAt {
		return nil, nil, fmt.Errorf("sample %d is corrupt", idx)
	}
	d.visited = append(d.visited, idx)

	image, err := tensor.Full([]int{1, 2, 2, 2}, tensor.Float32, float64(idx))
	if err != nil {
		return nil, nil, err
	}
	mask, err := tensor.Full([]int{1, 2, 2, 2}, tensor.Int64, float64(idx))
	if err != nil {
		return nil, nil, err
	}
	return image, mask, nil
}

func TestNew(t *testing.T) {
	if _, err := New(nil, Config{BatchSize: 2}); err == nil {
		t.Error("expected error for nil dataset")
	}
	if _, err := New(newFakeDataset(4), Config{BatchSize: 0}); err == nil {
		t.Error("expected error for zero batch size")
	}
	if _, err := New(newFakeDataset(4), Config{BatchSize: 2, Shuffle: true}); err == nil {
		t.Error("expected error for shuffle without rng")
	}
}

func TestNextBatch(t *testing.T) {
	t.Run("Covers every sample exactly once", func(t *testing.T) {
		ds := newFakeDataset(7)
		dl, err := New(ds, Config{BatchSize: 3})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		var sizes []int
		for {
			images, masks, n, err := dl.NextBatch()
			if err != nil {
				t.Fatalf("NextBatch failed: %v", err)
			}
			if n == 0 {
				break
			}
			sizes = append(sizes, n)

			wantShape := []int{n, 1, 2, 2, 2}
			if !cmp.Equal(wantShape, images.Shape) || !cmp.Equal(wantShape, masks.Shape) {
				t.Fatalf("batch shapes = %v / %v, expected %v", images.Shape, masks.Shape, wantShape)
			}
		}

		if diff := cmp.Diff([]int{3, 3, 1}, sizes); diff != "" {
			t.Errorf("batch sizes mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5, 6}, ds.visited); diff != "" {
			t.Errorf("visit order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Stacks sample values in order", func(t *testing.T) {
		dl, err := New(newFakeDataset(2), Config{BatchSize: 2})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		images, _, n, err := dl.NextBatch()
		if err != nil {
			t.Fatalf("NextBatch failed: %v", err)
		}
		if n != 2 {
			t.Fatalf("n = %d, expected 2", n)
		}
		data, _ := images.Float32s()
		for i := 0; i < 8; i++ {
			if data[i] != 0 {
				t.Fatalf("sample 0 voxel %d = %v, expected 0", i, data[i])
			}
		}
		for i := 8; i < 16; i++ {
			if data[i] != 1 {
				t.Fatalf("sample 1 voxel %d = %v, expected 1", i, data[i])
			}
		}
	})

	t.Run("Shuffle still covers every sample", func(t *testing.T) {
		ds := newFakeDataset(10)
		dl, err := New(ds, Config{BatchSize: 4, Shuffle: true, Rand: rand.New(rand.NewSource(9))})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		for {
			_, _, n, err := dl.NextBatch()
			if err != nil {
				t.Fatalf("NextBatch failed: %v", err)
			}
			if n == 0 {
				break
			}
		}

		got := append([]int(nil), ds.visited...)
		sort.Ints(got)
		want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("coverage mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Propagates dataset errors", func(t *testing.T) {
		ds := newFakeDataset(3)
		ds.failAt = 1
		dl, err := New(ds, Config{BatchSize: 3})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		if _, _, _, err := dl.NextBatch(); err == nil {
			t.Error("expected error from corrupt sample")
		}
	})
}

func TestResetAndProgress(t *testing.T) {
	dl, err := New(newFakeDataset(4), Config{BatchSize: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, _, _, err := dl.NextBatch(); err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}
	current, total := dl.Progress()
	if current != 2 || total != 4 {
		t.Errorf("Progress = (%d, %d), expected (2, 4)", current, total)
	}

	dl.Reset()
	current, _ = dl.Progress()
	if current != 0 {
		t.Errorf("Progress after Reset = %d, expected 0", current)
	}
}

// Package dataloader batches and shuffles samples from a volume dataset.
// It is the loading harness around the core pipeline; the core has no
// dependency on it.
package dataloader

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/voxseg/voxseg/tensor"
)

// Dataset is the contract a sample source must satisfy.
type Dataset interface {
	Len() int
	Get(idx int) (image *tensor.Tensor, mask *tensor.Tensor, err error)
}

// Config holds configuration for a DataLoader.
type Config struct {
	BatchSize int
	Shuffle   bool
	Rand      *rand.Rand // required when Shuffle is set
}

// DataLoader iterates a dataset in batches, optionally reshuffling the
// visit order on every Reset.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	mu       sync.Mutex
	indices  []int
	position int
}

func New(dataset Dataset, cfg Config) (*DataLoader, error) {
	if dataset == nil {
		return nil, fmt.Errorf("dataloader: dataset must not be nil")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("dataloader: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Shuffle && cfg.Rand == nil {
		return nil, fmt.Errorf("dataloader: Rand must not be nil when Shuffle is set")
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}
	if cfg.Shuffle {
		cfg.Rand.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: cfg.BatchSize,
		shuffle:   cfg.Shuffle,
		rng:       cfg.Rand,
		indices:   indices,
	}, nil
}

// Reset rewinds the loader and reshuffles the visit order when shuffling
// is enabled.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Progress returns the number of samples consumed and the dataset size.
func (dl *DataLoader) Progress() (current, total int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.position, len(dl.indices)
}

// NextBatch stacks up to BatchSize samples into (N, C, D, H, W) image and
// (N, 1, D, H, W) mask tensors. It returns (nil, nil, 0, nil) once the
// epoch is exhausted. Every sample must share the first sample's shape.
func (dl *DataLoader) NextBatch() (images, masks *tensor.Tensor, n int, err error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil, 0, nil
	}

	batchSize := dl.batchSize
	if remaining < batchSize {
		batchSize = remaining
	}

	var (
		imageData []float32
		maskData  []int64
		sampleImg []int
		sampleMsk []int
	)

	for i := 0; i < batchSize; i++ {
		idx := dl.indices[dl.position]
		image, mask, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("dataloader: sample %d: %w", idx, err)
		}

		if i == 0 {
			sampleImg = image.Shape
			sampleMsk = mask.Shape
			imageData = make([]float32, 0, batchSize*image.NumElems)
			maskData = make([]int64, 0, batchSize*mask.NumElems)
		} else {
			if !tensor.SameShape(image.Shape, sampleImg) {
				return nil, nil, 0, fmt.Errorf("dataloader: sample %d image shape %v differs from batch shape %v", idx, image.Shape, sampleImg)
			}
			if !tensor.SameShape(mask.Shape, sampleMsk) {
				return nil, nil, 0, fmt.Errorf("dataloader: sample %d mask shape %v differs from batch shape %v", idx, mask.Shape, sampleMsk)
			}
		}

		imgSlice, err := image.Float32s()
		if err != nil {
			return nil, nil, 0, fmt.Errorf("dataloader: sample %d: %w", idx, err)
		}
		mskSlice, err := mask.Int64s()
		if err != nil {
			return nil, nil, 0, fmt.Errorf("dataloader: sample %d: %w", idx, err)
		}

		imageData = append(imageData, imgSlice...)
		maskData = append(maskData, mskSlice...)
		dl.position++
	}

	images, err = tensor.New(append([]int{batchSize}, sampleImg...), tensor.Float32, imageData)
	if err != nil {
		return nil, nil, 0, err
	}
	masks, err = tensor.New(append([]int{batchSize}, sampleMsk...), tensor.Int64, maskData)
	if err != nil {
		return nil, nil, 0, err
	}

	return images, masks, batchSize, nil
}

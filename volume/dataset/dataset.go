// Package dataset enumerates paired image/mask volume files and serves
// fixed-shape tensor pairs ready for the network.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/voxseg/voxseg/tensor"
	"github.com/voxseg/voxseg/volume"
	"github.com/voxseg/voxseg/volume/preprocessing"
)

// Extension is the file suffix both directories are filtered to.
const Extension = ".nii.gz"

// DefaultWindow is the fixed (depth, height, width) crop window.
var DefaultWindow = [3]int{256, 256, 128}

// Config holds construction options for a VolumeDataset.
type Config struct {
	// Reader decodes volume files. Required.
	Reader volume.Reader

	// Augment enables the random augmentation chain.
	Augment bool

	// Rand feeds augmentation. Required when Augment is set.
	Rand *rand.Rand

	// Window overrides the crop window; zero value means DefaultWindow.
	Window [3]int
}

// VolumeDataset pairs the sorted image files of one directory with the
// sorted mask files of another, positionally: index i of the image listing
// with index i of the mask listing. No filename matching is performed, so
// the two directories must sort into corresponding orders.
type VolumeDataset struct {
	imagePaths []string
	maskPaths  []string
	reader     volume.Reader
	augment    bool
	window     [3]int

	mu  sync.Mutex
	rng *rand.Rand
}

// New lists both directories, filters to Extension, sorts
// lexicographically, and pairs positionally. Mismatched file counts fail
// with volume.ErrPairMismatch; filename correspondence is the caller's
// responsibility.
func New(imageDir, maskDir string, cfg Config) (*VolumeDataset, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("dataset: Reader must not be nil")
	}
	if cfg.Augment && cfg.Rand == nil {
		return nil, fmt.Errorf("dataset: Rand must not be nil when Augment is set")
	}

	window := cfg.Window
	if window == [3]int{} {
		window = DefaultWindow
	}
	for _, dim := range window {
		if dim <= 0 {
			return nil, fmt.Errorf("dataset: invalid crop window %v", cfg.Window)
		}
	}

	imagePaths, err := listVolumes(imageDir)
	if err != nil {
		return nil, fmt.Errorf("dataset: listing image dir: %w", err)
	}
	maskPaths, err := listVolumes(maskDir)
	if err != nil {
		return nil, fmt.Errorf("dataset: listing mask dir: %w", err)
	}

	if len(imagePaths) != len(maskPaths) {
		return nil, fmt.Errorf("%w: %d images vs %d masks", volume.ErrPairMismatch, len(imagePaths), len(maskPaths))
	}

	return &VolumeDataset{
		imagePaths: imagePaths,
		maskPaths:  maskPaths,
		reader:     cfg.Reader,
		augment:    cfg.Augment,
		window:     window,
		rng:        cfg.Rand,
	}, nil
}

func listVolumes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Len returns the number of paired samples.
func (d *VolumeDataset) Len() int {
	return len(d.imagePaths)
}

// Get loads, crops, normalizes, and optionally augments the pair at idx,
// returning a float32 image tensor and an int64 mask tensor, both with a
// leading channel axis and spatial shape equal to the crop window. It is
// safe for concurrent use; augmentation draws are serialized on the
// dataset's RNG.
func (d *VolumeDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= len(d.imagePaths) {
		return nil, nil, fmt.Errorf("dataset: index %d out of range [0, %d)", idx, len(d.imagePaths))
	}

	imageVol, err := d.read(d.imagePaths[idx])
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: image %d: %w", idx, err)
	}
	maskVol, err := d.read(d.maskPaths[idx])
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: mask %d: %w", idx, err)
	}

	dD, dH, dW := d.window[0], d.window[1], d.window[2]
	imageVol, err = preprocessing.CropPrefix(imageVol, dD, dH, dW)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: image %d: %w", idx, err)
	}
	maskVol, err = preprocessing.CropPrefix(maskVol, dD, dH, dW)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: mask %d: %w", idx, err)
	}

	preprocessing.NormalizeMinMax(imageVol)

	image, err := preprocessing.ImageTensor(imageVol)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: image %d: %w", idx, err)
	}
	mask, err := preprocessing.MaskTensor(maskVol)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: mask %d: %w", idx, err)
	}

	if d.augment {
		image, mask, err = d.applyAugmentation(image, mask)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: augmenting sample %d: %w", idx, err)
		}
	}

	return image, mask, nil
}

func (d *VolumeDataset) read(path string) (*volume.Volume, error) {
	v, err := d.reader.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", volume.ErrMissingFile, path)
		}
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *VolumeDataset) applyAugmentation(image, mask *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	aug, err := preprocessing.NewAugmenter(d.rng, d.window[0], d.window[1], d.window[2])
	if err != nil {
		return nil, nil, err
	}
	return aug.Apply(image, mask)
}

// ImagePath returns the image file backing index idx.
func (d *VolumeDataset) ImagePath(idx int) string {
	if idx < 0 || idx >= len(d.imagePaths) {
		return ""
	}
	return d.imagePaths[idx]
}

// MaskPath returns the mask file backing index idx.
func (d *VolumeDataset) MaskPath(idx int) string {
	if idx < 0 || idx >= len(d.maskPaths) {
		return ""
	}
	return d.maskPaths[idx]
}

// Split splits the dataset into train and validation sets. Shuffling draws
// from rng, which is required when shuffle is set.
func (d *VolumeDataset) Split(trainRatio float64, shuffle bool, rng *rand.Rand) (*VolumeDataset, *VolumeDataset, error) {
	if trainRatio < 0 || trainRatio > 1 {
		return nil, nil, fmt.Errorf("dataset: trainRatio must be in [0, 1], got %v", trainRatio)
	}
	if shuffle && rng == nil {
		return nil, nil, fmt.Errorf("dataset: rng must not be nil when shuffling")
	}

	n := len(d.imagePaths)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	trainSize := int(float64(n) * trainRatio)
	return d.Subset(indices[:trainSize]), d.Subset(indices[trainSize:]), nil
}

// Subset creates a dataset over the given indices, sharing the reader and
// configuration. Each subset gets its own RNG, seeded from the parent's, so
// concurrent Get calls on sibling subsets never contend on one source.
func (d *VolumeDataset) Subset(indices []int) *VolumeDataset {
	sub := &VolumeDataset{
		imagePaths: make([]string, len(indices)),
		maskPaths:  make([]string, len(indices)),
		reader:     d.reader,
		augment:    d.augment,
		window:     d.window,
	}
	if d.rng != nil {
		d.mu.Lock()
		sub.rng = rand.New(rand.NewSource(d.rng.Int63()))
		d.mu.Unlock()
	}
	for i, idx := range indices {
		sub.imagePaths[i] = d.imagePaths[idx]
		sub.maskPaths[i] = d.maskPaths[idx]
	}
	return sub
}

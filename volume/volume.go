// Package volume holds the shared types of the volumetric data pipeline:
// the raw volume representation produced by format readers, and the error
// kinds the pipeline reports so harnesses can tell data problems apart
// from misconfiguration.
package volume

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFile reports that the file backing a requested index no
	// longer exists (e.g. the directory changed after construction).
	ErrMissingFile = errors.New("volume file missing")

	// ErrShape reports a volume smaller than the crop window along one or
	// more spatial axes.
	ErrShape = errors.New("volume smaller than crop window")

	// ErrPairMismatch reports image and mask directories whose file counts
	// differ, which would silently mispair samples.
	ErrPairMismatch = errors.New("image/mask file counts differ")
)

// Volume is a raw volumetric sample as produced by a Reader: float64
// voxels in row-major order, the trailing three axes spatial (depth,
// height, width), with an optional leading non-spatial axis.
type Volume struct {
	Data  []float64
	Shape []int
}

// Reader decodes a volume file. Format specifics (NIfTI etc.) live behind
// this seam; the pipeline never touches file contents itself.
type Reader interface {
	Read(path string) (*Volume, error)
}

// Validate checks that the shape has at least three axes and matches the
// data length.
func (v *Volume) Validate() error {
	if len(v.Shape) < 3 {
		return fmt.Errorf("volume must have at least 3 axes, got shape %v", v.Shape)
	}
	n := 1
	for i, dim := range v.Shape {
		if dim <= 0 {
			return fmt.Errorf("volume dimension %d has size %d, must be positive", i, dim)
		}
		n *= dim
	}
	if n != len(v.Data) {
		return fmt.Errorf("volume data length %d does not match shape %v", len(v.Data), v.Shape)
	}
	return nil
}

// Spatial returns the trailing three (depth, height, width) axis sizes.
func (v *Volume) Spatial() (int, int, int) {
	n := len(v.Shape)
	return v.Shape[n-3], v.Shape[n-2], v.Shape[n-1]
}

// Channels returns the product of all leading non-spatial axes, or 1 when
// the volume is purely spatial.
func (v *Volume) Channels() int {
	c := 1
	for _, dim := range v.Shape[:len(v.Shape)-3] {
		c *= dim
	}
	return c
}

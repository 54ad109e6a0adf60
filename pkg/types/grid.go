// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Grid is a real-valued n-dimensional array stored row-major. Shape is
// significant: a diffraction stack is frames × H × W, a single frame H × W.
type Grid struct {
	// Shape lists the extent of each axis, outermost first.
	Shape []int `json:"shape" yaml:"shape"`

	// Data holds the elements in row-major order; len(Data) equals the
	// product of Shape.
	Data []float64 `json:"data" yaml:"data"`
}

// NewGrid allocates a zero-filled grid with the given shape.
func NewGrid(shape ...int) Grid {
	return Grid{Shape: shape, Data: make([]float64, SizeOf(shape))}
}

// Len returns the total element count implied by the shape.
func (g Grid) Len() int { return SizeOf(g.Shape) }

// Rows returns the extent of the outermost axis, or 0 for a shapeless grid.
func (g Grid) Rows() int {
	if len(g.Shape) == 0 {
		return 0
	}
	return g.Shape[0]
}

// RowSize returns the element count of one outermost-axis slice.
func (g Grid) RowSize() int {
	if len(g.Shape) == 0 {
		return 0
	}
	return SizeOf(g.Shape[1:])
}

// Row returns the i-th outermost-axis slice as a view into Data.
func (g Grid) Row(i int) []float64 {
	n := g.RowSize()
	return g.Data[i*n : (i+1)*n]
}

// Validate checks that the data length matches the shape.
func (g Grid) Validate() error {
	if len(g.Data) != g.Len() {
		return fmt.Errorf("grid data length %d does not match shape %v (want %d)", len(g.Data), g.Shape, g.Len())
	}
	return nil
}

// CGrid is the complex-valued counterpart of Grid, used for probe and
// object wavefronts.
type CGrid struct {
	Shape []int        `json:"shape" yaml:"shape"`
	Data  []complex128 `json:"data" yaml:"data"`
}

// NewCGrid allocates a zero-filled complex grid with the given shape.
func NewCGrid(shape ...int) CGrid {
	return CGrid{Shape: shape, Data: make([]complex128, SizeOf(shape))}
}

// Len returns the total element count implied by the shape.
func (g CGrid) Len() int { return SizeOf(g.Shape) }

// Validate checks that the data length matches the shape.
func (g CGrid) Validate() error {
	if len(g.Data) != g.Len() {
		return fmt.Errorf("grid data length %d does not match shape %v (want %d)", len(g.Data), g.Shape, g.Len())
	}
	return nil
}

// SizeOf returns the product of the axis extents. An empty shape has size 0.
func SizeOf(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"fmt"

	"github.com/pdiddy/ptycho-convert/internal/container"
	"github.com/pdiddy/ptycho-convert/pkg/types"
)

// LoadProduct reads a product container (positions, probe, object) fully
// into memory and closes it before returning.
func LoadProduct(path string) (types.Product, error) {
	f, err := container.Read(path)
	if err != nil {
		return types.Product{}, err
	}

	idx, err := requireField(f, path, "probe_position_indexes", container.Int64)
	if err != nil {
		return types.Product{}, err
	}
	x, err := requireField(f, path, "probe_position_x_m", container.Float64)
	if err != nil {
		return types.Product{}, err
	}
	y, err := requireField(f, path, "probe_position_y_m", container.Float64)
	if err != nil {
		return types.Product{}, err
	}
	probe, err := requireField(f, path, "probe", container.Complex128)
	if err != nil {
		return types.Product{}, err
	}
	object, err := requireField(f, path, "object", container.Complex128)
	if err != nil {
		return types.Product{}, err
	}

	if len(idx.Int) != len(x.Float) || len(x.Float) != len(y.Float) {
		return types.Product{}, fmt.Errorf("product %s: position arrays disagree (%d indexes, %d x, %d y)",
			path, len(idx.Int), len(x.Float), len(y.Float))
	}

	return types.Product{
		PositionIndexes: idx.Int,
		PositionX:       x.Float,
		PositionY:       y.Float,
		Probe:           types.CGrid{Shape: probe.Shape, Data: probe.Complex},
		Object:          types.CGrid{Shape: object.Shape, Data: object.Complex},
		ObjectAttrs:     object.Attrs,
	}, nil
}

// LoadPatterns reads a diffraction container fully into memory and closes
// it before returning. The indexes field is optional; its absence selects
// identity resolution.
func LoadPatterns(path string) (types.Patterns, error) {
	f, err := container.Read(path)
	if err != nil {
		return types.Patterns{}, err
	}

	patterns, ok := f.Field("patterns")
	if !ok {
		return types.Patterns{}, fmt.Errorf("diffraction input %s: missing field patterns", path)
	}
	if len(patterns.Shape) != 3 {
		return types.Patterns{}, fmt.Errorf("diffraction input %s: patterns shape %v, want frames × H × W",
			path, patterns.Shape)
	}

	// Captured stacks arrive as float intensities or raw integer counts;
	// counts are widened so the rest of the engine sees one element type.
	var data []float64
	switch patterns.Dtype {
	case container.Float64:
		data = patterns.Float
	case container.Int64:
		data = make([]float64, len(patterns.Int))
		for i, v := range patterns.Int {
			data[i] = float64(v)
		}
	default:
		return types.Patterns{}, fmt.Errorf("diffraction input %s: patterns has dtype %s, want %s or %s",
			path, patterns.Dtype, container.Float64, container.Int64)
	}

	out := types.Patterns{Frames: types.Grid{Shape: patterns.Shape, Data: data}}
	if idx, ok := f.Field("indexes"); ok {
		out.Indexes = idx.Int
	}
	return out, nil
}

// requireField fetches a named field and checks its element type, so a
// mistyped container fails with a message naming the field instead of a
// downstream length mismatch.
func requireField(f *container.File, path, name string, dtype container.Dtype) (container.Field, error) {
	fld, ok := f.Field(name)
	if !ok {
		return container.Field{}, fmt.Errorf("product %s: missing field %s", path, name)
	}
	if fld.Dtype != dtype {
		return container.Field{}, fmt.Errorf("product %s: field %s has dtype %s, want %s",
			path, name, fld.Dtype, dtype)
	}
	return fld, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection implements the diffraction-pattern selection and
// initial-probe-synthesis engine. Given the reconstruction tool's product
// (scan positions referencing frames by index) and the captured
// diffraction stack (possibly out of order, with duplicate or missing
// index mappings), it reorders frames to scan order, clamps physically
// invalid values, synthesizes an initial probe estimate, and re-exports
// the result as dp/para containers for the next pipeline stage.
package selection

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/pdiddy/ptycho-convert/internal/container"
	"github.com/pdiddy/ptycho-convert/internal/index"
	"github.com/pdiddy/ptycho-convert/pkg/types"
)

// objectAttrKeys are the only object attributes propagated to the para
// container. Absent keys are omitted, never defaulted.
var objectAttrKeys = []string{
	"pixel_height_m",
	"pixel_width_m",
	"center_x_m",
	"center_y_m",
}

// SelectFrames fetches one frame per scan position, in scan order. The
// output order follows the positions, not the catalog or storage order.
func SelectFrames(frames types.Grid, lookup *index.Lookup, positions []int64) (types.Grid, error) {
	if len(frames.Shape) != 3 {
		return types.Grid{}, fmt.Errorf("pattern stack has shape %v, want frames × H × W", frames.Shape)
	}

	offsets, err := lookup.Resolve(positions)
	if err != nil {
		return types.Grid{}, err
	}

	out := types.NewGrid(len(offsets), frames.Shape[1], frames.Shape[2])
	for i, row := range offsets {
		copy(out.Row(i), frames.Row(row))
	}
	return out, nil
}

// Sanitize clamps negative intensities to exactly 0.0 in place, element
// wise over the whole stack, and returns the number of values clamped.
// Negative intensities are physically invalid; they are never dropped or
// flagged, only zeroed.
func Sanitize(g types.Grid) int {
	clamped := 0
	for i, v := range g.Data {
		if v < 0 {
			g.Data[i] = 0.0
			clamped++
		}
	}
	return clamped
}

// Result summarizes one re-export run.
type Result struct {
	DPPath           string
	ParaPath         string
	Frames           int
	Clamped          int
	ProbeSynthesized bool
}

// Export runs the full engine: select frames in scan order, sanitize,
// derive the initial probe, and write the dp and para containers. Per-step
// progress goes to w. Any fatal error aborts before the first container is
// written; the dp container is fully written and closed before the para
// container is opened.
func Export(product types.Product, patterns types.Patterns, cfg types.ExportConfig, w io.Writer) (Result, error) {
	lookup, err := buildLookup(patterns)
	if err != nil {
		return Result{}, err
	}
	if !lookup.Mapped() {
		fmt.Fprintf(w, "no index array in diffraction input; treating positions as row offsets\n")
	}

	selected, err := SelectFrames(patterns.Frames, lookup, product.PositionIndexes)
	if err != nil {
		return Result{}, err
	}

	clamped := Sanitize(selected)
	fmt.Fprintf(w, "selected %d of %d frames (%d negative values clamped)\n",
		selected.Rows(), patterns.Frames.Rows(), clamped)

	probe := InitialProbe(selected, product.Probe)
	if probe.Synthesized {
		fmt.Fprintf(w, "synthesized initial probe from first selected frame\n")
	} else {
		fmt.Fprintf(w, "warning: probe synthesis failed (%v); passing through upstream probe\n", probe.Err)
	}

	if n := len(product.PositionX); n != len(product.PositionIndexes) || len(product.PositionY) != n {
		return Result{}, fmt.Errorf("position arrays disagree: %d indexes, %d x, %d y",
			len(product.PositionIndexes), len(product.PositionX), len(product.PositionY))
	}

	dpPath := filepath.Join(cfg.OutputDir, cfg.ProductName+"_dp.npz")
	paraPath := filepath.Join(cfg.OutputDir, cfg.ProductName+"_para.npz")

	dp := &container.File{
		Fields: []container.Field{
			container.FloatField("dp", selected.Shape, selected.Data),
		},
	}
	if err := container.Write(dpPath, dp); err != nil {
		return Result{}, err
	}
	fmt.Fprintf(w, "wrote %s\n", dpPath)

	object := container.ComplexField("object", product.Object.Shape, product.Object.Data)
	object.Attrs = propagatedAttrs(product.ObjectAttrs)

	para := &container.File{
		Fields: []container.Field{
			object,
			container.ComplexField("probe", probe.Probe.Shape, probe.Probe.Data),
			container.IntField("probe_position_indexes", []int{len(product.PositionIndexes)}, product.PositionIndexes),
			container.FloatField("probe_position_x_m", []int{len(product.PositionX)}, product.PositionX),
			container.FloatField("probe_position_y_m", []int{len(product.PositionY)}, product.PositionY),
		},
	}
	if err := container.Write(paraPath, para); err != nil {
		return Result{}, err
	}
	fmt.Fprintf(w, "wrote %s\n", paraPath)

	return Result{
		DPPath:           dpPath,
		ParaPath:         paraPath,
		Frames:           selected.Rows(),
		Clamped:          clamped,
		ProbeSynthesized: probe.Synthesized,
	}, nil
}

// buildLookup chooses between mapped and identity resolution based on
// whether the diffraction input carried an index array.
func buildLookup(patterns types.Patterns) (*index.Lookup, error) {
	if patterns.Indexes == nil {
		return index.Identity(patterns.Frames.Rows()), nil
	}
	if len(patterns.Indexes) != patterns.Frames.Rows() {
		return nil, fmt.Errorf("index array has %d entries for %d pattern rows",
			len(patterns.Indexes), patterns.Frames.Rows())
	}
	return index.NewLookup(patterns.Indexes), nil
}

// propagatedAttrs filters the object attributes down to the four keys the
// downstream consumer understands.
func propagatedAttrs(attrs map[string]float64) map[string]float64 {
	if attrs == nil {
		return nil
	}
	out := make(map[string]float64)
	for _, k := range objectAttrKeys {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

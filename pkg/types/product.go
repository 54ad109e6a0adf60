// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Product holds the reconstruction-tool output read from a product
// container: probe positions, the upstream probe guess, and the object
// estimate with its optional pixel-geometry attributes.
type Product struct {
	// PositionIndexes are the frame-catalog indexes, one per scan position,
	// in scan order. Scan order is significant and preserved end to end.
	PositionIndexes []int64

	// PositionX and PositionY are the scan coordinates in meters, parallel
	// to PositionIndexes.
	PositionX []float64
	PositionY []float64

	// Probe is the upstream initial probe guess. Used verbatim when probe
	// synthesis from the first selected frame fails.
	Probe CGrid

	// Object is the reconstructed sample transmission function, passed
	// through unchanged.
	Object CGrid

	// ObjectAttrs carries the object's scalar attributes. Only the four
	// pixel-geometry keys are propagated to output (see selection.Export).
	ObjectAttrs map[string]float64
}

// Positions returns the number of scan positions.
func (p Product) Positions() int { return len(p.PositionIndexes) }

// Patterns holds the captured diffraction stack read from a diffraction
// container.
type Patterns struct {
	// Frames is the captured stack, frames × H × W. Storage order carries
	// no meaning; frames are addressed through Indexes.
	Frames Grid

	// Indexes maps each storage row to its logical frame index. Nil when
	// the source container carries no index field, in which case positions
	// address storage rows directly (identity mode).
	Indexes []int64
}

// ExportConfig holds settings for the dp/para re-export stage.
type ExportConfig struct {
	// ProductPath is the product container (positions, probe, object).
	ProductPath string `json:"product_path" yaml:"product_path"`

	// PatternsPath is the diffraction container (patterns, optional indexes).
	PatternsPath string `json:"patterns_path" yaml:"patterns_path"`

	// OutputDir receives the dp and para containers.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// ProductName prefixes the output container filenames.
	ProductName string `json:"product_name" yaml:"product_name"`
}

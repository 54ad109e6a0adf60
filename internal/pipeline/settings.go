// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SettingsValues fills the reconstruction-settings template. The template
// carries literal placeholder tokens; rendering is plain text substitution.
type SettingsValues struct {
	CropX      int
	CropY      int
	CropWidth  int
	CropHeight int

	// DataPath is the repacked capture file handed to the tool.
	DataPath string

	// ScratchDir is the memmap scratch directory.
	ScratchDir string
}

// RenderSettings reads the template, substitutes placeholders, and writes
// the result to outPath.
func RenderSettings(templatePath, outPath string, v SettingsValues) error {
	text, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("reading settings template: %w", err)
	}

	rendered := strings.NewReplacer(
		"{CROP_X}", strconv.Itoa(v.CropX),
		"{CROP_Y}", strconv.Itoa(v.CropY),
		"{CROP_W}", strconv.Itoa(v.CropWidth),
		"{CROP_H}", strconv.Itoa(v.CropHeight),
		"XPPL_HDF5_PATH_PLACEHOLDER", v.DataPath,
		"XPPL_SCRATCH_PLACEHOLDER", v.ScratchDir,
	).Replace(string(text))

	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

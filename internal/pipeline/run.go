// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/ptycho-convert/internal/geometry"
)

// Standard-layout names the reconstruction tool uses for its outputs.
const (
	LayoutProduct     = "StandardFileLayout.PRODUCT_IN"
	LayoutDiffraction = "StandardFileLayout.DIFFRACTION"
	LayoutSettings    = "StandardFileLayout.SETTINGS"
)

// rawFilePattern matches the beamline's capture-file naming for a run.
const rawFilePattern = "xppl1026722_Run0%03d.h5"

// RunConfig holds settings for one end-to-end run conversion.
type RunConfig struct {
	// Run is the beamline run number, e.g. 396.
	Run int

	// CenterX and CenterY are the crop center in detector pixels.
	CenterX int
	CenterY int

	// CropWidth and CropHeight are the crop extent in pixels.
	CropWidth  int
	CropHeight int

	// BaseDir contains the captured run files.
	BaseDir string

	// Template is the reconstruction-settings template path.
	Template string

	// ProductName overrides the derived product name when non-empty.
	ProductName string

	// OutputDir overrides the derived output directory when non-empty.
	OutputDir string

	// Scratch overrides the derived memmap scratch directory when non-empty.
	Scratch string

	// Geometry holds the resolved geometry scalars to attach to outputs.
	Geometry map[string]float64
}

// RunResult reports the artifacts of a completed run conversion.
type RunResult struct {
	ProductName  string
	OutputDir    string
	SettingsPath string
	Tarball      string
}

// Run converts one captured run end to end: repack, render settings,
// reconstruct, attach geometry, package. Progress and subprocess output
// go to w.
func Run(cfg RunConfig, w io.Writer) (RunResult, error) {
	return run(defaultExec, cfg, w)
}

func run(exec executor, cfg RunConfig, w io.Writer) (RunResult, error) {
	raw := filepath.Join(cfg.BaseDir, fmt.Sprintf(rawFilePattern, cfg.Run))
	repacked := repackedName(raw)
	if _, err := os.Stat(raw); err != nil {
		if _, err := os.Stat(repacked); err != nil {
			return RunResult{}, fmt.Errorf("missing input: %s", raw)
		}
	}

	if err := repack(exec, raw, repacked, w); err != nil {
		return RunResult{}, err
	}

	name := cfg.ProductName
	if name == "" {
		name = fmt.Sprintf("run%d_center%d_%d", cfg.Run, cfg.CenterX, cfg.CenterY)
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(cfg.BaseDir, fmt.Sprintf("output_run%d_center", cfg.Run))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return RunResult{}, fmt.Errorf("creating output directory: %w", err)
	}
	scratch := cfg.Scratch
	if scratch == "" {
		scratch = filepath.Join(cfg.BaseDir, ".ptycho_scratch")
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return RunResult{}, fmt.Errorf("creating scratch directory: %w", err)
	}

	settingsPath := filepath.Join(outputDir, fmt.Sprintf("lcls_settings_run%d.ini", cfg.Run))
	err := RenderSettings(cfg.Template, settingsPath, SettingsValues{
		CropX:      cfg.CenterX,
		CropY:      cfg.CenterY,
		CropWidth:  cfg.CropWidth,
		CropHeight: cfg.CropHeight,
		DataPath:   repacked,
		ScratchDir: scratch,
	})
	if err != nil {
		return RunResult{}, err
	}
	fmt.Fprintf(w, "wrote settings to %s\n", settingsPath)

	err = exec.Run(w, binReconstruct,
		"--settings", settingsPath,
		"--diffraction-input", repacked,
		"--probe-position-input", repacked,
		"--product-name", name,
		"-o", outputDir,
	)
	if err != nil {
		return RunResult{}, fmt.Errorf("running %s: %w", binReconstruct, err)
	}

	productIn := filepath.Join(outputDir, LayoutProduct)
	if err := geometry.Attach(productIn, cfg.Geometry); err != nil {
		return RunResult{}, err
	}
	diffraction := filepath.Join(outputDir, LayoutDiffraction)
	if _, err := os.Stat(diffraction); err == nil {
		if err := geometry.Attach(diffraction, cfg.Geometry); err != nil {
			return RunResult{}, err
		}
	}

	settingsCopy := filepath.Join(outputDir, LayoutSettings)
	if _, err := os.Stat(settingsCopy); err != nil {
		if err := copyFile(settingsPath, settingsCopy); err != nil {
			return RunResult{}, err
		}
	}

	tarName := filepath.Join(cfg.BaseDir, name+"_product.tgz")
	if err := Package(tarName, outputDir, []string{LayoutProduct, LayoutDiffraction, LayoutSettings}); err != nil {
		return RunResult{}, err
	}
	fmt.Fprintf(w, "tarball: %s\n", tarName)

	return RunResult{
		ProductName:  name,
		OutputDir:    outputDir,
		SettingsPath: settingsPath,
		Tarball:      tarName,
	}, nil
}

// repackedName derives the zlib-repacked filename from the raw capture
// path: "<stem>_nolzo.h5".
func repackedName(raw string) string {
	ext := filepath.Ext(raw)
	return raw[:len(raw)-len(ext)] + "_nolzo" + ext
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ptycho-convert/internal/pipeline"
	"github.com/pdiddy/ptycho-convert/internal/selection"
	"github.com/pdiddy/ptycho-convert/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-export a reconstruction product as dp/para containers",
	Long: `Export reads the reconstruction tool's product (positions, probe, object)
and the captured diffraction stack, selects and reorders frames to scan
order, clamps negative intensities, synthesizes an initial probe estimate
from the first selected frame, and writes the dp and para containers.

When synthesis fails the upstream probe is passed through verbatim with a
warning; a position referencing a frame index absent from the catalog
aborts the run with no output.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("product", "", "product container from the reconstruction tool (required)")
	exportCmd.Flags().String("patterns", "", "diffraction container with the captured stack (required)")
	exportCmd.Flags().String("output-dir", ".", "directory for the dp/para containers")
	exportCmd.Flags().String("name", "", "output name prefix (required)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	productArg, _ := cmd.Flags().GetString("product")
	patternsArg, _ := cmd.Flags().GetString("patterns")
	name, _ := cmd.Flags().GetString("name")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	if productArg == "" || patternsArg == "" || name == "" {
		return fmt.Errorf("--product, --patterns, and --name are required")
	}

	// Inputs may be the containers themselves or path-valued pointer files.
	productRef, err := pipeline.ResolveInput(productArg)
	if err != nil {
		return err
	}
	patternsRef, err := pipeline.ResolveInput(patternsArg)
	if err != nil {
		return err
	}

	// Both inputs are read fully and closed before any output is opened.
	product, err := selection.LoadProduct(productRef.Path)
	if err != nil {
		return err
	}
	patterns, err := selection.LoadPatterns(patternsRef.Path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	cfg := types.ExportConfig{
		ProductPath:  productRef.Path,
		PatternsPath: patternsRef.Path,
		OutputDir:    outputDir,
		ProductName:  name,
	}
	result, err := selection.Export(product, patterns, cfg, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("exported %d frames to %s and %s\n", result.Frames, result.DPPath, result.ParaPath)
	return nil
}

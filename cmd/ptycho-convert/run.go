// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ptycho-convert/internal/manifest"
	"github.com/pdiddy/ptycho-convert/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Convert a captured run end to end",
	Long: `Run drives a full conversion of one captured beamline run: repack the
LZO-compressed capture to a zlib copy, render a settings file from the
template, invoke the reconstruction tool, attach geometry metadata to its
outputs, and package the standard-layout files into a tarball.

Geometry values come from explicit flags, then a run-range config file,
then hardcoded defaults, in that order.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int("run", 0, "run number, e.g. 396 (required)")
	runCmd.Flags().Int("center-x", 0, "crop center X in pixels (required)")
	runCmd.Flags().Int("center-y", 0, "crop center Y in pixels (required)")
	runCmd.Flags().Int("crop-width", 512, "crop width in pixels")
	runCmd.Flags().Int("crop-height", 512, "crop height in pixels")
	runCmd.Flags().String("base-dir", ".", "base directory containing capture files")
	runCmd.Flags().String("template", "scripts/settings_template.ini", "settings template path")
	runCmd.Flags().String("product-name", "", "override product name")
	runCmd.Flags().String("output-dir", "", "override output directory")
	runCmd.Flags().String("scratch", "", "scratch directory for memmap")
	runCmd.Flags().String("manifest-dir", "manifest", "directory for the run ledger")
	addGeometryFlags(runCmd)

	runCmd.MarkFlagRequired("run")
	runCmd.MarkFlagRequired("center-x")
	runCmd.MarkFlagRequired("center-y")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	runNum, _ := cmd.Flags().GetInt("run")

	// Geometry config parse errors abort before anything is touched.
	geom, err := resolveGeometry(cmd, runNum)
	if err != nil {
		return err
	}

	centerX, _ := cmd.Flags().GetInt("center-x")
	centerY, _ := cmd.Flags().GetInt("center-y")
	cropWidth, _ := cmd.Flags().GetInt("crop-width")
	cropHeight, _ := cmd.Flags().GetInt("crop-height")
	baseDir, _ := cmd.Flags().GetString("base-dir")
	template, _ := cmd.Flags().GetString("template")
	productName, _ := cmd.Flags().GetString("product-name")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	scratch, _ := cmd.Flags().GetString("scratch")

	result, err := pipeline.Run(pipeline.RunConfig{
		Run:         runNum,
		CenterX:     centerX,
		CenterY:     centerY,
		CropWidth:   cropWidth,
		CropHeight:  cropHeight,
		BaseDir:     baseDir,
		Template:    template,
		ProductName: productName,
		OutputDir:   outputDir,
		Scratch:     scratch,
		Geometry:    geom,
	}, os.Stdout)
	if err != nil {
		return err
	}

	recordRun(cmd, runNum, result, geom)

	fmt.Printf("converted run %d into %s\n", runNum, result.Tarball)
	return nil
}

// recordRun appends the conversion to the ledger. Ledger failures are
// warnings: the artifacts already exist and must not be reported as lost.
func recordRun(cmd *cobra.Command, runNum int, result pipeline.RunResult, geom map[string]float64) {
	manifestDir, _ := cmd.Flags().GetString("manifest-dir")
	store, err := manifest.Open(manifestDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open run ledger: %v\n", err)
		return
	}
	defer store.Close()

	err = store.Record(context.Background(), manifest.Run{
		Number:      runNum,
		ProductName: result.ProductName,
		OutputDir:   result.OutputDir,
		Tarball:     result.Tarball,
		Geometry:    geom,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not record run in ledger: %v\n", err)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ptycho-convert/internal/geometry"
)

var attachCmd = &cobra.Command{
	Use:   "attach [containers...]",
	Short: "Attach geometry metadata to containers",
	Long: `Attach resolves the geometry scalars for a run (explicit flags, then the
run-range config file, then defaults) and stamps them as flat root
attributes on each listed container.`,
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().Int("run", 0, "run number used against the run-range table (required)")
	addGeometryFlags(attachCmd)

	attachCmd.MarkFlagRequired("run")

	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more container paths")
	}

	runNum, _ := cmd.Flags().GetInt("run")
	geom, err := resolveGeometry(cmd, runNum)
	if err != nil {
		return err
	}

	for _, path := range args {
		if err := geometry.Attach(path, geom); err != nil {
			return err
		}
		fmt.Printf("attached geometry to %s\n", path)
	}
	return nil
}

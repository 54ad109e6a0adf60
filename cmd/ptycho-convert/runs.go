// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ptycho-convert/internal/manifest"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded conversion runs",
	Long: `Runs prints the conversion ledger, newest first: run number, product
name, tarball path, and recording time.`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().String("manifest-dir", "manifest", "directory for the run ledger")
	runsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	manifestDir, _ := cmd.Flags().GetString("manifest-dir")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := manifest.Open(manifestDir)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background())
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run %d  %s  %s  %s\n",
			r.Number, r.ProductName, r.Tarball, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

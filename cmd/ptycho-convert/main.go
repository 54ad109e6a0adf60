// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the ptycho-convert CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the ptycho-convert CLI.
var rootCmd = &cobra.Command{
	Use:   "ptycho-convert",
	Short: "Convert beamline ptychography runs for reconstruction pipelines",
	Long: `ptycho-convert turns instrument-captured diffraction runs into the input
layout of the reconstruction tool, and re-exports the tool's product into
dp/para containers for the next pipeline stage.

Each step is a subcommand: run drives a full capture-to-tarball conversion,
export performs the dp/para re-export, attach stamps geometry metadata onto
containers, and runs lists the conversion ledger.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./ptycho-convert.yaml or ~/.config/ptycho-convert/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ptycho-convert")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ptycho-convert"))
		}
	}

	viper.SetEnvPrefix("PTYCHO_CONVERT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

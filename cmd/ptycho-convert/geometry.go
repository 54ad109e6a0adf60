// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ptycho-convert/internal/geometry"
)

// metricFlag turns a metric name into its CLI flag name
// (detector_distance_m → detector-distance-m).
func metricFlag(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// addGeometryFlags registers one float flag per geometry metric, defaulted
// to the metric's hardcoded value, plus the run-range config file flag.
func addGeometryFlags(cmd *cobra.Command) {
	for _, m := range geometry.Metrics {
		cmd.Flags().Float64(metricFlag(m.Name), m.Default, m.Name+" metadata")
	}
	cmd.Flags().String("geometry-config", "", "YAML/JSON file with run-range geometry overrides")
}

// geometryOverrides collects only the metrics the user set explicitly, so
// untouched flags fall through to the run-range table and then defaults.
func geometryOverrides(cmd *cobra.Command) map[string]float64 {
	overrides := make(map[string]float64)
	for _, m := range geometry.Metrics {
		flag := metricFlag(m.Name)
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetFloat64(flag)
			overrides[m.Name] = v
		}
	}
	return overrides
}

// resolveGeometry loads the optional run-range table and resolves every
// metric for the run. A table that cannot be parsed is fatal before any
// container is touched.
func resolveGeometry(cmd *cobra.Command, run int) (map[string]float64, error) {
	var table geometry.Table
	if path, _ := cmd.Flags().GetString("geometry-config"); path != "" {
		var err error
		table, err = geometry.LoadTable(path)
		if err != nil {
			return nil, err
		}
	}
	return geometry.ResolveAll(geometryOverrides(cmd), run, table), nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package geometry resolves per-run geometry metadata (distances,
// energies) and attaches it to containers as flat root attributes. A
// value comes from an explicit override, the first matching entry of a
// run-range table, or a hardcoded default, in that priority order.
package geometry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ptycho-convert/internal/container"
)

// Metric names one geometry scalar and its hardcoded default.
type Metric struct {
	Name    string
	Default float64
}

// Metrics lists the geometry attributes attached to run outputs, with the
// defaults of the existing pipeline.
var Metrics = []Metric{
	{"detector_distance_m", 4.05},
	{"photon_energy_eV", 8800.0},
	{"osa_sample_distance_m", 7.0e-3},
	{"osa_upstream_distance_m", 4.7e-2},
	{"zone_plate_outer_radius_m", 75e-6},
	{"zone_plate_focal_length_m", 5.32e-2},
	{"sample_probe_distance_m", 1.45e-3},
}

// RangeEntry maps an inclusive run range to a metric value.
type RangeEntry struct {
	// Runs holds the [start, end] bounds. Entries without exactly two
	// bounds are skipped, tolerating partially-specified tables.
	Runs []int `json:"runs" yaml:"runs"`

	// Value applies to every run in the range.
	Value float64 `json:"value" yaml:"value"`
}

// Table maps metric names to ordered range entries. Order is the table's
// own; entries are not sorted.
type Table map[string][]RangeEntry

// ConfigFormatError reports a geometry config file that cannot be parsed
// in its declared format. Fatal; raised before any container is touched.
type ConfigFormatError struct {
	Path string
	Err  error
}

func (e *ConfigFormatError) Error() string {
	return fmt.Sprintf("geometry config %s: %v", e.Path, e.Err)
}

func (e *ConfigFormatError) Unwrap() error { return e.Err }

// LoadTable reads a run-range table from a JSON or YAML file; the
// extension selects the format (.yml/.yaml is YAML, anything else JSON).
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geometry config: %w", err)
	}

	var t Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &t)
	default:
		err = json.Unmarshal(data, &t)
	}
	if err != nil {
		return nil, &ConfigFormatError{Path: path, Err: err}
	}
	return t, nil
}

// ValueForRun returns the value of the first entry whose inclusive range
// contains run, in table order. Malformed entries (not exactly two
// bounds) are skipped silently. Falls back when nothing matches.
func ValueForRun(entries []RangeEntry, run int, fallback float64) float64 {
	for _, e := range entries {
		if len(e.Runs) != 2 {
			continue
		}
		if e.Runs[0] <= run && run <= e.Runs[1] {
			return e.Value
		}
	}
	return fallback
}

// Resolve applies the full priority chain for one metric: explicit
// override (nil means absent), then the run-range table, then fallback.
func Resolve(override *float64, run int, entries []RangeEntry, fallback float64) float64 {
	if override != nil {
		return *override
	}
	return ValueForRun(entries, run, fallback)
}

// ResolveAll resolves every metric in Metrics for the given run.
// overrides maps metric name to an explicitly supplied value; absent keys
// fall through to the table and then the default.
func ResolveAll(overrides map[string]float64, run int, table Table) map[string]float64 {
	out := make(map[string]float64, len(Metrics))
	for _, m := range Metrics {
		var ov *float64
		if v, ok := overrides[m.Name]; ok {
			ov = &v
		}
		out[m.Name] = Resolve(ov, run, table[m.Name], m.Default)
	}
	return out
}

// Attach merges the resolved geometry scalars onto a container's root
// attributes.
func Attach(path string, attrs map[string]float64) error {
	if err := container.AttachAttrs(path, attrs); err != nil {
		return fmt.Errorf("attaching geometry to %s: %w", path, err)
	}
	return nil
}

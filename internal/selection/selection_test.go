// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/ptycho-convert/internal/container"
	"github.com/pdiddy/ptycho-convert/internal/index"
	"github.com/pdiddy/ptycho-convert/pkg/types"
)

// stack builds a frames × 2 × 2 pattern stack where every value in frame i
// equals base[i], so frames are distinguishable after selection.
func stack(base ...float64) types.Grid {
	g := types.NewGrid(len(base), 2, 2)
	for i, v := range base {
		row := g.Row(i)
		for j := range row {
			row[j] = v
		}
	}
	return g
}

func TestSelectFramesOrder(t *testing.T) {
	frames := stack(10, 11, 12, 13)
	lookup := index.NewLookup([]int64{100, 101, 102, 103})

	got, err := SelectFrames(frames, lookup, []int64{103, 100, 102})
	if err != nil {
		t.Fatalf("SelectFrames: %v", err)
	}
	if got.Rows() != 3 {
		t.Fatalf("selected %d frames, want 3", got.Rows())
	}
	for i, want := range []float64{13, 10, 12} {
		if got.Row(i)[0] != want {
			t.Errorf("frame %d value = %v, want %v", i, got.Row(i)[0], want)
		}
	}
}

// Shuffling the storage order of the catalog must not change the selected
// output: selection follows position order, not storage order.
func TestSelectFramesPermutationInvariant(t *testing.T) {
	const n = 16
	positions := []int64{205, 201, 210, 201, 215}

	catalog := make([]int64, n)
	values := make([]float64, n)
	for i := range catalog {
		catalog[i] = int64(200 + i)
		values[i] = float64(i)
	}

	reference, err := SelectFrames(stack(values...), index.NewLookup(catalog), positions)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 5; trial++ {
		perm := rng.Perm(n)
		shufCatalog := make([]int64, n)
		shufValues := make([]float64, n)
		for i, p := range perm {
			shufCatalog[i] = catalog[p]
			shufValues[i] = values[p]
		}

		got, err := SelectFrames(stack(shufValues...), index.NewLookup(shufCatalog), positions)
		if err != nil {
			t.Fatal(err)
		}
		for i := range reference.Data {
			if got.Data[i] != reference.Data[i] {
				t.Fatalf("trial %d: output differs at %d after catalog shuffle", trial, i)
			}
		}
	}
}

func TestSanitize(t *testing.T) {
	g := types.Grid{Shape: []int{1, 2, 3}, Data: []float64{1.5, -0.25, 0, -1e9, 2, -0.0}}

	clamped := Sanitize(g)

	if clamped != 2 {
		t.Errorf("clamped = %d, want 2", clamped)
	}
	for i, v := range g.Data {
		if v < 0 {
			t.Errorf("Data[%d] = %v, want >= 0", i, v)
		}
	}
	if g.Data[0] != 1.5 || g.Data[4] != 2 {
		t.Error("non-negative values must pass through unchanged")
	}
}

func TestInitialProbeDeterministic(t *testing.T) {
	frames := types.NewGrid(1, 4, 4)
	rng := rand.New(rand.NewSource(7))
	for i := range frames.Data {
		frames.Data[i] = rng.Float64() * 1e3
	}

	a := InitialProbe(frames, types.CGrid{})
	b := InitialProbe(frames, types.CGrid{})

	if !a.Synthesized || !b.Synthesized {
		t.Fatal("synthesis should succeed on a well-formed frame")
	}
	for i := range a.Probe.Data {
		if a.Probe.Data[i] != b.Probe.Data[i] {
			t.Fatalf("probe differs at %d across runs: %v vs %v", i, a.Probe.Data[i], b.Probe.Data[i])
		}
	}
}

// A constant frame is a pure zero-frequency magnitude map: after the
// inverse shift and transform all energy lands on the origin pixel.
func TestInitialProbeConstantFrame(t *testing.T) {
	frames := types.NewGrid(1, 4, 4)
	for i := range frames.Data {
		frames.Data[i] = 4.0
	}

	got := InitialProbe(frames, types.CGrid{})
	if !got.Synthesized {
		t.Fatalf("synthesis failed: %v", got.Err)
	}
	if want := []int{1, 1, 4, 4}; len(got.Probe.Shape) != 4 ||
		got.Probe.Shape[0] != want[0] || got.Probe.Shape[1] != want[1] ||
		got.Probe.Shape[2] != want[2] || got.Probe.Shape[3] != want[3] {
		t.Fatalf("probe shape = %v, want %v", got.Probe.Shape, want)
	}

	// sqrt(4 + eps) ≈ 2 at the origin, ~0 elsewhere.
	origin := got.Probe.Data[0]
	if real(origin) < 1.999 || real(origin) > 2.001 {
		t.Errorf("origin amplitude = %v, want ≈ 2", origin)
	}
	for i, v := range got.Probe.Data[1:] {
		if r, im := real(v), imag(v); r > 1e-9 || r < -1e-9 || im > 1e-9 || im < -1e-9 {
			t.Errorf("pixel %d = %v, want ≈ 0", i+1, v)
		}
	}
}

func TestInitialProbeFallback(t *testing.T) {
	upstream := types.CGrid{Shape: []int{1, 1, 1, 2}, Data: []complex128{3 + 4i, 1}}

	got := InitialProbe(types.Grid{}, upstream)

	if got.Synthesized {
		t.Fatal("expected fallback for empty selection")
	}
	if got.Err == nil {
		t.Error("fallback must carry the synthesis error")
	}
	if len(got.Probe.Data) != 2 || got.Probe.Data[0] != 3+4i {
		t.Error("fallback must pass the upstream probe through verbatim")
	}
}

// writeInputs materializes product and diffraction containers for Export.
func writeInputs(t *testing.T, dir string, product types.Product, patterns types.Patterns) (string, string) {
	t.Helper()

	object := container.ComplexField("object", product.Object.Shape, product.Object.Data)
	object.Attrs = product.ObjectAttrs
	productPath := filepath.Join(dir, "product.npz")
	err := container.Write(productPath, &container.File{
		Fields: []container.Field{
			object,
			container.ComplexField("probe", product.Probe.Shape, product.Probe.Data),
			container.IntField("probe_position_indexes", []int{len(product.PositionIndexes)}, product.PositionIndexes),
			container.FloatField("probe_position_x_m", []int{len(product.PositionX)}, product.PositionX),
			container.FloatField("probe_position_y_m", []int{len(product.PositionY)}, product.PositionY),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	fields := []container.Field{
		container.FloatField("patterns", patterns.Frames.Shape, patterns.Frames.Data),
	}
	if patterns.Indexes != nil {
		fields = append(fields, container.IntField("indexes", []int{len(patterns.Indexes)}, patterns.Indexes))
	}
	patternsPath := filepath.Join(dir, "diffraction.npz")
	if err := container.Write(patternsPath, &container.File{Fields: fields}); err != nil {
		t.Fatal(err)
	}

	return productPath, patternsPath
}

func testProduct() types.Product {
	return types.Product{
		PositionIndexes: []int64{12, 10, 11},
		PositionX:       []float64{1e-6, 2e-6, 3e-6},
		PositionY:       []float64{-1e-6, 0, 1e-6},
		Probe:           types.CGrid{Shape: []int{1, 1, 2, 2}, Data: []complex128{1, 2, 3, 4}},
		Object:          types.CGrid{Shape: []int{2, 2}, Data: []complex128{1i, 2i, 3i, 4i}},
		ObjectAttrs: map[string]float64{
			"pixel_height_m": 1e-8,
			"pixel_width_m":  2e-8,
			"creator_tag":    99, // must not propagate
		},
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	product := testProduct()
	patterns := types.Patterns{
		Frames:  stack(5, -3, 7),
		Indexes: []int64{10, 11, 12},
	}
	productPath, patternsPath := writeInputs(t, dir, product, patterns)

	loadedProduct, err := LoadProduct(productPath)
	if err != nil {
		t.Fatal(err)
	}
	loadedPatterns, err := LoadPatterns(patternsPath)
	if err != nil {
		t.Fatal(err)
	}

	var log bytes.Buffer
	cfg := types.ExportConfig{OutputDir: dir, ProductName: "run396"}
	result, err := Export(loadedProduct, loadedPatterns, cfg, &log)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.Frames != 3 {
		t.Errorf("frames = %d, want 3", result.Frames)
	}

	dp, err := container.Read(result.DPPath)
	if err != nil {
		t.Fatal(err)
	}
	field, ok := dp.Field("dp")
	if !ok {
		t.Fatal("dp container missing dp field")
	}
	// Position order 12,10,11 selects frame values 7,5,-3→0.
	wantFirst := []float64{7, 5, 0}
	for i, want := range wantFirst {
		if got := field.Float[i*4]; got != want {
			t.Errorf("dp frame %d = %v, want %v", i, got, want)
		}
	}
	for i, v := range field.Float {
		if v < 0 {
			t.Errorf("dp[%d] = %v after sanitization", i, v)
		}
	}

	para, err := container.Read(result.ParaPath)
	if err != nil {
		t.Fatal(err)
	}
	object, ok := para.Field("object")
	if !ok {
		t.Fatal("para container missing object field")
	}
	if object.Attrs["pixel_height_m"] != 1e-8 || object.Attrs["pixel_width_m"] != 2e-8 {
		t.Error("pixel geometry attrs must propagate")
	}
	if _, ok := object.Attrs["creator_tag"]; ok {
		t.Error("unlisted attrs must not propagate")
	}

	probe, ok := para.Field("probe")
	if !ok {
		t.Fatal("para container missing probe field")
	}
	if len(probe.Shape) != 4 || probe.Shape[0] != 1 || probe.Shape[1] != 1 {
		t.Errorf("probe shape = %v, want 1×1×H×W", probe.Shape)
	}

	idx, _ := para.Field("probe_position_indexes")
	if idx.Dtype != container.Int64 {
		t.Errorf("position indexes dtype = %s, want i8", idx.Dtype)
	}
	for i, want := range product.PositionIndexes {
		if idx.Int[i] != want {
			t.Errorf("position index %d = %d, want %d", i, idx.Int[i], want)
		}
	}

	x, _ := para.Field("probe_position_x_m")
	y, _ := para.Field("probe_position_y_m")
	for i := range product.PositionX {
		if x.Float[i] != product.PositionX[i] || y.Float[i] != product.PositionY[i] {
			t.Errorf("position %d coordinates altered", i)
		}
	}

	if !strings.Contains(log.String(), "synthesized initial probe") {
		t.Errorf("log %q should report synthesis", log.String())
	}
}

func TestExportIdentityMode(t *testing.T) {
	dir := t.TempDir()
	product := testProduct()
	product.PositionIndexes = []int64{0, 2, 1}
	patterns := types.Patterns{Frames: stack(5, 6, 7)} // no indexes

	productPath, patternsPath := writeInputs(t, dir, product, patterns)
	loadedProduct, _ := LoadProduct(productPath)
	loadedPatterns, err := LoadPatterns(patternsPath)
	if err != nil {
		t.Fatal(err)
	}
	if loadedPatterns.Indexes != nil {
		t.Fatal("indexes should be absent")
	}

	var log bytes.Buffer
	result, err := Export(loadedProduct, loadedPatterns, types.ExportConfig{OutputDir: dir, ProductName: "ident"}, &log)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dp, err := container.Read(result.DPPath)
	if err != nil {
		t.Fatal(err)
	}
	field, _ := dp.Field("dp")
	for i, want := range []float64{5, 7, 6} {
		if field.Float[i*4] != want {
			t.Errorf("dp frame %d = %v, want %v", i, field.Float[i*4], want)
		}
	}
	if !strings.Contains(log.String(), "row offsets") {
		t.Error("identity mode should be reported")
	}
}

func TestExportMissingIndexWritesNothing(t *testing.T) {
	dir := t.TempDir()
	product := testProduct()
	product.PositionIndexes = []int64{10, 999, 11}
	patterns := types.Patterns{Frames: stack(1, 2, 3), Indexes: []int64{10, 11, 12}}

	productPath, patternsPath := writeInputs(t, dir, product, patterns)
	loadedProduct, _ := LoadProduct(productPath)
	loadedPatterns, _ := LoadPatterns(patternsPath)

	var log bytes.Buffer
	_, err := Export(loadedProduct, loadedPatterns, types.ExportConfig{OutputDir: dir, ProductName: "bad"}, &log)
	if err == nil {
		t.Fatal("expected MissingIndexError")
	}
	if !strings.Contains(err.Error(), "999") {
		t.Errorf("error %q should name the missing index", err)
	}

	for _, name := range []string{"bad_dp.npz", "bad_para.npz"} {
		if _, statErr := os.Stat(filepath.Join(dir, name)); statErr == nil {
			t.Errorf("%s must not exist after a fatal error", name)
		}
	}
}

// Detectors may deliver raw integer counts; the load path must widen them
// instead of handing SelectFrames a grid with no float data.
func TestLoadPatternsIntegerCounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counts.npz")
	err := container.Write(path, &container.File{
		Fields: []container.Field{
			container.IntField("patterns", []int{2, 2, 2}, []int64{1, 2, 3, 4, 5, 6, 7, 8}),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	patterns, err := LoadPatterns(path)
	if err != nil {
		t.Fatalf("LoadPatterns: %v", err)
	}
	if len(patterns.Frames.Data) != 8 {
		t.Fatalf("widened data has %d values, want 8", len(patterns.Frames.Data))
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6, 7, 8} {
		if patterns.Frames.Data[i] != want {
			t.Errorf("Data[%d] = %v, want %v", i, patterns.Frames.Data[i], want)
		}
	}

	// The widened stack must flow through selection without panicking.
	selected, err := SelectFrames(patterns.Frames, index.Identity(2), []int64{1, 0})
	if err != nil {
		t.Fatalf("SelectFrames: %v", err)
	}
	if selected.Row(0)[0] != 5 || selected.Row(1)[0] != 1 {
		t.Errorf("selected rows = %v, %v; want frames 1 then 0", selected.Row(0), selected.Row(1))
	}
}

func TestLoadPatternsRejectsComplexStack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "complex.npz")
	err := container.Write(path, &container.File{
		Fields: []container.Field{
			container.ComplexField("patterns", []int{1, 1, 2}, []complex128{1, 2}),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = LoadPatterns(path)
	if err == nil {
		t.Fatal("expected dtype error for complex patterns")
	}
	if !strings.Contains(err.Error(), "dtype") || !strings.Contains(err.Error(), "c16") {
		t.Errorf("error %q should name the offending dtype", err)
	}
}

func TestLoadProductRejectsMistypedField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "product.npz")
	// probe stored as floats instead of complex values.
	err := container.Write(path, &container.File{
		Fields: []container.Field{
			container.ComplexField("object", []int{1, 2}, []complex128{1, 2}),
			container.FloatField("probe", []int{1, 1, 1, 2}, []float64{1, 2}),
			container.IntField("probe_position_indexes", []int{1}, []int64{0}),
			container.FloatField("probe_position_x_m", []int{1}, []float64{0}),
			container.FloatField("probe_position_y_m", []int{1}, []float64{0}),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = LoadProduct(path)
	if err == nil {
		t.Fatal("expected dtype error for float probe")
	}
	if !strings.Contains(err.Error(), "probe") || !strings.Contains(err.Error(), "c16") {
		t.Errorf("error %q should name the field and wanted dtype", err)
	}
}

func TestExportDuplicateCatalogFirstWins(t *testing.T) {
	dir := t.TempDir()
	product := testProduct()
	product.PositionIndexes = []int64{5, 5, 5}
	// Index 5 appears at rows 2 and 7; row 2 must win.
	patterns := types.Patterns{
		Frames:  stack(0, 1, 2, 3, 4, 5, 6, 7),
		Indexes: []int64{1, 2, 5, 3, 4, 9, 8, 5},
	}

	productPath, patternsPath := writeInputs(t, dir, product, patterns)
	loadedProduct, _ := LoadProduct(productPath)
	loadedPatterns, _ := LoadPatterns(patternsPath)

	var log bytes.Buffer
	result, err := Export(loadedProduct, loadedPatterns, types.ExportConfig{OutputDir: dir, ProductName: "dup"}, &log)
	if err != nil {
		t.Fatal(err)
	}

	dp, _ := container.Read(result.DPPath)
	field, _ := dp.Field("dp")
	for i := 0; i < 3; i++ {
		if field.Float[i*4] != 2 {
			t.Errorf("frame %d came from row %v, want row 2", i, field.Float[i*4])
		}
	}
}

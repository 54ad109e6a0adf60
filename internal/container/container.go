// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container reads and writes the named-field array containers the
// pipeline exchanges between stages. A container is a zip archive holding
// one NumPy-encoded entry per field plus a YAML manifest recording each
// field's dtype, shape, and scalar attributes, and the root attributes.
//
// Containers are written atomically: the archive is assembled in a temp
// file next to the destination and renamed into place, so an interrupted
// run leaves no visible output.
package container

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ptycho-convert/pkg/types"
)

// Dtype identifies a field's element type, using NumPy type codes.
type Dtype string

const (
	Float64    Dtype = "f8"
	Int64      Dtype = "i8"
	Complex128 Dtype = "c16"
)

// manifestName is the archive entry holding field and attribute metadata.
const manifestName = "_manifest.yaml"

// Field is one named array in a container. Exactly one of Float, Int, or
// Complex is populated, according to Dtype. Data is flat row-major; Shape
// carries the logical dimensions.
type Field struct {
	Name    string
	Dtype   Dtype
	Shape   []int
	Attrs   map[string]float64
	Float   []float64
	Int     []int64
	Complex []complex128
}

// Len returns the stored element count.
func (f Field) Len() int {
	switch f.Dtype {
	case Int64:
		return len(f.Int)
	case Complex128:
		return len(f.Complex)
	default:
		return len(f.Float)
	}
}

func (f Field) validate() error {
	if want := types.SizeOf(f.Shape); f.Len() != want {
		return fmt.Errorf("field %s: %d elements do not match shape %v (want %d)", f.Name, f.Len(), f.Shape, want)
	}
	return nil
}

// FloatField builds a float64 field.
func FloatField(name string, shape []int, data []float64) Field {
	return Field{Name: name, Dtype: Float64, Shape: shape, Float: data}
}

// IntField builds an int64 field.
func IntField(name string, shape []int, data []int64) Field {
	return Field{Name: name, Dtype: Int64, Shape: shape, Int: data}
}

// ComplexField builds a complex128 field.
func ComplexField(name string, shape []int, data []complex128) Field {
	return Field{Name: name, Dtype: Complex128, Shape: shape, Complex: data}
}

// File is an in-memory container: root attributes plus ordered fields.
type File struct {
	Attrs  map[string]float64
	Fields []Field
}

// Field returns the named field, if present.
func (f *File) Field(name string) (Field, bool) {
	for _, fld := range f.Fields {
		if fld.Name == name {
			return fld, true
		}
	}
	return Field{}, false
}

// Has reports whether the named field is present.
func (f *File) Has(name string) bool {
	_, ok := f.Field(name)
	return ok
}

// manifest is the on-disk metadata entry.
type manifest struct {
	Attrs  map[string]float64 `yaml:"attrs,omitempty"`
	Fields []fieldInfo        `yaml:"fields"`
}

type fieldInfo struct {
	Name  string             `yaml:"name"`
	Dtype Dtype              `yaml:"dtype"`
	Shape []int              `yaml:"shape"`
	Attrs map[string]float64 `yaml:"attrs,omitempty"`
}

// Write assembles the container in a temp file beside path and renames it
// into place. All fields are validated before a single byte is written.
func Write(path string, f *File) error {
	for _, fld := range f.Fields {
		if err := fld.validate(); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp container: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeArchive(tmp, f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp container: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publishing container %s: %w", path, err)
	}
	return nil
}

func writeArchive(w io.Writer, f *File) error {
	zw := zip.NewWriter(w)

	m := manifest{Attrs: f.Attrs}
	for _, fld := range f.Fields {
		m.Fields = append(m.Fields, fieldInfo{
			Name:  fld.Name,
			Dtype: fld.Dtype,
			Shape: fld.Shape,
			Attrs: fld.Attrs,
		})
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	mw, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("creating manifest entry: %w", err)
	}
	if _, err := mw.Write(data); err != nil {
		return fmt.Errorf("writing manifest entry: %w", err)
	}

	for _, fld := range f.Fields {
		ew, err := zw.Create(fld.Name + ".npy")
		if err != nil {
			return fmt.Errorf("creating entry for field %s: %w", fld.Name, err)
		}
		switch fld.Dtype {
		case Int64:
			err = npyio.Write(ew, fld.Int)
		case Complex128:
			err = npyio.Write(ew, fld.Complex)
		default:
			err = npyio.Write(ew, fld.Float)
		}
		if err != nil {
			return fmt.Errorf("encoding field %s: %w", fld.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing container: %w", err)
	}
	return nil
}

// Read opens the container at path, decodes every field, and closes it.
func Read(path string) (*File, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening container %s: %w", path, err)
	}
	defer zr.Close()

	var m *manifest
	for _, entry := range zr.File {
		if entry.Name != manifestName {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("opening manifest in %s: %w", path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading manifest in %s: %w", path, err)
		}
		m = &manifest{}
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parsing manifest in %s: %w", path, err)
		}
		break
	}
	if m == nil {
		return nil, fmt.Errorf("container %s has no %s entry", path, manifestName)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, entry := range zr.File {
		entries[entry.Name] = entry
	}

	out := &File{Attrs: m.Attrs}
	for _, info := range m.Fields {
		entry, ok := entries[info.Name+".npy"]
		if !ok {
			return nil, fmt.Errorf("container %s: manifest lists field %s but entry is missing", path, info.Name)
		}
		fld, err := readField(entry, info)
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", path, err)
		}
		if err := fld.validate(); err != nil {
			return nil, fmt.Errorf("container %s: %w", path, err)
		}
		out.Fields = append(out.Fields, fld)
	}
	return out, nil
}

func readField(entry *zip.File, info fieldInfo) (Field, error) {
	rc, err := entry.Open()
	if err != nil {
		return Field{}, fmt.Errorf("opening field %s: %w", info.Name, err)
	}
	defer rc.Close()

	r, err := npyio.NewReader(rc)
	if err != nil {
		return Field{}, fmt.Errorf("decoding field %s: %w", info.Name, err)
	}

	fld := Field{Name: info.Name, Dtype: info.Dtype, Shape: info.Shape, Attrs: info.Attrs}
	switch info.Dtype {
	case Int64:
		err = r.Read(&fld.Int)
	case Complex128:
		err = r.Read(&fld.Complex)
	case Float64:
		err = r.Read(&fld.Float)
	default:
		return Field{}, fmt.Errorf("field %s: unsupported dtype %q", info.Name, info.Dtype)
	}
	if err != nil {
		return Field{}, fmt.Errorf("reading field %s: %w", info.Name, err)
	}
	return fld, nil
}

// AttachAttrs merges attrs into the container's root attributes, rewriting
// the archive through the same atomic path as Write. Existing keys are
// overwritten; fields are untouched.
func AttachAttrs(path string, attrs map[string]float64) error {
	f, err := Read(path)
	if err != nil {
		return err
	}
	if f.Attrs == nil {
		f.Attrs = make(map[string]float64, len(attrs))
	}
	for k, v := range attrs {
		f.Attrs[k] = v
	}
	return Write(path, f)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// InputKind discriminates how a data-file argument should be used.
type InputKind int

const (
	// DirectFile means the argument is the container itself.
	DirectFile InputKind = iota

	// IndirectPath means the argument was a small text file whose
	// contents name the real container.
	IndirectPath
)

// InputRef is the resolved form of a data-file argument. Path always
// names the container to open.
type InputRef struct {
	Kind InputKind
	Path string
}

// indirectSizeLimit bounds what can be treated as a path-valued file.
const indirectSizeLimit = 4096

// zipMagic is the container archive signature.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// ResolveInput inspects a path that may be either the container itself or
// a text file holding the container's path, and returns the explicit
// resolution. A file that does not look like either is treated as direct;
// callers discover real corruption when they open it.
func ResolveInput(path string) (InputRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return InputRef{}, fmt.Errorf("resolving input %s: %w", path, err)
	}

	if info.Size() > indirectSizeLimit {
		return InputRef{Kind: DirectFile, Path: path}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return InputRef{}, fmt.Errorf("resolving input %s: %w", path, err)
	}
	if bytes.HasPrefix(data, zipMagic) {
		return InputRef{Kind: DirectFile, Path: path}, nil
	}

	target := strings.TrimSpace(string(data))
	if target != "" && !strings.ContainsAny(target, "\n\x00") {
		if _, err := os.Stat(target); err == nil {
			return InputRef{Kind: IndirectPath, Path: target}, nil
		}
	}

	return InputRef{Kind: DirectFile, Path: path}, nil
}

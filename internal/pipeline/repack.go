// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"os"
)

// Repack rewrites an LZO-compressed capture file as a zlib-compressed
// copy so environments without LZO support can read it. A pre-existing
// destination is reused; a missing repack binary is a hard error telling
// the operator to create the copy manually.
func Repack(src, dst string, w io.Writer) error {
	return repack(defaultExec, src, dst, w)
}

func repack(exec executor, src, dst string, w io.Writer) error {
	if _, err := os.Stat(dst); err == nil {
		fmt.Fprintf(w, "repacked copy already exists: %s\n", dst)
		return nil
	}

	if _, err := exec.LookPath(binRepack); err != nil {
		return fmt.Errorf("%s not found on PATH; create the repacked copy manually: %w", binRepack, err)
	}

	if err := exec.Run(w, binRepack, "--complib=zlib", "--complevel=4", src, dst); err != nil {
		return fmt.Errorf("repacking %s: %w", src, err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates a full run conversion: repack the captured
// file, render reconstruction settings, invoke the reconstruction tool,
// attach geometry metadata, and package the standard-layout outputs.
package pipeline

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
)

const (
	binRepack      = "ptrepack"
	binReconstruct = "ptychodus-bdp"
)

// executor abstracts external tool invocation for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(w io.Writer, name string, args ...string) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(w io.Writer, name string, args ...string) error {
	fmt.Fprintf(w, ">> %s %s\n", name, strings.Join(args, " "))
	cmd := exec.Command(name, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd.Run()
}

var defaultExec executor = &osExecutor{}

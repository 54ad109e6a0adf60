// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/pdiddy/ptycho-convert/pkg/types"
)

// probeEpsilon is added to each intensity before the square root so that
// zero-intensity pixels keep a defined amplitude. The value is an
// unexplained tunable inherited from the existing pipeline; it is kept
// verbatim for numerical compatibility with outputs already in the wild.
const probeEpsilon = 1e-12

// ProbeResult reports how the initial probe estimate was obtained. The
// fallback branch is an intentional, testable outcome, not suppressed
// error handling: synthesis is best-effort, upstream passthrough is the
// safety net.
type ProbeResult struct {
	// Probe is the estimate to write, shape 1×1×H×W when synthesized.
	Probe types.CGrid

	// Synthesized is true when Probe was derived from the first selected
	// frame, false when the upstream probe was passed through verbatim.
	Synthesized bool

	// Err holds the synthesis failure that forced the fallback. Nil when
	// Synthesized is true.
	Err error
}

// InitialProbe derives an initial probe estimate from the first selected
// frame, falling back to the upstream probe when synthesis fails. The
// synthesized probe is a plausible seed for iterative refinement, not a
// measurement.
func InitialProbe(selected types.Grid, upstream types.CGrid) ProbeResult {
	if selected.Rows() == 0 || len(selected.Shape) != 3 {
		return ProbeResult{
			Probe:       upstream,
			Synthesized: false,
			Err:         fmt.Errorf("no selected frame to synthesize from (shape %v)", selected.Shape),
		}
	}

	h, w := selected.Shape[1], selected.Shape[2]
	probe, err := synthesizeProbe(h, w, selected.Row(0))
	if err != nil {
		return ProbeResult{Probe: upstream, Synthesized: false, Err: err}
	}
	return ProbeResult{Probe: probe, Synthesized: true}
}

// synthesizeProbe treats frame as a centered frequency-domain magnitude
// map: amplitude = sqrt(frame + eps), undo the zero-frequency centering
// shift, then inverse-transform to a complex real-space estimate. The
// result carries two leading singleton axes for the index dimensions the
// downstream consumer expects.
func synthesizeProbe(h, w int, frame []float64) (types.CGrid, error) {
	if h <= 0 || w <= 0 {
		return types.CGrid{}, fmt.Errorf("degenerate frame dimensions %dx%d", h, w)
	}
	if len(frame) != h*w {
		return types.CGrid{}, fmt.Errorf("frame has %d values, want %d", len(frame), h*w)
	}

	amplitude := make([]complex128, h*w)
	for i, v := range frame {
		amplitude[i] = complex(math.Sqrt(v+probeEpsilon), 0)
	}

	work := inverseShift(amplitude, h, w)
	inverseTransform(work, h, w)

	return types.CGrid{Shape: []int{1, 1, h, w}, Data: work}, nil
}

// inverseShift undoes a zero-frequency-centering shift, moving the center
// element back to the array origin (the inverse of an fftshift).
func inverseShift(in []complex128, h, w int) []complex128 {
	out := make([]complex128, len(in))
	for r := 0; r < h; r++ {
		sr := (r + h/2) % h
		for c := 0; c < w; c++ {
			sc := (c + w/2) % w
			out[r*w+c] = in[sr*w+sc]
		}
	}
	return out
}

// inverseTransform applies an inverse 2-D DFT in place, normalized by
// 1/(h·w). gonum's Sequence is the unnormalized inverse, so rows and
// columns are transformed separately and scaled once at the end.
func inverseTransform(data []complex128, h, w int) {
	rowFFT := fourier.NewCmplxFFT(w)
	buf := make([]complex128, w)
	for r := 0; r < h; r++ {
		row := data[r*w : (r+1)*w]
		copy(buf, row)
		rowFFT.Sequence(row, buf)
	}

	colFFT := fourier.NewCmplxFFT(h)
	colIn := make([]complex128, h)
	colOut := make([]complex128, h)
	for c := 0; c < w; c++ {
		for r := 0; r < h; r++ {
			colIn[r] = data[r*w+c]
		}
		colFFT.Sequence(colOut, colIn)
		for r := 0; r < h; r++ {
			data[r*w+c] = colOut[r]
		}
	}

	scale := complex(1/float64(h*w), 0)
	for i := range data {
		data[i] *= scale
	}
}

package optics

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT propagation between pupil and image planes.
//
// The sampling relationship is fixed by the transform size: a pupil plane of
// n pixels at d meters/pixel maps to an image plane sampled at
// D/(n*d) lambda/D per pixel, and back. For a wavefront built by
// NewWavefront this evaluates to 1/oversample lambda/D per pixel at every
// wavelength.

// PropagateFFT transforms the wavefront between its current plane and the
// requested plane representation in place. Propagating pupil->image uses the
// forward transform; image->pupil the inverse. A round trip with no
// intervening element reproduces the original grid to near machine
// precision.
func (w *Wavefront) PropagateFFT(to PlaneType) error {
	switch {
	case w.Plane == PlanePupil && to.imageLike():
		w.fft2(true)
		w.PixelScale = w.Diam / (float64(w.GridSize()) * w.PixelScale)
		w.Plane = to
	case w.Plane.imageLike() && to == PlanePupil:
		w.fft2(false)
		w.PixelScale = w.Diam / (float64(w.GridSize()) * w.PixelScale)
		w.Plane = PlanePupil
	case w.Plane == to || (w.Plane.imageLike() && to.imageLike()):
		return nil
	default:
		return fmt.Errorf("%w: cannot FFT-propagate from %v to %v plane", ErrConfiguration, w.Plane, to)
	}
	if !w.isFinite() {
		return fmt.Errorf("%w: FFT to %v plane at wavelength %g m", ErrNumericalInstability, to, w.Wavelength)
	}
	return nil
}

// fft2 applies a centered 2-D FFT in place: the array center (index n/2) is
// moved to the transform origin, rows then columns are transformed, and the
// origin is moved back. Both directions carry a 1/n amplitude factor so that
// forward followed by inverse is the identity and total intensity is
// preserved.
func (w *Wavefront) fft2(forward bool) {
	n := w.GridSize()
	w.shift(false)

	fft := fourier.NewCmplxFFT(n)
	raw := w.amp.RawCMatrix()

	// rows
	tmp := make([]complex128, n)
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		copy(tmp, row)
		if forward {
			fft.Coefficients(tmp, tmp)
		} else {
			fft.Sequence(tmp, tmp)
		}
		copy(row, tmp)
	}

	// columns
	col := make([]complex128, n)
	scale := complex(1/float64(n), 0)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = raw.Data[y*raw.Stride+x]
		}
		if forward {
			fft.Coefficients(col, col)
		} else {
			fft.Sequence(col, col)
		}
		for y := 0; y < n; y++ {
			raw.Data[y*raw.Stride+x] = col[y] * scale
		}
	}

	w.shift(true)
}

// shift rolls the grid so that the centered convention (origin at index n/2)
// and the FFT convention (origin at index 0) map onto each other. center
// true moves index 0 to n/2 (fftshift); false moves n/2 to 0 (ifftshift).
// The two differ only for odd grid sizes.
func (w *Wavefront) shift(center bool) {
	n := w.GridSize()
	k := n / 2
	if !center {
		k = n - k
	}
	if k == 0 || k == n {
		return
	}
	raw := w.amp.RawCMatrix()
	out := make([]complex128, n*n)
	for y := 0; y < n; y++ {
		yy := (y + k) % n
		src := raw.Data[y*raw.Stride : y*raw.Stride+n]
		dst := out[yy*n:]
		for x := 0; x < n; x++ {
			dst[(x+k)%n] = src[x]
		}
	}
	for y := 0; y < n; y++ {
		copy(raw.Data[y*raw.Stride:y*raw.Stride+n], out[y*n:(y+1)*n])
	}
}
